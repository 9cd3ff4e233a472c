package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/marvinkome/mediay/internal/rules"
	"github.com/marvinkome/mediay/internal/secrets"
	"github.com/marvinkome/mediay/internal/session"
	"github.com/marvinkome/mediay/internal/store"

	log "github.com/sirupsen/logrus"
)

// identityKey is the gin context key for the resolved session identity.
const identityKey = "sessionIdentity"

// SessionMiddleware resolves the session cookie and stores the identity in
// the request context. Anonymous requests get the soft-redirect response
// (HTTP 200, {"redirect":true,"url":"/"}) instead of an error status: the
// page layer treats it as "please log in", not a failure.
func SessionMiddleware(sessions *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, errResolve := sessions.FromRequest(c)
		if errResolve != nil {
			c.AbortWithStatusJSON(http.StatusOK, gin.H{"redirect": true, "url": "/"})
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

// currentIdentity returns the identity placed by SessionMiddleware.
func currentIdentity(c *gin.Context) session.Identity {
	id, _ := c.Get(identityKey)
	identity, _ := id.(session.Identity)
	return identity
}

// respondDomainError maps a domain error to its response status. Unknown
// errors are logged and reported as an internal failure.
func respondDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, rules.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, rules.ErrNotAuthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, rules.ErrServiceFull):
		c.JSON(http.StatusConflict, gin.H{"error": "service is full"})
	case errors.Is(err, rules.ErrAlreadyMember):
		c.JSON(http.StatusConflict, gin.H{"error": "already a member"})
	case errors.Is(err, rules.ErrAlreadyRequested):
		c.JSON(http.StatusConflict, gin.H{"error": "join already requested"})
	case errors.Is(err, store.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, secrets.ErrMalformedCiphertext):
		log.WithError(err).Error("stored instructions unreadable")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "stored instructions unreadable"})
	default:
		log.WithError(err).Error("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
