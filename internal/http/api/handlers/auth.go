package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/marvinkome/mediay/internal/identity"
	"github.com/marvinkome/mediay/internal/models"
	"github.com/marvinkome/mediay/internal/session"
	"gorm.io/gorm"

	log "github.com/sirupsen/logrus"
)

// stateCookieName holds the OAuth state nonce between redirect and callback.
const stateCookieName = "mediay_oauth_state"

// AuthHandler manages sign-in, sign-out, and the OAuth callback.
type AuthHandler struct {
	db       *gorm.DB
	sessions *session.Manager
	google   *identity.GoogleProvider
	magic    *identity.MagicProvider
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(db *gorm.DB, sessions *session.Manager, google *identity.GoogleProvider, magic *identity.MagicProvider) *AuthHandler {
	return &AuthHandler{db: db, sessions: sessions, google: google, magic: magic}
}

// GoogleLogin returns the Google authorization URL and plants the state cookie.
func (h *AuthHandler) GoogleLogin(c *gin.Context) {
	if h.google == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "google sign-in not configured"})
		return
	}
	state := identity.NewState()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(stateCookieName, state, 600, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"url": h.google.AuthCodeURL(state)})
}

// GoogleCallback exchanges the authorization code, upserts the user, writes
// the session, and sends the browser home.
func (h *AuthHandler) GoogleCallback(c *gin.Context) {
	if h.google == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "google sign-in not configured"})
		return
	}

	state := strings.TrimSpace(c.Query("state"))
	expected, errCookie := c.Cookie(stateCookieName)
	if errCookie != nil || state == "" || state != expected {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid oauth state"})
		return
	}
	c.SetCookie(stateCookieName, "", -1, "/", "", false, true)

	code := strings.TrimSpace(c.Query("code"))
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing code"})
		return
	}

	profile, errExchange := h.google.Exchange(c.Request.Context(), code)
	if errExchange != nil {
		log.WithError(errExchange).Warn("google code exchange failed")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "sign-in failed"})
		return
	}

	if _, ok := h.establishSession(c, profile); !ok {
		return
	}
	c.Redirect(http.StatusFound, "/")
}

// magicLoginRequest defines the request body for magic-link sign-in.
type magicLoginRequest struct {
	DIDToken string `json:"didToken"`
}

// MagicLogin validates a magic-link DID token and writes the session.
func (h *AuthHandler) MagicLogin(c *gin.Context) {
	if h.magic == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "magic sign-in not configured"})
		return
	}

	var body magicLoginRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(body.DIDToken) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing didToken"})
		return
	}

	profile, errValidate := h.magic.Validate(c.Request.Context(), body.DIDToken)
	if errValidate != nil {
		log.WithError(errValidate).Warn("magic token validation failed")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "sign-in failed"})
		return
	}

	user, ok := h.establishSession(c, profile)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user": gin.H{
			"id":    user.ID,
			"email": user.Email,
			"name":  user.Name,
		},
	})
}

// establishSession upserts the user for a verified profile and writes the
// session cookie. The session payload is always {userId, email}. On failure
// the error response has already been written.
func (h *AuthHandler) establishSession(c *gin.Context, profile identity.Profile) (*models.User, bool) {
	user, errUpsert := identity.UpsertByEmail(c.Request.Context(), h.db, profile)
	if errUpsert != nil {
		log.WithError(errUpsert).Error("user upsert failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sign-in failed"})
		return nil, false
	}

	if errWrite := h.sessions.Write(c, session.Identity{UserID: user.ID, Email: user.Email}); errWrite != nil {
		log.WithError(errWrite).Error("session write failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sign-in failed"})
		return nil, false
	}
	return user, true
}

// Logout clears the session cookie.
func (h *AuthHandler) Logout(c *gin.Context) {
	h.sessions.Clear(c)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
