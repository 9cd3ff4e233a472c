// Package api wires the HTTP surface: session middleware plus one handler
// per resource, in front of the transactional store.
package api

import (
	"github.com/gin-gonic/gin"
	"github.com/marvinkome/mediay/internal/http/api/handlers"
	"github.com/marvinkome/mediay/internal/identity"
	"github.com/marvinkome/mediay/internal/session"
	"github.com/marvinkome/mediay/internal/store"
	"gorm.io/gorm"
)

// RegisterRoutes registers all routes, middleware, and handlers.
// The google provider may be nil when its credentials are not configured;
// the login endpoints then report the provider as unavailable.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, st *store.Store, sessions *session.Manager, google *identity.GoogleProvider, magic *identity.MagicProvider) {
	if r == nil || db == nil || st == nil || sessions == nil {
		return
	}

	healthHandler := handlers.NewHealthHandler(db)
	r.GET("/healthz", healthHandler.Healthz)

	authHandler := handlers.NewAuthHandler(db, sessions, google, magic)
	r.GET("/auth/google/login", authHandler.GoogleLogin)
	r.GET("/auth/google/callback", authHandler.GoogleCallback)
	r.POST("/auth/magic", authHandler.MagicLogin)
	r.POST("/auth/logout", authHandler.Logout)

	authed := r.Group("/api")
	authed.Use(handlers.SessionMiddleware(sessions))

	groupHandler := handlers.NewGroupHandler(st)
	authed.GET("/groups", groupHandler.List)
	authed.POST("/groups", groupHandler.Create)
	authed.GET("/groups/:id", groupHandler.Get)
	authed.PUT("/groups/:id", groupHandler.Update)

	membershipHandler := handlers.NewMembershipHandler(st)
	authed.POST("/groups/:id/join", membershipHandler.RequestToJoin)
	authed.POST("/groups/:id/requests/:userId/accept", membershipHandler.AcceptRequest)
	authed.POST("/groups/:id/requests/:userId/decline", membershipHandler.DeclineRequest)
	authed.DELETE("/groups/:id/members/:userId", membershipHandler.RemoveMember)
	authed.POST("/groups/:id/leave", membershipHandler.Leave)

	serviceHandler := handlers.NewServiceHandler(st)
	authed.POST("/groups/:id/services", serviceHandler.Create)
	authed.PUT("/services/:id", serviceHandler.Update)
	authed.DELETE("/services/:id", serviceHandler.Delete)
	authed.POST("/services/:id/join", serviceHandler.Join)
	authed.POST("/services/:id/leave", serviceHandler.Leave)
}
