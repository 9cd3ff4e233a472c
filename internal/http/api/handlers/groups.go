package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/marvinkome/mediay/internal/models"
	"github.com/marvinkome/mediay/internal/rules"
	"github.com/marvinkome/mediay/internal/store"
)

// GroupHandler manages group endpoints.
type GroupHandler struct {
	store *store.Store
}

// NewGroupHandler constructs a GroupHandler.
func NewGroupHandler(st *store.Store) *GroupHandler {
	return &GroupHandler{store: st}
}

// parseID parses a uint64 path parameter.
func parseID(c *gin.Context, name string) (uint64, bool) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param(name)), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

// createServiceRequest defines a service in a group-creation body.
type createServiceRequest struct {
	Name           string  `json:"name"`
	Cost           float64 `json:"cost"`
	NumberOfPeople int     `json:"numberOfPeople"`
	Instructions   string  `json:"instructions"`
}

// createGroupRequest defines the request body for group creation.
type createGroupRequest struct {
	Name     string                 `json:"name"`
	Notes    string                 `json:"notes"`
	Services []createServiceRequest `json:"services"`
}

// Create creates a group with the caller as admin plus optional services.
func (h *GroupHandler) Create(c *gin.Context) {
	identity := currentIdentity(c)

	var body createGroupRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	services := make([]store.ServiceInput, 0, len(body.Services))
	for _, svc := range body.Services {
		services = append(services, store.ServiceInput{
			Name:           svc.Name,
			Cost:           svc.Cost,
			NumberOfPeople: svc.NumberOfPeople,
			Instructions:   svc.Instructions,
		})
	}

	group, errCreate := h.store.CreateGroup(c.Request.Context(), identity.UserID, body.Name, body.Notes, services)
	if errCreate != nil {
		respondDomainError(c, errCreate)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":         group.ID,
		"name":       group.Name,
		"notes":      group.Notes,
		"created_at": group.CreatedAt,
	})
}

// List returns the caller's groups.
func (h *GroupHandler) List(c *gin.Context) {
	identity := currentIdentity(c)

	groups, errList := h.store.ListGroupsForUser(c.Request.Context(), identity.UserID, c.Query("q"))
	if errList != nil {
		respondDomainError(c, errList)
		return
	}

	out := make([]gin.H, 0, len(groups))
	for _, group := range groups {
		out = append(out, gin.H{
			"id":           group.ID,
			"name":         group.Name,
			"notes":        group.Notes,
			"memberCount":  len(group.Members),
			"serviceCount": len(group.Services),
			"isAdmin":      rules.IsAdmin(group.Members, identity.UserID),
			"created_at":   group.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"groups": out})
}

// Get returns one group with members, services, and (for the admin) pending
// requests. Instructions are decrypted only for members.
func (h *GroupHandler) Get(c *gin.Context) {
	identity := currentIdentity(c)
	groupID, ok := parseID(c, "id")
	if !ok {
		return
	}

	group, errGet := h.store.GetGroup(c.Request.Context(), groupID)
	if errGet != nil {
		respondDomainError(c, errGet)
		return
	}
	services, errList := h.store.ListServices(c.Request.Context(), groupID, identity.UserID)
	if errList != nil {
		respondDomainError(c, errList)
		return
	}

	members := make([]gin.H, 0, len(group.Members))
	for _, member := range group.Members {
		entry := gin.H{"userId": member.UserID, "isAdmin": member.IsAdmin}
		if member.User != nil {
			entry["email"] = member.User.Email
			entry["name"] = member.User.Name
		}
		members = append(members, entry)
	}

	payload := gin.H{
		"id":       group.ID,
		"name":     group.Name,
		"notes":    group.Notes,
		"members":  members,
		"services": serviceViewsJSON(services),
		"isMember": rules.MemberOf(group.Members, identity.UserID) != nil,
		"isAdmin":  rules.IsAdmin(group.Members, identity.UserID),
	}

	if rules.IsAdmin(group.Members, identity.UserID) {
		requests := make([]gin.H, 0, len(group.Requests))
		for _, request := range group.Requests {
			entry := gin.H{"userId": request.UserID, "created_at": request.CreatedAt}
			if request.User != nil {
				entry["email"] = request.User.Email
				entry["name"] = request.User.Name
			}
			requests = append(requests, entry)
		}
		payload["requests"] = requests
	}

	c.JSON(http.StatusOK, payload)
}

// updateGroupRequest defines the request body for group updates.
type updateGroupRequest struct {
	Name  *string `json:"name"`
	Notes *string `json:"notes"`
}

// Update modifies group metadata. Admin only.
func (h *GroupHandler) Update(c *gin.Context) {
	identity := currentIdentity(c)
	groupID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var body updateGroupRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	group, errGet := h.store.GetGroup(c.Request.Context(), groupID)
	if errGet != nil {
		respondDomainError(c, errGet)
		return
	}
	if !rules.CanManageGroup(group.Members, identity.UserID) {
		respondDomainError(c, rules.ErrNotAuthorized)
		return
	}

	if errUpdate := h.store.UpdateGroup(c.Request.Context(), groupID, body.Name, body.Notes); errUpdate != nil {
		respondDomainError(c, errUpdate)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// serviceViewsJSON renders service views; the instructions key is present
// only when the store attached plaintext for a confirmed member.
func serviceViewsJSON(views []store.ServiceView) []gin.H {
	out := make([]gin.H, 0, len(views))
	for _, view := range views {
		entry := gin.H{
			"id":             view.ID,
			"groupId":        view.GroupID,
			"name":           view.Name,
			"cost":           view.Cost,
			"numberOfPeople": view.NumberOfPeople,
			"users":          serviceUsersJSON(view.Users),
			"created_at":     view.CreatedAt,
		}
		if view.Instructions != nil {
			entry["instructions"] = *view.Instructions
		}
		out = append(out, entry)
	}
	return out
}

// serviceUsersJSON renders subscriber rows.
func serviceUsersJSON(users []models.ServiceUser) []gin.H {
	out := make([]gin.H, 0, len(users))
	for _, user := range users {
		out = append(out, gin.H{"userId": user.UserID, "isCreator": user.IsCreator})
	}
	return out
}
