package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/marvinkome/mediay/internal/rules"
	"github.com/marvinkome/mediay/internal/store"
)

// MembershipHandler manages join requests and membership changes.
type MembershipHandler struct {
	store *store.Store
}

// NewMembershipHandler constructs a MembershipHandler.
func NewMembershipHandler(st *store.Store) *MembershipHandler {
	return &MembershipHandler{store: st}
}

// RequestToJoin records a pending join request for the caller.
func (h *MembershipHandler) RequestToJoin(c *gin.Context) {
	identity := currentIdentity(c)
	groupID, ok := parseID(c, "id")
	if !ok {
		return
	}

	if errRequest := h.store.RequestToJoin(c.Request.Context(), groupID, identity.UserID); errRequest != nil {
		respondDomainError(c, errRequest)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true})
}

// AcceptRequest converts a pending request into a membership. Admin only.
func (h *MembershipHandler) AcceptRequest(c *gin.Context) {
	identity := currentIdentity(c)
	groupID, ok := parseID(c, "id")
	if !ok {
		return
	}
	targetID, ok := parseID(c, "userId")
	if !ok {
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

	if errAccept := h.store.AcceptJoinRequest(c.Request.Context(), groupID, targetID); errAccept != nil {
		respondDomainError(c, errAccept)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// DeclineRequest discards a pending request. Admin only.
func (h *MembershipHandler) DeclineRequest(c *gin.Context) {
	identity := currentIdentity(c)
	groupID, ok := parseID(c, "id")
	if !ok {
		return
	}
	targetID, ok := parseID(c, "userId")
	if !ok {
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

	if errDecline := h.store.DeclineJoinRequest(c.Request.Context(), groupID, targetID); errDecline != nil {
		respondDomainError(c, errDecline)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// RemoveMember evicts a member along with their subscriptions and the
// services they own. Admin only; the admin cannot remove themselves.
func (h *MembershipHandler) RemoveMember(c *gin.Context) {
	identity := currentIdentity(c)
	groupID, ok := parseID(c, "id")
	if !ok {
		return
	}
	targetID, ok := parseID(c, "userId")
	if !ok {
		return
	}

	group, errGet := h.store.GetGroup(c.Request.Context(), groupID)
	if errGet != nil {
		respondDomainError(c, errGet)
		return
	}
	if errRule := rules.CanRemoveMember(group.Members, identity.UserID, targetID); errRule != nil {
		respondDomainError(c, errRule)
		return
	}

	if errRemove := h.store.RemoveGroupMember(c.Request.Context(), groupID, targetID); errRemove != nil {
		respondDomainError(c, errRemove)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Leave removes the caller from a group. The admin cannot leave.
func (h *MembershipHandler) Leave(c *gin.Context) {
	identity := currentIdentity(c)
	groupID, ok := parseID(c, "id")
	if !ok {
		return
	}

	if errLeave := h.store.LeaveGroup(c.Request.Context(), groupID, identity.UserID); errLeave != nil {
		respondDomainError(c, errLeave)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
