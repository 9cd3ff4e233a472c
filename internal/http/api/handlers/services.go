package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/marvinkome/mediay/internal/rules"
	"github.com/marvinkome/mediay/internal/store"
)

// ServiceHandler manages shared-service endpoints.
type ServiceHandler struct {
	store *store.Store
}

// NewServiceHandler constructs a ServiceHandler.
func NewServiceHandler(st *store.Store) *ServiceHandler {
	return &ServiceHandler{store: st}
}

// createServiceBody defines the request body for adding a service.
type createServiceBody struct {
	Name           string  `json:"name"`
	Cost           float64 `json:"cost"`
	NumberOfPeople int     `json:"numberOfPeople"`
	Instructions   string  `json:"instructions"`
}

// Create adds a service to a group with the caller as owner. Members only.
func (h *ServiceHandler) Create(c *gin.Context) {
	identity := currentIdentity(c)
	groupID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var body createServiceBody
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	group, errGet := h.store.GetGroup(c.Request.Context(), groupID)
	if errGet != nil {
		respondDomainError(c, errGet)
		return
	}
	if !rules.CanAddService(group.Members, identity.UserID) {
		respondDomainError(c, rules.ErrNotAuthorized)
		return
	}

	view, errAdd := h.store.AddService(c.Request.Context(), groupID, identity.UserID, store.ServiceInput{
		Name:           body.Name,
		Cost:           body.Cost,
		NumberOfPeople: body.NumberOfPeople,
		Instructions:   body.Instructions,
	})
	if errAdd != nil {
		respondDomainError(c, errAdd)
		return
	}
	c.JSON(http.StatusCreated, serviceViewsJSON([]store.ServiceView{*view})[0])
}

// updateServiceBody defines the request body for service updates. Absent
// fields are left unchanged.
type updateServiceBody struct {
	Name           *string  `json:"name"`
	Cost           *float64 `json:"cost"`
	NumberOfPeople *int     `json:"numberOfPeople"`
	Instructions   *string  `json:"instructions"`
}

// Update modifies a service. Creator only.
func (h *ServiceHandler) Update(c *gin.Context) {
	identity := currentIdentity(c)
	serviceID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var body updateServiceBody
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	if errAuth := h.authorizeManage(c, serviceID, identity.UserID); errAuth != nil {
		respondDomainError(c, errAuth)
		return
	}

	errUpdate := h.store.UpdateService(c.Request.Context(), serviceID, store.ServiceUpdate{
		Name:           body.Name,
		Cost:           body.Cost,
		NumberOfPeople: body.NumberOfPeople,
		Instructions:   body.Instructions,
	})
	if errUpdate != nil {
		respondDomainError(c, errUpdate)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Delete removes a service and its subscriptions. Creator only.
func (h *ServiceHandler) Delete(c *gin.Context) {
	identity := currentIdentity(c)
	serviceID, ok := parseID(c, "id")
	if !ok {
		return
	}

	if errAuth := h.authorizeManage(c, serviceID, identity.UserID); errAuth != nil {
		respondDomainError(c, errAuth)
		return
	}

	if errRemove := h.store.RemoveService(c.Request.Context(), serviceID); errRemove != nil {
		respondDomainError(c, errRemove)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Join subscribes the caller to a service when a seat is free.
func (h *ServiceHandler) Join(c *gin.Context) {
	identity := currentIdentity(c)
	serviceID, ok := parseID(c, "id")
	if !ok {
		return
	}

	if errJoin := h.store.JoinService(c.Request.Context(), serviceID, identity.UserID); errJoin != nil {
		respondDomainError(c, errJoin)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Leave unsubscribes the caller. The owner cannot leave their own service.
func (h *ServiceHandler) Leave(c *gin.Context) {
	identity := currentIdentity(c)
	serviceID, ok := parseID(c, "id")
	if !ok {
		return
	}

	if errLeave := h.store.LeaveService(c.Request.Context(), serviceID, identity.UserID); errLeave != nil {
		respondDomainError(c, errLeave)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// authorizeManage loads the service and checks that the caller created it.
func (h *ServiceHandler) authorizeManage(c *gin.Context, serviceID, userID uint64) error {
	service, errGet := h.store.GetService(c.Request.Context(), serviceID)
	if errGet != nil {
		return errGet
	}
	if !rules.CanEditOrRemoveService(service.Users, userID) {
		return rules.ErrNotAuthorized
	}
	return nil
}
