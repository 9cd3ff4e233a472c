// Package rules holds the pure membership and capacity decisions. Functions
// operate on already-fetched rows and never touch the database; the store
// re-evaluates the capacity-sensitive ones inside its transactions.
package rules

import "github.com/marvinkome/mediay/internal/models"

// MemberOf returns the user's membership row, or nil.
func MemberOf(members []models.GroupMember, userID uint64) *models.GroupMember {
	for i := range members {
		if members[i].UserID == userID {
			return &members[i]
		}
	}
	return nil
}

// IsAdmin reports whether the user holds the group's admin membership.
func IsAdmin(members []models.GroupMember, userID uint64) bool {
	m := MemberOf(members, userID)
	return m != nil && m.IsAdmin
}

// CanManageGroup reports whether the user may edit group metadata and
// review membership. Only the admin can.
func CanManageGroup(members []models.GroupMember, userID uint64) bool {
	return IsAdmin(members, userID)
}

// HasRequested reports whether the user already has a pending join request.
func HasRequested(requests []models.GroupRequest, userID uint64) bool {
	for i := range requests {
		if requests[i].UserID == userID {
			return true
		}
	}
	return false
}

// CanJoinGroup reports whether the user may request to join: not already a
// member and no pending request.
func CanJoinGroup(members []models.GroupMember, requests []models.GroupRequest, userID uint64) error {
	if MemberOf(members, userID) != nil {
		return ErrAlreadyMember
	}
	if HasRequested(requests, userID) {
		return ErrAlreadyRequested
	}
	return nil
}

// CanLeaveGroup reports whether the member may leave. The admin cannot;
// there is no transfer or dissolution path.
func CanLeaveGroup(member *models.GroupMember) bool {
	return member != nil && !member.IsAdmin
}

// CanAddService reports whether the user may add a service to the group.
// Any member may.
func CanAddService(members []models.GroupMember, userID uint64) bool {
	return MemberOf(members, userID) != nil
}

// SubscriberOf returns the user's subscription row for the service, or nil.
func SubscriberOf(users []models.ServiceUser, userID uint64) *models.ServiceUser {
	for i := range users {
		if users[i].UserID == userID {
			return &users[i]
		}
	}
	return nil
}

// IsServiceOwner reports whether the user is the service's creator.
func IsServiceOwner(users []models.ServiceUser, userID uint64) bool {
	su := SubscriberOf(users, userID)
	return su != nil && su.IsCreator
}

// CanEditOrRemoveService reports whether the user may edit or delete the
// service. Only its creator can.
func CanEditOrRemoveService(users []models.ServiceUser, userID uint64) bool {
	return IsServiceOwner(users, userID)
}

// HasCapacity reports whether the service has a free spot for the given
// current subscriber count.
func HasCapacity(service *models.Service, subscriberCount int) bool {
	return service != nil && subscriberCount < service.NumberOfPeople
}

// CanJoinService reports whether the user may take a spot: not already
// subscribed and capacity remaining.
func CanJoinService(service *models.Service, users []models.ServiceUser, userID uint64) error {
	if SubscriberOf(users, userID) != nil {
		return ErrAlreadyMember
	}
	if !HasCapacity(service, len(users)) {
		return ErrServiceFull
	}
	return nil
}

// CanRemoveMember reports whether actingUserID may remove targetUserID from
// the group: the actor must be the admin, the target must be a member, and
// the admin cannot remove themselves. Removing the sole admin membership
// would strand the group.
func CanRemoveMember(members []models.GroupMember, actingUserID, targetUserID uint64) error {
	if !IsAdmin(members, actingUserID) {
		return ErrNotAuthorized
	}
	if actingUserID == targetUserID {
		return ErrNotAuthorized
	}
	if MemberOf(members, targetUserID) == nil {
		return ErrNotFound
	}
	return nil
}
