package models

import "time"

// GroupRequest is a pending join request, consumed when an admin accepts
// or declines it.
type GroupRequest struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID  uint64 `gorm:"not null;uniqueIndex:idx_group_requests_user_group"` // Requesting user ID.
	GroupID uint64 `gorm:"not null;uniqueIndex:idx_group_requests_user_group"` // Target group ID.

	User  *User  `gorm:"foreignKey:UserID"`  // Requesting user.
	Group *Group `gorm:"foreignKey:GroupID"` // Target group.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
