package models

import "time"

// GroupMember joins a user to a group. The creating user gets the sole
// admin row; everyone else joins through an accepted request.
type GroupMember struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID  uint64 `gorm:"not null;uniqueIndex:idx_group_members_user_group"` // Member user ID.
	GroupID uint64 `gorm:"not null;uniqueIndex:idx_group_members_user_group"` // Owning group ID.

	IsAdmin bool `gorm:"not null;default:false"` // Group admin flag.

	User  *User  `gorm:"foreignKey:UserID"`  // Member user.
	Group *Group `gorm:"foreignKey:GroupID"` // Owning group.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
