package models

import "time"

// ServiceUser joins a user to a service. Exactly one row per service has
// IsCreator set, written when the service is added.
type ServiceUser struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID    uint64 `gorm:"not null;uniqueIndex:idx_service_users_user_service"` // Subscribed user ID.
	ServiceID uint64 `gorm:"not null;uniqueIndex:idx_service_users_user_service"` // Target service ID.

	IsCreator bool `gorm:"not null;default:false"` // Set for the user who added the service.

	User    *User    `gorm:"foreignKey:UserID"`    // Subscribed user.
	Service *Service `gorm:"foreignKey:ServiceID"` // Target service.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
