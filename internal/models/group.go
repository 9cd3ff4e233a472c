package models

import "time"

// Group is a named collection of members sharing subscription services.
type Group struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name  string `gorm:"type:text;not null"` // Display name.
	Notes string `gorm:"type:text"`          // Free-text notes.

	Members  []GroupMember  `gorm:"foreignKey:GroupID"` // Related members.
	Requests []GroupRequest `gorm:"foreignKey:GroupID"` // Pending join requests.
	Services []Service      `gorm:"foreignKey:GroupID"` // Shared services.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
