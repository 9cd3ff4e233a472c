package models

import (
	"time"

	"gorm.io/datatypes"
)

// User represents an account created on first successful sign-in.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Email string `gorm:"type:text;not null;uniqueIndex"` // Email address, upsert key across providers.
	Name  string `gorm:"type:text"`                      // Display name.

	Identities datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'"` // Provider -> subject map, e.g. {"google":"...","magic":"did:..."}.

	Memberships []GroupMember `gorm:"foreignKey:UserID"` // Group memberships.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
