package models

import "time"

// Service is a shared subscription inside a group. Instructions are stored
// encrypted ("<ivHex>:<cipherHex>"); plaintext only exists in memory for
// confirmed group members.
type Service struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	GroupID uint64 `gorm:"not null;index"` // Owning group ID.

	Name           string  `gorm:"type:text;not null"`                 // Service name, e.g. "netflix".
	Cost           float64 `gorm:"type:decimal(10,2);not null"`        // Subscription cost.
	NumberOfPeople int     `gorm:"not null"`                           // Capacity: max ServiceUser rows.
	Instructions   string  `gorm:"type:text;not null;column:instructions"` // Access instructions ciphertext.

	Group *Group        `gorm:"foreignKey:GroupID"`   // Owning group.
	Users []ServiceUser `gorm:"foreignKey:ServiceID"` // Subscribed users.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
