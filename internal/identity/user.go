package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/marvinkome/mediay/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// UpsertByEmail finds or creates the user for a verified profile. A user
// re-authenticating through a new provider keeps their account; the
// provider subject is merged into the identity map and an empty name is
// backfilled.
func UpsertByEmail(ctx context.Context, db *gorm.DB, profile Profile) (*models.User, error) {
	if profile.Email == "" {
		return nil, fmt.Errorf("identity: profile missing email")
	}

	var user models.User
	errTx := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		errFind := tx.Where("email = ?", profile.Email).First(&user).Error
		now := time.Now().UTC()

		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			identities, errMarshal := json.Marshal(map[string]string{profile.Provider: profile.Subject})
			if errMarshal != nil {
				return fmt.Errorf("identity: marshal identities: %w", errMarshal)
			}
			user = models.User{
				Email:      profile.Email,
				Name:       profile.Name,
				Identities: datatypes.JSON(identities),
				CreatedAt:  now,
				UpdatedAt:  now,
			}
			if errCreate := tx.Create(&user).Error; errCreate != nil {
				return fmt.Errorf("identity: create user: %w", errCreate)
			}
			return nil
		}
		if errFind != nil {
			return fmt.Errorf("identity: find user: %w", errFind)
		}

		identities := map[string]string{}
		if len(user.Identities) > 0 {
			if errUnmarshal := json.Unmarshal(user.Identities, &identities); errUnmarshal != nil {
				identities = map[string]string{}
			}
		}
		if identities[profile.Provider] == profile.Subject && (profile.Name == "" || user.Name != "") {
			return nil
		}
		identities[profile.Provider] = profile.Subject
		merged, errMarshal := json.Marshal(identities)
		if errMarshal != nil {
			return fmt.Errorf("identity: marshal identities: %w", errMarshal)
		}

		updates := map[string]any{"identities": datatypes.JSON(merged), "updated_at": now}
		if user.Name == "" && profile.Name != "" {
			updates["name"] = profile.Name
		}
		if errUpdate := tx.Model(&user).Updates(updates).Error; errUpdate != nil {
			return fmt.Errorf("identity: update user: %w", errUpdate)
		}
		user.Identities = datatypes.JSON(merged)
		if user.Name == "" {
			user.Name = profile.Name
		}
		return nil
	})
	if errTx != nil {
		return nil, errTx
	}
	return &user, nil
}
