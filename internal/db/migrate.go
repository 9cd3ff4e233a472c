package db

import (
	"fmt"

	"github.com/marvinkome/mediay/internal/models"
	"gorm.io/gorm"
)

// Migrate runs database migrations for the current dialect.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}

	if errAutoMigrate := conn.AutoMigrate(
		&models.User{},
		&models.Group{},
		&models.GroupMember{},
		&models.GroupRequest{},
		&models.Service{},
		&models.ServiceUser{},
	); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}

	// ddl defines an index statement to apply.
	type ddl struct {
		name string // Human-readable name for error reporting.
		sql  string // SQL to execute.
	}
	ddls := []ddl{
		{
			name: "idx_group_members_group_id_is_admin",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_group_members_group_id_is_admin
				ON group_members (group_id, is_admin)
			`,
		},
		{
			name: "idx_group_requests_group_id_created_at",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_group_requests_group_id_created_at
				ON group_requests (group_id, created_at DESC)
			`,
		},
		{
			name: "idx_services_group_id_created_at",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_services_group_id_created_at
				ON services (group_id, created_at DESC)
			`,
		},
		{
			name: "idx_service_users_service_id",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_service_users_service_id
				ON service_users (service_id)
			`,
		},
		{
			name: "idx_service_users_service_id_is_creator",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_service_users_service_id_is_creator
				ON service_users (service_id, is_creator)
			`,
		},
	}
	for _, item := range ddls {
		if errDDL := conn.Exec(item.sql).Error; errDDL != nil {
			return fmt.Errorf("db: create index %s: %w", item.name, errDDL)
		}
	}

	return nil
}
