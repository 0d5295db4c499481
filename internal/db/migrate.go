package db

import (
	"fmt"

	"github.com/zulandar/leadbot/internal/models"
	"gorm.io/gorm"
)

// AllModels returns every GORM model leadbot persists.
func AllModels() []interface{} {
	return []interface{}{
		&models.Lead{},
		&models.ConversationState{},
		&models.InstanceLock{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}
