package bootstrap

import (
	"fmt"

	"gorm.io/gorm"

	"backuphub/internal/models"
)

// Migrate ensures the tables the scheduler core reads and writes exist.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(allModels()...); err != nil {
		return fmt.Errorf("auto migrate failed: %w", err)
	}
	return nil
}

func allModels() []interface{} {
	return []interface{}{
		&models.Computer{},
		&models.Task{},
		&models.BackupJob{},
	}
}
