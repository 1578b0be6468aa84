package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"keyforge.backend/internal/infrastructure/models"
	"keyforge.backend/pkg/logger"
)

// SchemaVersion is bumped whenever a model changes shape.
const SchemaVersion = 1

// Migrate brings the schema to SchemaVersion once. Later runs at the same
// version are no-ops.
func Migrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(&models.SchemaVersion{}); err != nil {
		return fmt.Errorf("failed to create schema_versions: %w", err)
	}

	var current models.SchemaVersion
	err := db.WithContext(ctx).Order("version DESC").First(&current).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if current.Version >= SchemaVersion {
		logger.Debug(ctx, "Schema up to date", zap.Int("version", current.Version))
		return nil
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(models.All()...); err != nil {
			return fmt.Errorf("failed to migrate schema: %w", err)
		}
		if err := tx.Create(&models.SchemaVersion{Version: SchemaVersion, AppliedAt: time.Now().UTC()}).Error; err != nil {
			return fmt.Errorf("failed to record schema version: %w", err)
		}
		logger.Info(ctx, "Schema migrated", zap.Int("from", current.Version), zap.Int("to", SchemaVersion))
		return nil
	})
}
