package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"keyforge.backend/internal/domain/entities"
	domainerrors "keyforge.backend/internal/domain/errors"
	"keyforge.backend/internal/infrastructure/models"
)

const licenseFormatRowID = 1

// LicenseFormatRepository implements the singleton key format row
type LicenseFormatRepository struct {
	db *gorm.DB
}

// NewLicenseFormatRepository creates a new license format repository
func NewLicenseFormatRepository(db *gorm.DB) *LicenseFormatRepository {
	return &LicenseFormatRepository{db: db}
}

// Get loads the key format
func (r *LicenseFormatRepository) Get(ctx context.Context) (*entities.LicenseFormat, error) {
	var m models.LicenseFormat
	db := GetDB(ctx, r.db)
	if err := db.WithContext(ctx).Where("id = ?", licenseFormatRowID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return &entities.LicenseFormat{
		Template:     m.Template,
		UseUppercase: m.UseUppercase,
		UseDigits:    m.UseDigits,
		UseSpecial:   m.UseSpecial,
		UpdatedAt:    m.UpdatedAt,
	}, nil
}

// Save inserts or replaces the key format
func (r *LicenseFormatRepository) Save(ctx context.Context, format *entities.LicenseFormat) error {
	m := &models.LicenseFormat{
		ID:           licenseFormatRowID,
		Template:     format.Template,
		UseUppercase: format.UseUppercase,
		UseDigits:    format.UseDigits,
		UseSpecial:   format.UseSpecial,
		UpdatedAt:    format.UpdatedAt,
	}
	db := GetDB(ctx, r.db)
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"template", "use_uppercase", "use_digits", "use_special", "updated_at"}),
	}).Create(m).Error
}
