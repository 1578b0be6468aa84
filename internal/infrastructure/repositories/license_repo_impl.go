package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"keyforge.backend/internal/domain/entities"
	domainerrors "keyforge.backend/internal/domain/errors"
	"keyforge.backend/internal/infrastructure/models"
)

// LicenseRepository implements license data operations
type LicenseRepository struct {
	db *gorm.DB
}

// NewLicenseRepository creates a new license repository
func NewLicenseRepository(db *gorm.DB) *LicenseRepository {
	return &LicenseRepository{db: db}
}

// Create creates a new license
func (r *LicenseRepository) Create(ctx context.Context, license *entities.License) error {
	m := r.toModel(license)
	db := GetDB(ctx, r.db)
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domainerrors.ErrKeyCollision
		}
		return err
	}
	return nil
}

// GetByID gets a license by ID
func (r *LicenseRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.License, error) {
	var m models.License
	db := lockedDB(ctx, GetDB(ctx, r.db).WithContext(ctx))
	if err := db.Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return r.toEntity(&m), nil
}

// GetByKey gets a license by its key
func (r *LicenseRepository) GetByKey(ctx context.Context, key string) (*entities.License, error) {
	var m models.License
	db := lockedDB(ctx, GetDB(ctx, r.db).WithContext(ctx))
	if err := db.Where("license_key = ?", key).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return r.toEntity(&m), nil
}

// ExistsByKey reports whether a key is already issued
func (r *LicenseRepository) ExistsByKey(ctx context.Context, key string) (bool, error) {
	var count int64
	db := GetDB(ctx, r.db)
	if err := db.WithContext(ctx).Model(&models.License{}).Where("license_key = ?", key).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// List lists licenses matching filter with pagination
func (r *LicenseRepository) List(ctx context.Context, filter entities.LicenseFilter, limit, offset int) ([]*entities.License, int64, error) {
	if filter.Scoped && len(filter.AppIDs) == 0 {
		return []*entities.License{}, 0, nil
	}

	filterScope := func(q *gorm.DB) *gorm.DB {
		if filter.AppID != "" {
			q = q.Where("app_id = ?", filter.AppID)
		}
		if filter.Scoped {
			q = q.Where("app_id IN ?", filter.AppIDs)
		}
		if filter.Search != "" {
			q = q.Where("license_key LIKE ?", "%"+filter.Search+"%")
		}
		return q
	}

	db := GetDB(ctx, r.db)
	var total int64
	if err := db.WithContext(ctx).Model(&models.License{}).Scopes(filterScope).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var ms []models.License
	if err := db.WithContext(ctx).Scopes(filterScope).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&ms).Error; err != nil {
		return nil, 0, err
	}
	return r.toEntities(ms), total, nil
}

// ListByApp lists every license of an application
func (r *LicenseRepository) ListByApp(ctx context.Context, appID string) ([]*entities.License, error) {
	var ms []models.License
	db := lockedDB(ctx, GetDB(ctx, r.db).WithContext(ctx))
	if err := db.Where("app_id = ?", appID).Order("created_at ASC").Find(&ms).Error; err != nil {
		return nil, err
	}
	return r.toEntities(ms), nil
}

// ListAll lists every license
func (r *LicenseRepository) ListAll(ctx context.Context) ([]*entities.License, error) {
	var ms []models.License
	db := lockedDB(ctx, GetDB(ctx, r.db).WithContext(ctx))
	if err := db.Order("created_at ASC").Find(&ms).Error; err != nil {
		return nil, err
	}
	return r.toEntities(ms), nil
}

// FindForCheck loads an active license together with its application
func (r *LicenseRepository) FindForCheck(ctx context.Context, appID, key string) (*entities.License, *entities.Application, error) {
	var lm models.License
	db := GetDB(ctx, r.db)
	err := db.WithContext(ctx).
		Joins("JOIN applications ON applications.app_id = licenses.app_id").
		Where("licenses.app_id = ? AND licenses.license_key = ? AND licenses.is_active = ?", appID, key, true).
		First(&lm).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, domainerrors.ErrNotFound
		}
		return nil, nil, err
	}

	var am models.Application
	if err := db.WithContext(ctx).Where("app_id = ?", lm.AppID).First(&am).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, domainerrors.ErrNotFound
		}
		return nil, nil, err
	}
	return r.toEntity(&lm), applicationToEntity(&am), nil
}

// Activate sets the expiry of a not yet activated license. Only the first
// concurrent caller changes the row; later callers observe false.
func (r *LicenseRepository) Activate(ctx context.Context, id uuid.UUID, expiresAt time.Time, hwid null.String) (bool, error) {
	updates := map[string]interface{}{
		"expires_at": expiresAt,
		"updated_at": time.Now().UTC(),
	}
	if hwid.Valid {
		updates["locked_hwid"] = hwid.String
	}

	db := GetDB(ctx, r.db)
	result := db.WithContext(ctx).Model(&models.License{}).
		Where("id = ? AND expires_at IS NULL AND is_unlimited = ?", id, false).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// SetLockedHWID binds or clears the hardware id of a license
func (r *LicenseRepository) SetLockedHWID(ctx context.Context, id uuid.UUID, hwid null.String) error {
	var value interface{}
	if hwid.Valid {
		value = hwid.String
	}

	db := GetDB(ctx, r.db)
	result := db.WithContext(ctx).Model(&models.License{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"locked_hwid": value,
			"updated_at":  time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

// Update writes the mutable moderation and expiry state of a license
func (r *LicenseRepository) Update(ctx context.Context, license *entities.License) error {
	license.UpdatedAt = time.Now().UTC()
	db := GetDB(ctx, r.db)
	result := db.WithContext(ctx).Model(&models.License{}).
		Where("id = ?", license.ID).
		Updates(map[string]interface{}{
			"expires_at":        license.ExpiresAt.Ptr(),
			"is_active":         license.IsActive,
			"is_banned":         license.IsBanned,
			"is_paused":         license.IsPaused,
			"paused_at":         license.PausedAt.Ptr(),
			"paused_expires_at": license.PausedExpiresAt.Ptr(),
			"locked_hwid":       license.LockedHWID.Ptr(),
			"updated_at":        license.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

// Delete removes a license
func (r *LicenseRepository) Delete(ctx context.Context, id uuid.UUID) error {
	db := GetDB(ctx, r.db)
	result := db.WithContext(ctx).Delete(&models.License{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

// DeleteByApp removes every license of an application and its usage rows
func (r *LicenseRepository) DeleteByApp(ctx context.Context, appID string) error {
	db := GetDB(ctx, r.db).WithContext(ctx)
	keys := db.Model(&models.License{}).Select("license_key").Where("app_id = ?", appID)
	if err := db.Where("license_key IN (?)", keys).Delete(&models.LicenseUsage{}).Error; err != nil {
		return err
	}
	return db.Where("app_id = ?", appID).Delete(&models.License{}).Error
}

// UpdateAppID moves licenses to a rotated application id
func (r *LicenseRepository) UpdateAppID(ctx context.Context, oldAppID, newAppID string) error {
	db := GetDB(ctx, r.db)
	return db.WithContext(ctx).Model(&models.License{}).
		Where("app_id = ?", oldAppID).
		Updates(map[string]interface{}{
			"app_id":     newAppID,
			"updated_at": time.Now().UTC(),
		}).Error
}

// UpsertUsage replaces the usage row of a key
func (r *LicenseRepository) UpsertUsage(ctx context.Context, usage *entities.LicenseUsage) error {
	m := &models.LicenseUsage{
		LicenseKey:    usage.LicenseKey,
		HWID:          usage.HWID.Ptr(),
		LastCheckedAt: usage.LastCheckedAt,
	}
	db := GetDB(ctx, r.db)
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "license_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"hwid", "last_checked_at"}),
	}).Create(m).Error
}

// GetUsage gets the usage row of a key
func (r *LicenseRepository) GetUsage(ctx context.Context, key string) (*entities.LicenseUsage, error) {
	var m models.LicenseUsage
	db := GetDB(ctx, r.db)
	if err := db.WithContext(ctx).Where("license_key = ?", key).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return &entities.LicenseUsage{
		LicenseKey:    m.LicenseKey,
		HWID:          null.StringFromPtr(m.HWID),
		LastCheckedAt: m.LastCheckedAt,
	}, nil
}

// Stats counts licenses by derived state at now
func (r *LicenseRepository) Stats(ctx context.Context, now time.Time) (*entities.LicenseStats, error) {
	db := GetDB(ctx, r.db).WithContext(ctx)
	stats := &entities.LicenseStats{}

	counts := []struct {
		dst   *int64
		where string
		args  []interface{}
	}{
		{&stats.Total, "1 = 1", nil},
		{&stats.Unlimited, "is_unlimited = ?", []interface{}{true}},
		{&stats.NotActivated, "is_unlimited = ? AND expires_at IS NULL", []interface{}{false}},
		{&stats.Activated, "is_unlimited = ? AND expires_at >= ?", []interface{}{false, now}},
		{&stats.Expired, "is_unlimited = ? AND expires_at < ?", []interface{}{false, now}},
		{&stats.Banned, "is_banned = ?", []interface{}{true}},
		{&stats.Paused, "is_paused = ?", []interface{}{true}},
		{&stats.Inactive, "is_active = ?", []interface{}{false}},
	}
	for _, c := range counts {
		if err := db.Model(&models.License{}).Where(c.where, c.args...).Count(c.dst).Error; err != nil {
			return nil, err
		}
	}
	return stats, nil
}

func (r *LicenseRepository) toModel(l *entities.License) *models.License {
	return &models.License{
		ID:              l.ID,
		LicenseKey:      l.LicenseKey,
		AppID:           l.AppID,
		DurationValue:   l.DurationValue,
		DurationUnit:    string(l.DurationUnit),
		IsUnlimited:     l.IsUnlimited,
		ExpiresAt:       l.ExpiresAt.Ptr(),
		IsActive:        l.IsActive,
		IsBanned:        l.IsBanned,
		IsPaused:        l.IsPaused,
		PausedAt:        l.PausedAt.Ptr(),
		PausedExpiresAt: l.PausedExpiresAt.Ptr(),
		LockedHWID:      l.LockedHWID.Ptr(),
		CreatedBy:       l.CreatedBy,
		CreatedAt:       l.CreatedAt,
		UpdatedAt:       l.UpdatedAt,
	}
}

func (r *LicenseRepository) toEntity(m *models.License) *entities.License {
	return &entities.License{
		ID:              m.ID,
		LicenseKey:      m.LicenseKey,
		AppID:           m.AppID,
		DurationValue:   m.DurationValue,
		DurationUnit:    entities.DurationUnit(m.DurationUnit),
		IsUnlimited:     m.IsUnlimited,
		ExpiresAt:       utcTimeFromPtr(m.ExpiresAt),
		IsActive:        m.IsActive,
		IsBanned:        m.IsBanned,
		IsPaused:        m.IsPaused,
		PausedAt:        utcTimeFromPtr(m.PausedAt),
		PausedExpiresAt: utcTimeFromPtr(m.PausedExpiresAt),
		LockedHWID:      null.StringFromPtr(m.LockedHWID),
		CreatedBy:       m.CreatedBy,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

func (r *LicenseRepository) toEntities(ms []models.License) []*entities.License {
	out := make([]*entities.License, 0, len(ms))
	for i := range ms {
		out = append(out, r.toEntity(&ms[i]))
	}
	return out
}

func utcTimeFromPtr(t *time.Time) null.Time {
	if t == nil {
		return null.Time{}
	}
	return null.TimeFrom(t.UTC())
}
