package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"
	"keyforge.backend/internal/domain/entities"
	domainerrors "keyforge.backend/internal/domain/errors"
	"keyforge.backend/internal/infrastructure/models"
)

// ApplicationRepository implements application data operations
type ApplicationRepository struct {
	db *gorm.DB
}

// NewApplicationRepository creates a new application repository
func NewApplicationRepository(db *gorm.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

// Create creates a new application
func (r *ApplicationRepository) Create(ctx context.Context, app *entities.Application) error {
	m := &models.Application{
		ID:              app.ID,
		Name:            app.Name,
		AppID:           app.AppID,
		Version:         app.Version,
		HWIDLockEnabled: app.HWIDLockEnabled,
		WebhookURL:      app.WebhookURL.Ptr(),
		Status:          string(app.Status),
		CreatedBy:       app.CreatedBy,
		CreatedAt:       app.CreatedAt,
		UpdatedAt:       app.UpdatedAt,
	}
	db := GetDB(ctx, r.db)
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domainerrors.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// GetByID gets an application by ID
func (r *ApplicationRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Application, error) {
	return r.first(ctx, "id = ?", id)
}

// GetByAppID gets an application by its public app id
func (r *ApplicationRepository) GetByAppID(ctx context.Context, appID string) (*entities.Application, error) {
	return r.first(ctx, "app_id = ?", appID)
}

// GetByName gets an application by name
func (r *ApplicationRepository) GetByName(ctx context.Context, name string) (*entities.Application, error) {
	return r.first(ctx, "name = ?", name)
}

func (r *ApplicationRepository) first(ctx context.Context, query string, arg interface{}) (*entities.Application, error) {
	var m models.Application
	db := lockedDB(ctx, GetDB(ctx, r.db).WithContext(ctx))
	if err := db.Where(query, arg).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return applicationToEntity(&m), nil
}

// List lists every application
func (r *ApplicationRepository) List(ctx context.Context) ([]*entities.Application, error) {
	var ms []models.Application
	db := GetDB(ctx, r.db)
	if err := db.WithContext(ctx).Order("name ASC").Find(&ms).Error; err != nil {
		return nil, err
	}
	return applicationsToEntities(ms), nil
}

// ListAccessible lists applications created by or shared with a user
func (r *ApplicationRepository) ListAccessible(ctx context.Context, userID uuid.UUID) ([]*entities.Application, error) {
	var ms []models.Application
	db := GetDB(ctx, r.db).WithContext(ctx)
	granted := db.Model(&models.ApplicationAccess{}).Select("app_id").Where("user_id = ?", userID)
	if err := db.Where("created_by = ? OR app_id IN (?)", userID, granted).Order("name ASC").Find(&ms).Error; err != nil {
		return nil, err
	}
	return applicationsToEntities(ms), nil
}

// Update updates the editable fields of an application
func (r *ApplicationRepository) Update(ctx context.Context, app *entities.Application) error {
	app.UpdatedAt = time.Now().UTC()
	db := GetDB(ctx, r.db)
	result := db.WithContext(ctx).Model(&models.Application{}).
		Where("id = ?", app.ID).
		Updates(map[string]interface{}{
			"name":              app.Name,
			"version":           app.Version,
			"hwid_lock_enabled": app.HWIDLockEnabled,
			"webhook_url":       app.WebhookURL.Ptr(),
			"status":            string(app.Status),
			"updated_at":        app.UpdatedAt,
		})
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return domainerrors.ErrAlreadyExists
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

// UpdateAppID replaces the public app id of an application
func (r *ApplicationRepository) UpdateAppID(ctx context.Context, id uuid.UUID, newAppID string) error {
	db := GetDB(ctx, r.db)
	result := db.WithContext(ctx).Model(&models.Application{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"app_id":     newAppID,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

// Delete removes an application row
func (r *ApplicationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	db := GetDB(ctx, r.db)
	result := db.WithContext(ctx).Delete(&models.Application{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

func applicationToEntity(m *models.Application) *entities.Application {
	return &entities.Application{
		ID:              m.ID,
		Name:            m.Name,
		AppID:           m.AppID,
		Version:         m.Version,
		HWIDLockEnabled: m.HWIDLockEnabled,
		WebhookURL:      null.StringFromPtr(m.WebhookURL),
		Status:          entities.ApplicationStatus(m.Status),
		CreatedBy:       m.CreatedBy,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

func applicationsToEntities(ms []models.Application) []*entities.Application {
	out := make([]*entities.Application, 0, len(ms))
	for i := range ms {
		out = append(out, applicationToEntity(&ms[i]))
	}
	return out
}

// ApplicationAccessRepository implements application sharing operations
type ApplicationAccessRepository struct {
	db *gorm.DB
}

// NewApplicationAccessRepository creates a new application access repository
func NewApplicationAccessRepository(db *gorm.DB) *ApplicationAccessRepository {
	return &ApplicationAccessRepository{db: db}
}

// Grant shares an application with a user
func (r *ApplicationAccessRepository) Grant(ctx context.Context, access *entities.ApplicationAccess) error {
	m := &models.ApplicationAccess{
		ID:        access.ID,
		UserID:    access.UserID,
		AppID:     access.AppID,
		CreatedAt: access.CreatedAt,
	}
	db := GetDB(ctx, r.db)
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domainerrors.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// Revoke removes a user's access to an application
func (r *ApplicationAccessRepository) Revoke(ctx context.Context, appID string, userID uuid.UUID) error {
	db := GetDB(ctx, r.db)
	result := db.WithContext(ctx).Where("app_id = ? AND user_id = ?", appID, userID).Delete(&models.ApplicationAccess{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

// ListByApp lists access grants of an application
func (r *ApplicationAccessRepository) ListByApp(ctx context.Context, appID string) ([]*entities.ApplicationAccess, error) {
	var ms []models.ApplicationAccess
	db := GetDB(ctx, r.db)
	if err := db.WithContext(ctx).Where("app_id = ?", appID).Order("created_at ASC").Find(&ms).Error; err != nil {
		return nil, err
	}
	out := make([]*entities.ApplicationAccess, 0, len(ms))
	for _, m := range ms {
		out = append(out, &entities.ApplicationAccess{
			ID:        m.ID,
			UserID:    m.UserID,
			AppID:     m.AppID,
			CreatedAt: m.CreatedAt,
		})
	}
	return out, nil
}

// HasAccess reports whether a user was granted an application
func (r *ApplicationAccessRepository) HasAccess(ctx context.Context, userID uuid.UUID, appID string) (bool, error) {
	var count int64
	db := GetDB(ctx, r.db)
	if err := db.WithContext(ctx).Model(&models.ApplicationAccess{}).
		Where("user_id = ? AND app_id = ?", userID, appID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// UpdateAppID moves grants to a rotated application id
func (r *ApplicationAccessRepository) UpdateAppID(ctx context.Context, oldAppID, newAppID string) error {
	db := GetDB(ctx, r.db)
	return db.WithContext(ctx).Model(&models.ApplicationAccess{}).
		Where("app_id = ?", oldAppID).
		Update("app_id", newAppID).Error
}

// DeleteByApp removes every grant of an application
func (r *ApplicationAccessRepository) DeleteByApp(ctx context.Context, appID string) error {
	db := GetDB(ctx, r.db)
	return db.WithContext(ctx).Where("app_id = ?", appID).Delete(&models.ApplicationAccess{}).Error
}
