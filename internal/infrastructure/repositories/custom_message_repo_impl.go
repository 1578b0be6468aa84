package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"keyforge.backend/internal/domain/entities"
	domainerrors "keyforge.backend/internal/domain/errors"
	"keyforge.backend/internal/infrastructure/models"
)

// CustomMessageRepository implements reason message overrides
type CustomMessageRepository struct {
	db *gorm.DB
}

// NewCustomMessageRepository creates a new custom message repository
func NewCustomMessageRepository(db *gorm.DB) *CustomMessageRepository {
	return &CustomMessageRepository{db: db}
}

func ownerScope(owner uuid.NullUUID) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		if owner.Valid {
			return q.Where("user_id = ?", owner.UUID)
		}
		return q.Where("user_id IS NULL")
	}
}

// Find gets the override of one code for an owner
func (r *CustomMessageRepository) Find(ctx context.Context, owner uuid.NullUUID, code entities.ReasonCode) (*entities.CustomMessage, error) {
	var m models.CustomMessage
	db := GetDB(ctx, r.db)
	if err := db.WithContext(ctx).Scopes(ownerScope(owner)).Where("code = ?", string(code)).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return customMessageToEntity(&m), nil
}

// List lists every override of an owner
func (r *CustomMessageRepository) List(ctx context.Context, owner uuid.NullUUID) ([]*entities.CustomMessage, error) {
	var ms []models.CustomMessage
	db := GetDB(ctx, r.db)
	if err := db.WithContext(ctx).Scopes(ownerScope(owner)).Order("code ASC").Find(&ms).Error; err != nil {
		return nil, err
	}
	out := make([]*entities.CustomMessage, 0, len(ms))
	for i := range ms {
		out = append(out, customMessageToEntity(&ms[i]))
	}
	return out, nil
}

// Upsert creates or replaces the override of (owner, code)
func (r *CustomMessageRepository) Upsert(ctx context.Context, msg *entities.CustomMessage) error {
	now := time.Now().UTC()
	db := GetDB(ctx, r.db).WithContext(ctx)

	var existing models.CustomMessage
	err := db.Scopes(ownerScope(msg.UserID)).Where("code = ?", string(msg.Code)).First(&existing).Error
	switch {
	case err == nil:
		msg.ID = existing.ID
		msg.CreatedAt = existing.CreatedAt
		msg.UpdatedAt = now
		return db.Model(&models.CustomMessage{}).
			Where("id = ?", existing.ID).
			Updates(map[string]interface{}{
				"message":    msg.Message,
				"updated_at": now,
			}).Error
	case errors.Is(err, gorm.ErrRecordNotFound):
		if msg.ID == uuid.Nil {
			msg.ID = uuid.New()
		}
		msg.CreatedAt = now
		msg.UpdatedAt = now
		return db.Create(&models.CustomMessage{
			ID:        msg.ID,
			UserID:    msg.UserID,
			Code:      string(msg.Code),
			Message:   msg.Message,
			CreatedAt: now,
			UpdatedAt: now,
		}).Error
	default:
		return err
	}
}

// Delete removes the override of (owner, code)
func (r *CustomMessageRepository) Delete(ctx context.Context, owner uuid.NullUUID, code entities.ReasonCode) error {
	db := GetDB(ctx, r.db)
	result := db.WithContext(ctx).Scopes(ownerScope(owner)).Where("code = ?", string(code)).Delete(&models.CustomMessage{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

func customMessageToEntity(m *models.CustomMessage) *entities.CustomMessage {
	return &entities.CustomMessage{
		ID:        m.ID,
		UserID:    m.UserID,
		Code:      entities.ReasonCode(m.Code),
		Message:   m.Message,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
