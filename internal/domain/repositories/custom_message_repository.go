package repositories

import (
	"context"

	"github.com/google/uuid"
	"keyforge.backend/internal/domain/entities"
)

// CustomMessageRepository defines reason message override operations.
// A null owner addresses the global override.
type CustomMessageRepository interface {
	Find(ctx context.Context, owner uuid.NullUUID, code entities.ReasonCode) (*entities.CustomMessage, error)
	List(ctx context.Context, owner uuid.NullUUID) ([]*entities.CustomMessage, error)
	Upsert(ctx context.Context, msg *entities.CustomMessage) error
	Delete(ctx context.Context, owner uuid.NullUUID, code entities.ReasonCode) error
}
