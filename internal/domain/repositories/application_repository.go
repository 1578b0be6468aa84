package repositories

import (
	"context"

	"github.com/google/uuid"
	"keyforge.backend/internal/domain/entities"
)

// ApplicationRepository defines application data operations
type ApplicationRepository interface {
	Create(ctx context.Context, app *entities.Application) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Application, error)
	GetByAppID(ctx context.Context, appID string) (*entities.Application, error)
	GetByName(ctx context.Context, name string) (*entities.Application, error)
	List(ctx context.Context) ([]*entities.Application, error)
	// ListAccessible returns apps the user created or was granted.
	ListAccessible(ctx context.Context, userID uuid.UUID) ([]*entities.Application, error)
	Update(ctx context.Context, app *entities.Application) error
	UpdateAppID(ctx context.Context, id uuid.UUID, newAppID string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// ApplicationAccessRepository defines application sharing operations
type ApplicationAccessRepository interface {
	Grant(ctx context.Context, access *entities.ApplicationAccess) error
	Revoke(ctx context.Context, appID string, userID uuid.UUID) error
	ListByApp(ctx context.Context, appID string) ([]*entities.ApplicationAccess, error)
	HasAccess(ctx context.Context, userID uuid.UUID, appID string) (bool, error)
	UpdateAppID(ctx context.Context, oldAppID, newAppID string) error
	DeleteByApp(ctx context.Context, appID string) error
}
