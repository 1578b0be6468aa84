package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"keyforge.backend/internal/domain/entities"
)

// LicenseRepository defines license data operations
type LicenseRepository interface {
	Create(ctx context.Context, license *entities.License) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.License, error)
	GetByKey(ctx context.Context, key string) (*entities.License, error)
	ExistsByKey(ctx context.Context, key string) (bool, error)
	List(ctx context.Context, filter entities.LicenseFilter, limit, offset int) ([]*entities.License, int64, error)
	ListByApp(ctx context.Context, appID string) ([]*entities.License, error)
	ListAll(ctx context.Context) ([]*entities.License, error)

	// FindForCheck joins the license to its application, requiring the
	// license to be active. Returns ErrNotFound on any miss.
	FindForCheck(ctx context.Context, appID, key string) (*entities.License, *entities.Application, error)

	// Activate sets expires_at (and optionally locked_hwid) only while
	// expires_at is still null. Reports whether this call won the write.
	Activate(ctx context.Context, id uuid.UUID, expiresAt time.Time, hwid null.String) (bool, error)
	SetLockedHWID(ctx context.Context, id uuid.UUID, hwid null.String) error
	Update(ctx context.Context, license *entities.License) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByApp(ctx context.Context, appID string) error
	UpdateAppID(ctx context.Context, oldAppID, newAppID string) error

	UpsertUsage(ctx context.Context, usage *entities.LicenseUsage) error
	GetUsage(ctx context.Context, key string) (*entities.LicenseUsage, error)

	Stats(ctx context.Context, now time.Time) (*entities.LicenseStats, error)
}

// LicenseFormatRepository stores the singleton key format row
type LicenseFormatRepository interface {
	Get(ctx context.Context) (*entities.LicenseFormat, error)
	Save(ctx context.Context, format *entities.LicenseFormat) error
}
