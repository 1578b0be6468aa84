package usecases

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"go.uber.org/zap"
	"keyforge.backend/internal/domain/entities"
	domainerrors "keyforge.backend/internal/domain/errors"
	"keyforge.backend/internal/domain/repositories"
	"keyforge.backend/pkg/crypto"
	"keyforge.backend/pkg/logger"
	"keyforge.backend/pkg/utils"
)

var newAppID = func() (string, error) {
	return crypto.GenerateRandomToken(appIDBytes)
}

// ApplicationUsecase handles application management
type ApplicationUsecase struct {
	appRepo     repositories.ApplicationRepository
	accessRepo  repositories.ApplicationAccessRepository
	licenseRepo repositories.LicenseRepository
	userRepo    repositories.UserRepository
	uow         repositories.UnitOfWork
	perms       *PermissionResolver
}

// NewApplicationUsecase creates a new application usecase
func NewApplicationUsecase(
	appRepo repositories.ApplicationRepository,
	accessRepo repositories.ApplicationAccessRepository,
	licenseRepo repositories.LicenseRepository,
	userRepo repositories.UserRepository,
	uow repositories.UnitOfWork,
	perms *PermissionResolver,
) *ApplicationUsecase {
	return &ApplicationUsecase{
		appRepo:     appRepo,
		accessRepo:  accessRepo,
		licenseRepo: licenseRepo,
		userRepo:    userRepo,
		uow:         uow,
		perms:       perms,
	}
}

// Create registers a new application owned by p.
func (u *ApplicationUsecase) Create(ctx context.Context, p entities.Principal, input *entities.CreateApplicationInput) (*entities.Application, error) {
	if !p.Has(entities.PermManageApplications) {
		return nil, domainerrors.Forbidden("missing permission " + string(entities.PermManageApplications))
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, domainerrors.BadRequest("name is required")
	}
	status := input.Status
	if status == "" {
		status = entities.ApplicationStatusActive
	}
	if !status.Valid() {
		return nil, domainerrors.BadRequest("invalid status")
	}
	if err := u.ensureNameFree(ctx, name, uuid.Nil); err != nil {
		return nil, err
	}

	appID, err := u.freshAppID(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	app := &entities.Application{
		ID:              utils.GenerateUUIDv7(),
		Name:            name,
		AppID:           appID,
		Version:         strings.TrimSpace(input.Version),
		HWIDLockEnabled: input.HWIDLockEnabled,
		Status:          status,
		CreatedBy:       ownerOf(p.UserID),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if url := strings.TrimSpace(input.WebhookURL); url != "" {
		app.WebhookURL = null.StringFrom(url)
	}
	if err := u.appRepo.Create(ctx, app); err != nil {
		if errors.Is(err, domainerrors.ErrAlreadyExists) {
			return nil, domainerrors.Conflict("application name already in use")
		}
		return nil, err
	}

	logger.Info(ctx, "application created", zap.String("app_id", app.AppID), zap.String("name", app.Name))
	return app, nil
}

// List returns every application for admins, otherwise those p owns or
// was granted.
func (u *ApplicationUsecase) List(ctx context.Context, p entities.Principal) ([]*entities.Application, error) {
	if p.IsAdmin() {
		return u.appRepo.List(ctx)
	}
	return u.appRepo.ListAccessible(ctx, p.UserID)
}

// Get returns one application visible to p.
func (u *ApplicationUsecase) Get(ctx context.Context, p entities.Principal, appID string) (*entities.Application, error) {
	app, err := u.getApp(ctx, appID)
	if err != nil {
		return nil, err
	}
	ok, err := u.perms.CanAccessApp(ctx, p, app)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domainerrors.Forbidden("no access to application")
	}
	return app, nil
}

// Update applies a partial update.
func (u *ApplicationUsecase) Update(ctx context.Context, p entities.Principal, appID string, input *entities.UpdateApplicationInput) (*entities.Application, error) {
	app, err := u.getApp(ctx, appID)
	if err != nil {
		return nil, err
	}
	if err := u.perms.AuthorizeApp(ctx, p, entities.PermManageApplications, app); err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, domainerrors.BadRequest("name is required")
		}
		if name != app.Name {
			if err := u.ensureNameFree(ctx, name, app.ID); err != nil {
				return nil, err
			}
			app.Name = name
		}
	}
	if input.Version != nil {
		app.Version = strings.TrimSpace(*input.Version)
	}
	if input.HWIDLockEnabled != nil {
		app.HWIDLockEnabled = *input.HWIDLockEnabled
	}
	if input.WebhookURL != nil {
		if url := strings.TrimSpace(*input.WebhookURL); url != "" {
			app.WebhookURL = null.StringFrom(url)
		} else {
			app.WebhookURL = null.String{}
		}
	}
	if input.Status != nil {
		if !input.Status.Valid() {
			return nil, domainerrors.BadRequest("invalid status")
		}
		app.Status = *input.Status
	}

	if err := u.appRepo.Update(ctx, app); err != nil {
		if errors.Is(err, domainerrors.ErrAlreadyExists) {
			return nil, domainerrors.Conflict("application name already in use")
		}
		return nil, err
	}
	return app, nil
}

// Delete removes an application together with its licenses, their usage
// rows and every access grant.
func (u *ApplicationUsecase) Delete(ctx context.Context, p entities.Principal, appID string) error {
	app, err := u.getApp(ctx, appID)
	if err != nil {
		return err
	}
	if err := u.perms.AuthorizeApp(ctx, p, entities.PermManageApplications, app); err != nil {
		return err
	}

	err = u.uow.Do(ctx, func(txCtx context.Context) error {
		if err := u.licenseRepo.DeleteByApp(txCtx, app.AppID); err != nil {
			return err
		}
		if err := u.accessRepo.DeleteByApp(txCtx, app.AppID); err != nil {
			return err
		}
		return u.appRepo.Delete(txCtx, app.ID)
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "application deleted", zap.String("app_id", app.AppID))
	return nil
}

// RotateAppID replaces the public id of an application. The application,
// its licenses and its access grants move together or not at all.
func (u *ApplicationUsecase) RotateAppID(ctx context.Context, p entities.Principal, appID string) (*entities.Application, error) {
	app, err := u.getApp(ctx, appID)
	if err != nil {
		return nil, err
	}
	if err := u.perms.AuthorizeApp(ctx, p, entities.PermManageApplications, app); err != nil {
		return nil, err
	}

	rotated, err := u.freshAppID(ctx)
	if err != nil {
		return nil, err
	}

	oldAppID := app.AppID
	err = u.uow.Do(ctx, func(txCtx context.Context) error {
		if err := u.appRepo.UpdateAppID(txCtx, app.ID, rotated); err != nil {
			return err
		}
		if err := u.licenseRepo.UpdateAppID(txCtx, oldAppID, rotated); err != nil {
			return err
		}
		return u.accessRepo.UpdateAppID(txCtx, oldAppID, rotated)
	})
	if err != nil {
		logger.Error(ctx, "app id rotation rolled back", zap.String("app_id", oldAppID), zap.Error(err))
		return nil, err
	}

	app.AppID = rotated
	logger.Info(ctx, "app id rotated", zap.String("old_app_id", oldAppID), zap.String("app_id", rotated))
	return app, nil
}

// GrantAccess shares an application with another user.
func (u *ApplicationUsecase) GrantAccess(ctx context.Context, p entities.Principal, appID string, userID uuid.UUID) (*entities.ApplicationAccess, error) {
	app, err := u.getApp(ctx, appID)
	if err != nil {
		return nil, err
	}
	if err := u.perms.AuthorizeApp(ctx, p, entities.PermManageApplications, app); err != nil {
		return nil, err
	}
	if _, err := u.userRepo.GetByID(ctx, userID); err != nil {
		if isNotFound(err) {
			return nil, domainerrors.NotFound("user not found")
		}
		return nil, err
	}

	access := &entities.ApplicationAccess{
		ID:        utils.GenerateUUIDv7(),
		UserID:    userID,
		AppID:     app.AppID,
		CreatedAt: time.Now().UTC(),
	}
	if err := u.accessRepo.Grant(ctx, access); err != nil {
		if errors.Is(err, domainerrors.ErrAlreadyExists) {
			return nil, domainerrors.Conflict("user already has access")
		}
		return nil, err
	}
	return access, nil
}

// RevokeAccess removes a grant.
func (u *ApplicationUsecase) RevokeAccess(ctx context.Context, p entities.Principal, appID string, userID uuid.UUID) error {
	app, err := u.getApp(ctx, appID)
	if err != nil {
		return err
	}
	if err := u.perms.AuthorizeApp(ctx, p, entities.PermManageApplications, app); err != nil {
		return err
	}
	if err := u.accessRepo.Revoke(ctx, app.AppID, userID); err != nil {
		if isNotFound(err) {
			return domainerrors.NotFound("access grant not found")
		}
		return err
	}
	return nil
}

// ListAccess lists the grants of an application.
func (u *ApplicationUsecase) ListAccess(ctx context.Context, p entities.Principal, appID string) ([]*entities.ApplicationAccess, error) {
	app, err := u.Get(ctx, p, appID)
	if err != nil {
		return nil, err
	}
	return u.accessRepo.ListByApp(ctx, app.AppID)
}

func (u *ApplicationUsecase) ensureNameFree(ctx context.Context, name string, self uuid.UUID) error {
	existing, err := u.appRepo.GetByName(ctx, name)
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return err
	}
	if existing.ID != self {
		return domainerrors.Conflict("application name already in use")
	}
	return nil
}

func (u *ApplicationUsecase) freshAppID(ctx context.Context) (string, error) {
	for attempt := 0; attempt < appIDMaxAttempts; attempt++ {
		candidate, err := newAppID()
		if err != nil {
			return "", err
		}
		_, err = u.appRepo.GetByAppID(ctx, candidate)
		if isNotFound(err) {
			return candidate, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", domainerrors.Conflict("could not allocate a unique app id")
}

func (u *ApplicationUsecase) getApp(ctx context.Context, appID string) (*entities.Application, error) {
	app, err := u.appRepo.GetByAppID(ctx, appID)
	if err != nil {
		if isNotFound(err) {
			return nil, domainerrors.NotFound("application not found")
		}
		return nil, err
	}
	return app, nil
}
