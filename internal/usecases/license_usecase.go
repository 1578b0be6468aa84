package usecases

import (
	"context"
	"errors"

	"github.com/volatiletech/null/v8"
	"go.uber.org/zap"
	"keyforge.backend/internal/domain/entities"
	domainerrors "keyforge.backend/internal/domain/errors"
	"keyforge.backend/internal/domain/repositories"
	"keyforge.backend/pkg/logger"
	"keyforge.backend/pkg/utils"
)

// LicenseUsecase handles administrative license operations
type LicenseUsecase struct {
	licenseRepo      repositories.LicenseRepository
	appRepo          repositories.ApplicationRepository
	uow              repositories.UnitOfWork
	perms            *PermissionResolver
	keygen           *KeyGenerator
	now              Clock
	generateMax      int
	collisionRetries int
}

// LicenseUsecaseOptions bounds generation requests
type LicenseUsecaseOptions struct {
	GenerateMax      int
	CollisionRetries int
	Clock            Clock
}

// NewLicenseUsecase creates a new license usecase
func NewLicenseUsecase(
	licenseRepo repositories.LicenseRepository,
	appRepo repositories.ApplicationRepository,
	uow repositories.UnitOfWork,
	perms *PermissionResolver,
	keygen *KeyGenerator,
	opts LicenseUsecaseOptions,
) *LicenseUsecase {
	if opts.GenerateMax <= 0 {
		opts.GenerateMax = DefaultGenerateMax
	}
	if opts.CollisionRetries <= 0 {
		opts.CollisionRetries = DefaultCollisionRetries
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock
	}
	return &LicenseUsecase{
		licenseRepo:      licenseRepo,
		appRepo:          appRepo,
		uow:              uow,
		perms:            perms,
		keygen:           keygen,
		now:              opts.Clock,
		generateMax:      opts.GenerateMax,
		collisionRetries: opts.CollisionRetries,
	}
}

// Generate issues quantity new keys for an application.
func (u *LicenseUsecase) Generate(ctx context.Context, p entities.Principal, input *entities.GenerateLicensesInput) ([]*entities.License, error) {
	app, err := u.getApp(ctx, input.AppID)
	if err != nil {
		return nil, err
	}
	if err := u.perms.AuthorizeApp(ctx, p, entities.PermGenerateLicenses, app); err != nil {
		return nil, err
	}
	if input.Quantity < 1 || input.Quantity > u.generateMax {
		return nil, domainerrors.BadRequest("quantity out of range")
	}

	unit := input.DurationUnit
	if unit == "" {
		unit = entities.DurationDays
	}
	if !input.IsUnlimited {
		if input.DurationValue < 1 {
			return nil, domainerrors.BadRequest("duration must be positive")
		}
		if !unit.Valid() {
			return nil, domainerrors.BadRequest("unknown duration unit")
		}
	}

	now := u.now().UTC()
	out := make([]*entities.License, 0, input.Quantity)
	err = u.uow.Do(ctx, func(txCtx context.Context) error {
		for i := 0; i < input.Quantity; i++ {
			license := &entities.License{
				ID:            utils.GenerateUUIDv7(),
				AppID:         app.AppID,
				DurationValue: input.DurationValue,
				DurationUnit:  unit,
				IsUnlimited:   input.IsUnlimited,
				IsActive:      true,
				CreatedBy:     ownerOf(p.UserID),
				CreatedAt:     now,
				UpdatedAt:     now,
			}
			if input.IsUnlimited {
				license.DurationValue = 0
			}
			if err := u.createWithUniqueKey(txCtx, license); err != nil {
				return err
			}
			out = append(out, license)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "licenses generated",
		zap.String("app_id", app.AppID),
		zap.Int("quantity", len(out)),
		zap.String("by", p.UserID.String()),
	)
	return out, nil
}

func (u *LicenseUsecase) createWithUniqueKey(ctx context.Context, license *entities.License) error {
	for attempt := 0; attempt < u.collisionRetries; attempt++ {
		key, err := u.keygen.Next(ctx)
		if err != nil {
			return err
		}
		exists, err := u.licenseRepo.ExistsByKey(ctx, key)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		license.LicenseKey = key
		err = u.licenseRepo.Create(ctx, license)
		if errors.Is(err, domainerrors.ErrKeyCollision) {
			continue
		}
		return err
	}
	return domainerrors.Conflict("could not generate a unique license key")
}

// List returns a page of licenses visible to p, optionally narrowed to one
// application and a key substring.
func (u *LicenseUsecase) List(ctx context.Context, p entities.Principal, appID, search string, page, limit int) ([]*entities.License, *utils.PaginationMeta, error) {
	params := utils.GetPaginationParams(page, limit)
	filter := entities.LicenseFilter{AppID: appID, Search: search}

	if !p.IsAdmin() {
		if appID != "" {
			app, err := u.getApp(ctx, appID)
			if err != nil {
				return nil, nil, err
			}
			ok, err := u.perms.CanAccessApp(ctx, p, app)
			if err != nil {
				return nil, nil, err
			}
			if !ok {
				return nil, nil, domainerrors.Forbidden("no access to application")
			}
		} else {
			apps, err := u.appRepo.ListAccessible(ctx, p.UserID)
			if err != nil {
				return nil, nil, err
			}
			filter.Scoped = true
			for _, a := range apps {
				filter.AppIDs = append(filter.AppIDs, a.AppID)
			}
		}
	}

	licenses, total, err := u.licenseRepo.List(ctx, filter, params.Limit, params.CalculateOffset())
	if err != nil {
		return nil, nil, err
	}
	meta := utils.CalculateMeta(total, params.Page, params.Limit)
	return licenses, &meta, nil
}

// Get returns one license with its last usage.
func (u *LicenseUsecase) Get(ctx context.Context, p entities.Principal, key string) (*entities.License, error) {
	license, app, err := u.load(ctx, key)
	if err != nil {
		return nil, err
	}
	ok, err := u.perms.CanViewLicense(ctx, p, license, app)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domainerrors.Forbidden("no access to license")
	}

	usage, err := u.licenseRepo.GetUsage(ctx, key)
	switch {
	case err == nil:
		license.Usage = usage
	case !isNotFound(err):
		return nil, err
	}
	return license, nil
}

// SetBanned bans or unbans a license.
func (u *LicenseUsecase) SetBanned(ctx context.Context, p entities.Principal, key string, banned bool) (*entities.License, error) {
	return u.mutate(ctx, p, key, entities.PermBanLicenses, func(l *entities.License) error {
		l.IsBanned = banned
		return nil
	})
}

// Pause freezes a license.
func (u *LicenseUsecase) Pause(ctx context.Context, p entities.Principal, key string) (*entities.License, error) {
	now := u.now().UTC()
	return u.mutate(ctx, p, key, entities.PermPauseLicenses, func(l *entities.License) error {
		return pauseLicense(l, now)
	})
}

// Resume unpauses a license and credits the paused time.
func (u *LicenseUsecase) Resume(ctx context.Context, p entities.Principal, key string) (*entities.License, error) {
	now := u.now().UTC()
	return u.mutate(ctx, p, key, entities.PermPauseLicenses, func(l *entities.License) error {
		return resumeLicense(l, now)
	})
}

// Extend adds ext to a license's expiry.
func (u *LicenseUsecase) Extend(ctx context.Context, p entities.Principal, key string, ext entities.LicenseDuration) (*entities.License, error) {
	now := u.now().UTC()
	return u.mutate(ctx, p, key, entities.PermExtendLicenses, func(l *entities.License) error {
		return extendLicense(l, ext, now)
	})
}

// ResetHWID clears the hardware binding of a license.
func (u *LicenseUsecase) ResetHWID(ctx context.Context, p entities.Principal, key string) (*entities.License, error) {
	return u.mutate(ctx, p, key, entities.PermResetHWID, func(l *entities.License) error {
		l.LockedHWID = null.String{}
		return nil
	})
}

// Delete removes a license.
func (u *LicenseUsecase) Delete(ctx context.Context, p entities.Principal, key string) error {
	license, app, err := u.load(ctx, key)
	if err != nil {
		return err
	}
	if err := u.perms.AuthorizeLicense(ctx, p, entities.PermDeleteLicenses, license, app); err != nil {
		return err
	}
	if err := u.licenseRepo.Delete(ctx, license.ID); err != nil {
		return err
	}
	logger.Info(ctx, "license deleted", logger.LicenseKey(key), zap.String("by", p.UserID.String()))
	return nil
}

// PauseBulk pauses (or resumes) every license of appID. An empty appID
// addresses every license and is reserved for admins. Licenses that
// violate a rule for the operation are skipped.
func (u *LicenseUsecase) PauseBulk(ctx context.Context, p entities.Principal, appID string, pause bool) (*entities.BulkResult, error) {
	now := u.now().UTC()
	apply := func(l *entities.License) error {
		if pause {
			return pauseLicense(l, now)
		}
		return resumeLicense(l, now)
	}
	return u.bulk(ctx, p, appID, entities.PermPauseLicenses, apply)
}

// ExtendBulk extends every license of appID, skipping unlimited and
// expired ones.
func (u *LicenseUsecase) ExtendBulk(ctx context.Context, p entities.Principal, appID string, ext entities.LicenseDuration) (*entities.BulkResult, error) {
	if ext.Value <= 0 {
		return nil, domainerrors.BadRequest("extension must be positive")
	}
	now := u.now().UTC()
	return u.bulk(ctx, p, appID, entities.PermExtendLicenses, func(l *entities.License) error {
		return extendLicense(l, ext, now)
	})
}

// Stats counts licenses by state. Admin only.
func (u *LicenseUsecase) Stats(ctx context.Context, p entities.Principal) (*entities.LicenseStats, error) {
	if !p.IsAdmin() {
		return nil, domainerrors.Forbidden("admin only")
	}
	return u.licenseRepo.Stats(ctx, u.now().UTC())
}

// mutate loads the license under a row lock, authorizes, applies fn and
// writes the result in one transaction.
func (u *LicenseUsecase) mutate(ctx context.Context, p entities.Principal, key string, perm entities.Permission, fn func(*entities.License) error) (*entities.License, error) {
	var out *entities.License
	err := u.uow.Do(ctx, func(txCtx context.Context) error {
		license, app, err := u.load(u.uow.WithLock(txCtx), key)
		if err != nil {
			return err
		}
		if err := u.perms.AuthorizeLicense(txCtx, p, perm, license, app); err != nil {
			return err
		}
		if err := fn(license); err != nil {
			return err
		}
		if err := u.licenseRepo.Update(txCtx, license); err != nil {
			return err
		}
		out = license
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "license updated",
		logger.LicenseKey(key),
		zap.String("permission", string(perm)),
		zap.String("by", p.UserID.String()),
	)
	return out, nil
}

func (u *LicenseUsecase) bulk(ctx context.Context, p entities.Principal, appID string, perm entities.Permission, fn func(*entities.License) error) (*entities.BulkResult, error) {
	if appID == "" {
		if !p.IsAdmin() {
			return nil, domainerrors.Forbidden("global bulk operations are admin only")
		}
	} else {
		app, err := u.getApp(ctx, appID)
		if err != nil {
			return nil, err
		}
		if err := u.perms.AuthorizeApp(ctx, p, perm, app); err != nil {
			return nil, err
		}
	}

	result := &entities.BulkResult{}
	err := u.uow.Do(ctx, func(txCtx context.Context) error {
		lockCtx := u.uow.WithLock(txCtx)
		var (
			licenses []*entities.License
			err      error
		)
		if appID == "" {
			licenses, err = u.licenseRepo.ListAll(lockCtx)
		} else {
			licenses, err = u.licenseRepo.ListByApp(lockCtx, appID)
		}
		if err != nil {
			return err
		}

		result.Matched = len(licenses)
		for _, l := range licenses {
			if err := fn(l); err != nil {
				if errors.Is(err, domainerrors.ErrDomainRule) {
					result.Skipped++
					continue
				}
				return err
			}
			if err := u.licenseRepo.Update(txCtx, l); err != nil {
				return err
			}
			result.Updated++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "bulk license update",
		zap.String("app_id", appID),
		zap.String("permission", string(perm)),
		zap.Int("updated", result.Updated),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}

// load fetches a license and its application. A license whose application
// is gone is returned with a nil application.
func (u *LicenseUsecase) load(ctx context.Context, key string) (*entities.License, *entities.Application, error) {
	license, err := u.licenseRepo.GetByKey(ctx, key)
	if err != nil {
		if isNotFound(err) {
			return nil, nil, domainerrors.NotFound("license not found")
		}
		return nil, nil, err
	}
	app, err := u.appRepo.GetByAppID(ctx, license.AppID)
	if err != nil {
		if isNotFound(err) {
			return license, nil, nil
		}
		return nil, nil, err
	}
	return license, app, nil
}

func (u *LicenseUsecase) getApp(ctx context.Context, appID string) (*entities.Application, error) {
	app, err := u.appRepo.GetByAppID(ctx, appID)
	if err != nil {
		if isNotFound(err) {
			return nil, domainerrors.NotFound("application not found")
		}
		return nil, err
	}
	return app, nil
}
