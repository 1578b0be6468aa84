package usecases

import (
	"context"

	"keyforge.backend/internal/domain/entities"
	domainerrors "keyforge.backend/internal/domain/errors"
	"keyforge.backend/internal/domain/repositories"
)

// PermissionResolver decides whether a principal may act on an application
// or one of its licenses. Admins may do everything. Other users need the
// permission and must own the application, have been granted it, or have
// created the license. Rows without an owner are admin only.
type PermissionResolver struct {
	accessRepo repositories.ApplicationAccessRepository
}

// NewPermissionResolver creates a new permission resolver
func NewPermissionResolver(accessRepo repositories.ApplicationAccessRepository) *PermissionResolver {
	return &PermissionResolver{accessRepo: accessRepo}
}

// CanAccessApp reports whether p owns or was granted app.
func (r *PermissionResolver) CanAccessApp(ctx context.Context, p entities.Principal, app *entities.Application) (bool, error) {
	if p.IsAdmin() {
		return true, nil
	}
	if !app.CreatedBy.Valid {
		return false, nil
	}
	if app.CreatedBy.UUID == p.UserID {
		return true, nil
	}
	return r.accessRepo.HasAccess(ctx, p.UserID, app.AppID)
}

// AuthorizeApp requires perm and access to app.
func (r *PermissionResolver) AuthorizeApp(ctx context.Context, p entities.Principal, perm entities.Permission, app *entities.Application) error {
	if p.IsAdmin() {
		return nil
	}
	if !p.Has(perm) {
		return domainerrors.Forbidden("missing permission " + string(perm))
	}
	ok, err := r.CanAccessApp(ctx, p, app)
	if err != nil {
		return err
	}
	if !ok {
		return domainerrors.Forbidden("no access to application")
	}
	return nil
}

// AuthorizeLicense requires perm and either authorship of the license or
// access to its application.
func (r *PermissionResolver) AuthorizeLicense(ctx context.Context, p entities.Principal, perm entities.Permission, license *entities.License, app *entities.Application) error {
	if p.IsAdmin() {
		return nil
	}
	if !p.Has(perm) {
		return domainerrors.Forbidden("missing permission " + string(perm))
	}
	if license.CreatedBy.Valid && license.CreatedBy.UUID == p.UserID {
		return nil
	}
	if app == nil {
		return domainerrors.Forbidden("no access to license")
	}
	ok, err := r.CanAccessApp(ctx, p, app)
	if err != nil {
		return err
	}
	if !ok {
		return domainerrors.Forbidden("no access to license")
	}
	return nil
}

// CanViewLicense is AuthorizeLicense without a permission requirement.
func (r *PermissionResolver) CanViewLicense(ctx context.Context, p entities.Principal, license *entities.License, app *entities.Application) (bool, error) {
	if p.IsAdmin() {
		return true, nil
	}
	if license.CreatedBy.Valid && license.CreatedBy.UUID == p.UserID {
		return true, nil
	}
	if app == nil {
		return false, nil
	}
	return r.CanAccessApp(ctx, p, app)
}
