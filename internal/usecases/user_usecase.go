package usecases

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"keyforge.backend/internal/domain/entities"
	domainerrors "keyforge.backend/internal/domain/errors"
	"keyforge.backend/internal/domain/repositories"
	"keyforge.backend/pkg/utils"
)

// UserUsecase handles admin-side user management. Users exist to carry
// roles and permissions.
type UserUsecase struct {
	userRepo repositories.UserRepository
}

// NewUserUsecase creates a new user usecase
func NewUserUsecase(userRepo repositories.UserRepository) *UserUsecase {
	return &UserUsecase{userRepo: userRepo}
}

// Create adds a user. Admin only.
func (u *UserUsecase) Create(ctx context.Context, p entities.Principal, input *entities.CreateUserInput) (*entities.User, error) {
	if !p.IsAdmin() {
		return nil, domainerrors.Forbidden("admin only")
	}

	role := input.Role
	if role == "" {
		role = entities.UserRoleUser
	}
	if role != entities.UserRoleAdmin && role != entities.UserRoleUser {
		return nil, domainerrors.BadRequest("invalid role")
	}
	perms, err := validPermissions(input.Permissions)
	if err != nil {
		return nil, err
	}

	hash, err := hashPassword(input.Password)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	user := &entities.User{
		ID:           utils.GenerateUUIDv7(),
		Email:        strings.ToLower(strings.TrimSpace(input.Email)),
		Name:         strings.TrimSpace(input.Name),
		PasswordHash: hash,
		Role:         role,
		Permissions:  perms,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := u.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, domainerrors.ErrAlreadyExists) {
			return nil, domainerrors.Conflict("email already registered")
		}
		return nil, err
	}
	return user, nil
}

// List lists users whose name or email contains search. Admin only.
func (u *UserUsecase) List(ctx context.Context, p entities.Principal, search string) ([]*entities.User, error) {
	if !p.IsAdmin() {
		return nil, domainerrors.Forbidden("admin only")
	}
	return u.userRepo.List(ctx, strings.TrimSpace(search))
}

// UpdatePermissions replaces the permission set of a user. Admin only.
func (u *UserUsecase) UpdatePermissions(ctx context.Context, p entities.Principal, id uuid.UUID, input *entities.UpdatePermissionsInput) (*entities.User, error) {
	if !p.IsAdmin() {
		return nil, domainerrors.Forbidden("admin only")
	}
	perms, err := validPermissions(input.Permissions)
	if err != nil {
		return nil, err
	}

	user, err := u.userRepo.GetByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, domainerrors.NotFound("user not found")
		}
		return nil, err
	}
	user.Permissions = perms
	if err := u.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Delete removes a user. Admins cannot delete themselves.
func (u *UserUsecase) Delete(ctx context.Context, p entities.Principal, id uuid.UUID) error {
	if !p.IsAdmin() {
		return domainerrors.Forbidden("admin only")
	}
	if id == p.UserID {
		return domainerrors.DomainRule("cannot delete your own account")
	}
	if err := u.userRepo.Delete(ctx, id); err != nil {
		if isNotFound(err) {
			return domainerrors.NotFound("user not found")
		}
		return err
	}
	return nil
}

func validPermissions(in []entities.Permission) ([]entities.Permission, error) {
	seen := make(map[entities.Permission]bool, len(in))
	out := make([]entities.Permission, 0, len(in))
	for _, perm := range in {
		if !perm.Valid() {
			return nil, domainerrors.BadRequest("unknown permission " + string(perm))
		}
		if seen[perm] {
			continue
		}
		seen[perm] = true
		out = append(out, perm)
	}
	return out, nil
}
