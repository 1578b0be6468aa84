package usecases

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"keyforge.backend/internal/domain/entities"
	domainerrors "keyforge.backend/internal/domain/errors"
	"keyforge.backend/internal/domain/repositories"
	"keyforge.backend/pkg/crypto"
	"keyforge.backend/pkg/jwt"
	"keyforge.backend/pkg/logger"
	redispkg "keyforge.backend/pkg/redis"
	"keyforge.backend/pkg/utils"
)

// SessionStore persists login sessions
type SessionStore interface {
	CreateSession(ctx context.Context, sessionID string, data *redispkg.SessionData, expiration time.Duration) error
	GetSession(ctx context.Context, sessionID string) (*redispkg.SessionData, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

var (
	hashPassword  = crypto.HashPassword
	checkPassword = crypto.CheckPassword
)

// AuthUsecase handles authentication business logic
type AuthUsecase struct {
	userRepo   repositories.UserRepository
	jwtService *jwt.JWTService
	sessions   SessionStore
	sessionTTL time.Duration
}

// NewAuthUsecase creates a new auth usecase. sessions may be nil, in which
// case session logins are refused.
func NewAuthUsecase(
	userRepo repositories.UserRepository,
	jwtService *jwt.JWTService,
	sessions SessionStore,
	sessionTTL time.Duration,
) *AuthUsecase {
	return &AuthUsecase{
		userRepo:   userRepo,
		jwtService: jwtService,
		sessions:   sessions,
		sessionTTL: sessionTTL,
	}
}

// Login authenticates a user and returns tokens, optionally bound to a
// server-side session.
func (u *AuthUsecase) Login(ctx context.Context, input *entities.LoginInput) (*entities.AuthResponse, error) {
	user, err := u.userRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(input.Email)))
	if err != nil {
		if isNotFound(err) {
			return nil, domainerrors.ErrInvalidCredentials
		}
		return nil, err
	}
	if !checkPassword(input.Password, user.PasswordHash) {
		return nil, domainerrors.ErrInvalidCredentials
	}

	tokenPair, err := u.jwtService.GenerateTokenPair(subjectOf(user))
	if err != nil {
		return nil, err
	}

	resp := &entities.AuthResponse{
		AccessToken:  tokenPair.AccessToken,
		RefreshToken: tokenPair.RefreshToken,
		User:         user,
	}
	if !input.UseSession {
		return resp, nil
	}
	if u.sessions == nil {
		return nil, domainerrors.InternalServerError("sessions are not available")
	}

	sessionID := uuid.NewString()
	err = u.sessions.CreateSession(ctx, sessionID, &redispkg.SessionData{
		UserID:       user.ID.String(),
		AccessToken:  tokenPair.AccessToken,
		RefreshToken: tokenPair.RefreshToken,
	}, u.sessionTTL)
	if err != nil {
		return nil, err
	}
	resp.SessionID = sessionID
	return resp, nil
}

// RefreshToken generates new tokens from a refresh token
func (u *AuthUsecase) RefreshToken(ctx context.Context, refreshToken string) (*jwt.TokenPair, error) {
	claims, err := u.jwtService.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}

	// reload so role and permission changes take effect
	user, err := u.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	return u.jwtService.GenerateTokenPair(subjectOf(user))
}

// Logout drops a server-side session. Unknown sessions are ignored.
func (u *AuthUsecase) Logout(ctx context.Context, sessionID string) error {
	if u.sessions == nil || sessionID == "" {
		return nil
	}
	return u.sessions.DeleteSession(ctx, sessionID)
}

// GetUserByID gets a user by ID
func (u *AuthUsecase) GetUserByID(ctx context.Context, id uuid.UUID) (*entities.User, error) {
	return u.userRepo.GetByID(ctx, id)
}

// ChangePassword replaces the password of the calling user.
func (u *AuthUsecase) ChangePassword(ctx context.Context, userID uuid.UUID, current, next string) error {
	user, err := u.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !checkPassword(current, user.PasswordHash) {
		return domainerrors.ErrInvalidCredentials
	}
	if len(next) < 8 {
		return domainerrors.BadRequest("password must be at least 8 characters")
	}
	hash, err := hashPassword(next)
	if err != nil {
		return err
	}
	return u.userRepo.UpdatePassword(ctx, userID, hash)
}

// BootstrapAdmin creates the configured admin account when it does not
// exist yet. An empty password disables bootstrapping.
func (u *AuthUsecase) BootstrapAdmin(ctx context.Context, email, password, name string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		logger.Warn(ctx, "admin bootstrap skipped, ADMIN_EMAIL or ADMIN_PASSWORD not set")
		return nil
	}

	_, err := u.userRepo.GetByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domainerrors.ErrNotFound) {
		return err
	}

	hash, err := hashPassword(password)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	admin := &entities.User{
		ID:           utils.GenerateUUIDv7(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Role:         entities.UserRoleAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := u.userRepo.Create(ctx, admin); err != nil {
		return err
	}
	logger.Info(ctx, "bootstrap admin created", zap.String("email", email))
	return nil
}

func subjectOf(user *entities.User) jwt.Subject {
	perms := make([]string, 0, len(user.Permissions))
	for _, p := range user.Permissions {
		perms = append(perms, string(p))
	}
	return jwt.Subject{
		UserID:      user.ID,
		Email:       user.Email,
		Role:        string(user.Role),
		Permissions: perms,
	}
}
