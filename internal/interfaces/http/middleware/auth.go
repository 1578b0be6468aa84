package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"keyforge.backend/internal/domain/entities"
	domainerrors "keyforge.backend/internal/domain/errors"
	"keyforge.backend/internal/interfaces/http/response"
	"keyforge.backend/pkg/jwt"
	"keyforge.backend/pkg/logger"
	redispkg "keyforge.backend/pkg/redis"
)

const (
	// AuthorizationHeader is the header key for authorization
	AuthorizationHeader = "Authorization"
	// BearerPrefix is the prefix for bearer tokens
	BearerPrefix = "Bearer "
	// SessionHeader carries a server-side session id instead of a token
	SessionHeader = "X-Session-Id"
	// PrincipalKey is the context key for the authenticated caller
	PrincipalKey = "principal"
)

// SessionReader resolves a session id to its stored tokens
type SessionReader interface {
	GetSession(ctx context.Context, sessionID string) (*redispkg.SessionData, error)
}

// AuthMiddleware accepts either a bearer access token or a session id. The
// session path validates the access token stored with the session, so both
// paths end with the same claims. sessions may be nil.
func AuthMiddleware(jwtService *jwt.JWTService, sessions SessionReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := accessToken(c, sessions)
		if err != nil {
			logger.Debug(c.Request.Context(), "authentication failed",
				zap.String("path", c.Request.URL.Path),
				zap.Error(err),
			)
			response.Error(c, err)
			return
		}

		claims, err := jwtService.ValidateToken(token)
		if err != nil {
			if errors.Is(err, jwt.ErrExpiredToken) {
				response.Error(c, domainerrors.Unauthorized("token has expired"))
				return
			}
			response.Error(c, domainerrors.Unauthorized("invalid token"))
			return
		}

		perms := make([]entities.Permission, 0, len(claims.Permissions))
		for _, p := range claims.Permissions {
			perms = append(perms, entities.Permission(p))
		}
		c.Set(PrincipalKey, entities.Principal{
			UserID:      claims.UserID,
			Email:       claims.Email,
			Role:        entities.UserRole(claims.Role),
			Permissions: perms,
		})
		c.Next()
	}
}

func accessToken(c *gin.Context, sessions SessionReader) (string, error) {
	if sessionID := c.GetHeader(SessionHeader); sessionID != "" {
		if sessions == nil {
			return "", domainerrors.Unauthorized("sessions are not available")
		}
		session, err := sessions.GetSession(c.Request.Context(), sessionID)
		if err != nil || session == nil {
			return "", domainerrors.Unauthorized("session not found")
		}
		return session.AccessToken, nil
	}

	authHeader := c.GetHeader(AuthorizationHeader)
	if authHeader == "" {
		return "", domainerrors.Unauthorized("authorization header is required")
	}
	if !strings.HasPrefix(authHeader, BearerPrefix) {
		return "", domainerrors.Unauthorized("invalid authorization format, use: Bearer <token>")
	}
	return strings.TrimPrefix(authHeader, BearerPrefix), nil
}

// GetPrincipal returns the caller set by AuthMiddleware
func GetPrincipal(c *gin.Context) (entities.Principal, bool) {
	v, exists := c.Get(PrincipalKey)
	if !exists {
		return entities.Principal{}, false
	}
	p, ok := v.(entities.Principal)
	return p, ok
}

// RequireAdmin creates a middleware that requires the admin role
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := GetPrincipal(c)
		if !ok {
			response.Error(c, domainerrors.Unauthorized("authentication required"))
			return
		}
		if !p.IsAdmin() {
			response.ErrorWithError(c, http.StatusForbidden, domainerrors.CodeForbidden, "insufficient permissions")
			return
		}
		c.Next()
	}
}
