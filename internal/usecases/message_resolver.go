package usecases

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"keyforge.backend/internal/domain/entities"
	"keyforge.backend/internal/domain/repositories"
	"keyforge.backend/pkg/logger"
)

// DefaultMessages is the text used when neither the owner nor the global
// scope overrides a reason code.
var DefaultMessages = map[entities.ReasonCode]string{
	entities.ReasonInvalidLicense:  "Invalid license key or application ID",
	entities.ReasonVersionMismatch: "Version mismatch: you are running {current}, version {required} is required",
	entities.ReasonLicenseBanned:   "This license has been banned",
	entities.ReasonLicensePaused:   "This license is currently paused",
	entities.ReasonLicenseInactive: "This license is inactive",
	entities.ReasonHWIDRequired:    "HWID required to activate, time starts at activation",
	entities.ReasonHWIDMismatch:    "This license is locked to different hardware",
	entities.ReasonLicenseExpired:  "This license has expired",
	entities.ReasonDatabaseError:   "A database error occurred, please try again later",
}

// MessageResolver turns reason codes into user-facing text
type MessageResolver struct {
	repo repositories.CustomMessageRepository
}

// NewMessageResolver creates a new message resolver
func NewMessageResolver(repo repositories.CustomMessageRepository) *MessageResolver {
	return &MessageResolver{repo: repo}
}

// Resolve returns the owner override, else the global override, else the
// default text for code, with {name} placeholders replaced from vars.
// Lookup failures fall through to the next scope.
func (r *MessageResolver) Resolve(ctx context.Context, owner uuid.NullUUID, code entities.ReasonCode, vars map[string]string) string {
	text := r.lookup(ctx, owner, code)
	if len(vars) == 0 {
		return text
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

func (r *MessageResolver) lookup(ctx context.Context, owner uuid.NullUUID, code entities.ReasonCode) string {
	scopes := []uuid.NullUUID{{}}
	if owner.Valid {
		scopes = []uuid.NullUUID{owner, {}}
	}
	for _, scope := range scopes {
		msg, err := r.repo.Find(ctx, scope, code)
		if err == nil && msg.Message != "" {
			return msg.Message
		}
		if err != nil && !isNotFound(err) {
			logger.Warn(ctx, "custom message lookup failed",
				zap.String("code", string(code)),
				zap.Error(err),
			)
		}
	}
	return DefaultMessages[code]
}
