package usecases

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"keyforge.backend/internal/domain/entities"
	domainerrors "keyforge.backend/internal/domain/errors"
	"keyforge.backend/internal/domain/repositories"
	"keyforge.backend/pkg/utils"
)

// MessageView is the effective text of one reason code for a scope
type MessageView struct {
	Code       entities.ReasonCode `json:"code"`
	Message    string              `json:"message"`
	Default    string              `json:"default"`
	Overridden bool                `json:"overridden"`
}

// MessageUsecase manages reason message overrides
type MessageUsecase struct {
	repo repositories.CustomMessageRepository
}

// NewMessageUsecase creates a new message usecase
func NewMessageUsecase(repo repositories.CustomMessageRepository) *MessageUsecase {
	return &MessageUsecase{repo: repo}
}

// List returns every reason code with the override of the scope, if any.
// global selects the global scope and is admin only.
func (u *MessageUsecase) List(ctx context.Context, p entities.Principal, global bool) ([]MessageView, error) {
	owner, err := scopeFor(p, global)
	if err != nil {
		return nil, err
	}
	overrides, err := u.repo.List(ctx, owner)
	if err != nil {
		return nil, err
	}

	byCode := make(map[entities.ReasonCode]string, len(overrides))
	for _, o := range overrides {
		byCode[o.Code] = o.Message
	}
	out := make([]MessageView, 0, len(entities.ReasonCodes))
	for _, code := range entities.ReasonCodes {
		view := MessageView{Code: code, Message: DefaultMessages[code], Default: DefaultMessages[code]}
		if msg, ok := byCode[code]; ok {
			view.Message = msg
			view.Overridden = true
		}
		out = append(out, view)
	}
	return out, nil
}

// Set overrides the text of code in the scope.
func (u *MessageUsecase) Set(ctx context.Context, p entities.Principal, global bool, code entities.ReasonCode, message string) (*entities.CustomMessage, error) {
	if !code.Valid() {
		return nil, domainerrors.BadRequest("unknown reason code")
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, domainerrors.BadRequest("message is required")
	}
	owner, err := scopeFor(p, global)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	msg := &entities.CustomMessage{
		ID:        utils.GenerateUUIDv7(),
		UserID:    owner,
		Code:      code,
		Message:   message,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := u.repo.Upsert(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// Reset removes the override of code in the scope.
func (u *MessageUsecase) Reset(ctx context.Context, p entities.Principal, global bool, code entities.ReasonCode) error {
	if !code.Valid() {
		return domainerrors.BadRequest("unknown reason code")
	}
	owner, err := scopeFor(p, global)
	if err != nil {
		return err
	}
	if err := u.repo.Delete(ctx, owner, code); err != nil {
		if isNotFound(err) {
			return domainerrors.NotFound("no override for code")
		}
		return err
	}
	return nil
}

func scopeFor(p entities.Principal, global bool) (uuid.NullUUID, error) {
	if global {
		if !p.IsAdmin() {
			return uuid.NullUUID{}, domainerrors.Forbidden("global messages are admin only")
		}
		return uuid.NullUUID{}, nil
	}
	return ownerOf(p.UserID), nil
}
