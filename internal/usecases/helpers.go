package usecases

import (
	"errors"

	"github.com/google/uuid"
	domainerrors "keyforge.backend/internal/domain/errors"
)

func isNotFound(err error) bool {
	return errors.Is(err, domainerrors.ErrNotFound)
}

func ownerOf(id uuid.UUID) uuid.NullUUID {
	return uuid.NullUUID{UUID: id, Valid: id != uuid.Nil}
}
