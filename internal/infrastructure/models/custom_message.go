package models

import (
	"time"

	"github.com/google/uuid"
)

type CustomMessage struct {
	ID        uuid.UUID     `gorm:"type:uuid;primaryKey"`
	UserID    uuid.NullUUID `gorm:"type:uuid;index:idx_custom_messages_owner_code"`
	Code      string        `gorm:"type:varchar(32);not null;index:idx_custom_messages_owner_code"`
	Message   string        `gorm:"type:text;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
