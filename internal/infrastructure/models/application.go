package models

import (
	"time"

	"github.com/google/uuid"
)

type Application struct {
	ID              uuid.UUID     `gorm:"type:uuid;primaryKey"`
	Name            string        `gorm:"type:varchar(100);uniqueIndex;not null"`
	AppID           string        `gorm:"type:varchar(64);uniqueIndex;not null"`
	Version         string        `gorm:"type:varchar(50);not null"`
	HWIDLockEnabled bool          `gorm:"column:hwid_lock_enabled;not null"`
	WebhookURL      *string       `gorm:"type:text"`
	Status          string        `gorm:"type:varchar(32);not null"`
	CreatedBy       uuid.NullUUID `gorm:"type:uuid;index"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type ApplicationAccess struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_app_access_user_app"`
	AppID     string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_app_access_user_app"`
	CreatedAt time.Time
}

func (ApplicationAccess) TableName() string {
	return "application_access"
}
