package models

import (
	"time"

	"github.com/google/uuid"
)

type License struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey"`
	LicenseKey      string    `gorm:"type:varchar(128);uniqueIndex;not null"`
	AppID           string    `gorm:"type:varchar(64);index;not null"`
	DurationValue   int       `gorm:"not null"`
	DurationUnit    string    `gorm:"type:varchar(16);not null"`
	IsUnlimited     bool      `gorm:"not null"`
	ExpiresAt       *time.Time
	IsActive        bool `gorm:"not null"`
	IsBanned        bool `gorm:"not null"`
	IsPaused        bool `gorm:"not null"`
	PausedAt        *time.Time
	PausedExpiresAt *time.Time
	LockedHWID      *string       `gorm:"column:locked_hwid;type:varchar(255)"`
	CreatedBy       uuid.NullUUID `gorm:"type:uuid;index"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// LicenseUsage holds one row per key, replaced on every check
type LicenseUsage struct {
	LicenseKey    string  `gorm:"type:varchar(128);primaryKey"`
	HWID          *string `gorm:"column:hwid;type:varchar(255)"`
	LastCheckedAt time.Time
}

func (LicenseUsage) TableName() string {
	return "license_usage"
}

// LicenseFormat is a singleton row keyed by ID 1
type LicenseFormat struct {
	ID           int    `gorm:"primaryKey"`
	Template     string `gorm:"type:varchar(128);not null"`
	UseUppercase bool   `gorm:"not null"`
	UseDigits    bool   `gorm:"not null"`
	UseSpecial   bool   `gorm:"not null"`
	UpdatedAt    time.Time
}

func (LicenseFormat) TableName() string {
	return "license_format"
}
