package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
)

// DurationUnit is the unit a license duration is expressed in
type DurationUnit string

const (
	DurationSeconds DurationUnit = "seconds"
	DurationMinutes DurationUnit = "minutes"
	DurationHours   DurationUnit = "hours"
	DurationDays    DurationUnit = "days"
)

// Valid reports whether u is one of the known units.
func (u DurationUnit) Valid() bool {
	switch u {
	case DurationSeconds, DurationMinutes, DurationHours, DurationDays:
		return true
	}
	return false
}

// Step returns the length of one unit. Unknown units count as days.
func (u DurationUnit) Step() time.Duration {
	switch u {
	case DurationSeconds:
		return time.Second
	case DurationMinutes:
		return time.Minute
	case DurationHours:
		return time.Hour
	default:
		return 24 * time.Hour
	}
}

// LicenseDuration is a duration value paired with its unit
type LicenseDuration struct {
	Value int          `json:"value"`
	Unit  DurationUnit `json:"unit"`
}

// Length converts the duration to a time.Duration.
func (d LicenseDuration) Length() time.Duration {
	return time.Duration(d.Value) * d.Unit.Step()
}

// LicenseStateKind tags the three mutually exclusive license shapes
type LicenseStateKind int

const (
	LicenseUnlimited LicenseStateKind = iota + 1
	LicenseNotActivated
	LicenseActivated
)

func (k LicenseStateKind) String() string {
	switch k {
	case LicenseUnlimited:
		return "unlimited"
	case LicenseNotActivated:
		return "not_activated"
	case LicenseActivated:
		return "activated"
	default:
		return "unknown"
	}
}

// LicenseState is the explicit variant derived from a license row:
// Unlimited | NotActivated{Duration} | Activated{ExpiresAt}.
type LicenseState struct {
	Kind      LicenseStateKind
	Duration  LicenseDuration
	ExpiresAt time.Time
}

// ExpiredAt reports whether an activated license is past its expiry at now.
// Unlimited and not-yet-activated licenses never expire.
func (s LicenseState) ExpiredAt(now time.Time) bool {
	return s.Kind == LicenseActivated && s.ExpiresAt.Before(now)
}

// License represents a license key issued for an application
type License struct {
	ID              uuid.UUID     `json:"id"`
	LicenseKey      string        `json:"licenseKey"`
	AppID           string        `json:"appId"`
	DurationValue   int           `json:"durationValue"`
	DurationUnit    DurationUnit  `json:"durationUnit"`
	IsUnlimited     bool          `json:"isUnlimited"`
	ExpiresAt       null.Time     `json:"expiresAt"`
	IsActive        bool          `json:"isActive"`
	IsBanned        bool          `json:"isBanned"`
	IsPaused        bool          `json:"isPaused"`
	PausedAt        null.Time     `json:"pausedAt"`
	PausedExpiresAt null.Time     `json:"pausedExpiresAt"`
	LockedHWID      null.String   `json:"lockedHwid"`
	CreatedBy       uuid.NullUUID `json:"createdBy"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
	Usage           *LicenseUsage `json:"usage,omitempty"`
}

// State derives the tagged variant for the license.
func (l *License) State() LicenseState {
	if l.IsUnlimited {
		return LicenseState{Kind: LicenseUnlimited}
	}
	if !l.ExpiresAt.Valid {
		return LicenseState{
			Kind:     LicenseNotActivated,
			Duration: l.Duration(),
		}
	}
	return LicenseState{
		Kind:      LicenseActivated,
		Duration:  l.Duration(),
		ExpiresAt: l.ExpiresAt.Time,
	}
}

// Duration returns the configured duration of a duration-based license.
func (l *License) Duration() LicenseDuration {
	return LicenseDuration{Value: l.DurationValue, Unit: l.DurationUnit}
}

// LicenseUsage caches the last hardware id and time a key was checked.
// One row per key, replaced on every check.
type LicenseUsage struct {
	LicenseKey    string      `json:"licenseKey"`
	HWID          null.String `json:"hwid"`
	LastCheckedAt time.Time   `json:"lastCheckedAt"`
}

// GenerateLicensesInput represents input for generating licenses
type GenerateLicensesInput struct {
	AppID         string       `json:"appId" binding:"required"`
	Quantity      int          `json:"quantity" binding:"required,min=1,max=100"`
	DurationValue int          `json:"durationValue" binding:"min=0"`
	DurationUnit  DurationUnit `json:"durationUnit"`
	IsUnlimited   bool         `json:"isUnlimited"`
}

// ExtendLicenseInput represents an extension request
type ExtendLicenseInput struct {
	Value int          `json:"value" binding:"required,min=1"`
	Unit  DurationUnit `json:"unit" binding:"required,oneof=seconds minutes hours days"`
}

// BulkResult summarizes a bulk mutation
type BulkResult struct {
	Matched int `json:"matched"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

// LicenseFormat is the singleton key template configuration
type LicenseFormat struct {
	Template     string    `json:"template"`
	UseUppercase bool      `json:"useUppercase"`
	UseDigits    bool      `json:"useDigits"`
	UseSpecial   bool      `json:"useSpecial"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// UpdateLicenseFormatInput represents input for changing the key template
type UpdateLicenseFormatInput struct {
	Template     string `json:"template" binding:"required,max=128"`
	UseUppercase bool   `json:"useUppercase"`
	UseDigits    bool   `json:"useDigits"`
	UseSpecial   bool   `json:"useSpecial"`
}

// LicenseFilter narrows license listings. An empty AppIDs slice with
// Scoped set matches nothing.
type LicenseFilter struct {
	AppID  string
	AppIDs []string
	Scoped bool
	Search string
}

// LicenseStats counts licenses by derived state
type LicenseStats struct {
	Total        int64 `json:"total"`
	Unlimited    int64 `json:"unlimited"`
	NotActivated int64 `json:"notActivated"`
	Activated    int64 `json:"activated"`
	Expired      int64 `json:"expired"`
	Banned       int64 `json:"banned"`
	Paused       int64 `json:"paused"`
	Inactive     int64 `json:"inactive"`
}
