package entities

import (
	"encoding/json"
	"time"
)

// ReasonCode identifies why a license check was rejected. Codes are
// resolved to user-facing text by the message resolver.
type ReasonCode string

const (
	ReasonInvalidLicense  ReasonCode = "invalid-license"
	ReasonVersionMismatch ReasonCode = "version-mismatch"
	ReasonLicenseBanned   ReasonCode = "license-banned"
	ReasonLicensePaused   ReasonCode = "license-paused"
	ReasonLicenseInactive ReasonCode = "license-inactive"
	ReasonHWIDRequired    ReasonCode = "hwid-required"
	ReasonHWIDMismatch    ReasonCode = "hwid-mismatch"
	ReasonLicenseExpired  ReasonCode = "license-expired"
	ReasonDatabaseError   ReasonCode = "database-error"
)

// ReasonCodes lists every code that can carry a custom message.
var ReasonCodes = []ReasonCode{
	ReasonInvalidLicense,
	ReasonVersionMismatch,
	ReasonLicenseBanned,
	ReasonLicensePaused,
	ReasonLicenseInactive,
	ReasonHWIDRequired,
	ReasonHWIDMismatch,
	ReasonLicenseExpired,
	ReasonDatabaseError,
}

// Valid reports whether c is one of the known reason codes.
func (c ReasonCode) Valid() bool {
	for _, known := range ReasonCodes {
		if c == known {
			return true
		}
	}
	return false
}

// CheckInput is the request sent by a client application
type CheckInput struct {
	AppID      string `json:"app_id"`
	LicenseKey string `json:"license_key"`
	HWID       string `json:"hwid"`
	AppVersion string `json:"app_version"`
	PCName     string `json:"pc_name"`
	IPv4       string `json:"ipv4"`
	LoginDate  string `json:"login_date"`
	Screenshot string `json:"screenshot"`
}

// CheckResult is the structured accept/reject payload returned to clients
type CheckResult struct {
	Success         bool
	Reason          string
	Code            ReasonCode
	AppID           string
	AppName         string
	AppVersion      string
	ExpiresAt       *time.Time
	IsUnlimited     bool
	IsActivated     bool
	DaysRemaining   *int
	VersionError    bool
	RequiredVersion string
	CurrentVersion  string
}

type checkSuccessPayload struct {
	Success       bool       `json:"success"`
	AppID         string     `json:"app_id"`
	AppName       string     `json:"app_name"`
	AppVersion    string     `json:"app_version"`
	ExpiresAt     *time.Time `json:"expires_at"`
	IsUnlimited   bool       `json:"is_unlimited"`
	IsActivated   bool       `json:"is_activated"`
	DaysRemaining *int       `json:"days_remaining"`
}

type checkFailurePayload struct {
	Success         bool   `json:"success"`
	Reason          string `json:"reason"`
	VersionError    bool   `json:"version_error,omitempty"`
	RequiredVersion string `json:"required_version,omitempty"`
	CurrentVersion  string `json:"current_version,omitempty"`
}

// MarshalJSON renders success payloads with explicit nulls for unlimited
// licenses and failure payloads with only the reason fields.
func (r CheckResult) MarshalJSON() ([]byte, error) {
	if r.Success {
		return json.Marshal(checkSuccessPayload{
			Success:       true,
			AppID:         r.AppID,
			AppName:       r.AppName,
			AppVersion:    r.AppVersion,
			ExpiresAt:     r.ExpiresAt,
			IsUnlimited:   r.IsUnlimited,
			IsActivated:   r.IsActivated,
			DaysRemaining: r.DaysRemaining,
		})
	}
	return json.Marshal(checkFailurePayload{
		Success:         false,
		Reason:          r.Reason,
		VersionError:    r.VersionError,
		RequiredVersion: r.RequiredVersion,
		CurrentVersion:  r.CurrentVersion,
	})
}

// LicenseEvent is delivered to an application's webhook after a check
type LicenseEvent struct {
	Success    bool       `json:"success"`
	AppName    string     `json:"app_name"`
	AppVersion string     `json:"app_version"`
	LicenseKey string     `json:"license_key"`
	HWID       string     `json:"hwid,omitempty"`
	PCName     string     `json:"pc_name,omitempty"`
	IP         string     `json:"ip,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
	LoginDate  string     `json:"login_date,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	Reason     string     `json:"reason,omitempty"`
	Screenshot string     `json:"screenshot,omitempty"`
}
