package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
)

// ApplicationStatus represents the lifecycle status of a vendor application
type ApplicationStatus string

const (
	ApplicationStatusActive           ApplicationStatus = "ACTIVE"
	ApplicationStatusInactive         ApplicationStatus = "INACTIVE"
	ApplicationStatusUnderMaintenance ApplicationStatus = "UNDER_MAINTENANCE"
)

// Valid reports whether s is a known status.
func (s ApplicationStatus) Valid() bool {
	switch s {
	case ApplicationStatusActive, ApplicationStatusInactive, ApplicationStatusUnderMaintenance:
		return true
	}
	return false
}

// Application identifies a vendor product whose licenses are checked by client apps
type Application struct {
	ID              uuid.UUID         `json:"id"`
	Name            string            `json:"name"`
	AppID           string            `json:"appId"`
	Version         string            `json:"version"`
	HWIDLockEnabled bool              `json:"hwidLockEnabled"`
	WebhookURL      null.String       `json:"webhookUrl,omitempty"`
	Status          ApplicationStatus `json:"status"`
	CreatedBy       uuid.NullUUID     `json:"createdBy"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

// HasWebhook reports whether check events should be delivered for this app.
func (a *Application) HasWebhook() bool {
	return a.WebhookURL.Valid && a.WebhookURL.String != ""
}

// ApplicationAccess grants a non-owner user access to an application
type ApplicationAccess struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"userId"`
	AppID     string    `json:"appId"`
	CreatedAt time.Time `json:"createdAt"`
}

// CreateApplicationInput represents input for creating an application
type CreateApplicationInput struct {
	Name            string            `json:"name" binding:"required,min=2,max=100"`
	Version         string            `json:"version" binding:"required,max=50"`
	HWIDLockEnabled bool              `json:"hwidLockEnabled"`
	WebhookURL      string            `json:"webhookUrl" binding:"omitempty,url"`
	Status          ApplicationStatus `json:"status"`
}

// UpdateApplicationInput represents a partial application update
type UpdateApplicationInput struct {
	Name            *string            `json:"name" binding:"omitempty,min=2,max=100"`
	Version         *string            `json:"version" binding:"omitempty,max=50"`
	HWIDLockEnabled *bool              `json:"hwidLockEnabled"`
	WebhookURL      *string            `json:"webhookUrl"`
	Status          *ApplicationStatus `json:"status"`
}

// GrantAccessInput shares an application with another user
type GrantAccessInput struct {
	UserID uuid.UUID `json:"userId" binding:"required"`
}
