package usecases

import (
	"github.com/google/uuid"
	"keyforge.backend/internal/domain/entities"
)

// Notifier delivers license events to application webhooks. Implementations
// must return without waiting for delivery.
type Notifier interface {
	Notify(webhookURL string, event entities.LicenseEvent, ownerID uuid.NullUUID)
}

// NopNotifier drops every event
type NopNotifier struct{}

func (NopNotifier) Notify(string, entities.LicenseEvent, uuid.NullUUID) {}
