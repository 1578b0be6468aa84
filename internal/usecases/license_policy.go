package usecases

import (
	"time"

	"github.com/volatiletech/null/v8"
	"keyforge.backend/internal/domain/entities"
	domainerrors "keyforge.backend/internal/domain/errors"
)

// pauseLicense freezes a live license and snapshots its expiry.
func pauseLicense(l *entities.License, now time.Time) error {
	switch {
	case !l.IsActive:
		return domainerrors.DomainRule("cannot pause inactive license")
	case l.IsBanned:
		return domainerrors.DomainRule("cannot pause banned license")
	case l.IsPaused:
		return domainerrors.DomainRule("license is already paused")
	case l.State().ExpiredAt(now):
		return domainerrors.DomainRule("cannot pause expired license")
	}

	l.IsPaused = true
	l.PausedAt = null.TimeFrom(now)
	l.PausedExpiresAt = l.ExpiresAt
	return nil
}

// resumeLicense unpauses a license, crediting the time spent paused.
func resumeLicense(l *entities.License, now time.Time) error {
	if !l.IsPaused {
		return domainerrors.DomainRule("license is not paused")
	}

	var elapsed time.Duration
	if l.PausedAt.Valid && now.After(l.PausedAt.Time) {
		elapsed = now.Sub(l.PausedAt.Time)
	}
	if l.PausedExpiresAt.Valid {
		l.ExpiresAt = null.TimeFrom(l.PausedExpiresAt.Time.Add(elapsed))
	}

	l.IsPaused = false
	l.PausedAt = null.Time{}
	l.PausedExpiresAt = null.Time{}
	return nil
}

// extendLicense pushes the expiry of a license forward by ext. A license
// that was never activated is activated with its own duration first. A
// paused license is judged as of the moment it was paused, so the frozen
// remainder is kept and resume still credits the pause.
func extendLicense(l *entities.License, ext entities.LicenseDuration, now time.Time) error {
	if ext.Value <= 0 {
		return domainerrors.BadRequest("extension must be positive")
	}

	at := now
	if l.IsPaused && l.PausedAt.Valid {
		at = l.PausedAt.Time
	}

	state := l.State()
	switch state.Kind {
	case entities.LicenseUnlimited:
		return domainerrors.DomainRule("cannot extend unlimited license")
	case entities.LicenseNotActivated:
		l.ExpiresAt = null.TimeFrom(at.Add(state.Duration.Length()).Add(ext.Length()))
		if l.IsPaused {
			l.PausedExpiresAt = l.ExpiresAt
		}
		return nil
	}

	if state.ExpiredAt(at) {
		return domainerrors.DomainRule("cannot extend expired license")
	}

	// not expired, so the expiry is already max(expiry, at)
	l.ExpiresAt = null.TimeFrom(state.ExpiresAt.Add(ext.Length()))
	if l.IsPaused {
		l.PausedExpiresAt = l.ExpiresAt
	}
	return nil
}
