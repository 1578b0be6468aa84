package usecases

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"
	"keyforge.backend/internal/domain/entities"
	domainerrors "keyforge.backend/internal/domain/errors"
)

var policyNow = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

func activeLicense(expiresAt null.Time) *entities.License {
	return &entities.License{
		LicenseKey:    "K",
		DurationValue: 10,
		DurationUnit:  entities.DurationDays,
		ExpiresAt:     expiresAt,
		IsActive:      true,
	}
}

func TestPauseLicense_Rules(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(l *entities.License)
	}{
		{"inactive", func(l *entities.License) { l.IsActive = false }},
		{"banned", func(l *entities.License) { l.IsBanned = true }},
		{"already paused", func(l *entities.License) { l.IsPaused = true }},
		{"expired", func(l *entities.License) { l.ExpiresAt = null.TimeFrom(policyNow.Add(-time.Second)) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l := activeLicense(null.TimeFrom(policyNow.Add(time.Hour)))
			tc.mutate(l)
			err := pauseLicense(l, policyNow)
			require.Error(t, err)
			assert.ErrorIs(t, err, domainerrors.ErrDomainRule)
		})
	}
}

func TestPauseResume_CreditsPausedTime(t *testing.T) {
	expiry := policyNow.Add(5 * 24 * time.Hour)
	l := activeLicense(null.TimeFrom(expiry))

	require.NoError(t, pauseLicense(l, policyNow))
	assert.True(t, l.IsPaused)
	assert.Equal(t, null.TimeFrom(policyNow), l.PausedAt)
	assert.Equal(t, null.TimeFrom(expiry), l.PausedExpiresAt)

	paused := 3*time.Hour + 17*time.Minute + 9*time.Second
	require.NoError(t, resumeLicense(l, policyNow.Add(paused)))
	assert.False(t, l.IsPaused)
	assert.False(t, l.PausedAt.Valid)
	assert.False(t, l.PausedExpiresAt.Valid)
	assert.True(t, expiry.Add(paused).Equal(l.ExpiresAt.Time))
}

func TestPauseResume_NotActivatedStaysNotActivated(t *testing.T) {
	l := activeLicense(null.Time{})

	require.NoError(t, pauseLicense(l, policyNow))
	require.NoError(t, resumeLicense(l, policyNow.Add(time.Hour)))
	assert.False(t, l.ExpiresAt.Valid)
	assert.Equal(t, entities.LicenseNotActivated, l.State().Kind)
}

func TestResumeLicense_RequiresPaused(t *testing.T) {
	l := activeLicense(null.TimeFrom(policyNow.Add(time.Hour)))
	err := resumeLicense(l, policyNow)
	assert.ErrorIs(t, err, domainerrors.ErrDomainRule)
}

func TestExtendLicense(t *testing.T) {
	week := entities.LicenseDuration{Value: 7, Unit: entities.DurationDays}

	t.Run("activated adds to expiry", func(t *testing.T) {
		expiry := policyNow.Add(2 * time.Hour)
		l := activeLicense(null.TimeFrom(expiry))
		require.NoError(t, extendLicense(l, week, policyNow))
		assert.True(t, expiry.Add(7*24*time.Hour).Equal(l.ExpiresAt.Time))
	})

	t.Run("not activated activates with its own duration", func(t *testing.T) {
		l := activeLicense(null.Time{})
		require.NoError(t, extendLicense(l, entities.LicenseDuration{Value: 30, Unit: entities.DurationMinutes}, policyNow))
		assert.True(t, policyNow.Add(10*24*time.Hour+30*time.Minute).Equal(l.ExpiresAt.Time))
	})

	t.Run("paused moves snapshot too", func(t *testing.T) {
		expiry := policyNow.Add(24 * time.Hour)
		l := activeLicense(null.TimeFrom(expiry))
		require.NoError(t, pauseLicense(l, policyNow))
		require.NoError(t, extendLicense(l, week, policyNow.Add(time.Hour)))
		assert.True(t, expiry.Add(7*24*time.Hour).Equal(l.PausedExpiresAt.Time))

		require.NoError(t, resumeLicense(l, policyNow.Add(2*time.Hour)))
		assert.True(t, expiry.Add(7*24*time.Hour+2*time.Hour).Equal(l.ExpiresAt.Time))
	})

	t.Run("paused is judged at pause time", func(t *testing.T) {
		expiry := policyNow.Add(12 * time.Hour)
		l := activeLicense(null.TimeFrom(expiry))
		require.NoError(t, pauseLicense(l, policyNow))

		later := policyNow.Add(3 * 24 * time.Hour)
		require.NoError(t, extendLicense(l, week, later))
		assert.True(t, expiry.Add(7*24*time.Hour).Equal(l.PausedExpiresAt.Time))

		require.NoError(t, resumeLicense(l, later))
		assert.True(t, later.Add(12*time.Hour+7*24*time.Hour).Equal(l.ExpiresAt.Time))
	})

	t.Run("paused and not activated starts at pause time", func(t *testing.T) {
		l := activeLicense(null.Time{})
		require.NoError(t, pauseLicense(l, policyNow))
		require.NoError(t, extendLicense(l, week, policyNow.Add(time.Hour)))
		assert.True(t, policyNow.Add(17*24*time.Hour).Equal(l.PausedExpiresAt.Time))

		resumeAt := policyNow.Add(5 * 24 * time.Hour)
		require.NoError(t, resumeLicense(l, resumeAt))
		assert.True(t, resumeAt.Add(17*24*time.Hour).Equal(l.ExpiresAt.Time))
	})

	t.Run("unlimited rejected", func(t *testing.T) {
		l := activeLicense(null.Time{})
		l.IsUnlimited = true
		err := extendLicense(l, week, policyNow)
		require.Error(t, err)
		assert.ErrorIs(t, err, domainerrors.ErrDomainRule)
		assert.Contains(t, err.(*domainerrors.AppError).Message, "unlimited")
	})

	t.Run("expired rejected", func(t *testing.T) {
		l := activeLicense(null.TimeFrom(policyNow.Add(-time.Minute)))
		err := extendLicense(l, week, policyNow)
		assert.ErrorIs(t, err, domainerrors.ErrDomainRule)
		assert.Equal(t, "cannot extend expired license", err.(*domainerrors.AppError).Message)
	})

	t.Run("non-positive rejected", func(t *testing.T) {
		l := activeLicense(null.TimeFrom(policyNow.Add(time.Hour)))
		err := extendLicense(l, entities.LicenseDuration{Value: 0, Unit: entities.DurationDays}, policyNow)
		assert.ErrorIs(t, err, domainerrors.ErrInvalidInput)
	})
}
