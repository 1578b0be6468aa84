package usecases

import (
	"math"
	"time"

	"github.com/volatiletech/null/v8"
	"keyforge.backend/internal/domain/entities"
)

// Clock returns the current instant. Tests inject fixed clocks.
type Clock func() time.Time

// SystemClock reads the wall clock in UTC.
func SystemClock() time.Time {
	return time.Now().UTC()
}

// CalculateExpiration returns now plus value units, or null for unlimited
// licenses. Unknown units count as days.
func CalculateExpiration(now time.Time, value int, unit entities.DurationUnit, isUnlimited bool) null.Time {
	if isUnlimited {
		return null.Time{}
	}
	d := entities.LicenseDuration{Value: value, Unit: unit}
	return null.TimeFrom(now.Add(d.Length()))
}

// DaysRemaining is the ceiling of whole days between now and expiresAt.
func DaysRemaining(expiresAt, now time.Time) int {
	left := expiresAt.Sub(now)
	if left <= 0 {
		return 0
	}
	return int(math.Ceil(float64(left) / float64(dayDuration)))
}
