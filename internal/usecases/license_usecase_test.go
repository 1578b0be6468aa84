package usecases_test

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"keyforge.backend/internal/domain/entities"
	domainerrors "keyforge.backend/internal/domain/errors"
)

var defaultKeyPattern = regexp.MustCompile(`^TEST-[a-zA-Z0-9]{4}-[a-zA-Z0-9]{4}$`)

func TestLicenseUsecase_GenerateBatch(t *testing.T) {
	h := newHarness(t)
	app := h.createApp(appOpts{name: "Tool"})

	out, err := h.licenses.Generate(h.ctx, h.admin, &entities.GenerateLicensesInput{
		AppID:         app.AppID,
		Quantity:      25,
		DurationValue: 3,
		DurationUnit:  entities.DurationHours,
	})
	require.NoError(t, err)
	require.Len(t, out, 25)

	seen := map[string]bool{}
	for _, l := range out {
		assert.Regexp(t, defaultKeyPattern, l.LicenseKey)
		assert.False(t, seen[l.LicenseKey])
		seen[l.LicenseKey] = true
		assert.Equal(t, entities.LicenseNotActivated, l.State().Kind)
		assert.True(t, l.IsActive)
		assert.Equal(t, h.admin.UserID, l.CreatedBy.UUID)
	}

	stored := h.reload(out[0].LicenseKey)
	assert.Equal(t, 3, stored.DurationValue)
	assert.Equal(t, entities.DurationHours, stored.DurationUnit)
	assert.False(t, stored.ExpiresAt.Valid)
}

func TestLicenseUsecase_GenerateValidation(t *testing.T) {
	h := newHarness(t)
	app := h.createApp(appOpts{name: "Tool"})

	cases := []struct {
		name string
		in   entities.GenerateLicensesInput
		want error
	}{
		{"zero quantity", entities.GenerateLicensesInput{AppID: app.AppID, Quantity: 0, DurationValue: 1}, domainerrors.ErrInvalidInput},
		{"too many", entities.GenerateLicensesInput{AppID: app.AppID, Quantity: 101, DurationValue: 1}, domainerrors.ErrInvalidInput},
		{"no duration", entities.GenerateLicensesInput{AppID: app.AppID, Quantity: 1}, domainerrors.ErrInvalidInput},
		{"bad unit", entities.GenerateLicensesInput{AppID: app.AppID, Quantity: 1, DurationValue: 1, DurationUnit: "weeks"}, domainerrors.ErrInvalidInput},
		{"unknown app", entities.GenerateLicensesInput{AppID: "nope", Quantity: 1, DurationValue: 1}, domainerrors.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := tc.in
			_, err := h.licenses.Generate(h.ctx, h.admin, &in)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	out, err := h.licenses.Generate(h.ctx, h.admin, &entities.GenerateLicensesInput{AppID: app.AppID, Quantity: 1, DurationValue: 9, IsUnlimited: true})
	require.NoError(t, err)
	assert.Equal(t, 0, out[0].DurationValue)
	assert.Equal(t, entities.LicenseUnlimited, out[0].State().Kind)
}

func TestLicenseUsecase_GenerateGivesUpOnCollisions(t *testing.T) {
	h := newHarness(t)
	app := h.createApp(appOpts{name: "Tool"})
	require.NoError(t, h.formatRepo.Save(h.ctx, &entities.LicenseFormat{Template: "FIXED-KEY", UpdatedAt: harnessEpoch}))

	first := h.generate(app, 1, entities.DurationDays, false)
	assert.Equal(t, "FIXED-KEY", first.LicenseKey)

	_, err := h.licenses.Generate(h.ctx, h.admin, &entities.GenerateLicensesInput{AppID: app.AppID, Quantity: 1, DurationValue: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrAlreadyExists)
}

func TestLicenseUsecase_GenerateRollsBackWholeBatch(t *testing.T) {
	h := newHarness(t)
	app := h.createApp(appOpts{name: "Tool"})
	require.NoError(t, h.formatRepo.Save(h.ctx, &entities.LicenseFormat{Template: "ONLY-ONE", UpdatedAt: harnessEpoch}))

	_, err := h.licenses.Generate(h.ctx, h.admin, &entities.GenerateLicensesInput{AppID: app.AppID, Quantity: 2, DurationValue: 1})
	require.Error(t, err)

	_, err = h.licenseRepo.GetByKey(h.ctx, "ONLY-ONE")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestLicenseUsecase_PermissionsFollowAppAccess(t *testing.T) {
	h := newHarness(t)
	app := h.createApp(appOpts{name: "Tool"})
	lic := h.generate(app, 30, entities.DurationDays, false)

	stranger := h.createUser("stranger@keyforge.test", entities.UserRoleUser, entities.PermBanLicenses)
	_, err := h.licenses.SetBanned(h.ctx, stranger, lic.LicenseKey, true)
	assert.ErrorIs(t, err, domainerrors.ErrForbidden)

	_, err = h.apps.GrantAccess(h.ctx, h.admin, app.AppID, stranger.UserID)
	require.NoError(t, err)
	banned, err := h.licenses.SetBanned(h.ctx, stranger, lic.LicenseKey, true)
	require.NoError(t, err)
	assert.True(t, banned.IsBanned)
	assert.True(t, h.reload(lic.LicenseKey).IsBanned)

	// access without the permission is not enough
	_, err = h.licenses.Pause(h.ctx, stranger, lic.LicenseKey)
	assert.ErrorIs(t, err, domainerrors.ErrForbidden)
	_, err = h.licenses.Generate(h.ctx, stranger, &entities.GenerateLicensesInput{AppID: app.AppID, Quantity: 1, DurationValue: 1})
	assert.ErrorIs(t, err, domainerrors.ErrForbidden)

	got, err := h.licenses.Get(h.ctx, stranger, lic.LicenseKey)
	require.NoError(t, err)
	assert.Equal(t, lic.LicenseKey, got.LicenseKey)
}

func TestLicenseUsecase_CreatorKeepsControlOfOwnLicenses(t *testing.T) {
	h := newHarness(t)
	app := h.createApp(appOpts{name: "Tool"})
	creator := h.createUser("creator@keyforge.test", entities.UserRoleUser, entities.PermGenerateLicenses, entities.PermDeleteLicenses)
	_, err := h.apps.GrantAccess(h.ctx, h.admin, app.AppID, creator.UserID)
	require.NoError(t, err)

	out, err := h.licenses.Generate(h.ctx, creator, &entities.GenerateLicensesInput{AppID: app.AppID, Quantity: 1, DurationValue: 1})
	require.NoError(t, err)
	require.NoError(t, h.apps.RevokeAccess(h.ctx, h.admin, app.AppID, creator.UserID))

	require.NoError(t, h.licenses.Delete(h.ctx, creator, out[0].LicenseKey))
	_, err = h.licenseRepo.GetByKey(h.ctx, out[0].LicenseKey)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestLicenseUsecase_PauseResumeCreditsExactPause(t *testing.T) {
	h := newHarness(t)
	app := h.createApp(appOpts{name: "Tool"})
	lic := h.generate(app, 10, entities.DurationDays, false)
	require.True(t, h.checkKey(app, lic.LicenseKey, "").Success)
	expiry := harnessEpoch.Add(10 * 24 * time.Hour)

	h.clock.Advance(time.Hour)
	paused, err := h.licenses.Pause(h.ctx, h.admin, lic.LicenseKey)
	require.NoError(t, err)
	assert.True(t, paused.IsPaused)
	assert.Equal(t, entities.ReasonLicensePaused, h.checkKey(app, lic.LicenseKey, "").Code)

	_, err = h.licenses.Pause(h.ctx, h.admin, lic.LicenseKey)
	assert.ErrorIs(t, err, domainerrors.ErrDomainRule)

	delta := 2*24*time.Hour + 7*time.Minute + 3*time.Second
	h.clock.Advance(delta)
	_, err = h.licenses.Resume(h.ctx, h.admin, lic.LicenseKey)
	require.NoError(t, err)

	got := h.reload(lic.LicenseKey)
	assert.False(t, got.IsPaused)
	assert.False(t, got.PausedAt.Valid)
	assert.False(t, got.PausedExpiresAt.Valid)
	requireSameInstant(t, expiry.Add(delta), got.ExpiresAt)
	assert.True(t, h.checkKey(app, lic.LicenseKey, "").Success)
}

func TestLicenseUsecase_ExtendRules(t *testing.T) {
	h := newHarness(t)
	app := h.createApp(appOpts{name: "Tool"})
	week := entities.LicenseDuration{Value: 7, Unit: entities.DurationDays}

	pending := h.generate(app, 1, entities.DurationDays, false)
	got, err := h.licenses.Extend(h.ctx, h.admin, pending.LicenseKey, week)
	require.NoError(t, err)
	requireSameInstant(t, harnessEpoch.Add(8*24*time.Hour), got.ExpiresAt)

	active := h.generate(app, 1, entities.DurationDays, false)
	require.True(t, h.checkKey(app, active.LicenseKey, "").Success)
	h.clock.Advance(time.Hour)
	got, err = h.licenses.Extend(h.ctx, h.admin, active.LicenseKey, entities.LicenseDuration{Value: 90, Unit: entities.DurationMinutes})
	require.NoError(t, err)
	requireSameInstant(t, harnessEpoch.Add(24*time.Hour+90*time.Minute), got.ExpiresAt)

	unlimited := h.generate(app, 0, "", true)
	_, err = h.licenses.Extend(h.ctx, h.admin, unlimited.LicenseKey, week)
	assert.ErrorIs(t, err, domainerrors.ErrDomainRule)

	_, err = h.licenses.Extend(h.ctx, h.admin, "missing", week)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestLicenseUsecase_ExtendWhilePausedKeepsPauseCredit(t *testing.T) {
	h := newHarness(t)
	app := h.createApp(appOpts{name: "Tool"})
	day := 24 * time.Hour
	oneDay := entities.LicenseDuration{Value: 1, Unit: entities.DurationDays}

	t.Run("not activated", func(t *testing.T) {
		lic := h.generate(app, 10, entities.DurationDays, false)
		pausedAt := h.clock.Now()
		_, err := h.licenses.Pause(h.ctx, h.admin, lic.LicenseKey)
		require.NoError(t, err)

		h.clock.Advance(2 * day)
		got, err := h.licenses.Extend(h.ctx, h.admin, lic.LicenseKey, oneDay)
		require.NoError(t, err)
		requireSameInstant(t, pausedAt.Add(11*day), got.ExpiresAt)
		requireSameInstant(t, pausedAt.Add(11*day), got.PausedExpiresAt)

		h.clock.Advance(3 * day)
		_, err = h.licenses.Resume(h.ctx, h.admin, lic.LicenseKey)
		require.NoError(t, err)

		got = h.reload(lic.LicenseKey)
		requireSameInstant(t, h.clock.Now().Add(11*day), got.ExpiresAt)
		assert.True(t, h.checkKey(app, lic.LicenseKey, "").Success)
	})

	t.Run("activated with little time left", func(t *testing.T) {
		lic := h.generate(app, 1, entities.DurationDays, false)
		require.True(t, h.checkKey(app, lic.LicenseKey, "").Success)
		activatedAt := h.clock.Now()

		h.clock.Advance(12 * time.Hour)
		_, err := h.licenses.Pause(h.ctx, h.admin, lic.LicenseKey)
		require.NoError(t, err)

		// the frozen expiry is in the past by now, the remaining 12h are not
		h.clock.Advance(3 * day)
		got, err := h.licenses.Extend(h.ctx, h.admin, lic.LicenseKey, oneDay)
		require.NoError(t, err)
		requireSameInstant(t, activatedAt.Add(2*day), got.PausedExpiresAt)

		h.clock.Advance(day)
		_, err = h.licenses.Resume(h.ctx, h.admin, lic.LicenseKey)
		require.NoError(t, err)

		got = h.reload(lic.LicenseKey)
		requireSameInstant(t, h.clock.Now().Add(day+12*time.Hour), got.ExpiresAt)
		assert.True(t, h.checkKey(app, lic.LicenseKey, "").Success)
	})
}

func TestLicenseUsecase_BulkSkipsRuleViolations(t *testing.T) {
	h := newHarness(t)
	app := h.createApp(appOpts{name: "Tool"})
	other := h.createApp(appOpts{name: "Other"})

	live := h.generate(app, 5, entities.DurationDays, false)
	require.True(t, h.checkKey(app, live.LicenseKey, "").Success)
	expired := h.generate(app, 1, entities.DurationSeconds, false)
	require.True(t, h.checkKey(app, expired.LicenseKey, "").Success)
	unlimited := h.generate(app, 0, "", true)
	banned := h.generate(app, 5, entities.DurationDays, false)
	_, err := h.licenses.SetBanned(h.ctx, h.admin, banned.LicenseKey, true)
	require.NoError(t, err)
	untouched := h.generate(other, 5, entities.DurationDays, false)

	h.clock.Advance(time.Minute)

	res, err := h.licenses.ExtendBulk(h.ctx, h.admin, app.AppID, entities.LicenseDuration{Value: 1, Unit: entities.DurationDays})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Matched)
	assert.Equal(t, 2, res.Updated)
	assert.Equal(t, 2, res.Skipped)
	requireSameInstant(t, harnessEpoch.Add(6*24*time.Hour), h.reload(live.LicenseKey).ExpiresAt)
	assert.False(t, h.reload(unlimited.LicenseKey).ExpiresAt.Valid)

	res, err = h.licenses.PauseBulk(h.ctx, h.admin, app.AppID, true)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Matched)
	assert.Equal(t, 2, res.Updated)
	assert.Equal(t, 2, res.Skipped)
	assert.True(t, h.reload(live.LicenseKey).IsPaused)
	assert.False(t, h.reload(untouched.LicenseKey).IsPaused)

	res, err = h.licenses.PauseBulk(h.ctx, h.admin, "", false)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Matched)
	assert.Equal(t, 2, res.Updated)
	assert.False(t, h.reload(live.LicenseKey).IsPaused)

	user := h.createUser("user@keyforge.test", entities.UserRoleUser, entities.PermPauseLicenses)
	_, err = h.licenses.PauseBulk(h.ctx, user, "", true)
	assert.ErrorIs(t, err, domainerrors.ErrForbidden)
	_, err = h.licenses.ExtendBulk(h.ctx, h.admin, app.AppID, entities.LicenseDuration{})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidInput)
}

func TestLicenseUsecase_ResetHWIDAllowsRebind(t *testing.T) {
	h := newHarness(t)
	app := h.createApp(appOpts{name: "Tool", lock: true})
	lic := h.generate(app, 5, entities.DurationDays, false)
	require.True(t, h.checkKey(app, lic.LicenseKey, "H1").Success)
	assert.Equal(t, entities.ReasonHWIDMismatch, h.checkKey(app, lic.LicenseKey, "H2").Code)

	_, err := h.licenses.ResetHWID(h.ctx, h.admin, lic.LicenseKey)
	require.NoError(t, err)
	assert.False(t, h.reload(lic.LicenseKey).LockedHWID.Valid)

	assert.True(t, h.checkKey(app, lic.LicenseKey, "H2").Success)
	assert.Equal(t, "H2", h.reload(lic.LicenseKey).LockedHWID.String)
}

func TestLicenseUsecase_ListScopesNonAdmins(t *testing.T) {
	h := newHarness(t)
	owner := h.createUser("owner@keyforge.test", entities.UserRoleUser, entities.PermManageApplications, entities.PermGenerateLicenses)
	mine := h.createApp(appOpts{name: "Mine", owner: owner})
	theirs := h.createApp(appOpts{name: "Theirs"})
	for i := 0; i < 3; i++ {
		h.generate(mine, 1, entities.DurationDays, false)
	}
	h.generate(theirs, 1, entities.DurationDays, false)

	all, meta, err := h.licenses.List(h.ctx, h.admin, "", "", 1, 10)
	require.NoError(t, err)
	assert.Len(t, all, 4)
	assert.Equal(t, int64(4), meta.TotalCount)

	scoped, meta, err := h.licenses.List(h.ctx, owner, "", "", 1, 2)
	require.NoError(t, err)
	assert.Len(t, scoped, 2)
	assert.Equal(t, int64(3), meta.TotalCount)
	for _, l := range scoped {
		assert.Equal(t, mine.AppID, l.AppID)
	}

	_, _, err = h.licenses.List(h.ctx, owner, theirs.AppID, "", 1, 10)
	assert.ErrorIs(t, err, domainerrors.ErrForbidden)

	nobody := h.createUser("nobody@keyforge.test", entities.UserRoleUser)
	none, _, err := h.licenses.List(h.ctx, nobody, "", "", 1, 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestLicenseUsecase_GetIncludesUsage(t *testing.T) {
	h := newHarness(t)
	app := h.createApp(appOpts{name: "Tool"})
	lic := h.generate(app, 5, entities.DurationDays, false)

	got, err := h.licenses.Get(h.ctx, h.admin, lic.LicenseKey)
	require.NoError(t, err)
	assert.Nil(t, got.Usage)

	h.checkKey(app, lic.LicenseKey, "H7")
	got, err = h.licenses.Get(h.ctx, h.admin, lic.LicenseKey)
	require.NoError(t, err)
	require.NotNil(t, got.Usage)
	assert.Equal(t, "H7", got.Usage.HWID.String)
}

func TestLicenseUsecase_StatsAdminOnly(t *testing.T) {
	h := newHarness(t)
	app := h.createApp(appOpts{name: "Tool"})
	h.generate(app, 5, entities.DurationDays, false)
	h.generate(app, 0, "", true)

	stats, err := h.licenses.Stats(h.ctx, h.admin)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Total)
	assert.Equal(t, int64(1), stats.Unlimited)
	assert.Equal(t, int64(1), stats.NotActivated)

	user := h.createUser("user@keyforge.test", entities.UserRoleUser)
	_, err = h.licenses.Stats(h.ctx, user)
	assert.ErrorIs(t, err, domainerrors.ErrForbidden)
}
