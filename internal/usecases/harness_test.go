package usecases_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"keyforge.backend/internal/domain/entities"
	"keyforge.backend/internal/infrastructure/datasources/postgres"
	"keyforge.backend/internal/infrastructure/repositories"
	"keyforge.backend/internal/usecases"
)

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type sentEvent struct {
	url   string
	event entities.LicenseEvent
	owner uuid.NullUUID
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []sentEvent
}

func (n *recordingNotifier) Notify(url string, event entities.LicenseEvent, owner uuid.NullUUID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, sentEvent{url: url, event: event, owner: owner})
}

func (n *recordingNotifier) Sent() []sentEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentEvent(nil), n.events...)
}

type harness struct {
	t        *testing.T
	ctx      context.Context
	db       *gorm.DB
	clock    *fixedClock
	notifier *recordingNotifier

	licenseRepo *repositories.LicenseRepository
	appRepo     *repositories.ApplicationRepository
	accessRepo  *repositories.ApplicationAccessRepository
	userRepo    *repositories.UserRepository
	messageRepo *repositories.CustomMessageRepository
	formatRepo  *repositories.LicenseFormatRepository

	check    *usecases.LicenseCheckUsecase
	licenses *usecases.LicenseUsecase
	apps     *usecases.ApplicationUsecase
	messages *usecases.MessageUsecase

	admin entities.Principal
}

var harnessEpoch = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

func newHarness(t *testing.T) *harness {
	t.Helper()
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", t.Name(), time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, postgres.Migrate(ctx, db))

	h := &harness{
		t:           t,
		ctx:         ctx,
		db:          db,
		clock:       &fixedClock{now: harnessEpoch},
		notifier:    &recordingNotifier{},
		licenseRepo: repositories.NewLicenseRepository(db),
		appRepo:     repositories.NewApplicationRepository(db),
		accessRepo:  repositories.NewApplicationAccessRepository(db),
		userRepo:    repositories.NewUserRepository(db),
		messageRepo: repositories.NewCustomMessageRepository(db),
		formatRepo:  repositories.NewLicenseFormatRepository(db),
	}
	uow := repositories.NewUnitOfWork(db)
	perms := usecases.NewPermissionResolver(h.accessRepo)
	keygen := usecases.NewKeyGenerator(h.formatRepo, "TEST-****-****")

	h.check = usecases.NewLicenseCheckUsecase(h.licenseRepo, h.appRepo, usecases.NewMessageResolver(h.messageRepo), h.notifier, h.clock.Now)
	h.licenses = usecases.NewLicenseUsecase(h.licenseRepo, h.appRepo, uow, perms, keygen, usecases.LicenseUsecaseOptions{Clock: h.clock.Now})
	h.apps = usecases.NewApplicationUsecase(h.appRepo, h.accessRepo, h.licenseRepo, h.userRepo, uow, perms)
	h.messages = usecases.NewMessageUsecase(h.messageRepo)

	h.admin = h.createUser("admin@keyforge.test", entities.UserRoleAdmin)
	return h
}

func (h *harness) createUser(email string, role entities.UserRole, perms ...entities.Permission) entities.Principal {
	h.t.Helper()
	u := &entities.User{
		ID:           uuid.New(),
		Email:        email,
		Name:         "Test " + email,
		PasswordHash: "x",
		Role:         role,
		Permissions:  perms,
		CreatedAt:    harnessEpoch,
		UpdatedAt:    harnessEpoch,
	}
	require.NoError(h.t, h.userRepo.Create(h.ctx, u))
	return entities.Principal{UserID: u.ID, Email: u.Email, Role: role, Permissions: perms}
}

type appOpts struct {
	name    string
	version string
	lock    bool
	webhook string
	owner   entities.Principal
}

func (h *harness) createApp(o appOpts) *entities.Application {
	h.t.Helper()
	if o.owner.UserID == uuid.Nil {
		o.owner = h.admin
	}
	if o.version == "" {
		o.version = "1.0.0"
	}
	app, err := h.apps.Create(h.ctx, o.owner, &entities.CreateApplicationInput{
		Name:            o.name,
		Version:         o.version,
		HWIDLockEnabled: o.lock,
		WebhookURL:      o.webhook,
	})
	require.NoError(h.t, err)
	return app
}

func (h *harness) generate(app *entities.Application, value int, unit entities.DurationUnit, unlimited bool) *entities.License {
	h.t.Helper()
	out, err := h.licenses.Generate(h.ctx, h.admin, &entities.GenerateLicensesInput{
		AppID:         app.AppID,
		Quantity:      1,
		DurationValue: value,
		DurationUnit:  unit,
		IsUnlimited:   unlimited,
	})
	require.NoError(h.t, err)
	require.Len(h.t, out, 1)
	return out[0]
}

func (h *harness) reload(key string) *entities.License {
	h.t.Helper()
	l, err := h.licenseRepo.GetByKey(h.ctx, key)
	require.NoError(h.t, err)
	return l
}

func (h *harness) checkKey(app *entities.Application, key, hwid string) *entities.CheckResult {
	h.t.Helper()
	res, err := h.check.Check(h.ctx, &entities.CheckInput{AppID: app.AppID, LicenseKey: key, HWID: hwid}, "203.0.113.7")
	require.NoError(h.t, err)
	return res
}

func (h *harness) setLicense(key string, updates map[string]interface{}) {
	h.t.Helper()
	require.NoError(h.t, h.db.Table("licenses").Where("license_key = ?", key).Updates(updates).Error)
}

func requireSameInstant(t *testing.T, want time.Time, got null.Time) {
	t.Helper()
	require.True(t, got.Valid, "expected a time, got null")
	require.True(t, want.Equal(got.Time), "want %s, got %s", want, got.Time)
}
