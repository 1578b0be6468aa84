package usecases

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"go.uber.org/zap"
	"keyforge.backend/internal/domain/entities"
	domainerrors "keyforge.backend/internal/domain/errors"
	"keyforge.backend/internal/domain/repositories"
	"keyforge.backend/pkg/logger"
)

// LicenseCheckUsecase validates license keys presented by client applications
type LicenseCheckUsecase struct {
	licenseRepo repositories.LicenseRepository
	appRepo     repositories.ApplicationRepository
	messages    *MessageResolver
	notifier    Notifier
	now         Clock
}

// NewLicenseCheckUsecase creates a new license check usecase
func NewLicenseCheckUsecase(
	licenseRepo repositories.LicenseRepository,
	appRepo repositories.ApplicationRepository,
	messages *MessageResolver,
	notifier Notifier,
	clock Clock,
) *LicenseCheckUsecase {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if clock == nil {
		clock = SystemClock
	}
	return &LicenseCheckUsecase{
		licenseRepo: licenseRepo,
		appRepo:     appRepo,
		messages:    messages,
		notifier:    notifier,
		now:         clock,
	}
}

// checkRun carries the state of one Check call
type checkRun struct {
	in       *entities.CheckInput
	clientIP string
	now      time.Time
	hwid     string
	license  *entities.License
	app      *entities.Application
}

func (c *checkRun) owner() uuid.NullUUID {
	if c.app == nil {
		return uuid.NullUUID{}
	}
	return c.app.CreatedBy
}

// Check runs the validation policy for one request. Policy rejections are
// returned as a failed result with a nil error. A non-nil error is returned
// together with a failed result for malformed input (ErrInvalidInput) and
// for storage failures, whose raw text never reaches the result.
func (u *LicenseCheckUsecase) Check(ctx context.Context, in *entities.CheckInput, clientIP string) (*entities.CheckResult, error) {
	appID := strings.TrimSpace(in.AppID)
	key := strings.TrimSpace(in.LicenseKey)
	if appID == "" || key == "" {
		return &entities.CheckResult{
			Success: false,
			Reason:  "app_id and license_key are required",
		}, domainerrors.BadRequest("app_id and license_key are required")
	}

	run := &checkRun{
		in:       in,
		clientIP: clientIP,
		now:      u.now().UTC(),
		hwid:     strings.TrimSpace(in.HWID),
	}

	license, app, err := u.licenseRepo.FindForCheck(ctx, appID, key)
	if err != nil {
		if !isNotFound(err) {
			return u.storageFailure(ctx, run, "lookup license", err)
		}
		return u.notFound(ctx, run, appID), nil
	}
	run.license = license
	run.app = app

	if in.AppVersion != "" && in.AppVersion != app.Version {
		res := u.reject(ctx, run, entities.ReasonVersionMismatch, map[string]string{
			"current":  in.AppVersion,
			"required": app.Version,
		})
		res.VersionError = true
		res.RequiredVersion = app.Version
		res.CurrentVersion = in.AppVersion
		return u.finish(ctx, run, res), nil
	}
	if license.IsBanned {
		return u.finish(ctx, run, u.reject(ctx, run, entities.ReasonLicenseBanned, nil)), nil
	}
	if license.IsPaused {
		return u.finish(ctx, run, u.reject(ctx, run, entities.ReasonLicensePaused, nil)), nil
	}

	bindOnActivate, res, err := u.applyHWIDPolicy(ctx, run)
	if err != nil {
		return u.storageFailure(ctx, run, "update hardware lock", err)
	}
	if res != nil {
		return u.finish(ctx, run, res), nil
	}

	res, err = u.resolveExpiry(ctx, run, bindOnActivate)
	if err != nil {
		return u.storageFailure(ctx, run, "activate license", err)
	}
	if res != nil {
		return u.finish(ctx, run, res), nil
	}

	if err := u.recordUsage(ctx, run); err != nil {
		return u.storageFailure(ctx, run, "record usage", err)
	}
	return u.finish(ctx, run, u.accept(run)), nil
}

// notFound rejects an unknown key. The application is looked up on its own
// so that its webhook still hears about the attempt.
func (u *LicenseCheckUsecase) notFound(ctx context.Context, run *checkRun, appID string) *entities.CheckResult {
	app, err := u.appRepo.GetByAppID(ctx, appID)
	switch {
	case err == nil:
		run.app = app
	case !isNotFound(err):
		logger.Warn(ctx, "application lookup failed after license miss",
			zap.String("app_id", appID),
			zap.Error(err),
		)
	}
	return u.finish(ctx, run, u.reject(ctx, run, entities.ReasonInvalidLicense, nil))
}

// applyHWIDPolicy enforces the hardware lock. It returns the hwid to bind
// when the license activates during this call, or a terminal rejection.
func (u *LicenseCheckUsecase) applyHWIDPolicy(ctx context.Context, run *checkRun) (null.String, *entities.CheckResult, error) {
	license := run.license

	if !run.app.HWIDLockEnabled {
		if license.LockedHWID.Valid {
			if err := u.licenseRepo.SetLockedHWID(ctx, license.ID, null.String{}); err != nil {
				return null.String{}, nil, err
			}
			license.LockedHWID = null.String{}
		}
		return null.String{}, nil, nil
	}

	switch {
	case license.State().Kind == entities.LicenseNotActivated:
		if run.hwid == "" {
			return null.String{}, u.reject(ctx, run, entities.ReasonHWIDRequired, nil), nil
		}
		return null.StringFrom(run.hwid), nil, nil
	case !license.LockedHWID.Valid:
		if run.hwid != "" {
			if err := u.licenseRepo.SetLockedHWID(ctx, license.ID, null.StringFrom(run.hwid)); err != nil {
				return null.String{}, nil, err
			}
			license.LockedHWID = null.StringFrom(run.hwid)
		}
		return null.String{}, nil, nil
	case license.LockedHWID.String != run.hwid:
		return null.String{}, u.rejectWithUsage(ctx, run, entities.ReasonHWIDMismatch), nil
	}
	return null.String{}, nil, nil
}

// resolveExpiry activates a pending license or rejects an expired one.
func (u *LicenseCheckUsecase) resolveExpiry(ctx context.Context, run *checkRun, bind null.String) (*entities.CheckResult, error) {
	state := run.license.State()

	switch state.Kind {
	case entities.LicenseUnlimited:
		return nil, nil
	case entities.LicenseActivated:
		if state.ExpiredAt(run.now) {
			return u.rejectWithUsage(ctx, run, entities.ReasonLicenseExpired), nil
		}
		return nil, nil
	}

	expiresAt := CalculateExpiration(run.now, state.Duration.Value, state.Duration.Unit, false).Time
	won, err := u.licenseRepo.Activate(ctx, run.license.ID, expiresAt, bind)
	if err != nil {
		return nil, err
	}
	if won {
		run.license.ExpiresAt = null.TimeFrom(expiresAt)
		if bind.Valid {
			run.license.LockedHWID = bind
		}
		logger.Info(ctx, "license activated",
			logger.LicenseKey(run.license.LicenseKey),
			zap.Time("expires_at", expiresAt),
		)
		return nil, nil
	}

	// A concurrent check activated the license first; judge against its write.
	fresh, err := u.licenseRepo.GetByID(ctx, run.license.ID)
	if isNotFound(err) {
		// deleted between the lookup and the activation
		return u.reject(ctx, run, entities.ReasonInvalidLicense, nil), nil
	}
	if err != nil {
		return nil, err
	}
	run.license = fresh
	if run.app.HWIDLockEnabled && fresh.LockedHWID.Valid && fresh.LockedHWID.String != run.hwid {
		return u.rejectWithUsage(ctx, run, entities.ReasonHWIDMismatch), nil
	}
	if fresh.State().ExpiredAt(run.now) {
		return u.rejectWithUsage(ctx, run, entities.ReasonLicenseExpired), nil
	}
	return nil, nil
}

func (u *LicenseCheckUsecase) recordUsage(ctx context.Context, run *checkRun) error {
	usage := &entities.LicenseUsage{
		LicenseKey:    run.license.LicenseKey,
		LastCheckedAt: run.now,
	}
	if run.hwid != "" {
		usage.HWID = null.StringFrom(run.hwid)
	}
	return u.licenseRepo.UpsertUsage(ctx, usage)
}

// rejectWithUsage rejects after the usage row was replaced. A usage write
// failure is logged and does not change the rejection.
func (u *LicenseCheckUsecase) rejectWithUsage(ctx context.Context, run *checkRun, code entities.ReasonCode) *entities.CheckResult {
	if err := u.recordUsage(ctx, run); err != nil {
		logger.Error(ctx, "failed to record license usage",
			logger.LicenseKey(run.license.LicenseKey),
			zap.Error(err),
		)
	}
	return u.reject(ctx, run, code, nil)
}

func (u *LicenseCheckUsecase) reject(ctx context.Context, run *checkRun, code entities.ReasonCode, vars map[string]string) *entities.CheckResult {
	return &entities.CheckResult{
		Success: false,
		Code:    code,
		Reason:  u.messages.Resolve(ctx, run.owner(), code, vars),
	}
}

func (u *LicenseCheckUsecase) accept(run *checkRun) *entities.CheckResult {
	res := &entities.CheckResult{
		Success:     true,
		AppID:       run.app.AppID,
		AppName:     run.app.Name,
		AppVersion:  run.app.Version,
		IsUnlimited: run.license.IsUnlimited,
		IsActivated: true,
	}
	if run.license.State().Kind == entities.LicenseActivated {
		expiresAt := run.license.ExpiresAt.Time
		days := DaysRemaining(expiresAt, run.now)
		res.ExpiresAt = &expiresAt
		res.DaysRemaining = &days
	}
	return res
}

func (u *LicenseCheckUsecase) storageFailure(ctx context.Context, run *checkRun, op string, err error) (*entities.CheckResult, error) {
	logger.Error(ctx, "license check storage failure",
		zap.String("op", op),
		zap.String("app_id", run.in.AppID),
		logger.LicenseKey(run.in.LicenseKey),
		zap.Error(err),
	)
	res := u.finish(ctx, run, u.reject(ctx, run, entities.ReasonDatabaseError, nil))
	return res, domainerrors.InternalError(err)
}

// finish logs the outcome and hands the event to the notifier when the
// application has a webhook. The notifier never blocks the response.
func (u *LicenseCheckUsecase) finish(ctx context.Context, run *checkRun, res *entities.CheckResult) *entities.CheckResult {
	outcome := "success"
	if !res.Success {
		outcome = string(res.Code)
	}
	logger.Info(ctx, "license checked",
		zap.String("app_id", run.in.AppID),
		logger.LicenseKey(run.in.LicenseKey),
		zap.String("outcome", outcome),
	)

	if run.app == nil || !run.app.HasWebhook() {
		return res
	}
	u.notifier.Notify(run.app.WebhookURL.String, u.event(run, res), run.owner())
	return res
}

func (u *LicenseCheckUsecase) event(run *checkRun, res *entities.CheckResult) entities.LicenseEvent {
	ip := run.in.IPv4
	if ip == "" {
		ip = run.clientIP
	}
	version := run.in.AppVersion
	if version == "" {
		version = run.app.Version
	}
	ev := entities.LicenseEvent{
		Success:    res.Success,
		AppName:    run.app.Name,
		AppVersion: version,
		LicenseKey: run.in.LicenseKey,
		HWID:       run.hwid,
		PCName:     run.in.PCName,
		IP:         ip,
		Timestamp:  run.now,
		LoginDate:  run.in.LoginDate,
		Screenshot: run.in.Screenshot,
	}
	if !res.Success {
		ev.Reason = res.Reason
	}
	if run.license != nil && run.license.ExpiresAt.Valid {
		expiresAt := run.license.ExpiresAt.Time
		ev.ExpiresAt = &expiresAt
	}
	return ev
}
