package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"keyforge.backend/internal/domain/entities"
	"keyforge.backend/internal/infrastructure/datasources/postgres"
	"keyforge.backend/internal/infrastructure/repositories"
	"keyforge.backend/internal/interfaces/http/middleware"
	"keyforge.backend/internal/usecases"
	"keyforge.backend/pkg/crypto"
	"keyforge.backend/pkg/jwt"
	"keyforge.backend/pkg/metrics"
)

var testEpoch = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

type testUser struct {
	entities.Principal
	token string
}

type testServer struct {
	t        *testing.T
	db       *gorm.DB
	router   *gin.Engine
	jwt      *jwt.JWTService
	metrics  *metrics.Registry
	now      time.Time
	userRepo *repositories.UserRepository
	admin    testUser
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", t.Name(), time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, postgres.Migrate(context.Background(), db))

	s := &testServer{
		t:        t,
		db:       db,
		jwt:      jwt.NewJWTService("test-secret", time.Hour, 24*time.Hour),
		metrics:  metrics.New(),
		now:      testEpoch,
		userRepo: repositories.NewUserRepository(db),
	}
	clock := func() time.Time { return s.now }

	licenseRepo := repositories.NewLicenseRepository(db)
	appRepo := repositories.NewApplicationRepository(db)
	accessRepo := repositories.NewApplicationAccessRepository(db)
	messageRepo := repositories.NewCustomMessageRepository(db)
	formatRepo := repositories.NewLicenseFormatRepository(db)
	uow := repositories.NewUnitOfWork(db)
	perms := usecases.NewPermissionResolver(accessRepo)
	keygen := usecases.NewKeyGenerator(formatRepo, "TEST-****-****")

	check := NewLicenseCheckHandler(
		usecases.NewLicenseCheckUsecase(licenseRepo, appRepo, usecases.NewMessageResolver(messageRepo), nil, clock),
		s.metrics,
	)
	licenses := NewLicenseHandler(usecases.NewLicenseUsecase(licenseRepo, appRepo, uow, perms, keygen, usecases.LicenseUsecaseOptions{Clock: clock}))
	apps := NewApplicationHandler(usecases.NewApplicationUsecase(appRepo, accessRepo, licenseRepo, s.userRepo, uow, perms))
	formats := NewLicenseFormatHandler(usecases.NewLicenseFormatUsecase(formatRepo, keygen))
	messages := NewMessageHandler(usecases.NewMessageUsecase(messageRepo))
	auth := NewAuthHandler(usecases.NewAuthUsecase(s.userRepo, s.jwt, nil, time.Hour))
	users := NewUserHandler(usecases.NewUserUsecase(s.userRepo))

	r := gin.New()
	v1 := r.Group("/api/v1")
	v1.POST("/licenses/check", check.Check)
	v1.POST("/auth/login", auth.Login)
	v1.POST("/auth/refresh", auth.RefreshToken)
	v1.POST("/auth/logout", auth.Logout)

	api := v1.Group("")
	api.Use(middleware.AuthMiddleware(s.jwt, nil))
	api.GET("/auth/me", auth.GetMe)
	api.POST("/auth/change-password", auth.ChangePassword)

	api.GET("/licenses", licenses.ListLicenses)
	api.GET("/licenses/stats", licenses.GetStats)
	api.POST("/licenses/generate", licenses.GenerateLicenses)
	api.POST("/licenses/pause-all", licenses.PauseAllLicenses)
	api.POST("/licenses/resume-all", licenses.ResumeAllLicenses)
	api.GET("/licenses/:key", licenses.GetLicense)
	api.DELETE("/licenses/:key", licenses.DeleteLicense)
	api.POST("/licenses/:key/ban", licenses.BanLicense)
	api.POST("/licenses/:key/unban", licenses.UnbanLicense)
	api.POST("/licenses/:key/pause", licenses.PauseLicense)
	api.POST("/licenses/:key/resume", licenses.ResumeLicense)
	api.POST("/licenses/:key/extend", licenses.ExtendLicense)
	api.POST("/licenses/:key/reset-hwid", licenses.ResetHWID)

	api.GET("/applications", apps.ListApplications)
	api.POST("/applications", apps.CreateApplication)
	api.GET("/applications/:appId", apps.GetApplication)
	api.PATCH("/applications/:appId", apps.UpdateApplication)
	api.DELETE("/applications/:appId", apps.DeleteApplication)
	api.POST("/applications/:appId/rotate", apps.RotateAppID)
	api.GET("/applications/:appId/access", apps.ListAccess)
	api.POST("/applications/:appId/access", apps.GrantAccess)
	api.DELETE("/applications/:appId/access/:userId", apps.RevokeAccess)
	api.POST("/applications/:appId/licenses/pause", licenses.PauseApplicationLicenses)
	api.POST("/applications/:appId/licenses/resume", licenses.ResumeApplicationLicenses)
	api.POST("/applications/:appId/licenses/extend", licenses.ExtendApplicationLicenses)

	format := api.Group("/license-format", middleware.RequireAdmin())
	format.GET("", formats.GetFormat)
	format.PUT("", formats.UpdateFormat)
	format.POST("/preview", formats.PreviewFormat)

	api.GET("/messages", messages.ListMessages)
	api.PUT("/messages/:code", messages.SetMessage)
	api.DELETE("/messages/:code", messages.ResetMessage)

	api.GET("/users", users.ListUsers)
	api.POST("/users", users.CreateUser)
	api.PUT("/users/:id/permissions", users.UpdatePermissions)
	api.DELETE("/users/:id", users.DeleteUser)

	s.router = r
	s.admin = s.createUser("admin@keyforge.test", "admin-password", entities.UserRoleAdmin)
	return s
}

func (s *testServer) createUser(email, password string, role entities.UserRole, perms ...entities.Permission) testUser {
	s.t.Helper()
	hash, err := crypto.HashPassword(password)
	require.NoError(s.t, err)
	u := &entities.User{
		ID:           uuid.New(),
		Email:        email,
		Name:         "Test " + email,
		PasswordHash: hash,
		Role:         role,
		Permissions:  perms,
		CreatedAt:    testEpoch,
		UpdatedAt:    testEpoch,
	}
	require.NoError(s.t, s.userRepo.Create(context.Background(), u))

	names := make([]string, 0, len(perms))
	for _, p := range perms {
		names = append(names, string(p))
	}
	pair, err := s.jwt.GenerateTokenPair(jwt.Subject{UserID: u.ID, Email: email, Role: string(role), Permissions: names})
	require.NoError(s.t, err)
	return testUser{
		Principal: entities.Principal{UserID: u.ID, Email: email, Role: role, Permissions: perms},
		token:     pair.AccessToken,
	}
}

// do sends a JSON request as user (nil for anonymous) and returns the recorder.
func (s *testServer) do(user *testUser, method, path string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(s.t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		req.Header.Set(middleware.AuthorizationHeader, middleware.BearerPrefix+user.token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (s *testServer) createApp(owner *testUser, name string, lock bool) entities.Application {
	s.t.Helper()
	rec := s.do(owner, http.MethodPost, "/api/v1/applications", gin.H{
		"name":            name,
		"version":         "1.0.0",
		"hwidLockEnabled": lock,
	})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[entities.Application](s.t, rec)
}

func (s *testServer) generate(owner *testUser, appID string, qty, days int) []entities.License {
	s.t.Helper()
	rec := s.do(owner, http.MethodPost, "/api/v1/licenses/generate", gin.H{
		"appId":         appID,
		"quantity":      qty,
		"durationValue": days,
		"durationUnit":  "days",
	})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[struct {
		Items []entities.License `json:"items"`
	}](s.t, rec).Items
}
