package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"keyforge.backend/internal/domain/entities"
)

func TestLicenseFormatHandler(t *testing.T) {
	s := newTestServer(t)
	vendor := s.createUser("vendor@keyforge.test", "vendor-password", entities.UserRoleUser)

	rec := s.do(&vendor, http.MethodGet, "/api/v1/license-format", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = s.do(&s.admin, http.MethodGet, "/api/v1/license-format", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "TEST-****-****", decode[entities.LicenseFormat](t, rec).Template)

	rec = s.do(&vendor, http.MethodPut, "/api/v1/license-format", gin.H{"template": "KF-****"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(&s.admin, http.MethodPut, "/api/v1/license-format", gin.H{"template": "KF-****", "useUppercase": true})
	require.Equal(t, http.StatusOK, rec.Code)
	app := s.createApp(&s.admin, "Tool", false)
	assert.Regexp(t, `^KF-[a-zA-Z]{4}$`, s.generate(&s.admin, app.AppID, 1, 1)[0].LicenseKey)

	rec = s.do(&s.admin, http.MethodPost, "/api/v1/license-format/preview?count=4", gin.H{"template": "***-***", "useDigits": true})
	require.Equal(t, http.StatusOK, rec.Code)
	samples := decode[struct {
		Samples []string `json:"samples"`
	}](t, rec).Samples
	require.Len(t, samples, 4)
	for _, sample := range samples {
		assert.Regexp(t, `^[a-z0-9]{3}-[a-z0-9]{3}$`, sample)
	}

	rec = s.do(&s.admin, http.MethodPost, "/api/v1/license-format/preview?count=50", gin.H{"template": "***"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do(&s.admin, http.MethodPost, "/api/v1/license-format/preview", gin.H{"template": "NO-STARS"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
