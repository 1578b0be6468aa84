package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"keyforge.backend/internal/domain/entities"
	domainerrors "keyforge.backend/internal/domain/errors"
	"keyforge.backend/internal/interfaces/http/response"
	"keyforge.backend/internal/usecases"
)

// LicenseHandler handles administrative license endpoints
type LicenseHandler struct {
	licenses *usecases.LicenseUsecase
}

// NewLicenseHandler creates a new license handler
func NewLicenseHandler(licenses *usecases.LicenseUsecase) *LicenseHandler {
	return &LicenseHandler{licenses: licenses}
}

// ListLicenses lists licenses visible to the caller.
// GET /api/v1/licenses?app_id=&search=&page=&limit=
func (h *LicenseHandler) ListLicenses(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	items, meta, err := h.licenses.List(c.Request.Context(), p,
		c.Query("app_id"), c.Query("search"),
		intQuery(c, "page", 1), intQuery(c, "limit", 20),
	)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"items": items, "meta": meta})
}

// GetLicense returns one license with its last usage.
// GET /api/v1/licenses/:key
func (h *LicenseHandler) GetLicense(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	license, err := h.licenses.Get(c.Request.Context(), p, c.Param("key"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, license)
}

// GenerateLicenses creates a batch of licenses for an application.
// POST /api/v1/licenses/generate
func (h *LicenseHandler) GenerateLicenses(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var input entities.GenerateLicensesInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}
	items, err := h.licenses.Generate(c.Request.Context(), p, &input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"items": items})
}

// BanLicense POST /api/v1/licenses/:key/ban
func (h *LicenseHandler) BanLicense(c *gin.Context) {
	h.mutate(c, func(p entities.Principal, key string) (*entities.License, error) {
		return h.licenses.SetBanned(c.Request.Context(), p, key, true)
	})
}

// UnbanLicense POST /api/v1/licenses/:key/unban
func (h *LicenseHandler) UnbanLicense(c *gin.Context) {
	h.mutate(c, func(p entities.Principal, key string) (*entities.License, error) {
		return h.licenses.SetBanned(c.Request.Context(), p, key, false)
	})
}

// PauseLicense POST /api/v1/licenses/:key/pause
func (h *LicenseHandler) PauseLicense(c *gin.Context) {
	h.mutate(c, func(p entities.Principal, key string) (*entities.License, error) {
		return h.licenses.Pause(c.Request.Context(), p, key)
	})
}

// ResumeLicense POST /api/v1/licenses/:key/resume
func (h *LicenseHandler) ResumeLicense(c *gin.Context) {
	h.mutate(c, func(p entities.Principal, key string) (*entities.License, error) {
		return h.licenses.Resume(c.Request.Context(), p, key)
	})
}

// ResetHWID POST /api/v1/licenses/:key/reset-hwid
func (h *LicenseHandler) ResetHWID(c *gin.Context) {
	h.mutate(c, func(p entities.Principal, key string) (*entities.License, error) {
		return h.licenses.ResetHWID(c.Request.Context(), p, key)
	})
}

// ExtendLicense adds time to one license.
// POST /api/v1/licenses/:key/extend
func (h *LicenseHandler) ExtendLicense(c *gin.Context) {
	var input entities.ExtendLicenseInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}
	h.mutate(c, func(p entities.Principal, key string) (*entities.License, error) {
		return h.licenses.Extend(c.Request.Context(), p, key, entities.LicenseDuration{Value: input.Value, Unit: input.Unit})
	})
}

// DeleteLicense DELETE /api/v1/licenses/:key
func (h *LicenseHandler) DeleteLicense(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	if err := h.licenses.Delete(c.Request.Context(), p, c.Param("key")); err != nil {
		response.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// PauseApplicationLicenses POST /api/v1/applications/:appId/licenses/pause
func (h *LicenseHandler) PauseApplicationLicenses(c *gin.Context) {
	h.pauseBulk(c, c.Param("appId"), true)
}

// ResumeApplicationLicenses POST /api/v1/applications/:appId/licenses/resume
func (h *LicenseHandler) ResumeApplicationLicenses(c *gin.Context) {
	h.pauseBulk(c, c.Param("appId"), false)
}

// PauseAllLicenses POST /api/v1/licenses/pause-all (admin)
func (h *LicenseHandler) PauseAllLicenses(c *gin.Context) {
	h.pauseBulk(c, "", true)
}

// ResumeAllLicenses POST /api/v1/licenses/resume-all (admin)
func (h *LicenseHandler) ResumeAllLicenses(c *gin.Context) {
	h.pauseBulk(c, "", false)
}

// ExtendApplicationLicenses extends every license of an application.
// POST /api/v1/applications/:appId/licenses/extend
func (h *LicenseHandler) ExtendApplicationLicenses(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var input entities.ExtendLicenseInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}
	result, err := h.licenses.ExtendBulk(c.Request.Context(), p, c.Param("appId"), entities.LicenseDuration{Value: input.Value, Unit: input.Unit})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// GetStats counts licenses by state.
// GET /api/v1/licenses/stats
func (h *LicenseHandler) GetStats(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	stats, err := h.licenses.Stats(c.Request.Context(), p)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, stats)
}

func (h *LicenseHandler) pauseBulk(c *gin.Context, appID string, pause bool) {
	p, ok := principal(c)
	if !ok {
		return
	}
	result, err := h.licenses.PauseBulk(c.Request.Context(), p, appID, pause)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

func (h *LicenseHandler) mutate(c *gin.Context, fn func(entities.Principal, string) (*entities.License, error)) {
	p, ok := principal(c)
	if !ok {
		return
	}
	license, err := fn(p, c.Param("key"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, license)
}
