package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"keyforge.backend/internal/domain/entities"
	domainerrors "keyforge.backend/internal/domain/errors"
	"keyforge.backend/internal/interfaces/http/response"
	"keyforge.backend/internal/usecases"
)

const maxPreview = 10

type LicenseFormatHandler struct {
	formats *usecases.LicenseFormatUsecase
}

func NewLicenseFormatHandler(formats *usecases.LicenseFormatUsecase) *LicenseFormatHandler {
	return &LicenseFormatHandler{formats: formats}
}

// GetFormat GET /api/v1/license-format
func (h *LicenseFormatHandler) GetFormat(c *gin.Context) {
	format, err := h.formats.Get(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, format)
}

// UpdateFormat PUT /api/v1/license-format
func (h *LicenseFormatHandler) UpdateFormat(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var input entities.UpdateLicenseFormatInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}
	format, err := h.formats.Update(c.Request.Context(), p, &input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, format)
}

// PreviewFormat renders sample keys for a format without saving it.
// POST /api/v1/license-format/preview?count=
func (h *LicenseFormatHandler) PreviewFormat(c *gin.Context) {
	var input entities.UpdateLicenseFormatInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}
	count := intQuery(c, "count", 5)
	if count < 1 || count > maxPreview {
		response.Error(c, domainerrors.BadRequest("count must be between 1 and 10"))
		return
	}
	samples, err := h.formats.Preview(&input, count)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"samples": samples})
}
