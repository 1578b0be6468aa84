package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"keyforge.backend/internal/domain/entities"
	domainerrors "keyforge.backend/internal/domain/errors"
	"keyforge.backend/internal/usecases"
	"keyforge.backend/pkg/metrics"
)

const outcomeBadRequest = "bad-request"

// LicenseCheckHandler serves the public validation endpoint
type LicenseCheckHandler struct {
	check   *usecases.LicenseCheckUsecase
	metrics *metrics.Registry
}

// NewLicenseCheckHandler creates a new check handler. m may be nil.
func NewLicenseCheckHandler(check *usecases.LicenseCheckUsecase, m *metrics.Registry) *LicenseCheckHandler {
	return &LicenseCheckHandler{check: check, metrics: m}
}

// Check validates a license for a client application. Every answer,
// including errors, uses the check result shape.
// POST /api/v1/licenses/check
func (h *LicenseCheckHandler) Check(c *gin.Context) {
	var input entities.CheckInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.count(outcomeBadRequest)
		c.JSON(http.StatusBadRequest, &entities.CheckResult{Reason: "invalid request body"})
		return
	}

	res, err := h.check.Check(c.Request.Context(), &input, c.ClientIP())
	if err != nil {
		status := http.StatusInternalServerError
		var appErr *domainerrors.AppError
		if errors.As(err, &appErr) {
			status = appErr.Status
		}
		if status == http.StatusBadRequest {
			h.count(outcomeBadRequest)
		} else {
			h.count(string(entities.ReasonDatabaseError))
		}
		if res == nil {
			res = &entities.CheckResult{Reason: "internal server error"}
		}
		c.JSON(status, res)
		return
	}

	if res.Success {
		h.count("success")
	} else {
		h.count(string(res.Code))
	}
	c.JSON(http.StatusOK, res)
}

func (h *LicenseCheckHandler) count(outcome string) {
	if h.metrics != nil {
		h.metrics.CheckResults.WithLabelValues(outcome).Inc()
	}
}
