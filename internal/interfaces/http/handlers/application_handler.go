package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"keyforge.backend/internal/domain/entities"
	domainerrors "keyforge.backend/internal/domain/errors"
	"keyforge.backend/internal/interfaces/http/response"
	"keyforge.backend/internal/usecases"
)

type ApplicationHandler struct {
	apps *usecases.ApplicationUsecase
}

func NewApplicationHandler(apps *usecases.ApplicationUsecase) *ApplicationHandler {
	return &ApplicationHandler{apps: apps}
}

// CreateApplication POST /api/v1/applications
func (h *ApplicationHandler) CreateApplication(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var input entities.CreateApplicationInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}
	app, err := h.apps.Create(c.Request.Context(), p, &input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, app)
}

// ListApplications returns the caller's applications; admins see all.
// GET /api/v1/applications
func (h *ApplicationHandler) ListApplications(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	items, err := h.apps.List(c.Request.Context(), p)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"items": items})
}

// GetApplication GET /api/v1/applications/:appId
func (h *ApplicationHandler) GetApplication(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	app, err := h.apps.Get(c.Request.Context(), p, c.Param("appId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, app)
}

// UpdateApplication applies a partial update.
// PATCH /api/v1/applications/:appId
func (h *ApplicationHandler) UpdateApplication(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var input entities.UpdateApplicationInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}
	app, err := h.apps.Update(c.Request.Context(), p, c.Param("appId"), &input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, app)
}

// DeleteApplication removes an application with its licenses.
// DELETE /api/v1/applications/:appId
func (h *ApplicationHandler) DeleteApplication(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	if err := h.apps.Delete(c.Request.Context(), p, c.Param("appId")); err != nil {
		response.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RotateAppID issues a new public app id.
// POST /api/v1/applications/:appId/rotate
func (h *ApplicationHandler) RotateAppID(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	app, err := h.apps.RotateAppID(c.Request.Context(), p, c.Param("appId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, app)
}

// ListAccess GET /api/v1/applications/:appId/access
func (h *ApplicationHandler) ListAccess(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	items, err := h.apps.ListAccess(c.Request.Context(), p, c.Param("appId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"items": items})
}

// GrantAccess POST /api/v1/applications/:appId/access
func (h *ApplicationHandler) GrantAccess(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var input entities.GrantAccessInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}
	access, err := h.apps.GrantAccess(c.Request.Context(), p, c.Param("appId"), input.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, access)
}

// RevokeAccess DELETE /api/v1/applications/:appId/access/:userId
func (h *ApplicationHandler) RevokeAccess(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	userID, ok := uuidParam(c, "userId")
	if !ok {
		return
	}
	if err := h.apps.RevokeAccess(c.Request.Context(), p, c.Param("appId"), userID); err != nil {
		response.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
