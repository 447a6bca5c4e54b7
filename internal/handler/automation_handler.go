package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/harborview/dms-storage-api/internal/dto"
	"github.com/harborview/dms-storage-api/internal/models"
	appErrors "github.com/harborview/dms-storage-api/pkg/errors"
	"github.com/harborview/dms-storage-api/pkg/response"
)

type automationService interface {
	ActivePreset() models.Preset
	Presets() []models.Preset
	SetActivePreset(req dto.SetPresetRequest) error
	SetCustomRules(req dto.CustomPresetRequest) error
	Run(ctx context.Context) (int, error)
	MoveFile(ctx context.Context, fileID string, req dto.MoveFileRequest) error
	Log(ctx context.Context, limit int) ([]models.AutomationLogEntry, error)
}

// AutomationHandler exposes the tier automation endpoints.
type AutomationHandler struct {
	service automationService
}

// NewAutomationHandler builds a new handler.
func NewAutomationHandler(service automationService) *AutomationHandler {
	return &AutomationHandler{service: service}
}

// Presets godoc
// @Summary List the available automation presets
// @Tags Automation
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /automation/presets [get]
func (h *AutomationHandler) Presets(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.service.Presets(), nil)
}

// ActivePreset godoc
// @Summary Show the active automation preset
// @Tags Automation
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /automation/preset [get]
func (h *AutomationHandler) ActivePreset(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.service.ActivePreset(), nil)
}

// SetActivePreset godoc
// @Summary Switch the active automation preset
// @Tags Automation
// @Accept json
// @Produce json
// @Param payload body dto.SetPresetRequest true "Preset payload"
// @Success 200 {object} response.Envelope
// @Router /automation/preset [put]
func (h *AutomationHandler) SetActivePreset(c *gin.Context) {
	var req dto.SetPresetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid preset payload"))
		return
	}
	if err := h.service.SetActivePreset(req); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, h.service.ActivePreset(), nil)
}

// SetCustomRules godoc
// @Summary Replace the custom preset's rules
// @Tags Automation
// @Accept json
// @Produce json
// @Param payload body dto.CustomPresetRequest true "Rules payload"
// @Success 200 {object} response.Envelope
// @Router /automation/preset/custom [put]
func (h *AutomationHandler) SetCustomRules(c *gin.Context) {
	var req dto.CustomPresetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid rules payload"))
		return
	}
	if err := h.service.SetCustomRules(req); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"rules": len(req.Rules)}, nil)
}

// Run godoc
// @Summary Run an automation scan immediately
// @Tags Automation
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /automation/run [post]
func (h *AutomationHandler) Run(c *gin.Context) {
	moved, err := h.service.Run(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"moved": moved}, nil)
}

// MoveFile godoc
// @Summary Move a file to a different tier
// @Tags Automation
// @Accept json
// @Produce json
// @Param id path string true "File ID"
// @Param payload body dto.MoveFileRequest true "Move payload"
// @Success 200 {object} response.Envelope
// @Router /files/{id}/move [post]
func (h *AutomationHandler) MoveFile(c *gin.Context) {
	var req dto.MoveFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid move payload"))
		return
	}
	if err := h.service.MoveFile(c.Request.Context(), c.Param("id"), req); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"to_tier": req.ToTier}, nil)
}

// Log godoc
// @Summary List recent automation moves
// @Tags Automation
// @Produce json
// @Param limit query int false "Maximum entries, default 100"
// @Success 200 {object} response.Envelope
// @Router /automation/log [get]
func (h *AutomationHandler) Log(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	entries, err := h.service.Log(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}
