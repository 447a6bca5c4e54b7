package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harborview/dms-storage-api/internal/dto"
	"github.com/harborview/dms-storage-api/internal/models"
	appErrors "github.com/harborview/dms-storage-api/pkg/errors"
	"github.com/harborview/dms-storage-api/pkg/response"
)

type protectionService interface {
	Protect(ctx context.Context, fileID string, level models.ProtectionLevel, overrideCap string, actor *models.JWTClaims, reason string) error
	Unprotect(ctx context.Context, fileID string, actor *models.JWTClaims, reason string) error
	RecordOverride(ctx context.Context, fileID string, actor *models.JWTClaims, reason string) error
	ApplyStatusRule(ctx context.Context, fileID, statusValue string, actor *models.JWTClaims) error
	History(ctx context.Context, fileID string, claims *models.JWTClaims) ([]models.ProtectionLogEntry, error)
}

// ProtectionHandler exposes the document protection endpoints.
type ProtectionHandler struct {
	service protectionService
}

// NewProtectionHandler builds a new handler.
func NewProtectionHandler(service protectionService) *ProtectionHandler {
	return &ProtectionHandler{service: service}
}

// Protect godoc
// @Summary Apply a protection level to a file
// @Tags Protection
// @Accept json
// @Produce json
// @Param id path string true "File ID"
// @Param payload body dto.ProtectFileRequest true "Protection payload"
// @Success 200 {object} response.Envelope
// @Router /files/{id}/protection [put]
func (h *ProtectionHandler) Protect(c *gin.Context) {
	var req dto.ProtectFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid protection payload"))
		return
	}
	level := models.ProtectionLevel(req.Level)
	if err := h.service.Protect(c.Request.Context(), c.Param("id"), level, req.OverrideCapability, claimsFromContext(c), req.Reason); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"level": level}, nil)
}

// Unprotect godoc
// @Summary Clear a file's protection
// @Tags Protection
// @Accept json
// @Produce json
// @Param id path string true "File ID"
// @Param payload body dto.UnprotectFileRequest true "Unprotect payload"
// @Success 200 {object} response.Envelope
// @Router /files/{id}/protection [delete]
func (h *ProtectionHandler) Unprotect(c *gin.Context) {
	var req dto.UnprotectFileRequest
	_ = c.ShouldBindJSON(&req)
	if err := h.service.Unprotect(c.Request.Context(), c.Param("id"), claimsFromContext(c), req.Reason); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"level": models.ProtectionNone}, nil)
}

// Override godoc
// @Summary Record an override of a file's protection
// @Tags Protection
// @Accept json
// @Produce json
// @Param id path string true "File ID"
// @Param payload body dto.UnprotectFileRequest true "Override payload"
// @Success 200 {object} response.Envelope
// @Router /files/{id}/protection/override [post]
func (h *ProtectionHandler) Override(c *gin.Context) {
	var req dto.UnprotectFileRequest
	_ = c.ShouldBindJSON(&req)
	if err := h.service.RecordOverride(c.Request.Context(), c.Param("id"), claimsFromContext(c), req.Reason); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"overridden": true}, nil)
}

// ApplyStatus godoc
// @Summary Report an external status change to trigger protection rules
// @Tags Protection
// @Accept json
// @Produce json
// @Param id path string true "File ID"
// @Param payload body dto.ApplyStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Router /files/{id}/protection/status [post]
func (h *ProtectionHandler) ApplyStatus(c *gin.Context) {
	var req dto.ApplyStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}
	if err := h.service.ApplyStatusRule(c.Request.Context(), c.Param("id"), req.Status, claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"status": req.Status}, nil)
}

// History godoc
// @Summary List a file's protection audit trail
// @Tags Protection
// @Produce json
// @Param id path string true "File ID"
// @Success 200 {object} response.Envelope
// @Router /files/{id}/protection/history [get]
func (h *ProtectionHandler) History(c *gin.Context) {
	entries, err := h.service.History(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}
