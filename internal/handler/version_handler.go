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

type versionService interface {
	List(ctx context.Context, fileID string, claims *models.JWTClaims) ([]models.Version, error)
	Revert(ctx context.Context, fileID string, number int, note *string, actor *models.JWTClaims) (*models.Version, error)
	Prune(ctx context.Context, fileID string, keep int, claims *models.JWTClaims) ([]int, error)
	Compare(ctx context.Context, fileID string, numberA, numberB int, claims *models.JWTClaims) (*models.VersionComparison, error)
	Summary(ctx context.Context, fileID string, claims *models.JWTClaims) (*models.VersionHistorySummary, error)
}

// VersionHandler exposes version history endpoints.
type VersionHandler struct {
	service versionService
}

// NewVersionHandler builds a new handler.
func NewVersionHandler(service versionService) *VersionHandler {
	return &VersionHandler{service: service}
}

// List godoc
// @Summary List a file's versions
// @Tags Versions
// @Produce json
// @Param id path string true "File ID"
// @Success 200 {object} response.Envelope
// @Router /files/{id}/versions [get]
func (h *VersionHandler) List(c *gin.Context) {
	versions, err := h.service.List(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, versions, nil)
}

// Revert godoc
// @Summary Make a historical version current again
// @Tags Versions
// @Accept json
// @Produce json
// @Param id path string true "File ID"
// @Param payload body dto.RevertVersionRequest true "Revert payload"
// @Success 201 {object} response.Envelope
// @Router /files/{id}/versions/revert [post]
func (h *VersionHandler) Revert(c *gin.Context) {
	var req dto.RevertVersionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid revert payload"))
		return
	}
	version, err := h.service.Revert(c.Request.Context(), c.Param("id"), req.Number, req.Note, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, version)
}

// Prune godoc
// @Summary Remove old versions beyond a retention count
// @Tags Versions
// @Accept json
// @Produce json
// @Param id path string true "File ID"
// @Param payload body dto.PruneVersionsRequest true "Prune payload"
// @Success 200 {object} response.Envelope
// @Router /files/{id}/versions/prune [post]
func (h *VersionHandler) Prune(c *gin.Context) {
	var req dto.PruneVersionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid prune payload"))
		return
	}
	pruned, err := h.service.Prune(c.Request.Context(), c.Param("id"), req.Keep, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"pruned_numbers": pruned}, nil)
}

// Compare godoc
// @Summary Diff two versions of a file
// @Tags Versions
// @Produce json
// @Param id path string true "File ID"
// @Param a query int true "First version number"
// @Param b query int true "Second version number"
// @Success 200 {object} response.Envelope
// @Router /files/{id}/versions/compare [get]
func (h *VersionHandler) Compare(c *gin.Context) {
	numberA, errA := strconv.Atoi(c.Query("a"))
	numberB, errB := strconv.Atoi(c.Query("b"))
	if errA != nil || errB != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "query parameters a and b must be version numbers"))
		return
	}
	comparison, err := h.service.Compare(c.Request.Context(), c.Param("id"), numberA, numberB, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, comparison, nil)
}

// Summary godoc
// @Summary Aggregate a file's version history
// @Tags Versions
// @Produce json
// @Param id path string true "File ID"
// @Success 200 {object} response.Envelope
// @Router /files/{id}/versions/summary [get]
func (h *VersionHandler) Summary(c *gin.Context) {
	summary, err := h.service.Summary(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
