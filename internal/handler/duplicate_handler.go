package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harborview/dms-storage-api/internal/dto"
	"github.com/harborview/dms-storage-api/internal/service"
	appErrors "github.com/harborview/dms-storage-api/pkg/errors"
	"github.com/harborview/dms-storage-api/pkg/response"
)

type duplicateService interface {
	FindAllGroups(ctx context.Context) ([]service.DuplicateGroup, error)
	Merge(ctx context.Context, checksumMD5 string, strategy service.MergeStrategy) (*service.MergeResult, error)
}

// DuplicateHandler exposes checksum duplicate endpoints.
type DuplicateHandler struct {
	service duplicateService
}

// NewDuplicateHandler builds a new handler.
func NewDuplicateHandler(service duplicateService) *DuplicateHandler {
	return &DuplicateHandler{service: service}
}

// Groups godoc
// @Summary List groups of files sharing identical content
// @Tags Duplicates
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /duplicates [get]
func (h *DuplicateHandler) Groups(c *gin.Context) {
	groups, err := h.service.FindAllGroups(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, groups, nil)
}

// Merge godoc
// @Summary Collapse a duplicate group down to one survivor
// @Tags Duplicates
// @Accept json
// @Produce json
// @Param payload body dto.MergeDuplicatesRequest true "Merge payload"
// @Success 200 {object} response.Envelope
// @Router /duplicates/merge [post]
func (h *DuplicateHandler) Merge(c *gin.Context) {
	var req dto.MergeDuplicatesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid merge payload"))
		return
	}
	result, err := h.service.Merge(c.Request.Context(), req.ChecksumMD5, service.MergeStrategy(req.Keep))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
