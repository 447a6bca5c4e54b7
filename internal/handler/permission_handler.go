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

type permissionService interface {
	CanAccess(ctx context.Context, fileID string, claims *models.JWTClaims, bit models.PermissionBit) (bool, error)
	SetOwner(ctx context.Context, fileID, userID string, req dto.PermissionBitsRequest, claims *models.JWTClaims) error
	GrantGroup(ctx context.Context, fileID, workspaceID string, req dto.PermissionBitsRequest, inherit bool, claims *models.JWTClaims) error
	SetWorld(ctx context.Context, fileID string, req dto.PermissionBitsRequest, claims *models.JWTClaims) error
	ListByFile(ctx context.Context, fileID string) ([]models.PermissionEntry, error)
}

// PermissionHandler exposes the rwx permission endpoints.
type PermissionHandler struct {
	service permissionService
}

// NewPermissionHandler builds a new handler.
func NewPermissionHandler(service permissionService) *PermissionHandler {
	return &PermissionHandler{service: service}
}

// List godoc
// @Summary List a file's permission entries
// @Tags Permissions
// @Produce json
// @Param id path string true "File ID"
// @Success 200 {object} response.Envelope
// @Router /files/{id}/permissions [get]
func (h *PermissionHandler) List(c *gin.Context) {
	entries, err := h.service.ListByFile(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Check godoc
// @Summary Check the caller's effective access on a file
// @Tags Permissions
// @Produce json
// @Param id path string true "File ID"
// @Param bit query string true "Permission bit" Enums(read, write, execute)
// @Success 200 {object} response.Envelope
// @Router /files/{id}/permissions/check [get]
func (h *PermissionHandler) Check(c *gin.Context) {
	bit := models.PermissionBit(c.Query("bit"))
	allowed, err := h.service.CanAccess(c.Request.Context(), c.Param("id"), claimsFromContext(c), bit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"bit": bit, "allowed": allowed}, nil)
}

// SetOwner godoc
// @Summary Set the file's owner permission entry
// @Tags Permissions
// @Accept json
// @Produce json
// @Param id path string true "File ID"
// @Param payload body dto.SetOwnerPermissionRequest true "Owner payload"
// @Success 200 {object} response.Envelope
// @Router /files/{id}/permissions/owner [put]
func (h *PermissionHandler) SetOwner(c *gin.Context) {
	var req dto.SetOwnerPermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid owner payload"))
		return
	}
	if err := h.service.SetOwner(c.Request.Context(), c.Param("id"), req.UserID, req.PermissionBitsRequest, claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"user_id": req.UserID}, nil)
}

// GrantGroup godoc
// @Summary Grant rwx bits to a workspace group
// @Tags Permissions
// @Accept json
// @Produce json
// @Param id path string true "File ID"
// @Param payload body dto.GrantGroupPermissionRequest true "Group payload"
// @Success 200 {object} response.Envelope
// @Router /files/{id}/permissions/groups [post]
func (h *PermissionHandler) GrantGroup(c *gin.Context) {
	var req dto.GrantGroupPermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid group payload"))
		return
	}
	if err := h.service.GrantGroup(c.Request.Context(), c.Param("id"), req.WorkspaceID, req.PermissionBitsRequest, req.InheritToChildren, claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"workspace_id": req.WorkspaceID}, nil)
}

// SetWorld godoc
// @Summary Set the file's world permission entry
// @Tags Permissions
// @Accept json
// @Produce json
// @Param id path string true "File ID"
// @Param payload body dto.PermissionBitsRequest true "World payload"
// @Success 200 {object} response.Envelope
// @Router /files/{id}/permissions/world [put]
func (h *PermissionHandler) SetWorld(c *gin.Context) {
	var req dto.PermissionBitsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid world payload"))
		return
	}
	if err := h.service.SetWorld(c.Request.Context(), c.Param("id"), req, claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"updated": true}, nil)
}
