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

type workspaceService interface {
	Create(ctx context.Context, req dto.CreateWorkspaceRequest) (*models.Workspace, error)
	GrantAccess(ctx context.Context, req dto.GrantWorkspaceAccessRequest, actor *models.JWTClaims) error
	HasAccess(ctx context.Context, workspaceID, userID string) (string, bool, error)
	AncestorChain(ctx context.Context, workspaceID string) ([]string, error)
}

// WorkspaceHandler exposes the hierarchical access scope endpoints.
type WorkspaceHandler struct {
	service workspaceService
}

// NewWorkspaceHandler builds a new handler.
func NewWorkspaceHandler(service workspaceService) *WorkspaceHandler {
	return &WorkspaceHandler{service: service}
}

// Create godoc
// @Summary Create a workspace
// @Tags Workspaces
// @Accept json
// @Produce json
// @Param payload body dto.CreateWorkspaceRequest true "Workspace payload"
// @Success 201 {object} response.Envelope
// @Router /workspaces [post]
func (h *WorkspaceHandler) Create(c *gin.Context) {
	var req dto.CreateWorkspaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid workspace payload"))
		return
	}
	workspace, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, workspace)
}

// GrantAccess godoc
// @Summary Add a member to a workspace
// @Tags Workspaces
// @Accept json
// @Produce json
// @Param id path string true "Workspace ID"
// @Param payload body dto.GrantWorkspaceAccessRequest true "Membership payload"
// @Success 200 {object} response.Envelope
// @Router /workspaces/{id}/members [post]
func (h *WorkspaceHandler) GrantAccess(c *gin.Context) {
	var req dto.GrantWorkspaceAccessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid membership payload"))
		return
	}
	if req.WorkspaceID == "" {
		req.WorkspaceID = c.Param("id")
	}
	if req.WorkspaceID != c.Param("id") {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "workspace mismatch between path and body"))
		return
	}
	if err := h.service.GrantAccess(c.Request.Context(), req, claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"user_id": req.UserID}, nil)
}

// Access godoc
// @Summary Resolve a user's effective role in a workspace
// @Tags Workspaces
// @Produce json
// @Param id path string true "Workspace ID"
// @Param userId query string false "User ID, defaults to the caller"
// @Success 200 {object} response.Envelope
// @Router /workspaces/{id}/access [get]
func (h *WorkspaceHandler) Access(c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		if claims := claimsFromContext(c); claims != nil {
			userID = claims.UserID
		}
	}
	if userID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "userId required"))
		return
	}
	role, ok, err := h.service.HasAccess(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"user_id": userID, "has_access": ok, "role": role}, nil)
}

// Ancestors godoc
// @Summary Walk a workspace's parent chain
// @Tags Workspaces
// @Produce json
// @Param id path string true "Workspace ID"
// @Success 200 {object} response.Envelope
// @Router /workspaces/{id}/ancestors [get]
func (h *WorkspaceHandler) Ancestors(c *gin.Context) {
	chain, err := h.service.AncestorChain(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"ancestors": chain}, nil)
}
