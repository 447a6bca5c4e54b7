package handler

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/harborview/dms-storage-api/internal/dto"
	"github.com/harborview/dms-storage-api/internal/models"
	"github.com/harborview/dms-storage-api/internal/service"
	"github.com/harborview/dms-storage-api/internal/tier"
	appErrors "github.com/harborview/dms-storage-api/pkg/errors"
	"github.com/harborview/dms-storage-api/pkg/response"
	"github.com/harborview/dms-storage-api/pkg/storage"
)

type orchestrator interface {
	Upload(ctx context.Context, localPath, originalFilename, mimeType string, req dto.UploadFileRequest, claims *models.JWTClaims) (*service.UploadOutcome, error)
	Replace(ctx context.Context, fileID, localPath string, note *string, claims *models.JWTClaims) (*models.Version, error)
	ServeURL(ctx context.Context, fileID string, versionNumber int, claims *models.JWTClaims, opts tier.URLOptions) (*service.ServeResult, error)
	Fetch(ctx context.Context, fileID string, claims *models.JWTClaims) (string, error)
	Get(ctx context.Context, fileID string, claims *models.JWTClaims) (*models.File, []models.Location, error)
	SetVisibility(ctx context.Context, fileID string, isPublic bool, claims *models.JWTClaims) error
	Delete(ctx context.Context, fileID string, hard bool, claims *models.JWTClaims) error
}

// StorageHandler exposes the file upload, serving and deletion endpoints.
type StorageHandler struct {
	service  orchestrator
	signer   *storage.SignedURLSigner
	resolver map[string]*tier.LocalAdapter
}

// NewStorageHandler builds a new handler. The resolver maps local tier
// names to their adapters for token-based downloads.
func NewStorageHandler(service orchestrator, signer *storage.SignedURLSigner, resolver map[string]*tier.LocalAdapter) *StorageHandler {
	return &StorageHandler{service: service, signer: signer, resolver: resolver}
}

// Upload godoc
// @Summary Upload a file into the tiered store
// @Tags Files
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "File content"
// @Success 201 {object} response.Envelope
// @Router /files [post]
func (h *StorageHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "missing file part"))
		return
	}
	var req dto.UploadFileRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid upload form"))
		return
	}

	staged, cleanup, err := h.stage(c, fileHeader.Filename)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer cleanup()

	outcome, err := h.service.Upload(c.Request.Context(), staged, fileHeader.Filename, fileHeader.Header.Get("Content-Type"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, outcome)
}

// Replace godoc
// @Summary Replace a file's content, creating a new version
// @Tags Files
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "File ID"
// @Success 201 {object} response.Envelope
// @Router /files/{id}/content [post]
func (h *StorageHandler) Replace(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "missing file part"))
		return
	}
	var req dto.CreateVersionRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid replace form"))
		return
	}

	staged, cleanup, err := h.stage(c, fileHeader.Filename)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer cleanup()

	version, err := h.service.Replace(c.Request.Context(), c.Param("id"), staged, req.Note, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, version)
}

// Get godoc
// @Summary Get file metadata and tier placements
// @Tags Files
// @Produce json
// @Param id path string true "File ID"
// @Success 200 {object} response.Envelope
// @Router /files/{id} [get]
func (h *StorageHandler) Get(c *gin.Context) {
	file, locations, err := h.service.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"file": file, "locations": locations}, nil)
}

// ServeURL godoc
// @Summary Resolve the best serving URL for a file
// @Tags Files
// @Produce json
// @Param id path string true "File ID"
// @Param download query bool false "Force attachment disposition"
// @Param expires query int false "URL lifetime in seconds"
// @Param version query int false "Version number, defaults to current"
// @Success 200 {object} response.Envelope
// @Router /files/{id}/url [get]
func (h *StorageHandler) ServeURL(c *gin.Context) {
	opts := tier.URLOptions{}
	if raw := c.Query("expires"); raw != "" {
		if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
			opts.Expires = time.Duration(secs) * time.Second
		}
	}
	opts.Download = c.Query("download") == "true"
	versionNumber := 0
	if raw := c.Query("version"); raw != "" {
		number, err := strconv.Atoi(raw)
		if err != nil || number < 1 {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "version must be a positive number"))
			return
		}
		versionNumber = number
	}

	result, err := h.service.ServeURL(c.Request.Context(), c.Param("id"), versionNumber, claimsFromContext(c), opts)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Download godoc
// @Summary Stream a file's current content
// @Tags Files
// @Produce octet-stream
// @Param id path string true "File ID"
// @Success 200 {file} binary
// @Router /files/{id}/download [get]
func (h *StorageHandler) Download(c *gin.Context) {
	local, err := h.service.Fetch(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.FileAttachment(local, filepath.Base(local))
}

// DownloadToken serves locally stored content referenced by a signed
// token. The token itself is the authorization; no JWT is required.
func (h *StorageHandler) DownloadToken(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "missing token"))
		return
	}
	tierName, relPath, _, err := h.signer.Parse(token)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, http.StatusUnauthorized, "invalid download token"))
		return
	}
	adapter, ok := h.resolver[tierName]
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "unknown storage tier"))
		return
	}
	local := adapter.Resolve(relPath)
	if _, err := os.Stat(local); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "content not found"))
		return
	}
	c.FileAttachment(local, filepath.Base(local))
}

// SetVisibility godoc
// @Summary Toggle a file's public flag
// @Tags Files
// @Accept json
// @Produce json
// @Param id path string true "File ID"
// @Param payload body dto.SetVisibilityRequest true "Visibility payload"
// @Success 200 {object} response.Envelope
// @Router /files/{id}/visibility [patch]
func (h *StorageHandler) SetVisibility(c *gin.Context) {
	var req dto.SetVisibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid visibility payload"))
		return
	}
	if err := h.service.SetVisibility(c.Request.Context(), c.Param("id"), req.IsPublic, claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"is_public": req.IsPublic}, nil)
}

// Delete godoc
// @Summary Delete a file (soft by default, hard with ?hard=true)
// @Tags Files
// @Produce json
// @Param id path string true "File ID"
// @Param hard query bool false "Remove every tier copy and all records"
// @Success 204
// @Router /files/{id} [delete]
func (h *StorageHandler) Delete(c *gin.Context) {
	hard := c.Query("hard") == "true"
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), hard, claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// stage saves the multipart upload to a temp file the services can hash
// and place. The returned cleanup removes the staging directory.
func (h *StorageHandler) stage(c *gin.Context, filename string) (string, func(), error) {
	dir, err := os.MkdirTemp("", "upload-")
	if err != nil {
		return "", nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to stage upload")
	}
	staged := filepath.Join(dir, filepath.Base(filename))
	fileHeader, err := c.FormFile("file")
	if err != nil {
		_ = os.RemoveAll(dir)
		return "", nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "missing file part")
	}
	if err := c.SaveUploadedFile(fileHeader, staged); err != nil {
		_ = os.RemoveAll(dir)
		return "", nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to stage upload")
	}
	return staged, func() { _ = os.RemoveAll(dir) }, nil
}
