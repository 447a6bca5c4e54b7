package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/harborview/dms-storage-api/internal/dto"
	"github.com/harborview/dms-storage-api/internal/models"
	appErrors "github.com/harborview/dms-storage-api/pkg/errors"
	"github.com/harborview/dms-storage-api/pkg/response"
)

type queueService interface {
	Enqueue(ctx context.Context, req dto.EnqueueSyncRequest) (*models.SyncQueueItem, error)
	Get(ctx context.Context, id string) (*models.SyncQueueItem, error)
	Drain(ctx context.Context, batchSize int) (int, error)
	Stats(ctx context.Context) (*models.QueueStats, error)
	Clean(ctx context.Context, olderThan time.Duration) (int64, error)
}

// QueueHandler exposes the sync queue endpoints.
type QueueHandler struct {
	service queueService
}

// NewQueueHandler builds a new handler.
func NewQueueHandler(service queueService) *QueueHandler {
	return &QueueHandler{service: service}
}

// Enqueue godoc
// @Summary Schedule a tier migration
// @Tags Queue
// @Accept json
// @Produce json
// @Param payload body dto.EnqueueSyncRequest true "Queue payload"
// @Success 201 {object} response.Envelope
// @Router /queue [post]
func (h *QueueHandler) Enqueue(c *gin.Context) {
	var req dto.EnqueueSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid queue payload"))
		return
	}
	item, err := h.service.Enqueue(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// Get godoc
// @Summary Fetch one queue item
// @Tags Queue
// @Produce json
// @Param id path string true "Queue item ID"
// @Success 200 {object} response.Envelope
// @Router /queue/{id} [get]
func (h *QueueHandler) Get(c *gin.Context) {
	item, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Drain godoc
// @Summary Drain due queue items immediately
// @Tags Queue
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /queue/drain [post]
func (h *QueueHandler) Drain(c *gin.Context) {
	completed, err := h.service.Drain(c.Request.Context(), 0)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"completed": completed}, nil)
}

// Stats godoc
// @Summary Report queue depth per status
// @Tags Queue
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /queue/stats [get]
func (h *QueueHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Clean godoc
// @Summary Purge old terminal queue items
// @Tags Queue
// @Produce json
// @Param days query int false "Age threshold in days, default 30"
// @Success 200 {object} response.Envelope
// @Router /queue/clean [post]
func (h *QueueHandler) Clean(c *gin.Context) {
	days := 30
	if raw := c.Query("days"); raw != "" {
		if parsed, err := time.ParseDuration(raw + "h"); err == nil {
			days = int(parsed.Hours())
		}
	}
	removed, err := h.service.Clean(c.Request.Context(), time.Duration(days)*24*time.Hour)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"removed": removed}, nil)
}
