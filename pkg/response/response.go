package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harborview/dms-storage-api/internal/models"
	appErrors "github.com/harborview/dms-storage-api/pkg/errors"
	"github.com/harborview/dms-storage-api/pkg/middleware/requestid"
)

// Envelope is the common response contract. Every JSON body, success or
// error, uses this shape so clients can parse uniformly.
type Envelope struct {
	Data       interface{}            `json:"data,omitempty"`
	Error      *appErrors.Error       `json:"error,omitempty"`
	Pagination *models.Pagination     `json:"pagination,omitempty"`
	Meta       map[string]interface{} `json:"meta,omitempty"`
}

// JSON sends a success response with optional pagination metadata.
func JSON(c *gin.Context, status int, data interface{}, pagination *models.Pagination, meta ...map[string]interface{}) {
	envelope := Envelope{Data: data, Pagination: pagination}
	if len(meta) > 0 && meta[0] != nil {
		envelope.Meta = meta[0]
	}
	write(c, status, envelope)
}

// Created responds with HTTP 201 Created.
func Created(c *gin.Context, data interface{}) {
	JSON(c, http.StatusCreated, data, nil)
}

// Error maps any error onto the envelope, using the structured status when
// the error carries one and 500 otherwise.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	write(c, appErr.Status, Envelope{Error: appErr})
}

// NoContent sends a 204 response.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// write stamps the envelope with the request id and disables intermediary
// caching. Serving URLs expire, so a cached API body can go stale before
// its HTTP cache entry would.
func write(c *gin.Context, status int, envelope Envelope) {
	if reqID := requestid.Value(c); reqID != "" {
		if envelope.Meta == nil {
			envelope.Meta = map[string]interface{}{}
		}
		envelope.Meta["request_id"] = reqID
	}
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	c.JSON(status, envelope)
}
