package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/recetario/backend/internal/cache"
	"github.com/recetario/backend/internal/service"
)

// renderer negotiates the response format and caches pre-serialized JSON
// bodies under the rendered variant of the entity or list key, mirroring the
// raw/rendered split in the cache layer.
type renderer struct {
	cache cache.Cache
}

// respond writes value as JSON or XML per the Accept header.
func (r renderer) respond(c *gin.Context, status int, value any) {
	switch c.NegotiateFormat(gin.MIMEJSON, gin.MIMEXML) {
	case gin.MIMEXML:
		c.XML(status, value)
	default:
		c.JSON(status, value)
	}
}

// respondCached is respond plus a rendered-body cache for JSON. XML bodies
// are rendered per request and not cached.
func (r renderer) respondCached(c *gin.Context, status int, key cache.Key, ttl time.Duration, value any) {
	if c.NegotiateFormat(gin.MIMEJSON, gin.MIMEXML) == gin.MIMEXML {
		c.XML(status, value)
		return
	}
	rendered := key.Rendered()
	ctx := c.Request.Context()
	var body json.RawMessage
	if err := r.cache.Get(ctx, rendered, &body); err == nil {
		c.Data(status, "application/json; charset=utf-8", body)
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to encode response"})
		return
	}
	_ = r.cache.Set(ctx, rendered, json.RawMessage(data), ttl)
	c.Data(status, "application/json; charset=utf-8", data)
}

// respondError maps the service error taxonomy to HTTP statuses.
func respondError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrForbidden):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrAdminFloor):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, service.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
