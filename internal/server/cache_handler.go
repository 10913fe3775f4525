package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"channel_pulse/internal/gateway"
)

// CacheHandler exposes the gateway response cache for inspection and
// manual invalidation.
type CacheHandler struct {
	cache *gateway.Cache
}

func NewCacheHandler(cache *gateway.Cache) *CacheHandler {
	return &CacheHandler{cache: cache}
}

func (h *CacheHandler) Register(e *echo.Echo) {
	e.GET("/cache/stats", h.stats)
	e.POST("/cache/clear", h.clear)
}

func (h *CacheHandler) stats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.cache.Stats())
}

func (h *CacheHandler) clear(c echo.Context) error {
	h.cache.Flush()
	return c.NoContent(http.StatusNoContent)
}
