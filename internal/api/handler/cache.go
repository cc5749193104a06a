package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/servicehub/marketplace-client/internal/core/ports"
)

type CacheHandler struct {
	cache ports.CacheInvalidator
}

func NewCacheHandler(cache ports.CacheInvalidator) *CacheHandler {
	return &CacheHandler{cache: cache}
}

type invalidateRequest struct {
	Pattern string `json:"pattern" validate:"required,max=200"`
}

type invalidateResponse struct {
	Pattern string `json:"pattern"`
	Removed int    `json:"removed"`
}

// Invalidate drops cached responses whose key matches pattern.
//
// @Summary      Invalidate cached responses
// @Tags         cache
// @Accept       json
// @Produce      json
// @Param        body  body      invalidateRequest  true  "Glob pattern, e.g. /services*"
// @Success      200   {object}  invalidateResponse
// @Failure      400   {object}  map[string]string
// @Failure      422   {object}  map[string]string
// @Router       /v1/cache/invalidate [post]
func (h *CacheHandler) Invalidate(c echo.Context) error {
	var req invalidateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	n, err := h.cache.InvalidatePattern(c.Request().Context(), req.Pattern)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, invalidateResponse{Pattern: req.Pattern, Removed: n})
}
