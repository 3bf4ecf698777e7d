package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/andresuchdata/autopo-replenish/internal/service"
	"github.com/gin-gonic/gin"
)

type CoverageHandler struct {
	svc *service.ReplenishmentService
}

func NewCoverageHandler(svc *service.ReplenishmentService) *CoverageHandler {
	return &CoverageHandler{svc: svc}
}

// GetCoverage forecasts one SKU. ?use_cache=false forces a recomputation.
func (h *CoverageHandler) GetCoverage(c *gin.Context) {
	sku := strings.TrimSpace(c.Param("sku"))
	useCache := true
	if raw := c.Query("use_cache"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			badRequest(c, "use_cache must be a boolean")
			return
		}
		useCache = v
	}

	result, err := h.svc.CalculateCoverage(c.Request.Context(), sku, useCache)
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetLatest returns the last persisted result without recomputing
func (h *CoverageHandler) GetLatest(c *gin.Context) {
	result, err := h.svc.LatestCoverage(c.Request.Context(), strings.TrimSpace(c.Param("sku")))
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"result": result,
		"stale":  result.IsStale(time.Now()),
	})
}

// InvalidateCache drops one SKU with ?sku=, otherwise the whole cache
func (h *CoverageHandler) InvalidateCache(c *gin.Context) {
	n, err := h.svc.InvalidateCache(c.Request.Context(), strings.TrimSpace(c.Query("sku")))
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invalidated": n})
}
