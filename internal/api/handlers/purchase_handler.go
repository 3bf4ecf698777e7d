package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/andresuchdata/autopo-replenish/internal/domain"
	"github.com/andresuchdata/autopo-replenish/internal/service"
	"github.com/gin-gonic/gin"
)

type PurchaseHandler struct {
	svc *service.ReplenishmentService
}

func NewPurchaseHandler(svc *service.ReplenishmentService) *PurchaseHandler {
	return &PurchaseHandler{svc: svc}
}

// decodeOver decodes the request body over dst, so omitted fields keep the
// values already in dst. An empty body is not an error.
func decodeOver(c *gin.Context, dst any) error {
	err := json.NewDecoder(c.Request.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// batchRequest is the body of the batch endpoint. TimeoutSeconds overrides config.timeout.
type batchRequest struct {
	Filters        domain.ProductFilter             `json:"filters"`
	Config         domain.PurchaseRequirementConfig `json:"config"`
	TimeoutSeconds int                              `json:"timeout_seconds"`
}

func (r batchRequest) resolved() domain.PurchaseRequirementConfig {
	cfg := r.Config
	if r.TimeoutSeconds > 0 {
		cfg.Timeout = time.Duration(r.TimeoutSeconds) * time.Second
	}
	return cfg
}

// GetRequirement computes the recommendation for one SKU. The body is an
// optional partial config applied over the server defaults.
func (h *PurchaseHandler) GetRequirement(c *gin.Context) {
	cfg := h.svc.Defaults()
	if err := decodeOver(c, &cfg); err != nil {
		badRequest(c, "invalid config: "+err.Error())
		return
	}

	result, err := h.svc.CalculatePurchaseRequirement(c.Request.Context(), strings.TrimSpace(c.Param("sku")), cfg)
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *PurchaseHandler) RunBatch(c *gin.Context) {
	req := batchRequest{Config: h.svc.Defaults()}
	if err := decodeOver(c, &req); err != nil {
		badRequest(c, "invalid batch request: "+err.Error())
		return
	}

	batch, err := h.svc.CalculateBatch(c.Request.Context(), req.Filters, req.resolved())
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, batch)
}

// RunScenarios evaluates named what-if configs. Each scenario config starts
// from the server defaults.
func (h *PurchaseHandler) RunScenarios(c *gin.Context) {
	var req struct {
		Scenarios []json.RawMessage `json:"scenarios"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid scenarios request: "+err.Error())
		return
	}
	if len(req.Scenarios) == 0 {
		badRequest(c, "at least one scenario is required")
		return
	}

	scenarios := make([]domain.Scenario, 0, len(req.Scenarios))
	for i, raw := range req.Scenarios {
		sc := domain.Scenario{Config: h.svc.Defaults()}
		if err := json.Unmarshal(raw, &sc); err != nil {
			badRequest(c, fmt.Sprintf("scenario %d is malformed: %v", i, err))
			return
		}
		scenarios = append(scenarios, sc)
	}

	results, err := h.svc.SimulateScenarios(c.Request.Context(), scenarios)
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}
