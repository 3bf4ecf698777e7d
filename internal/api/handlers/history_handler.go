package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/andresuchdata/autopo-replenish/internal/domain"
	"github.com/andresuchdata/autopo-replenish/internal/service"
	"github.com/gin-gonic/gin"
)

type HistoryHandler struct {
	svc *service.ReplenishmentService
}

func NewHistoryHandler(svc *service.ReplenishmentService) *HistoryHandler {
	return &HistoryHandler{svc: svc}
}

type salesEntry struct {
	Date          string  `json:"date" binding:"required"`
	UnitsSold     float64 `json:"units_sold"`
	Price         float64 `json:"price"`
	Revenue       float64 `json:"revenue"`
	PromotionFlag bool    `json:"promotion_flag"`
}

type availabilityEntry struct {
	Date                string  `json:"date" binding:"required"`
	AvailabilityMinutes float64 `json:"availability_minutes"`
	StockoutEvents      int     `json:"stockout_events"`
}

// parseDay accepts 2006-01-02 or RFC3339
func parseDay(v string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, v); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q must be YYYY-MM-DD or RFC3339", v)
	}
	return t, nil
}

// RecordSales stores sales days for the SKU in the path and drops its cached coverage
func (h *HistoryHandler) RecordSales(c *gin.Context) {
	sku := strings.TrimSpace(c.Param("sku"))
	var entries []salesEntry
	if err := c.ShouldBindJSON(&entries); err != nil {
		badRequest(c, "invalid sales payload: "+err.Error())
		return
	}

	records := make([]domain.SalesRecord, 0, len(entries))
	for _, e := range entries {
		date, err := parseDay(e.Date)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		records = append(records, domain.SalesRecord{
			SKU:           sku,
			Date:          date,
			UnitsSold:     e.UnitsSold,
			Price:         e.Price,
			Revenue:       e.Revenue,
			PromotionFlag: e.PromotionFlag,
		})
	}

	n, err := h.svc.RecordSales(c.Request.Context(), records)
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"sku": sku, "recorded": n})
}

func (h *HistoryHandler) RecordAvailability(c *gin.Context) {
	sku := strings.TrimSpace(c.Param("sku"))
	var entries []availabilityEntry
	if err := c.ShouldBindJSON(&entries); err != nil {
		badRequest(c, "invalid availability payload: "+err.Error())
		return
	}

	records := make([]domain.AvailabilityRecord, 0, len(entries))
	for _, e := range entries {
		date, err := parseDay(e.Date)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		records = append(records, domain.AvailabilityRecord{
			SKU:                 sku,
			Date:                date,
			AvailabilityMinutes: e.AvailabilityMinutes,
			StockoutEvents:      e.StockoutEvents,
		})
	}

	n, err := h.svc.RecordAvailability(c.Request.Context(), records)
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"sku": sku, "recorded": n})
}
