package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/andresuchdata/autopo-replenish/internal/api/handlers"
	"github.com/andresuchdata/autopo-replenish/internal/api/middleware"
	"github.com/andresuchdata/autopo-replenish/internal/metrics"
	"github.com/andresuchdata/autopo-replenish/internal/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type Services struct {
	Replenishment *service.ReplenishmentService
	Metrics       *metrics.Metrics
}

func NewRouter(services *Services, allowedOrigins []string) *gin.Engine {
	router := gin.New()

	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	if services != nil && services.Metrics != nil {
		router.Use(middleware.Metrics(services.Metrics))
	}

	defaultOrigins := []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	corsConfig := cors.Config{
		AllowOrigins:     defaultOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) > 0 {
		normalizedOrigins, allowAll := normalizeAllowedOrigins(allowedOrigins)
		if allowAll {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowOriginFunc = func(origin string) bool { return true }
		} else if len(normalizedOrigins) > 0 {
			corsConfig.AllowOrigins = normalizedOrigins
		}
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if services == nil {
		return router
	}
	if services.Metrics != nil {
		router.GET("/metrics", gin.WrapH(services.Metrics.Handler()))
	}

	if services.Replenishment != nil {
		apiGroup := router.Group("/api/v1")

		coverageHandler := handlers.NewCoverageHandler(services.Replenishment)
		coverageGroup := apiGroup.Group("/coverage")
		{
			coverageGroup.DELETE("/cache", coverageHandler.InvalidateCache)
			coverageGroup.GET("/:sku", coverageHandler.GetCoverage)
			coverageGroup.GET("/:sku/latest", coverageHandler.GetLatest)
		}

		purchaseHandler := handlers.NewPurchaseHandler(services.Replenishment)
		purchaseGroup := apiGroup.Group("/purchase")
		{
			purchaseGroup.POST("/batch", purchaseHandler.RunBatch)
			purchaseGroup.POST("/scenarios", purchaseHandler.RunScenarios)
			purchaseGroup.POST("/:sku", purchaseHandler.GetRequirement)
		}

		historyHandler := handlers.NewHistoryHandler(services.Replenishment)
		historyGroup := apiGroup.Group("/history/:sku")
		{
			historyGroup.POST("/sales", historyHandler.RecordSales)
			historyGroup.POST("/availability", historyHandler.RecordAvailability)
		}
	}

	return router
}

func normalizeAllowedOrigins(origins []string) ([]string, bool) {
	var (
		parsed   []string
		allowAll bool
	)
	for _, origin := range origins {
		parts := strings.Split(origin, ",")
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			if trimmed == "*" {
				allowAll = true
				continue
			}
			parsed = append(parsed, trimmed)
		}
	}
	return parsed, allowAll
}
