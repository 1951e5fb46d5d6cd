package app

import (
	"github.com/gin-gonic/gin"

	"github.com/babyshield/crownsafe-backend/internal/http/middleware"
	"github.com/babyshield/crownsafe-backend/internal/platform/logger"
)

func wireRouter(log *logger.Logger, cfg Config, h Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.TraceContext())
	router.Use(middleware.RequestLog(log))
	router.Use(middleware.CORS(cfg.CORSOrigins))

	router.GET("/healthz", h.Health.Health)

	api := router.Group("/api")
	{
		api.GET("/search", h.Search.Search)
		api.POST("/search", h.Search.SearchPost)
		api.POST("/search/barcode", h.Search.Barcode)
		api.GET("/recalls/:id", h.Recall.GetByID)
		api.GET("/agencies", h.Agency.List)

		admin := api.Group("/admin")
		{
			admin.POST("/ingest", h.Admin.TriggerAll)
			admin.POST("/agencies/:agency/runs", h.Admin.TriggerRun)
			admin.GET("/runs", h.Admin.ListRuns)
			admin.GET("/runs/:id", h.Admin.GetRun)
			admin.POST("/runs/:id/cancel", h.Admin.CancelRun)
			admin.GET("/freshness", h.Admin.Freshness)
		}
	}

	return router
}
