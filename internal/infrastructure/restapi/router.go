package restapi

import (
	"net/http"

	"token_farm/internal/infrastructure/configloader"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SetupRouter builds the gin engine. metricsHandler may be nil.
func SetupRouter(handler *TokenFarmHandler, cfg *configloader.Config, metricsHandler http.Handler, logger *zap.Logger) *gin.Engine {
	router := gin.New()

	corsConfig := cors.DefaultConfig()
	if len(cfg.Server.AllowedOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.Server.AllowedOrigins
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	router.Use(cors.New(corsConfig))

	router.Use(ZapLoggerMiddleware(logger))
	router.Use(gin.Recovery())

	v1 := router.Group("/api/v1")
	{
		v1.GET("/state", handler.GetStateHandler)
		v1.POST("/stake", handler.StakeHandler)
		v1.POST("/unstake", handler.UnstakeHandler)
		v1.POST("/sync", handler.SyncHandler)
		v1.GET("/transactions", handler.TransactionsHandler)
	}

	router.GET("/healthz", handler.HealthHandler)

	if metricsHandler != nil && cfg.Metrics.Enabled {
		router.GET(cfg.Metrics.Path, gin.WrapH(metricsHandler))
	}

	return router
}
