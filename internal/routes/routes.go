package routes

import (
	"github.com/Gradient-IIITS/TrackMail-UserService/internal/handlers"
	"github.com/Gradient-IIITS/TrackMail-UserService/internal/logger"
	"github.com/Gradient-IIITS/TrackMail-UserService/internal/metrics"
	"github.com/Gradient-IIITS/TrackMail-UserService/internal/tracing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupRoutes(
	router *gin.Engine,
	log logger.Logger,
	serviceName string,
	userHandler *handlers.UserHandler,
) {

	router.Use(tracing.GinMiddleware(serviceName))

	router.Use(logger.InjectLogger(log))
	router.Use(logger.GinMiddleware(log))
	router.Use(gin.Recovery())
	router.Use(metrics.PrometheusMiddleware(serviceName))

	router.GET("/health", userHandler.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/", userHandler.CreateUser)
}
