package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gradient-IIITS/TrackMail-UserService/internal/config"
	"github.com/Gradient-IIITS/TrackMail-UserService/internal/handlers"
	"github.com/Gradient-IIITS/TrackMail-UserService/internal/logger"
	"github.com/Gradient-IIITS/TrackMail-UserService/internal/messaging"
	"github.com/Gradient-IIITS/TrackMail-UserService/internal/messaging/rabbitmq"
	"github.com/Gradient-IIITS/TrackMail-UserService/internal/metrics"
	"github.com/Gradient-IIITS/TrackMail-UserService/internal/registration"
	"github.com/Gradient-IIITS/TrackMail-UserService/internal/routes"
	"github.com/Gradient-IIITS/TrackMail-UserService/internal/store"
	"github.com/Gradient-IIITS/TrackMail-UserService/internal/tracing"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.Load()

	log, err := logger.NewZapLogger(logger.Config{
		Level:       logger.ParseLevel(cfg.LogLevel),
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer log.Sync()

	log.Info("Starting user service",
		logger.String("port", cfg.Port),
		logger.String("environment", cfg.Environment),
		logger.String("store_driver", cfg.StoreDriver),
		logger.Bool("broker_enabled", cfg.EnableBroker))

	if cfg.EnableTracing {
		shutdownTracer, err := tracing.InitTracer(context.Background(), tracing.Config{
			ServiceName:    cfg.ServiceName,
			ServiceVersion: "1.0.0",
			Environment:    cfg.Environment,
			JaegerEndpoint: cfg.JaegerEndpoint,
			SampleRatio:    cfg.TraceSampleRatio,
		})
		if err != nil {
			log.Fatal("Failed to initialize tracer",
				logger.Err(err))
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracer(ctx); err != nil {
				log.Error("Error shutting down tracer", logger.Err(err))
			}
		}()

		log.Info("Tracer initialized successfully",
			logger.String("jaeger_endpoint", cfg.JaegerEndpoint))
	}

	metrics.InitMetrics()
	log.Info("Metrics initialized successfully")

	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	st, err := store.Open(startCtx, store.Options{
		Driver:        cfg.StoreDriver,
		MongoURI:      cfg.MongoURI,
		MongoDatabase: cfg.MongoDatabase,
		DatabaseURL:   cfg.DatabaseURL,
	}, log)
	startCancel()
	if err != nil {
		log.Fatal("Failed to open user store",
			logger.String("driver", cfg.StoreDriver),
			logger.Err(err))
	}

	log.Info("Connected to user store", logger.String("driver", cfg.StoreDriver))

	// The broker connection is opened on first publish, so an unreachable
	// broker does not keep the service from starting.
	var (
		publisher messaging.Publisher
		broker    handlers.BrokerStatus
	)
	if cfg.EnableBroker {
		conns := rabbitmq.NewConnectionManager(cfg.BrokerEndpoint, log,
			rabbitmq.WithConnectTimeout(cfg.ConnectTimeout))
		publisher = rabbitmq.NewFanoutPublisher(conns, log,
			rabbitmq.WithMaxAttempts(cfg.PublishAttempts),
			rabbitmq.WithPublishTimeout(cfg.PublishTimeout))
		broker = conns

		log.Info("RabbitMQ publisher configured",
			logger.String("exchange", messaging.ModuleUserService),
			logger.Int("max_attempts", cfg.PublishAttempts))
	}

	svc := registration.NewService(st, publisher, log,
		registration.WithHashRounds(cfg.PasswordHashRounds))
	userHandler := handlers.NewUserHandler(log, cfg.ServiceName, svc, st, broker)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	routes.SetupRoutes(router, log, cfg.ServiceName, userHandler)

	log.Info("Routes configured")

	addr := fmt.Sprintf(":%s", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	log.Info("Server starting",
		logger.String("address", addr))

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server",
				logger.Err(err))
		}
	}()

	<-sigChan
	log.Info("Shutdown signal received, initiating graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down HTTP server", logger.Err(err))
	}

	if publisher != nil {
		if err := publisher.Close(); err != nil {
			log.Error("Error closing RabbitMQ connection", logger.Err(err))
		} else {
			log.Info("RabbitMQ connection closed")
		}
	}

	if err := st.Close(shutdownCtx); err != nil {
		log.Error("Error closing user store", logger.Err(err))
	}

	log.Info("Service shutdown complete")
}
