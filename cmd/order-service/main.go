package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/ecommerce-microservices/internal/cache"
	"github.com/vasiliy-maslov/ecommerce-microservices/internal/circuitbreaker"
	"github.com/vasiliy-maslov/ecommerce-microservices/internal/config"
	"github.com/vasiliy-maslov/ecommerce-microservices/internal/customerclient"
	"github.com/vasiliy-maslov/ecommerce-microservices/internal/db"
	"github.com/vasiliy-maslov/ecommerce-microservices/internal/events"
	orderHttp "github.com/vasiliy-maslov/ecommerce-microservices/internal/handler/http"
	"github.com/vasiliy-maslov/ecommerce-microservices/internal/logger"
	"github.com/vasiliy-maslov/ecommerce-microservices/internal/order"
)

func main() {
	cfg, err := config.NewConfig(config.ServiceOrder)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	logger.Setup(cfg.Log, cfg.App.Name)

	log.Info().Msg("Order service starting...")

	if err := db.ApplyMigrations(cfg.Postgres); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply migrations")
	}

	ctx := context.Background()
	dbConn, err := db.New(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbConn.Close()

	breaker := circuitbreaker.New(circuitbreaker.Config{
		Name:        "customer-service",
		MaxFailures: cfg.CustomerService.BreakerMaxFailures,
		Timeout:     cfg.CustomerService.BreakerTimeout,
		IsFailure:   customerclient.IsBreakerFailure,
	})
	directory := customerclient.New(customerclient.Config{
		BaseURL:       cfg.CustomerService.URL,
		Timeout:       cfg.CustomerService.Timeout,
		LookupRetries: cfg.CustomerService.LookupRetries,
		Breaker:       breaker,
	})

	orderRepository := order.NewRepository(dbConn.Pool)
	orderSvc := order.NewService(orderRepository, directory,
		order.WithForcedTotalRecompute(cfg.Order.ForceTotalRecompute),
	)

	handlerOpts := []orderHttp.OrderHandlerOption{}

	if len(cfg.Kafka.Brokers) > 0 {
		publisher, err := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.OrderCreatedTopic)
		if err != nil {
			log.Fatal().Err(err).Strs("brokers", cfg.Kafka.Brokers).Msg("Failed to create Kafka producer")
		}
		defer func() {
			if err := publisher.Close(); err != nil {
				log.Error().Err(err).Msg("Failed to close Kafka producer")
			}
		}()
		handlerOpts = append(handlerOpts, orderHttp.WithPublisher(publisher))
	} else {
		log.Warn().Msg("KAFKA_BROKERS not set, order events are disabled")
	}

	if cfg.Redis.Addr != "" {
		redisCache := cache.NewRedisCache(cfg.Redis.Addr, cfg.App.Name)
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := redisCache.Ping(pingCtx)
		cancel()
		if err != nil {
			log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("Failed to connect to Redis")
		}
		defer func() {
			if err := redisCache.Close(); err != nil {
				log.Error().Err(err).Msg("Failed to close Redis client")
			}
		}()
		handlerOpts = append(handlerOpts, orderHttp.WithIdempotencyCache(redisCache, cfg.Redis.IdempotencyTTL))
	} else {
		log.Warn().Msg("REDIS_ADDR not set, Idempotency-Key replay is disabled")
	}

	orderHandler := orderHttp.NewOrderHandler(orderSvc, handlerOpts...)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(orderHttp.RequestLogger)
	router.Use(middleware.Recoverer)

	router.Get("/health", orderHttp.Health)
	orderHandler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.App.Port).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Shutdown failed")
		return
	}
	log.Info().Msg("Server stopped")
}
