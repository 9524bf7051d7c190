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
	"github.com/vasiliy-maslov/ecommerce-microservices/internal/config"
	"github.com/vasiliy-maslov/ecommerce-microservices/internal/customer"
	"github.com/vasiliy-maslov/ecommerce-microservices/internal/db"
	customerHttp "github.com/vasiliy-maslov/ecommerce-microservices/internal/handler/http"
	"github.com/vasiliy-maslov/ecommerce-microservices/internal/logger"
)

func main() {
	cfg, err := config.NewConfig(config.ServiceCustomer)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	logger.Setup(cfg.Log, cfg.App.Name)

	log.Info().Msg("Customer service starting...")

	if err := db.ApplyMigrations(cfg.Postgres); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply migrations")
	}

	dbConn, err := db.New(context.Background(), cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbConn.Close()

	customerRepository := customer.NewRepository(dbConn.Pool)
	customerSvc := customer.NewService(customerRepository)
	customerHandler := customerHttp.NewCustomerHandler(customerSvc)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(customerHttp.RequestLogger)
	router.Use(middleware.Recoverer)

	router.Get("/health", customerHttp.Health)
	customerHandler.RegisterRoutes(router)

	server := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.App.Port).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
	<-stopCh

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
		return
	}

	log.Info().Msg("Customer service stopped gracefully")
}
