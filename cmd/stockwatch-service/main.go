package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/shopspring/decimal"
	"github.com/stockwatch/stockwatch-backend/internal/inventory/consumers"
	"github.com/stockwatch/stockwatch-backend/internal/inventory/events"
	"github.com/stockwatch/stockwatch-backend/internal/inventory/handler"
	"github.com/stockwatch/stockwatch-backend/internal/inventory/repository"
	"github.com/stockwatch/stockwatch-backend/internal/inventory/service"
	"github.com/stockwatch/stockwatch-backend/pkg/cache"
	"github.com/stockwatch/stockwatch-backend/pkg/config"
	"github.com/stockwatch/stockwatch-backend/pkg/database"
	"github.com/stockwatch/stockwatch-backend/pkg/httputil"
	"github.com/stockwatch/stockwatch-backend/pkg/logger"
	"github.com/stockwatch/stockwatch-backend/pkg/messaging"
)

const serviceName = "stockwatch-service"

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation(serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	// Quantities are JSON numbers on the wire
	decimal.MarshalJSONWithoutQuotes = true

	log := logger.New(serviceName, cfg.Server.Environment)
	log.Info().Msg("starting StockWatch service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// RabbitMQ and Redis are optional; nil clients turn their features off.
	var rmq *messaging.RabbitMQ
	var publisher *events.StockEventPublisher
	if cfg.RabbitMQ.Enabled {
		rmq, err = messaging.New(&cfg.RabbitMQ, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
		}
		defer rmq.Close()

		publisher, err = events.NewStockEventPublisher(rmq, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create event publisher")
		}
	}

	var redisClient *cache.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.New(ctx, &cfg.Redis, "stockwatch", log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to Redis")
		}
		defer redisClient.Close()
	}

	// Initialize repositories
	categoryRepo := repository.NewCategoryRepository(db)
	unitRepo := repository.NewUnitRepository(db)
	supplierRepo := repository.NewSupplierRepository(db)
	itemRepo := repository.NewItemRepository(db)
	menuRepo := repository.NewMenuItemRepository(db)
	deliveryRepo := repository.NewDeliveryRepository(db)
	usageRepo := repository.NewUsageRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	reportRepo := repository.NewReportRepository(db)
	alertRepo := repository.NewAlertRepository(db)

	// Initialize services
	alertScanner := service.NewAlertScanner(reportRepo, alertRepo, publisher, cfg.Alerts.ExpiryWindowDays, log)
	ledgerService := service.NewStockLedgerService(ledgerRepo, publisher, redisClient, alertScanner, log)
	catalogService := service.NewCatalogService(categoryRepo, unitRepo, supplierRepo, itemRepo, menuRepo, redisClient, log)
	reportingService := service.NewReportingService(reportRepo, deliveryRepo, usageRepo, redisClient, cfg.Redis.ReportTTL, cfg.Alerts.ExpiryWindowDays, log)
	alertService := service.NewAlertService(alertRepo)

	// Initialize handlers
	ledgerHandler := handler.NewLedgerHandler(ledgerService, reportingService, log)
	categoryHandler := handler.NewCategoryHandler(catalogService, log)
	unitHandler := handler.NewUnitHandler(catalogService, log)
	supplierHandler := handler.NewSupplierHandler(catalogService, log)
	itemHandler := handler.NewItemHandler(catalogService, log)
	menuItemHandler := handler.NewMenuItemHandler(catalogService, log)
	reportHandler := handler.NewReportHandler(reportingService, log)
	exportHandler := handler.NewExportHandler(reportingService, log)
	alertHandler := handler.NewAlertHandler(alertService, log)

	if rmq != nil && cfg.RabbitMQ.ConsumePOSSales {
		posConsumer, err := consumers.NewPOSSaleConsumer(rmq, ledgerService, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create POS sale consumer")
		}
		if err := posConsumer.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to start POS sale consumer")
		}
	}

	var scheduler *service.AlertScheduler
	if cfg.Alerts.Enabled {
		scheduler = service.NewAlertScheduler(alertScanner, redisClient, cfg.Alerts.ScanInterval, cfg.Alerts.LockTTL, log)
		scheduler.Start(ctx)
	}

	// Create router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"service":  serviceName,
			"database": db.Health(r.Context()),
			"rabbitmq": rmq.Health(),
			"redis":    redisClient.Health(r.Context()),
		})
	})

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Ledger routes
		r.Route("/deliveries", func(r chi.Router) {
			r.Get("/", ledgerHandler.ListDeliveries)
			r.Post("/", ledgerHandler.RecordDelivery)
			r.Get("/{id}", ledgerHandler.GetDelivery)
		})
		r.Route("/usage", func(r chi.Router) {
			r.Get("/", ledgerHandler.ListUsage)
			r.Post("/manual", ledgerHandler.RecordManualUsage)
			r.Post("/sale/{menuItemId}", ledgerHandler.RecordSale)
		})
		r.Post("/waste", ledgerHandler.RecordWaste)

		// Reference data routes
		r.Route("/categories", func(r chi.Router) {
			r.Get("/", categoryHandler.List)
			r.Post("/", categoryHandler.Create)
			r.Get("/{id}", categoryHandler.Get)
			r.Put("/{id}", categoryHandler.Update)
			r.Delete("/{id}", categoryHandler.Delete)
		})
		r.Route("/units", func(r chi.Router) {
			r.Get("/", unitHandler.List)
			r.Post("/", unitHandler.Create)
			r.Get("/{id}", unitHandler.Get)
			r.Put("/{id}", unitHandler.Update)
			r.Delete("/{id}", unitHandler.Delete)
		})
		r.Route("/suppliers", func(r chi.Router) {
			r.Get("/", supplierHandler.List)
			r.Post("/", supplierHandler.Create)
			r.Get("/{id}", supplierHandler.Get)
			r.Put("/{id}", supplierHandler.Update)
			r.Delete("/{id}", supplierHandler.Delete)
			r.Get("/{id}/items", supplierHandler.ListItems)
			r.Post("/{id}/items", supplierHandler.AddItem)
			r.Put("/{id}/items/{itemId}", supplierHandler.UpdateItem)
			r.Delete("/{id}/items/{itemId}", supplierHandler.RemoveItem)
		})
		r.Route("/items", func(r chi.Router) {
			r.Get("/", itemHandler.List)
			r.Post("/", itemHandler.Create)
			r.Get("/{id}", itemHandler.Get)
			r.Put("/{id}", itemHandler.Update)
			r.Delete("/{id}", itemHandler.Delete)
		})
		r.Route("/menu-items", func(r chi.Router) {
			r.Get("/", menuItemHandler.List)
			r.Post("/", menuItemHandler.Create)
			r.Get("/{id}", menuItemHandler.Get)
			r.Put("/{id}", menuItemHandler.Update)
			r.Delete("/{id}", menuItemHandler.Delete)
			r.Get("/{id}/ingredients", menuItemHandler.ListIngredients)
			r.Post("/{id}/ingredients", menuItemHandler.AddIngredient)
			r.Put("/{id}/ingredients/{itemId}", menuItemHandler.UpdateIngredient)
			r.Delete("/{id}/ingredients/{itemId}", menuItemHandler.RemoveIngredient)
		})

		// Reports
		r.Route("/reports", func(r chi.Router) {
			r.Get("/low-stock", reportHandler.LowStock)
			r.Get("/low-stock/export", exportHandler.ExportLowStock)
			r.Get("/expirations", reportHandler.Expirations)
			r.Get("/expirations/export", exportHandler.ExportExpirations)
			r.Get("/waste", reportHandler.Waste)
			r.Get("/waste/export", exportHandler.ExportWaste)
			r.Get("/reconciliation", reportHandler.Reconciliation)
			r.Get("/dashboard", reportHandler.Dashboard)
		})

		// Alert routes
		r.Get("/alerts", alertHandler.List)
		r.Get("/alerts/count", alertHandler.Count)
		r.Post("/alerts/{id}/acknowledge", alertHandler.Acknowledge)
	})

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Stop the scheduler and consumers before draining HTTP
	cancel()
	if scheduler != nil {
		scheduler.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
