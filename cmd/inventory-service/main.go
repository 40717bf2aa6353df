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

	"github.com/clinichq/clinic-backend/internal/inventory/events"
	"github.com/clinichq/clinic-backend/internal/inventory/handler"
	"github.com/clinichq/clinic-backend/internal/inventory/repository"
	"github.com/clinichq/clinic-backend/internal/inventory/service"
	"github.com/clinichq/clinic-backend/pkg/config"
	"github.com/clinichq/clinic-backend/pkg/database"
	"github.com/clinichq/clinic-backend/pkg/httputil"
	"github.com/clinichq/clinic-backend/pkg/logger"
	"github.com/clinichq/clinic-backend/pkg/messaging"
)

func main() {
	cfg, err := config.LoadWithValidation("inventory-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("inventory-service", cfg.Server.Environment)
	log.Info().Msg("starting Inventory Service")

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	pub, err := messaging.NewPublisher(rmq, messaging.ExchangeInventoryEvents, "inventory-service", log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}
	publisher := events.NewInventoryEventPublisher(pub)

	medicineRepo := repository.NewMedicineRepository(db)
	batchRepo := repository.NewBatchRepository(db)
	distributionRepo := repository.NewDistributionRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	reportRepo := repository.NewReportRepository(db)

	inventoryService := service.NewInventoryService(medicineRepo, batchRepo, publisher, log)
	distributionService := service.NewDistributionService(db, batchRepo, distributionRepo, notificationRepo, publisher, log)
	reportService := service.NewReportService(reportRepo, batchRepo, medicineRepo, publisher, log)

	medicineHandler := handler.NewMedicineHandler(inventoryService, log)
	batchHandler := handler.NewBatchHandler(inventoryService, log)
	distributionHandler := handler.NewDistributionHandler(distributionService, log)
	reportHandler := handler.NewReportHandler(reportService, log)
	exportHandler := handler.NewExportHandler(reportService, log)
	dashboardHandler := handler.NewDashboardHandler(inventoryService, distributionService, log)

	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:5173"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))
	r.Use(httputil.ActorMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"service":  "inventory-service",
			"database": db.Health(r.Context()),
			"rabbitmq": rmq.Health(),
		})
	})

	r.Route("/api/v1/inventory", func(r chi.Router) {
		r.Route("/medicines", func(r chi.Router) {
			r.Get("/", medicineHandler.List)
			r.Post("/", medicineHandler.Create)
			r.Get("/{id}", medicineHandler.Get)
			r.Put("/{id}", medicineHandler.Update)
			r.Delete("/{id}", medicineHandler.Delete)
		})

		r.Route("/batches", func(r chi.Router) {
			r.Get("/", batchHandler.List)
			r.Get("/grouped", batchHandler.ListGrouped)
			r.Post("/", batchHandler.Create)
			r.Put("/{id}", batchHandler.Update)
			r.Delete("/{id}", batchHandler.Delete)
		})

		r.Get("/summary", batchHandler.Summary)
		r.Get("/dashboard", dashboardHandler.Get)

		r.Route("/distributions", func(r chi.Router) {
			r.Get("/", distributionHandler.List)
			r.Post("/", distributionHandler.Create)
			r.Get("/{id}", distributionHandler.Get)
			r.Put("/{id}/status", distributionHandler.UpdateStatus)
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", distributionHandler.Notifications)
			r.Get("/unread-count", distributionHandler.UnreadCount)
			r.Put("/{id}/read", distributionHandler.MarkNotificationRead)
			r.Put("/read-all", distributionHandler.MarkAllNotificationsRead)
		})

		r.Route("/reports", func(r chi.Router) {
			r.Get("/", reportHandler.List)
			r.Post("/", reportHandler.Generate)
			r.Get("/compilation", reportHandler.Compile)
			r.Get("/compilation/export/xlsx", exportHandler.CompilationXLSX)
			r.Get("/compilation/export/csv", exportHandler.CompilationCSV)
			r.Get("/compilation/export/pdf", exportHandler.CompilationPDF)
			r.Get("/{id}", reportHandler.Get)
			r.Put("/{id}/orders", reportHandler.UpdateOrders)
			r.Post("/{id}/submit", reportHandler.Submit)
			r.Get("/{id}/export/pdf", exportHandler.ReportPDF)
			r.Delete("/{id}", reportHandler.Delete)
		})
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
