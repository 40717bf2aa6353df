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

	"github.com/clinichq/clinic-backend/internal/records/handler"
	"github.com/clinichq/clinic-backend/internal/records/repository"
	"github.com/clinichq/clinic-backend/internal/records/service"
	"github.com/clinichq/clinic-backend/pkg/config"
	"github.com/clinichq/clinic-backend/pkg/database"
	"github.com/clinichq/clinic-backend/pkg/httputil"
	"github.com/clinichq/clinic-backend/pkg/logger"
)

func main() {
	cfg, err := config.LoadWithValidation("records-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("records-service", cfg.Server.Environment)
	log.Info().Msg("starting Records Service")

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	consultationRepo := repository.NewConsultationRepository(db)
	noteRepo := repository.NewNoteRepository(db)

	recordsService := service.NewRecordsService(consultationRepo, noteRepo, log)
	recordsHandler := handler.NewRecordsHandler(recordsService, log)

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
			"service":  "records-service",
			"database": db.Health(r.Context()),
		})
	})

	r.Route("/api/v1/records", func(r chi.Router) {
		r.Route("/consultations", func(r chi.Router) {
			r.Get("/", recordsHandler.ListConsultations)
			r.Post("/", recordsHandler.CreateConsultation)
			r.Get("/{id}", recordsHandler.GetConsultation)
			r.Put("/{id}", recordsHandler.UpdateConsultation)
			r.Delete("/{id}", recordsHandler.DeleteConsultation)
			r.Get("/{id}/notes", recordsHandler.ConsultationNotes)
		})

		r.Route("/notes", func(r chi.Router) {
			r.Get("/", recordsHandler.ListNotes)
			r.Post("/", recordsHandler.CreateNote)
			r.Put("/{id}", recordsHandler.UpdateNote)
			r.Delete("/{id}", recordsHandler.DeleteNote)
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
