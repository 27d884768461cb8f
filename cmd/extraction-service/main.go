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
	"github.com/joho/godotenv"

	"github.com/ledgerscan/ledgerscan-backend/internal/export/delivery"
	exportevents "github.com/ledgerscan/ledgerscan-backend/internal/export/events"
	exporthandler "github.com/ledgerscan/ledgerscan-backend/internal/export/handler"
	exportrepository "github.com/ledgerscan/ledgerscan-backend/internal/export/repository"
	exportservice "github.com/ledgerscan/ledgerscan-backend/internal/export/service"
	exportstorage "github.com/ledgerscan/ledgerscan-backend/internal/export/storage"
	extractionevents "github.com/ledgerscan/ledgerscan-backend/internal/extraction/events"
	"github.com/ledgerscan/ledgerscan-backend/internal/extraction/extractor"
	extractionhandler "github.com/ledgerscan/ledgerscan-backend/internal/extraction/handler"
	extractionrepository "github.com/ledgerscan/ledgerscan-backend/internal/extraction/repository"
	extractionservice "github.com/ledgerscan/ledgerscan-backend/internal/extraction/service"
	extractionstorage "github.com/ledgerscan/ledgerscan-backend/internal/extraction/storage"
	insightshandler "github.com/ledgerscan/ledgerscan-backend/internal/insights/handler"
	insightsservice "github.com/ledgerscan/ledgerscan-backend/internal/insights/service"
	"github.com/ledgerscan/ledgerscan-backend/internal/llm"
	"github.com/ledgerscan/ledgerscan-backend/internal/notify"
	notifyhandler "github.com/ledgerscan/ledgerscan-backend/internal/notify/handler"
	workspacehandler "github.com/ledgerscan/ledgerscan-backend/internal/workspace/handler"
	workspacemw "github.com/ledgerscan/ledgerscan-backend/internal/workspace/middleware"
	"github.com/ledgerscan/ledgerscan-backend/internal/workspace/store"
	"github.com/ledgerscan/ledgerscan-backend/internal/workspace/token"
	"github.com/ledgerscan/ledgerscan-backend/pkg/config"
	"github.com/ledgerscan/ledgerscan-backend/pkg/database"
	"github.com/ledgerscan/ledgerscan-backend/pkg/httputil"
	"github.com/ledgerscan/ledgerscan-backend/pkg/i18n"
	"github.com/ledgerscan/ledgerscan-backend/pkg/logger"
	"github.com/ledgerscan/ledgerscan-backend/pkg/messaging"
)

func main() {
	// Development convenience; a missing .env is not an error
	_ = godotenv.Load()

	cfg, err := config.LoadWithValidation("extraction-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("extraction-service", cfg.Server.Environment)
	log.Info().Msg("starting Extraction Service")

	// Optional Postgres for the audit trail
	var db *database.DB
	if cfg.Database.Enabled {
		db, err = database.New(&cfg.Database, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer db.Close()
	} else {
		log.Info().Msg("database disabled, audit trail is off")
	}

	// Optional RabbitMQ for lifecycle events
	var rmq *messaging.RabbitMQ
	var publisher *messaging.Publisher
	if cfg.RabbitMQ.Enabled {
		rmq, err = messaging.New(&cfg.RabbitMQ, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
		}
		defer rmq.Close()

		publisher, err = messaging.NewPublisher(rmq, messaging.ExchangeEvents, "extraction-service", log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create event publisher")
		}
	} else {
		log.Info().Msg("rabbitmq disabled, event publishing is off")
	}

	// Provider clients: Gemini first when configured, then OpenAI
	var clients []llm.Client
	var generators []llm.TextGenerator
	if cfg.LLM.Gemini.APIKey != "" {
		gemini := llm.NewGeminiClient(llm.GeminiOptions{
			APIKey:          cfg.LLM.Gemini.APIKey,
			Model:           cfg.LLM.Gemini.Model,
			BaseURL:         cfg.LLM.Gemini.BaseURL,
			MaxOutputTokens: cfg.LLM.MaxOutputTokens,
			Temperature:     cfg.LLM.Temperature,
			Timeout:         cfg.LLM.RequestTimeout,
		})
		clients = append(clients, gemini)
		generators = append(generators, gemini)
	}
	if cfg.LLM.OpenAI.APIKey != "" {
		openAI := llm.NewOpenAIClient(llm.OpenAIOptions{
			APIKey:      cfg.LLM.OpenAI.APIKey,
			Model:       cfg.LLM.OpenAI.Model,
			MaxTokens:   cfg.LLM.MaxOutputTokens,
			Temperature: cfg.LLM.Temperature,
		})
		clients = append(clients, openAI)
		generators = append(generators, openAI)
	}

	extractors := make([]extractor.Extractor, 0, len(clients))
	for _, client := range clients {
		extractors = append(extractors, extractor.NewLLMExtractor(client, cfg.LLM.MaxRetries, log.Logger))
	}
	registry := extractor.NewRegistry(extractors...)

	// Shared in-memory state
	records := store.NewRecordStore(cfg.Workspace.TTL, cfg.Workspace.MaxRecords)
	tokens := token.NewManager(&cfg.JWT)
	notifier := notify.NewCenter(cfg.Notifications.TTL)

	// Extraction pipeline
	var extractionAudits extractionservice.AuditRepository
	if db != nil {
		extractionAudits = extractionrepository.NewAuditRepository(db)
	}
	var extractionPub extractionevents.Publisher
	if publisher != nil {
		extractionPub = publisher
	}
	jobs := extractionstorage.NewJobStore(cfg.Extraction.JobTTL)
	extractionSvc := extractionservice.NewService(
		registry,
		jobs,
		records,
		notifier,
		extractionAudits,
		extractionevents.NewExtractionEventPublisher(extractionPub, log),
		cfg.Extraction.Workers,
		log,
	)
	extractionHandler := extractionhandler.NewHandler(extractionSvc, cfg.Extraction, log)

	// Export delivery chain, in priority order
	pending := delivery.NewPendingSaves()
	var downloads *delivery.DownloadStore
	if cfg.Export.Downloads.Enabled {
		downloads = delivery.NewDownloadStore(cfg.Export.Downloads.TTL)
	}
	savers := []delivery.Saver{
		delivery.NewBridgeSaver(cfg.Export.Bridge, pending, log),
		delivery.NewDirectorySaver(cfg.Export.Directory),
		delivery.NewDownloadSaver(downloads),
	}

	var exportAudits exportservice.AuditRepository
	if db != nil {
		exportAudits = exportrepository.NewExportAuditRepository(db)
	}
	var exportPub exportevents.Publisher
	if publisher != nil {
		exportPub = publisher
	}
	exports := exportstorage.NewExportStore(cfg.Export.JobTTL)
	exportSvc := exportservice.NewExportService(
		records,
		exports,
		savers,
		notifier,
		exportAudits,
		exportevents.NewExportEventPublisher(exportPub, log),
		log,
	)
	exportHandler := exporthandler.NewHandler(exportSvc, downloads, pending, cfg.Export.Bridge.CallbackSecretHash, log)

	// Remaining handlers
	workspaceHandler := workspacehandler.NewWorkspaceHandler(records, tokens, log)
	insightsHandler := insightshandler.NewHandler(insightsservice.NewService(records, generators, log), log)
	notificationHandler := notifyhandler.NewNotificationHandler(notifier)

	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(i18n.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Accept-Language", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		health := map[string]interface{}{
			"status":  "healthy",
			"service": "extraction-service",
		}
		if db != nil {
			health["database"] = db.Health(req.Context())
		}
		if rmq != nil {
			health["rabbitmq"] = rmq.Health()
		}
		httputil.JSON(w, http.StatusOK, health)
	})

	// Public endpoints: session bootstrap, staged download fetch (the
	// token is the credential) and the bridge outcome callback (shared
	// secret, checked in the handler)
	r.Post("/api/v1/workspaces", workspaceHandler.Create)
	r.Get("/api/v1/exports/downloads/{token}", exportHandler.Download)
	r.Post("/api/v1/exports/bridge/callbacks/{token}", exportHandler.BridgeCallback)

	// Workspace-scoped endpoints
	r.Group(func(r chi.Router) {
		r.Use(workspacemw.RequireWorkspace(tokens, records))

		r.Get("/api/v1/workspaces/current", workspaceHandler.Get)
		r.Delete("/api/v1/workspaces/current", workspaceHandler.Delete)

		r.Get("/api/v1/records", workspaceHandler.ListRecords)
		r.Patch("/api/v1/records/{recordID}", workspaceHandler.UpdateRecord)
		r.Delete("/api/v1/records/{recordID}", workspaceHandler.DeleteRecord)

		r.Post("/api/v1/extractions", extractionHandler.StartExtraction)
		r.Get("/api/v1/extractions/{jobID}", extractionHandler.GetJob)

		r.Post("/api/v1/exports", exportHandler.Create)
		r.Get("/api/v1/exports/{exportID}", exportHandler.Get)
		if exportAudits != nil {
			r.Get("/api/v1/audit/exports", exportHandler.ListAudit)
		}

		r.Post("/api/v1/insights", insightsHandler.Generate)
		r.Get("/api/v1/notifications", notificationHandler.List)
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

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
