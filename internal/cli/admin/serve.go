package admin

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/burrowlabs/burrow/internal/api/handlers"
	"github.com/burrowlabs/burrow/internal/config"
	"github.com/burrowlabs/burrow/internal/jobs"
	"github.com/burrowlabs/burrow/internal/openai"
	"github.com/burrowlabs/burrow/internal/repository"
	"github.com/burrowlabs/burrow/internal/server"
	"github.com/burrowlabs/burrow/internal/service"
	"github.com/burrowlabs/burrow/internal/storage"
	"github.com/burrowlabs/burrow/internal/telemetry"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the burrow daemon",
		Long:  "Start the local burrow daemon on the configured address",
		RunE:  runServe,
	}

	cmd.Flags().StringP("addr", "a", "", "Address to listen on (host:port), overrides BURROW_ADDR")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup (pgvector backend only)")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize Sentry with tracing if BURROW_SENTRY_DSN is set
	if cfg.HasSentry() {
		// Default to 10% sampling outside local development
		sampleRate := 0.1
		if cfg.Environment == "local" || cfg.Environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              cfg.SentryDSN,
			Environment:      cfg.Environment,
			TracesSampleRate: sampleRate,
			Debug:            cfg.Debug,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	if addrFlag, _ := cmd.Flags().GetString("addr"); addrFlag != "" {
		cfg.Addr = addrFlag
	}

	// Run migrations unless --no-migrate flag is set; only the
	// pgvector backend has schema to manage.
	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if cfg.VectorBackend == "pgvector" && !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	index, closeIndex, err := repository.NewVectorIndex(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open vector index: %w", err)
	}
	defer closeIndex()

	if err := index.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping vector index: %w", err)
	}
	log.Printf("vector index ready (backend: %s)", cfg.VectorBackend)

	llm, err := openai.NewClient(openai.Config{
		BaseURL:             cfg.LLMBaseURL,
		APIKey:              cfg.LLMAPIKey,
		Models:              cfg.Models(),
		EmbeddingModel:      cfg.EmbeddingModel,
		EmbeddingDimensions: cfg.EmbeddingDim,
	})
	if err != nil {
		return fmt.Errorf("failed to create model client: %w", err)
	}

	auditLog, err := storage.NewFileAuditLog(cfg.AuditLogPath)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer auditLog.Close()
	log.Printf("audit log at %s", auditLog.Path())

	auditSvc := service.NewAuditService(auditLog)

	sessions, err := service.NewSessionService(cfg.SessionToken, cfg.SessionTTL)
	if err != nil {
		return fmt.Errorf("failed to configure sessions: %w", err)
	}

	rateCfg := service.RateLimitConfig{Max: cfg.RateLimitMax, Window: cfg.RateLimitWindow}
	limiter := service.NewRateLimiter(repository.NewCacheCounterStore(), rateCfg)

	indexSvc := service.NewIndexService(llm, index, service.ChunkConfig{
		MaxChars: cfg.ChunkMaxChars,
		Overlap:  cfg.ChunkOverlap,
	}, cfg.EmbeddingDim)

	retriever := service.NewRetrievalService(indexSvc, index, service.RetrievalConfig{
		DefaultTopK:   cfg.TopKDefault,
		MaxTopK:       cfg.TopKMax,
		MaxQueryChars: cfg.MaxQueryChars,
	})

	prompts := service.NewPromptBuilder(service.PromptConfig{MaxContextChars: cfg.MaxContextChars})
	answers := service.NewAnswerService(llm, cfg.LLMTimeout)
	querySvc := service.NewQueryService(retriever, prompts, answers, limiter, sessions, auditSvc)

	analyzer := service.NewDocAnalyzer(index)
	agentSvc := service.NewAgentService(llm, analyzer, limiter, sessions, auditSvc, service.AgentConfig{
		MaxIterations:    cfg.AgentMaxIterations,
		Timeout:          cfg.AgentTimeout,
		MaxQuestionChars: cfg.MaxQueryChars,
	})

	var reindexWorker *jobs.Worker
	if cfg.HasDataDir() {
		reindexer := jobs.NewReindexer(cfg.DataDir, indexSvc, auditSvc)
		reindexWorker = jobs.NewWorker(reindexer, cfg.ReindexInterval)
		go reindexWorker.Start(ctx)
		log.Printf("reindex worker started for %s", cfg.DataDir)
	}

	routerCfg := server.RouterConfig{
		Authenticator:    sessions,
		Audit:            auditSvc,
		Index:            index,
		DocumentsHandler: handlers.NewDocumentsHandler(indexSvc, limiter, auditSvc),
		QueryHandler:     handlers.NewQueryHandler(querySvc),
		AgentHandler:     handlers.NewAgentHandler(agentSvc),
		AdminHandler:     handlers.NewAdminHandler(indexSvc, auditSvc, rateCfg),
	}

	router := server.NewRouter(routerCfg)

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on %s", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	if reindexWorker != nil {
		reindexWorker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

func runMigrations(databaseURL string) error {
	// Create a sql.DB connection for golang-migrate
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	// Create postgres driver instance
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	// Create migrate instance with file source
	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	// Run migrations
	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	// Get migration version and status
	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else if err == migrate.ErrNoChange {
		log.Printf("migrations: database is up to date (version %d)", version)
	} else {
		log.Printf("migrations: applied successfully (version %d)", version)
	}

	return nil
}
