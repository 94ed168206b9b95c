package admin

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/loreworks/mwassist/internal/api/handlers"
	"github.com/loreworks/mwassist/internal/auth"
	"github.com/loreworks/mwassist/internal/chat"
	"github.com/loreworks/mwassist/internal/config"
	"github.com/loreworks/mwassist/internal/database"
	"github.com/loreworks/mwassist/internal/domain"
	"github.com/loreworks/mwassist/internal/embeddings"
	"github.com/loreworks/mwassist/internal/index"
	"github.com/loreworks/mwassist/internal/jobs"
	"github.com/loreworks/mwassist/internal/llm"
	"github.com/loreworks/mwassist/internal/search"
	"github.com/loreworks/mwassist/internal/server"
	"github.com/loreworks/mwassist/internal/sessions"
	"github.com/loreworks/mwassist/internal/storage"
	"github.com/loreworks/mwassist/internal/telemetry"
	"github.com/loreworks/mwassist/internal/tenant"
	"github.com/loreworks/mwassist/internal/tools"
	"github.com/loreworks/mwassist/internal/usage"
	"github.com/loreworks/mwassist/internal/vectorstore"
	"github.com/loreworks/mwassist/internal/wiki"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the mwassist API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.HasOpenAI() {
		return fmt.Errorf("MWASSIST_OPENAI_API_KEY is required to serve")
	}

	// Initialize Sentry with tracing if SENTRY_DSN is set
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		environment := os.Getenv("ENVIRONMENT")
		if environment == "" {
			environment = "development"
		}

		sampleRate := 0.1
		if environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              dsn,
			Environment:      environment,
			TracesSampleRate: sampleRate,
			Debug:            cfg.Debug,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	log.Println("connected to database")

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	embClient, err := embeddings.NewClient(embeddings.Config{
		APIKey:     cfg.OpenAIAPIKey,
		Model:      cfg.EmbeddingModel,
		Dimensions: cfg.EmbeddingDimensions,
	})
	if err != nil {
		return fmt.Errorf("failed to create embeddings client: %w", err)
	}

	llmClient, err := llm.NewClient(llm.Config{
		APIKey: cfg.OpenAIAPIKey,
		Model:  cfg.ChatModel,
	})
	if err != nil {
		return fmt.Errorf("failed to create chat client: %w", err)
	}

	var wikiAPI wikiClientInterface
	if cfg.HasWiki() {
		wikiClient, err := wiki.NewClient(cfg.WikiAPIBaseURL)
		if err != nil {
			return fmt.Errorf("failed to create wiki client: %w", err)
		}
		wikiAPI = wikiClient
	} else {
		// Without a wiki endpoint, access checks fail closed and wiki
		// tools report themselves unconfigured.
		wikiAPI = &noWikiClient{}
		log.Println("MWASSIST_WIKI_API_BASE_URL not set; wiki tools disabled")
	}

	var mirror *storage.SnapshotMirror
	if cfg.VectorBackend == "memory" && cfg.HasS3() {
		mirror, err = storage.NewSnapshotMirror(ctx, storage.SnapshotMirrorConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			return fmt.Errorf("failed to create snapshot mirror: %w", err)
		}
		if err := mirror.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure snapshot bucket: %w", err)
		}
		log.Printf("snapshot mirror bucket '%s' ready", cfg.S3Bucket)
	}

	registry := tenant.NewRegistry(storeFactory(ctx, cfg, pool, mirror))

	var flushWorker *jobs.Worker
	if cfg.VectorBackend == "memory" {
		var flushMirror jobs.SnapshotMirror
		if mirror != nil {
			flushMirror = mirror
		}
		flushTask := jobs.NewFlushTask(registry, flushMirror, cfg.DataRoot)
		flushWorker = jobs.NewWorker(flushTask, cfg.FlushInterval)
		go flushWorker.Start(ctx)
		log.Println("snapshot flush worker started")
	}

	pipeline := search.NewPipeline(registry, embClient, wikiAPI)
	toolRegistry := tools.NewRegistry(pipeline, wikiAPI, registry)
	loop := chat.NewLoop(llmClient, toolRegistry, tools.Definitions(), cfg.MaxToolLoops)

	sessionStore := sessions.NewStore(pool)
	limiter := usage.NewLimiter(usage.NewPgRepository(pool), cfg.DailyTokenLimit)
	chatSvc := chat.NewService(loop, sessionStore, limiter, registry)
	indexSvc := index.NewService(registry, embClient)

	routerCfg := server.RouterConfig{
		AuthValidator:    auth.NewHMACValidator(cfg.SharedSecret),
		ChatHandler:      handlers.NewChatHandler(chatSvc, sessionStore),
		SearchHandler:    handlers.NewSearchHandler(pipeline),
		EmbeddingHandler: handlers.NewEmbeddingHandler(indexSvc),
		UsageHandler:     handlers.NewUsageHandler(limiter),
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: server.NewRouter(routerCfg),
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	if flushWorker != nil {
		flushWorker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := registry.SaveAll(shutdownCtx); err != nil {
		log.Printf("failed to flush tenant stores on shutdown: %v", err)
	}

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

func storeFactory(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, mirror *storage.SnapshotMirror) tenant.StoreFactory {
	if cfg.VectorBackend != "memory" {
		return func(tenantID string) (vectorstore.Store, error) {
			return vectorstore.NewPgStore(pool, tenantID), nil
		}
	}
	return func(tenantID string) (vectorstore.Store, error) {
		dir := filepath.Join(cfg.DataRoot, tenantID)
		if mirror != nil {
			// A tenant landing on a fresh host pulls its last mirrored
			// snapshot before the store loads from disk.
			restored, err := mirror.EnsureLocalSnapshot(ctx, tenantID, dir)
			if err != nil {
				log.Printf("failed to restore snapshot for tenant %s from mirror: %v", tenantID, err)
			} else if restored {
				log.Printf("restored snapshot for tenant %s from mirror", tenantID)
			}
		}
		return vectorstore.NewMemoryStore(dir), nil
	}
}

// wikiClientInterface combines the wiki surface the pipeline and tools need.
type wikiClientInterface interface {
	search.AccessChecker
	tools.WikiAPI
}

// noWikiClient stands in when no wiki endpoint is configured.
type noWikiClient struct{}

var errNoWiki = domain.NewDomainError(domain.ErrCodeConfiguration, "wiki API not configured: MWASSIST_WIKI_API_BASE_URL required")

func (n *noWikiClient) CheckReadAccess(ctx context.Context, identity *domain.Identity, titles []string) (map[string]bool, error) {
	return nil, errNoWiki
}

func (n *noWikiClient) GetPageText(ctx context.Context, identity *domain.Identity, title string) (*wiki.Page, error) {
	return nil, errNoWiki
}

func (n *noWikiClient) RunAsk(ctx context.Context, identity *domain.Identity, query string) (json.RawMessage, error) {
	return nil, errNoWiki
}

func (n *noWikiClient) SearchPages(ctx context.Context, identity *domain.Identity, query string, limit int) ([]wiki.SearchHit, error) {
	return nil, errNoWiki
}

func runMigrations(databaseURL string) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	upErr := m.Up()
	if upErr != nil && upErr != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", upErr)
	}

	version, dirty, err := m.Version()
	switch {
	case err == migrate.ErrNilVersion:
		log.Println("migrations: database is up to date (no migrations applied)")
	case err != nil:
		return fmt.Errorf("failed to get migration version: %w", err)
	case dirty:
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	case upErr == migrate.ErrNoChange:
		log.Printf("migrations: database is up to date (version %d)", version)
	default:
		log.Printf("migrations: applied successfully (version %d)", version)
	}

	return nil
}
