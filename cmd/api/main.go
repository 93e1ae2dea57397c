package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"geocompliance/api/internal/app"
	"geocompliance/api/internal/audit"
	"geocompliance/api/internal/config"
	"geocompliance/api/internal/export"
	"geocompliance/api/internal/llm"
	"geocompliance/api/internal/objstore"
	"geocompliance/api/internal/review"
	"geocompliance/api/internal/search"
	"geocompliance/api/internal/session"
	"geocompliance/api/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	dataStore := store.NewPostgresStore(db)

	pgfts := search.NewPgFTS(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, pgfts)

	var selections session.Store
	if strings.TrimSpace(cfg.RedisURL) != "" {
		log.Printf("Using Redis for viewer selection state")
		redisStore, err := session.NewRedisStore(cfg.RedisURL, cfg.SelectionTTL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer redisStore.Close()
		selections = redisStore
	} else {
		log.Printf("Using in-memory viewer selection state")
		selections = session.NewMemoryStore(cfg.SelectionTTL)
	}

	provider, err := llm.NewProvider(llm.Config{
		Provider:  cfg.LLMProvider,
		Model:     cfg.LLMModel,
		APIKey:    cfg.LLMAPIKey,
		BaseURL:   cfg.LLMBaseURL,
		Timeout:   cfg.LLMTimeout,
		MaxTokens: cfg.LLMMaxTokens,
	})
	if err != nil {
		log.Fatalf("llm provider setup failed: %v", err)
	}
	if provider != nil {
		log.Printf("LLM provider: %s", provider.Name())
	} else {
		log.Printf("No LLM provider configured, using deterministic responses")
	}

	var replier review.Replier
	if provider != nil {
		replier = llm.NewThreadReplier(provider, highlightContext(dataStore))
	}

	var objects *objstore.Store
	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		objects, err = objstore.New(objstore.Config{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			log.Fatalf("object store setup failed: %v", err)
		}
	}

	auditor := audit.NewRunner(dataStore, provider)
	exporter := export.NewService(auditor)

	service := app.NewService(dataStore, app.Options{
		Selections: selections,
		Replier:    replier,
		Provider:   provider,
		Searcher:   searchService,
		Auditor:    auditor,
		Objects:    objects,
		Exporter:   exporter,
	})
	if err := service.Bootstrap(ctx); err != nil {
		log.Printf("WARNING: bootstrap error (will retry on next restart): %v", err)
	}
	searchService.ReindexAllFromPG(ctx)

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("GeoCompliance API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

// highlightContext feeds the reviewer-facing metadata of the commented
// highlight into the reply prompt, so the model answers about the flagged
// passage rather than in the abstract.
func highlightContext(ds *store.PostgresStore) func(ctx context.Context, rc review.ReplyContext) string {
	return func(ctx context.Context, rc review.ReplyContext) string {
		h, err := ds.GetHighlight(ctx, rc.DocumentID, rc.HighlightID)
		if err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				log.Printf("main: highlight context lookup failed: %v", err)
			}
			return ""
		}
		var b strings.Builder
		if h.Reason != "" {
			fmt.Fprintf(&b, "Flag reason: %s\n", h.Reason)
		}
		if h.ClarificationQn != "" {
			fmt.Fprintf(&b, "Open question: %s\n", h.ClarificationQn)
		}
		return b.String()
	}
}
