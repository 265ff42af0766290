// Package main is the entry point for the New Year card server.
// It loads configuration, connects to the optional backing services, sets
// up routing, and starts the HTTP server with graceful shutdown support.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"newyearcard/internal/ai"
	"newyearcard/internal/background"
	"newyearcard/internal/cache"
	"newyearcard/internal/cardimage"
	"newyearcard/internal/config"
	"newyearcard/internal/database"
	"newyearcard/internal/export"
	"newyearcard/internal/greeting"
	"newyearcard/internal/handlers"
	"newyearcard/internal/imagestore"
	"newyearcard/internal/middleware"
	"newyearcard/internal/render"
	"newyearcard/internal/router"
	"newyearcard/internal/session"
	"newyearcard/internal/storage"
	"newyearcard/internal/store"
)

func main() {
	// Load configuration from environment variables.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Structured logger: text in development, JSON otherwise.
	var handler slog.Handler
	if cfg.IsDev() {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	slog.SetDefault(slog.New(handler))

	slog.Info("configuration loaded",
		"env", cfg.Env,
		"addr", cfg.Addr(),
		"capture_url", cfg.CaptureURL,
	)

	// Key-value store for sessions, the background pool, shares and the
	// rendered image cache. Valkey when configured, in-process otherwise.
	var kv cache.KV
	if cfg.HasValkey() {
		valkeyClient, err := cache.ConnectValkey(cfg.ValkeyHost, cfg.ValkeyPort, cfg.ValkeyPassword)
		if err != nil {
			slog.Error("failed to connect to valkey", "error", err)
			os.Exit(1)
		}
		defer valkeyClient.Close()
		kv = cache.NewValkeyKV(valkeyClient)
	} else {
		slog.Warn("valkey not configured, using in-process cache")
		kv = cache.NewMemoryKV(10 * time.Minute)
	}

	// Optional PostgreSQL event log.
	var db *sql.DB
	if cfg.HasDatabase() {
		db, err = database.Connect(cfg.DSN())
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		if err := database.Migrate(db); err != nil {
			slog.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
	} else {
		slog.Info("database not configured, event log disabled")
	}
	events := store.NewEventStore(db)

	// Generated background files on local disk.
	images, err := imagestore.New(cfg.ImageDir, cfg.ImageRetention)
	if err != nil {
		slog.Error("failed to open image directory", "error", err)
		os.Exit(1)
	}
	if n, err := images.Rotate(); err != nil {
		slog.Warn("image rotation failed", "error", err)
	} else if n > 0 {
		slog.Info("old images removed", "count", n)
	}

	// S3-compatible object storage (optional; local files are used without it).
	storageClient, err := storage.New(
		cfg.S3Endpoint, cfg.S3Region, cfg.S3AccessKey, cfg.S3SecretKey,
		cfg.S3Bucket, cfg.S3PublicURL,
	)
	if err != nil {
		slog.Error("failed to initialize S3 storage", "error", err)
		os.Exit(1)
	}
	var sink background.Sink = background.LocalSink{Store: images}
	if storageClient != nil {
		sink = storageClient
		slog.Info("s3 storage connected", "endpoint", cfg.S3Endpoint, "bucket", cfg.S3Bucket)
	}

	// AI provider registry with all configured providers. Greetings are
	// requested as JSON objects; deepseek and zhipu force JSON mode themselves.
	aiRegistry := ai.NewRegistry(map[string]ai.ProviderConfig{
		"openai":   {APIKey: cfg.OpenAIKey, Model: cfg.OpenAIModel, ModelImage: cfg.OpenAIImageModel, BaseURL: cfg.OpenAIBaseURL, JSONMode: true},
		"gemini":   {APIKey: cfg.GeminiKey, Model: cfg.GeminiModel, ModelImage: cfg.GeminiImageModel, BaseURL: cfg.GeminiBaseURL, JSONMode: true},
		"claude":   {APIKey: cfg.ClaudeKey, Model: cfg.ClaudeModel, BaseURL: cfg.ClaudeBaseURL, JSONMode: true},
		"mistral":  {APIKey: cfg.MistralKey, Model: cfg.MistralModel, BaseURL: cfg.MistralBaseURL, JSONMode: true},
		"deepseek": {APIKey: cfg.DeepSeekKey, Model: cfg.DeepSeekModel, BaseURL: cfg.DeepSeekBaseURL},
		"zhipu":    {APIKey: cfg.ZhipuKey, Model: cfg.ZhipuModel, ModelImage: cfg.ZhipuImageModel, BaseURL: cfg.ZhipuBaseURL},
	})

	greetingChain := aiRegistry.Chain(cfg.GreetingProviders)
	slog.Info("ai providers initialized",
		"available", aiRegistry.Available(),
		"greeting_chain", len(greetingChain),
	)
	greetings := greeting.NewService(greetingChain)

	var imageGen ai.ImageGenerator
	if cfg.ImageProvider != "" {
		imageGen, err = aiRegistry.ImageGenerator(cfg.ImageProvider)
		if err != nil {
			slog.Warn("image generation disabled", "provider", cfg.ImageProvider, "error", err)
			imageGen = nil
		}
	}

	pool := background.NewPool(kv)
	backgrounds := background.NewService(imageGen, sink, pool)
	preloader := background.NewPreloader(images, kv)
	if storageClient != nil {
		preloader.Trust(storageClient.Hosts()...)
	}

	// Page templates.
	renderer, err := render.New()
	if err != nil {
		slog.Error("failed to initialize template renderer", "error", err)
		os.Exit(1)
	}

	// Server-side card renderer.
	fonts, err := cardimage.LoadFonts(cfg.FontPath)
	if err != nil {
		slog.Error("failed to load card font", "path", cfg.FontPath, "error", err)
		os.Exit(1)
	}
	cardRenderer := cardimage.NewRenderer(fonts)

	// Headless browser for exports. The browser starts on the first export.
	capturer := export.NewChromeCapturer(cfg.ChromeWSURL)
	defer capturer.Close()
	exporter := export.NewExporter(export.NewPipeline(capturer), cfg.ExportTimeout)

	// Create handler groups with their dependencies.
	apiHandlers := handlers.NewAPI(greetings, backgrounds, aiRegistry, events)
	imageHandlers := handlers.NewImages(images, cardRenderer, cache.NewImageCache(kv, cache.DefaultImageTTL), cfg.BaseURL())
	cardHandlers := handlers.NewCards(handlers.CardDeps{
		Render:         renderer,
		Sessions:       session.NewStore(kv),
		Greetings:      greetings,
		Backgrounds:    backgrounds,
		Pool:           pool,
		Preloader:      preloader,
		Exporter:       exporter,
		Shares:         handlers.NewShareStore(kv, handlers.DefaultShareTTL),
		Events:         events,
		Storage:        storageClient,
		BaseURL:        cfg.BaseURL(),
		CaptureURL:     cfg.CaptureURL,
		BackgroundWait: cfg.BackgroundWait,
	})

	// 30 generation requests per minute per client.
	limiter := middleware.NewRateLimiter(30, time.Minute)

	r := router.New(apiHandlers, cardHandlers, imageHandlers, limiter)

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: cfg.WriteTimeout(),
		IdleTimeout:  120 * time.Second,
	}

	// Start the server in a goroutine so we can listen for shutdown signals.
	go func() {
		slog.Info("server starting", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown: wait for SIGINT or SIGTERM, then drain connections.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig)

	// Exports may still be running; give them their full budget.
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ExportTimeout+5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped gracefully")
}
