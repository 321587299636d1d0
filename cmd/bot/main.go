package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"newsbot/internal/archive"
	"newsbot/internal/config"
	"newsbot/internal/controller"
	"newsbot/internal/enhance"
	"newsbot/internal/fetcher"
	"newsbot/internal/gpt"
	"newsbot/internal/imaging"
	"newsbot/internal/metrics"
	"newsbot/internal/publish"
	"newsbot/internal/rate"
	"newsbot/internal/state"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	if dir := filepath.Dir(cfg.StateFile); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Error("create data directory", "path", dir, "error", err)
			os.Exit(1)
		}
	}

	store := state.NewStore(cfg.StateFile, cfg.MaxEntriesKept, log)
	st, err := store.Load()
	if err != nil {
		log.Error("load state", "path", cfg.StateFile, "error", err)
		os.Exit(1)
	}

	var arch archive.Store = archive.Nop{}
	if cfg.ArchiveDatabasePath != "" {
		sqliteArchive, err := archive.NewSQLite(cfg.ArchiveDatabasePath)
		if err != nil {
			log.Error("open archive database", "path", cfg.ArchiveDatabasePath, "error", err)
			os.Exit(1)
		}
		defer func() { _ = sqliteArchive.Close() }()
		arch = sqliteArchive
	}

	publisher, err := publish.New(cfg.TelegramToken, cfg.ChannelID, log)
	if err != nil {
		log.Error("create publisher", "error", err)
		os.Exit(1)
	}

	collector := metrics.NewCollector()

	var rewriter enhance.Rewriter
	if cfg.GPTEnabled() {
		rewriter = gpt.NewClient(http.DefaultClient, cfg.YandexEndpoint,
			cfg.YandexAPIKey, cfg.YandexFolderID,
			gpt.ModelConfig{
				Model:       cfg.GPTModel,
				Temperature: cfg.GPTTemperature,
				MaxTokens:   cfg.GPTMaxTokens,
			},
			cfg.RequestTimeout, cfg.GPTErrorThreshold, log)
	} else if !cfg.DisableGPT {
		log.Warn("text rewrite disabled: YANDEX_API_KEY or YANDEX_FOLDER_ID not set")
	}

	var renderer enhance.TemplateRenderer
	var original enhance.OriginalFetcher
	if cfg.EnableImages && cfg.ImageSource != config.ImageSourceNone {
		r, err := imaging.NewRenderer(cfg.ImageWidth, cfg.ImageHeight, cfg.MaxTextLines, cfg.ImageWorkers)
		if err != nil {
			log.Error("create image renderer", "error", err)
			os.Exit(1)
		}
		renderer = r
		original = imaging.NewOriginalFetcher(http.DefaultClient, cfg.RequestTimeout)
	}

	pipeline := enhance.NewPipeline(enhance.Options{
		RewriteEnabled: rewriter != nil,
		ImagesEnabled:  cfg.EnableImages,
		ImageSource:    cfg.ImageSource,
		ImageFallback:  cfg.ImageFallback,
	}, rewriter, renderer, original, collector, log)

	f := fetcher.New(http.DefaultClient, cfg.RequestTimeout, cfg.FetchWorkers)
	limiter := rate.NewLimiter(cfg.PostsPerHour, cfg.MinDelay)

	ctrl := controller.New(cfg.FeedURLs, f, pipeline, publisher,
		store, limiter, arch, collector, st, cfg.CheckInterval, log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.MetricsAddr != "" {
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: collector.Handler()}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server", "error", err)
			}
		}()
		defer func() { _ = srv.Shutdown(context.Background()) }()
	}

	log.Info("starting bot",
		"feeds", len(cfg.FeedURLs),
		"check_interval", cfg.CheckInterval,
		"posts_per_hour", cfg.PostsPerHour,
		"min_delay", cfg.MinDelay)

	ctrl.Run(ctx)

	log.Info("bot stopped")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
