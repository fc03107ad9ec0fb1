package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"xfeed/internal/api"
	"xfeed/internal/config"
	"xfeed/internal/discovery"
	"xfeed/internal/extractor"
	"xfeed/internal/fetcher"
	"xfeed/internal/orchestrator"
	"xfeed/internal/resultcache"
	"xfeed/internal/robots"
)

func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "Path to service configuration")
	addr := flag.String("addr", "", "HTTP listen address, overrides config")
	flag.Parse()

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{AddSource: true, Level: levelFor(cfg.Logging.Level)}))
	logger.Info("starting api server", "addr", cfg.Server.Addr)

	fetch := fetcher.New(fetcher.Options{
		UserAgent:        cfg.Fetch.UserAgent,
		RequestTimeout:   cfg.Fetch.RequestTimeout.Duration,
		DiscoveryTimeout: cfg.Fetch.DiscoveryTimeout.Duration,
		MaxBodyBytes:     cfg.Fetch.MaxBodyBytes,
		MaxRedirects:     cfg.Fetch.MaxRedirects,
		MinGap:           cfg.Fetch.MinGap.Duration,
		DiscoveryMinGap:  cfg.Fetch.DiscoveryMinGap.Duration,
		MaxRetries:       cfg.Fetch.MaxRetries,
		RetryBaseDelay:   cfg.Fetch.RetryBaseDelay.Duration,
		RetryMaxDelay:    cfg.Fetch.RetryMaxDelay.Duration,
		CircuitThreshold: cfg.Fetch.CircuitThreshold,
		CircuitCooldown:  cfg.Fetch.CircuitCooldown.Duration,
	}, logger)

	failedURLs := resultcache.NewFailedURLCache(cfg.Discovery.FailedURLTTL.Duration, 0, cfg.Cache.MaxEntries)
	discoveryEngine := discovery.New(fetch, failedURLs, discovery.Capabilities{
		EnableSitemap:       cfg.Discovery.EnableSitemap,
		EnableRobots:        cfg.Discovery.EnableRobots,
		EnableContentMining: cfg.Discovery.EnableContentMining,
	}, logger)

	var robotsChecker *robots.Checker
	if cfg.Robots.Respect {
		robotsChecker = robots.New(fetch, cfg.Fetch.UserAgent, cfg.Robots.CacheTTL.Duration, true, logger)
	}

	orch := orchestrator.New(orchestrator.Deps{
		Fetch:              fetch,
		Discovery:          discoveryEngine,
		Extractor:          extractor.New(logger),
		Robots:             robotsChecker,
		ContentCache:       resultcache.NewContentCache(cfg.Cache.TTL.Duration, cfg.Cache.SweepInterval.Duration, cfg.Cache.MaxEntries),
		DiscoveryCache:     resultcache.NewDiscoveryCache(cfg.Discovery.NegativeTTL.Duration, cfg.Cache.SweepInterval.Duration, cfg.Cache.MaxEntries),
		Generator:          "xfeed",
		SiteTTLMinutes:     int(cfg.Cache.TTL.Duration.Minutes()),
		MaxArticlesPerFeed: cfg.Extract.MaxArticlesPerFeed,
		Logger:             logger,
	})

	server := api.NewServer(orch, int(cfg.Cache.TTL.Duration.Seconds()), logger)

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: server,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown error", "error", err)
		}
	}()

	logger.Info("api server listening", "addr", cfg.Server.Addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
	log.Println("API server stopped")
}

func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); err != nil {
		cfg := config.Default()
		return &cfg, nil
	}
	return config.Load(path)
}

func levelFor(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
