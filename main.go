package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sublet-scraper/config"
	"sublet-scraper/notify"
	"sublet-scraper/scraper"
	"sublet-scraper/server"
	"sublet-scraper/services"
	"sublet-scraper/storage"
	"sublet-scraper/utils"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not set up logging: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err = run(ctx, cfg, logger)
	stop()
	if err != nil {
		logger.Error("Sublet scraper failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
	logger.Sync()
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Scraper starting",
		zap.Int("sources", len(cfg.Sources)),
		zap.String("fetcher", cfg.Fetcher),
		zap.String("notifier", cfg.Notifier),
		zap.Duration("min_delay", cfg.MinDelay),
		zap.Duration("max_delay", cfg.MaxDelay))

	sources, err := services.BuildSources(cfg.Sources, logger)
	if err != nil {
		return err
	}

	store, err := storage.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	notifier, err := notify.New(cfg, logger)
	if err != nil {
		return err
	}

	fetcher, closeFetcher := newFetcher(cfg, logger)
	defer closeFetcher()

	paginator := scraper.NewPaginator(fetcher, utils.NewDelayer(nil), scraper.PaginatorConfig{
		MaxPages: cfg.MaxPages,
		MinDelay: cfg.MinDelay,
		MaxDelay: cfg.MaxDelay,
		Retry: utils.RetryPolicy{
			MaxAttempts:  cfg.MaxRetries,
			InitialDelay: cfg.RetryInitialDelay,
			MaxDelay:     30 * time.Second,
		},
	}, logger)

	dcfg := services.DiscoveryConfig{
		NotifyDelay:  cfg.NotifyDelay,
		NotifyJitter: cfg.NotifyJitter,
	}
	if cfg.ExportCSV != "" {
		dcfg.Exporter = storage.NewCSVWriter(cfg.ExportCSV)
	}

	discovery := services.NewDiscovery(sources, paginator, store, notifier, nil, dcfg, logger)

	if cfg.Schedule == "" {
		report, err := discovery.Run(ctx)
		services.PrintReport(os.Stdout, report)
		return err
	}
	return runScheduled(ctx, cfg, discovery, store, logger)
}

// runScheduled keeps running discovery on the configured schedule until the
// process is signalled. Failed runs are logged and reported on /healthz.
func runScheduled(ctx context.Context, cfg *config.Config, discovery *services.Discovery, store storage.Store, logger *zap.Logger) error {
	if cfg.StatusAddr != "" {
		srv := server.New(cfg.StatusAddr, discovery, store, logger)
		if err := srv.Start(); err != nil {
			return fmt.Errorf("status server: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Status server shutdown failed", zap.Error(err))
			}
		}()
	}

	scheduler := services.NewScheduler(logger)
	job := func(ctx context.Context) {
		report, err := discovery.Run(ctx)
		services.PrintReport(os.Stdout, report)
		if err != nil {
			logger.Error("Run failed", zap.String("run_id", report.RunID), zap.Error(err))
		}
	}
	if err := scheduler.Add(ctx, cfg.Schedule, job); err != nil {
		return err
	}

	scheduler.Start()
	scheduler.RunNow()

	<-ctx.Done()
	logger.Info("Shutting down")
	scheduler.Stop()
	return nil
}

func newFetcher(cfg *config.Config, logger *zap.Logger) (scraper.Fetcher, func()) {
	agents := utils.NewUserAgentPool(utils.DefaultUserAgents, nil)

	if cfg.Fetcher == config.FetcherBrowser {
		b := scraper.NewBrowserFetcher(cfg.Headless, cfg.RequestTimeout, agents, logger)
		return b, b.Close
	}
	return scraper.NewHTTPFetcher(cfg.RequestTimeout, agents, logger), func() {}
}
