// Command launchfeed runs the launch data pipeline: it fetches upcoming
// launches from the provider, enriches them with AI-generated descriptions,
// and serves the assembled feed over HTTP.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"log/slog"

	"github.com/launchfeed/launchfeed/internal/cache"
	"github.com/launchfeed/launchfeed/internal/config"
	"github.com/launchfeed/launchfeed/internal/enrichment"
	"github.com/launchfeed/launchfeed/internal/launchapi"
	"github.com/launchfeed/launchfeed/internal/logging"
	"github.com/launchfeed/launchfeed/internal/metrics"
	"github.com/launchfeed/launchfeed/internal/repository"
	"github.com/launchfeed/launchfeed/internal/server"
	"github.com/launchfeed/launchfeed/internal/service"
	"github.com/launchfeed/launchfeed/internal/taskqueue"
)

var (
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   "launchfeed",
		Short: "Rocket launch feed service",
		Long:  `Fetches, enriches and serves upcoming rocket launch data.`,
		RunE:  runServe,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE:  runServe,
	}

	refreshCmd = &cobra.Command{
		Use:   "refresh",
		Short: "Fetch and enrich one page of launches, print the result and exit",
		RunE:  runRefresh,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (optional)")
	rootCmd.AddCommand(serveCmd, refreshCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app bundles the wired pipeline and its teardown.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	svc     *service.Service
	metrics *metrics.Pipeline
	cleanup []func()
}

func (a *app) close() {
	a.svc.Stop()
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		a.cleanup[i]()
	}
}

func buildApp() (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to init logger: %w", err)
	}

	pipeline, err := metrics.NewPipeline()
	if err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, metrics: pipeline}

	launchTTL := time.Duration(cfg.Cache.LaunchTTLSeconds) * time.Second
	enrichTTL := time.Duration(cfg.Cache.EnrichmentTTLSeconds) * time.Second

	var store cache.Store
	switch cfg.Cache.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.Cache.RedisAddr})
		a.cleanup = append(a.cleanup, func() { _ = client.Close() })
		store = cache.NewRedisStore(client, launchTTL, enrichTTL, logger)
		logger.Info("using redis cache", "addr", cfg.Cache.RedisAddr)
	default:
		disk, err := cache.NewDiskStore(cfg.Cache.Dir, launchTTL, enrichTTL, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open cache dir: %w", err)
		}
		store = disk
		logger.Info("using disk cache", "dir", cfg.Cache.Dir)
	}

	repo, err := repository.Open(cfg.DB.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	a.cleanup = append(a.cleanup, func() { _ = repo.Close() })

	policy := launchapi.DefaultRetryPolicy()
	policy.MaxRetries = cfg.LaunchAPI.MaxRetries
	policy.InitialDelay = time.Duration(cfg.LaunchAPI.InitialDelayMillis) * time.Millisecond
	fetcher := launchapi.NewClient(cfg.LaunchAPI.BaseURL, logger, launchapi.Options{
		PageSize:       cfg.LaunchAPI.PageSize,
		RequestTimeout: time.Duration(cfg.LaunchAPI.RequestTimeoutSeconds) * time.Second,
		Policy:         &policy,
		Metrics:        pipeline,
	})

	var enricher enrichment.Enricher
	if cfg.Enrichment.APIKey == "" {
		logger.Warn("no enrichment API key configured, using mock enricher")
		enricher = enrichment.NewMockEnricher()
	} else {
		enricher = enrichment.NewClient(enrichment.Config{
			APIKey:      cfg.Enrichment.APIKey,
			BaseURL:     cfg.Enrichment.BaseURL,
			Model:       cfg.Enrichment.Model,
			Temperature: cfg.Enrichment.Temperature,
			MaxTokens:   cfg.Enrichment.MaxTokens,
			Timeout:     time.Duration(cfg.Enrichment.TimeoutSeconds) * time.Second,
		}, logger)
	}

	queue := taskqueue.New(cfg.Queue.MaxConcurrent, cfg.Queue.Capacity)

	a.svc = service.New(fetcher, enricher, store, queue, logger, service.Options{
		Repository: repo,
		Metrics:    pipeline,
	})
	return a, nil
}

func runServe(_ *cobra.Command, _ []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	a.logger.Info("starting launchfeed",
		"listen_addr", a.cfg.Server.ListenAddr,
		"provider", a.cfg.LaunchAPI.BaseURL)

	handler := server.NewHandler(a.svc, a.metrics.Handler(), a.logger)
	srv := server.New(a.cfg.Server, a.logger, handler.Router())

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(sigCtx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gCtx.Done()
		return srv.Shutdown(context.Background())
	})

	if err := g.Wait(); err != nil {
		a.logger.Error("service error", "error", err)
		return err
	}
	a.logger.Info("server stopped gracefully")
	return nil
}

func runRefresh(_ *cobra.Command, _ []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	launches, err := a.svc.GetLaunches(sigCtx)
	if err != nil {
		return fmt.Errorf("refresh failed: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(launches); err != nil {
		return fmt.Errorf("failed to encode launches: %w", err)
	}
	a.logger.Info("refresh complete", "launches", len(launches))
	return nil
}
