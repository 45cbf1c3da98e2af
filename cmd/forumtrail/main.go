package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/forumtrail/forumtrail/internal/api"
	"github.com/forumtrail/forumtrail/internal/archive"
	"github.com/forumtrail/forumtrail/internal/clock/system"
	"github.com/forumtrail/forumtrail/internal/config"
	"github.com/forumtrail/forumtrail/internal/crawl"
	"github.com/forumtrail/forumtrail/internal/extract"
	collyfetcher "github.com/forumtrail/forumtrail/internal/fetcher/colly"
	"github.com/forumtrail/forumtrail/internal/logging"
	"github.com/forumtrail/forumtrail/internal/metrics"
	"github.com/forumtrail/forumtrail/internal/redirect"
	"github.com/forumtrail/forumtrail/internal/schedule"
	"github.com/forumtrail/forumtrail/internal/storage/memory"
	"github.com/forumtrail/forumtrail/internal/storage/postgres"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "load .env failed: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		records     archive.RecordStore
		checkpoints archive.CheckpointStore
		pinger      api.Pinger
	)
	switch cfg.Store.Provider {
	case config.ProviderPostgres:
		pool, err := postgres.Connect(ctx, postgres.Config{
			DSN:             cfg.DB.DSN,
			MaxConns:        int32(cfg.DB.MaxConns),
			MinConns:        int32(cfg.DB.MinConns),
			MaxConnLifetime: cfg.DB.MaxConnLifetime(),
		})
		if err != nil {
			logger.Fatal("postgres connect failed", zap.Error(err))
		}
		defer pool.Close()
		recordStore, err := postgres.NewRecordStore(pool, postgres.RecordStoreConfig{
			Table:      cfg.Store.ArticlesTable,
			BulkInsert: cfg.Store.BulkInsert,
			Logger:     logger.Named("records"),
		})
		if err != nil {
			logger.Fatal("record store init failed", zap.Error(err))
		}
		checkpointStore, err := postgres.NewCheckpointStore(pool, postgres.CheckpointStoreConfig{
			Table: cfg.Store.ProgressTable,
		})
		if err != nil {
			logger.Fatal("checkpoint store init failed", zap.Error(err))
		}
		records, checkpoints, pinger = recordStore, checkpointStore, pool
	case config.ProviderMemory:
		logger.Warn("using in-memory storage, nothing will survive a restart")
		records = memory.NewRecordStore()
		checkpoints = memory.NewCheckpointStore()
	}

	extractor, err := extract.New(cfg.Extractor.Profile, extract.Config{BaseURL: cfg.Site.BaseURL})
	if err != nil {
		logger.Fatal("extractor init failed", zap.Error(err))
	}
	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.Crawl.UserAgent,
		Timeout:   cfg.Crawl.Timeout(),
	})

	clock := system.New()
	zone := cfg.Site.Location()

	driver := crawl.NewDriver(
		fetcher,
		extractor,
		records,
		clock,
		crawl.Config{PageDelay: cfg.Crawl.PageDelay(), Deadline: cfg.Crawl.Deadline()},
		logger.Named("crawl"),
		crawl.NewLogObserver(logger.Named("pages")),
		crawl.MetricsObserver{},
	)
	archiver := crawl.NewArchiver(driver, checkpoints, clock, crawl.ArchiverConfig{
		ListingURL:  cfg.Site.ListingURL(),
		BaseURL:     cfg.Site.BaseURL,
		Zone:        zone,
		LightBudget: cfg.Crawl.LightBudget,
	}, logger.Named("archiver"))
	seeder := crawl.NewSeeder(checkpoints, records, clock, zone, cfg.Site.FirstDate, logger.Named("seeder"))
	picker, err := redirect.New(records, redirect.Config{
		FirstDate: cfg.Site.FirstDate,
		Zone:      zone,
	}, logger.Named("redirect"))
	if err != nil {
		logger.Fatal("redirect selector init failed", zap.Error(err))
	}

	apiServer := api.NewServer(api.Deps{
		Archiver:    archiver,
		Seeder:      seeder,
		Picker:      picker,
		Checkpoints: checkpoints,
		Records:     records,
		Clock:       clock,
		Pinger:      pinger,
		Logger:      logger.Named("api"),
	}, cfg)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	if cfg.Schedule.Enabled {
		runner := schedule.New(archiver, schedule.Config{
			Interval: cfg.Schedule.Interval(),
			Light:    cfg.Schedule.Light,
			Backfill: cfg.Schedule.Backfill,
		}, logger.Named("schedule"))
		go func() {
			logger.Info("schedule runner started", zap.Duration("interval", cfg.Schedule.Interval()))
			runner.Run(ctx)
		}()
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
