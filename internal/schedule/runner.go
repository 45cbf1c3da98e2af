// Package schedule triggers archive crawls on a fixed interval.
package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/forumtrail/forumtrail/internal/archive"
	"github.com/forumtrail/forumtrail/internal/crawl"
)

// Archiver is the part of the crawl layer the runner drives.
type Archiver interface {
	RunListing(ctx context.Context, light bool) (crawl.Result, error)
	RunNext(ctx context.Context) (archive.Checkpoint, crawl.Result, error)
}

// Config controls the runner cadence.
type Config struct {
	Interval time.Duration
	// Light caps each listing crawl at its page budget so ticks stay
	// cheap.
	Light bool
	// Backfill advances one historical date per tick.
	Backfill bool
}

// Runner triggers a listing crawl, and optionally one backfill step,
// on every tick.
type Runner struct {
	archiver Archiver
	cfg      Config
	logger   *zap.Logger
}

// New constructs a Runner.
func New(archiver Archiver, cfg Config, logger *zap.Logger) *Runner {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{archiver: archiver, cfg: cfg, logger: logger}
}

// Run blocks, crawling immediately and then on every tick until the
// context finishes.
func (r *Runner) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	r.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Runner) tick(ctx context.Context) {
	logger := r.logger.With(zap.String("run_id", uuid.NewString()))

	res, err := r.archiver.RunListing(ctx, r.cfg.Light)
	if err != nil {
		logger.Error("scheduled listing crawl failed", zap.Error(err))
	} else {
		logger.Info("scheduled listing crawl finished",
			zap.Int("pages_scraped", res.PagesScraped),
			zap.Int("new_urls", len(res.NewURLs)))
	}

	if ctx.Err() != nil || !r.cfg.Backfill {
		return
	}

	cp, res, err := r.archiver.RunNext(ctx)
	switch {
	case errors.Is(err, archive.ErrNotFound):
		logger.Debug("no eligible backfill dates")
	case err != nil:
		logger.Error("scheduled backfill failed",
			zap.String("date", cp.Date),
			zap.Error(err))
	default:
		logger.Info("scheduled backfill advanced",
			zap.String("date", cp.Date),
			zap.Int("pages_scraped", res.PagesScraped),
			zap.Int("urls_found", res.URLsFound))
	}
}
