package crawl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/forumtrail/forumtrail/internal/archive"
	"github.com/forumtrail/forumtrail/internal/metrics"
)

// ArchiverConfig locates the site and bounds incremental crawls.
type ArchiverConfig struct {
	// ListingURL is the first page of the live listing.
	ListingURL string
	// BaseURL is the site root that date listing pages hang off.
	BaseURL string
	// Zone is the site's local timezone, used to resolve "today".
	Zone *time.Location
	// LightBudget is the page budget of an incremental crawl.
	LightBudget int
}

// Archiver runs crawls against the live listing and against per-date
// archive listings, keeping the checkpoint table current as it goes.
type Archiver struct {
	driver      *Driver
	checkpoints archive.CheckpointStore
	clock       archive.Clock
	cfg         ArchiverConfig
	logger      *zap.Logger
}

// NewArchiver constructs an Archiver.
func NewArchiver(
	driver *Driver,
	checkpoints archive.CheckpointStore,
	clock archive.Clock,
	cfg ArchiverConfig,
	logger *zap.Logger,
) *Archiver {
	if cfg.LightBudget <= 0 {
		cfg.LightBudget = 1
	}
	if cfg.Zone == nil {
		cfg.Zone = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archiver{
		driver:      driver,
		checkpoints: checkpoints,
		clock:       clock,
		cfg:         cfg,
		logger:      logger,
	}
}

// RunListing crawls the live listing from its first page. In light
// mode the crawl stops after the configured page budget so periodic
// runs stay cheap; the full mode follows the pager to the end.
func (a *Archiver) RunListing(ctx context.Context, light bool) (Result, error) {
	mode := "live"
	opts := Options{}
	if light {
		mode = "light"
		opts.PageBudget = a.cfg.LightBudget
	}
	start := a.clock.Now()
	res, err := a.driver.Crawl(ctx, a.cfg.ListingURL, opts)
	a.finish(mode, res, start, err)
	return res, err
}

// RunDate crawls the archive listing of one YYYYMMDD date, resuming
// from the stored cursor when the date was interrupted earlier. Dates
// without a checkpoint are seeded first; completed dates are skipped.
func (a *Archiver) RunDate(ctx context.Context, date string) (Result, error) {
	cp, err := a.checkpoints.Get(ctx, date)
	switch {
	case errors.Is(err, archive.ErrNotFound):
		if _, err := a.checkpoints.SeedDates(ctx, []string{date}); err != nil {
			return Result{}, fmt.Errorf("seed date %s: %w", date, err)
		}
		cp = archive.Checkpoint{Date: date, Status: archive.StatusPending}
	case err != nil:
		return Result{}, err
	case cp.Status == archive.StatusCompleted:
		a.logger.Debug("date already completed", zap.String("date", date))
		return Result{}, nil
	}
	return a.crawlDate(ctx, cp)
}

// RunNext advances the historical backfill by exactly one date: the
// checkpoint store picks the most seasonally relevant pending or
// in-progress date and RunNext crawls it.
func (a *Archiver) RunNext(ctx context.Context) (archive.Checkpoint, Result, error) {
	monthDay := archive.MonthDay(a.clock.Now().In(a.cfg.Zone))
	cp, err := a.checkpoints.NextEligible(ctx, monthDay)
	if err != nil {
		return archive.Checkpoint{}, Result{}, err
	}
	res, err := a.crawlDate(ctx, cp)
	return cp, res, err
}

func (a *Archiver) crawlDate(ctx context.Context, cp archive.Checkpoint) (Result, error) {
	startURL := cp.Cursor
	if startURL == "" {
		startURL = archive.DateListingURL(a.cfg.BaseURL, cp.Date)
	}
	tracker := &checkpointTracker{store: a.checkpoints, base: cp, logger: a.logger}

	start := a.clock.Now()
	res, err := a.driver.Crawl(ctx, startURL, Options{Observers: []PageObserver{tracker}})
	a.finish("date", res, start, err)
	if err != nil {
		return res, err
	}
	if res.NextCursor == "" {
		if err := tracker.complete(ctx); err != nil {
			return res, fmt.Errorf("finalize date %s: %w", cp.Date, err)
		}
		a.logger.Debug("date checkpoint completed", zap.String("date", cp.Date))
	}
	return res, nil
}

func (a *Archiver) finish(mode string, res Result, start time.Time, err error) {
	dur := a.clock.Now().Sub(start)
	if err != nil {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			metrics.ObservePageError()
		}
		metrics.ObserveCrawl(mode, "error", dur)
		a.logger.Error("crawl failed",
			zap.String("mode", mode),
			zap.Int("pages_scraped", res.PagesScraped),
			zap.Error(err))
		return
	}
	metrics.ObserveCrawl(mode, "success", dur)
	a.logger.Info("crawl finished",
		zap.String("mode", mode),
		zap.Int("pages_scraped", res.PagesScraped),
		zap.Int("urls_found", res.URLsFound),
		zap.Int("new_urls", len(res.NewURLs)),
		zap.String("next_cursor", res.NextCursor))
}

// checkpointTracker mirrors crawl progress into the checkpoint store
// after every page. Update failures are logged and do not stop the
// crawl.
type checkpointTracker struct {
	store  archive.CheckpointStore
	base   archive.Checkpoint
	pages  int
	urls   int
	logger *zap.Logger
}

func (t *checkpointTracker) ObservePage(ctx context.Context, visit PageVisit) {
	t.pages++
	t.urls += len(visit.Records)
	err := t.store.Update(ctx, archive.Checkpoint{
		Date:         t.base.Date,
		Status:       archive.StatusInProgress,
		Cursor:       visit.NextURL,
		PagesScraped: t.base.PagesScraped + t.pages,
		URLsFound:    t.base.URLsFound + t.urls,
	})
	if err != nil {
		t.logger.Warn("checkpoint update failed",
			zap.String("date", t.base.Date),
			zap.Error(err))
	}
}

func (t *checkpointTracker) complete(ctx context.Context) error {
	return t.store.Update(ctx, archive.Checkpoint{
		Date:         t.base.Date,
		Status:       archive.StatusCompleted,
		PagesScraped: t.base.PagesScraped + t.pages,
		URLsFound:    t.base.URLsFound + t.urls,
	})
}
