package crawl

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/forumtrail/forumtrail/internal/archive"
)

// Config controls Driver behavior.
type Config struct {
	// PageDelay is the pause between successive page fetches.
	PageDelay time.Duration
	// Deadline bounds the wall time of a single crawl. A crawl that
	// runs out of time stops cleanly and reports its cursor.
	Deadline time.Duration
}

// Options tune a single crawl.
type Options struct {
	// PageBudget caps the number of pages visited; zero means
	// unlimited.
	PageBudget int
	// Observers are notified after each archived page, in addition to
	// the observers the Driver was built with.
	Observers []PageObserver
}

// Result summarizes a finished crawl. NextCursor carries the first
// unvisited page when the crawl stopped on its budget or deadline; it
// is empty when the listing was exhausted.
type Result struct {
	PagesScraped int
	URLsFound    int
	NewURLs      []string
	NextCursor   string
}

// Driver executes the page loop: fetch, extract, persist, follow.
type Driver struct {
	fetcher   archive.Fetcher
	extractor archive.Extractor
	records   archive.RecordStore
	clock     archive.Clock
	pause     pauseController
	cfg       Config
	observers []PageObserver
	logger    *zap.Logger
}

// NewDriver constructs a Driver.
func NewDriver(
	fetcher archive.Fetcher,
	extractor archive.Extractor,
	records archive.RecordStore,
	clock archive.Clock,
	cfg Config,
	logger *zap.Logger,
	observers ...PageObserver,
) *Driver {
	if cfg.PageDelay <= 0 {
		cfg.PageDelay = 500 * time.Millisecond
	}
	if cfg.Deadline <= 0 {
		cfg.Deadline = 2 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{
		fetcher:   fetcher,
		extractor: extractor,
		records:   records,
		clock:     clock,
		pause:     &timerPauseController{},
		cfg:       cfg,
		observers: observers,
		logger:    logger,
	}
}

// Crawl walks the listing starting at startURL until the pager runs
// out, the page budget is spent, or the deadline passes. A fetch,
// extraction or persistence error stops the crawl immediately; the
// partial Result is still returned alongside the error.
func (d *Driver) Crawl(ctx context.Context, startURL string, opts Options) (Result, error) {
	var res Result
	deadline := d.clock.Now().Add(d.cfg.Deadline)
	current := startURL

	for current != "" {
		if opts.PageBudget > 0 && res.PagesScraped >= opts.PageBudget {
			res.NextCursor = current
			break
		}
		if !d.clock.Now().Before(deadline) {
			d.logger.Warn("crawl deadline reached",
				zap.String("url", current),
				zap.Int("pages_scraped", res.PagesScraped))
			res.NextCursor = current
			break
		}
		if res.PagesScraped > 0 {
			d.pause.Pause(ctx, d.cfg.PageDelay)
		}
		if err := ctx.Err(); err != nil {
			res.NextCursor = current
			return res, fmt.Errorf("crawl canceled: %w", err)
		}

		visit, err := d.visitPage(ctx, current)
		if err != nil {
			res.NextCursor = current
			return res, err
		}

		res.PagesScraped++
		res.URLsFound += len(visit.Records)
		res.NewURLs = append(res.NewURLs, visit.Inserted...)
		d.notify(ctx, visit, opts.Observers)
		current = visit.NextURL
	}
	return res, nil
}

func (d *Driver) visitPage(ctx context.Context, pageURL string) (PageVisit, error) {
	page, err := d.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return PageVisit{}, err
	}
	listing, err := d.extractor.Extract(page.Body)
	if err != nil {
		return PageVisit{}, fmt.Errorf("extract %s: %w", pageURL, err)
	}
	inserted, err := d.records.InsertIfAbsent(ctx, listing.Records)
	if err != nil {
		return PageVisit{}, fmt.Errorf("persist %s: %w", pageURL, err)
	}
	return PageVisit{
		URL:      pageURL,
		NextURL:  listing.NextURL,
		Records:  listing.Records,
		Inserted: inserted,
		Duration: page.Duration,
	}, nil
}

func (d *Driver) notify(ctx context.Context, visit PageVisit, extra []PageObserver) {
	for _, obs := range d.observers {
		obs.ObservePage(ctx, visit)
	}
	for _, obs := range extra {
		obs.ObservePage(ctx, visit)
	}
}
