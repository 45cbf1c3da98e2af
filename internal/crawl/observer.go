package crawl

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/forumtrail/forumtrail/internal/archive"
	"github.com/forumtrail/forumtrail/internal/metrics"
)

// PageVisit describes one successfully archived listing page.
type PageVisit struct {
	URL      string
	NextURL  string
	Records  []archive.Record
	Inserted []string
	Duration time.Duration
}

// PageObserver receives a notification after every archived page.
// Observers run synchronously on the crawl goroutine.
type PageObserver interface {
	ObservePage(ctx context.Context, visit PageVisit)
}

// LogObserver emits a structured log line per archived page. It is
// useful during development or audits.
type LogObserver struct {
	logger *zap.Logger
}

// NewLogObserver wires a Zap logger to the observer interface.
func NewLogObserver(logger *zap.Logger) *LogObserver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogObserver{logger: logger}
}

// ObservePage logs the visit using structured fields.
func (o *LogObserver) ObservePage(_ context.Context, visit PageVisit) {
	o.logger.Info("page archived",
		zap.String("url", visit.URL),
		zap.Int("records", len(visit.Records)),
		zap.Int("new", len(visit.Inserted)),
		zap.Duration("dur", visit.Duration),
		zap.Bool("last_page", visit.NextURL == ""),
	)
}

// MetricsObserver feeds page visits into the Prometheus collectors.
type MetricsObserver struct{}

// ObservePage updates the page and record counters.
func (MetricsObserver) ObservePage(_ context.Context, visit PageVisit) {
	metrics.ObservePage(len(visit.Records), len(visit.Inserted), visit.Duration)
}
