// Package redirect picks a random archived article for the landing
// page: same month and day as today, from a random past year.
package redirect

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/forumtrail/forumtrail/internal/archive"
)

// ErrNoMatch reports that no archived article exists for the chosen
// anniversary date.
var ErrNoMatch = errors.New("redirect: no matching article")

// RecordLookup is the part of the record store the selector uses.
type RecordLookup interface {
	RandomByDate(ctx context.Context, year, monthDay string) (archive.Record, error)
}

// Config locates the site in time.
type Config struct {
	// FirstDate is the YYYYMMDD the site went live.
	FirstDate string
	// Zone is the site's local timezone.
	Zone *time.Location
}

// Selector picks an on-this-day article from a random operating year.
type Selector struct {
	records RecordLookup
	zone    *time.Location
	launch  time.Time
	rng     func(n int) int
	logger  *zap.Logger
}

// New constructs a Selector.
func New(records RecordLookup, cfg Config, logger *zap.Logger) (*Selector, error) {
	launch, err := time.Parse("20060102", cfg.FirstDate)
	if err != nil {
		return nil, fmt.Errorf("parse first date: %w", err)
	}
	zone := cfg.Zone
	if zone == nil {
		zone = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Selector{
		records: records,
		zone:    zone,
		launch:  launch,
		rng:     rand.IntN,
		logger:  logger,
	}, nil
}

// Pick selects one archived article published on today's month and day
// in a uniformly random past year. The current year is excluded so the
// pick is always an anniversary; years before the site carried today's
// month-day are excluded too. When the year window is empty the store
// is never queried. A year with no archived article for the date
// yields ErrNoMatch; there is no retry with another year.
func (s *Selector) Pick(ctx context.Context, now time.Time) (archive.Record, error) {
	local := now.In(s.zone)
	monthDay := archive.MonthDay(local)

	endYear := local.Year() - 1
	startYear := s.launch.Year()
	if monthDay < archive.MonthDay(s.launch) {
		startYear++
	}
	if startYear > endYear {
		return archive.Record{}, ErrNoMatch
	}

	year := strconv.Itoa(startYear + s.rng(endYear-startYear+1))
	rec, err := s.records.RandomByDate(ctx, year, monthDay)
	if errors.Is(err, archive.ErrNotFound) {
		s.logger.Debug("no article for anniversary date",
			zap.String("year", year),
			zap.String("month_day", monthDay))
		return archive.Record{}, ErrNoMatch
	}
	if err != nil {
		return archive.Record{}, fmt.Errorf("random article lookup: %w", err)
	}
	return rec, nil
}
