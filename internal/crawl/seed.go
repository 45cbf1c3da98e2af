package crawl

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/forumtrail/forumtrail/internal/archive"
)

// Seeder populates the checkpoint table with crawlable dates.
type Seeder struct {
	checkpoints archive.CheckpointStore
	records     archive.RecordStore
	clock       archive.Clock
	zone        *time.Location
	firstDate   string
	logger      *zap.Logger
}

// NewSeeder constructs a Seeder. firstDate is the YYYYMMDD the site
// went live; dates before it are never seeded.
func NewSeeder(
	checkpoints archive.CheckpointStore,
	records archive.RecordStore,
	clock archive.Clock,
	zone *time.Location,
	firstDate string,
	logger *zap.Logger,
) *Seeder {
	if zone == nil {
		zone = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Seeder{
		checkpoints: checkpoints,
		records:     records,
		clock:       clock,
		zone:        zone,
		firstDate:   firstDate,
		logger:      logger,
	}
}

// SeedRange creates pending checkpoints for every calendar date from
// startYear through endYear, clamped to the site launch date and to
// today. Dates that already have a checkpoint are left alone, so the
// call is idempotent.
func (s *Seeder) SeedRange(ctx context.Context, startYear, endYear int) (int, error) {
	dates, err := s.window(startYear, endYear)
	if err != nil {
		return 0, err
	}
	created, err := s.checkpoints.SeedDates(ctx, dates)
	if err != nil {
		return 0, err
	}
	s.logger.Info("seeded checkpoint range",
		zap.Int("start_year", startYear),
		zap.Int("end_year", endYear),
		zap.Int("dates", len(dates)),
		zap.Int("created", created))
	return created, nil
}

// SeedMissing creates pending checkpoints only for dates that have no
// archived records yet, judged by the date segments embedded in the
// stored permalinks.
func (s *Seeder) SeedMissing(ctx context.Context, startYear, endYear int) (int, error) {
	dates, err := s.window(startYear, endYear)
	if err != nil {
		return 0, err
	}
	archived, err := s.records.DatesWithRecords(ctx)
	if err != nil {
		return 0, fmt.Errorf("list archived dates: %w", err)
	}
	missing := make([]string, 0, len(dates))
	for _, date := range dates {
		if _, ok := archived[date]; !ok {
			missing = append(missing, date)
		}
	}
	created, err := s.checkpoints.SeedDates(ctx, missing)
	if err != nil {
		return 0, err
	}
	s.logger.Info("seeded missing dates",
		zap.Int("candidates", len(dates)),
		zap.Int("missing", len(missing)),
		zap.Int("created", created))
	return created, nil
}

func (s *Seeder) window(startYear, endYear int) ([]string, error) {
	today := s.clock.Now().In(s.zone)
	dates, err := archive.DatesInRange(startYear, endYear, s.firstDate, today)
	if err != nil {
		return nil, fmt.Errorf("resolve date range: %w", err)
	}
	return dates, nil
}
