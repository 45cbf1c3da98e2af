package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/forumtrail/forumtrail/internal/archive"
)

// RecordStoreConfig controls table naming and insert strategy for the
// article URL store.
type RecordStoreConfig struct {
	// Table defaults to "article_urls".
	Table string
	// BulkInsert sends each batch as a single set-oriented statement.
	// When false, records are inserted one at a time and individual
	// failures are logged and skipped.
	BulkInsert bool
	Logger     *zap.Logger
}

// RecordStore persists archived article URLs in Postgres.
type RecordStore struct {
	pool   db
	table  string
	bulk   bool
	logger *zap.Logger
}

// NewRecordStore constructs a store on top of an existing pool.
func NewRecordStore(pool db, cfg RecordStoreConfig) (*RecordStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	table, err := tableName(cfg.Table, "article_urls")
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecordStore{
		pool:   pool,
		table:  table,
		bulk:   cfg.BulkInsert,
		logger: logger,
	}, nil
}

// InsertIfAbsent stores the given records, deriving the year and
// month-day columns from each permalink's embedded timestamp. Records
// whose URL is already present are left untouched. It returns the URLs
// that were actually inserted.
func (s *RecordStore) InsertIfAbsent(ctx context.Context, records []archive.Record) ([]string, error) {
	stamped := make([]archive.Record, 0, len(records))
	for _, rec := range records {
		year, monthDay, err := archive.SplitStamp(rec.URL)
		if err != nil {
			s.logger.Warn("skipping record with unrecognized permalink",
				zap.String("url", rec.URL),
				zap.Error(err))
			continue
		}
		rec.Year = year
		rec.MonthDay = monthDay
		stamped = append(stamped, rec)
	}
	if len(stamped) == 0 {
		return nil, nil
	}
	if s.bulk {
		return s.insertBulk(ctx, stamped)
	}
	return s.insertSerial(ctx, stamped)
}

func (s *RecordStore) insertBulk(ctx context.Context, records []archive.Record) ([]string, error) {
	urls := make([]string, len(records))
	titles := make([]string, len(records))
	years := make([]string, len(records))
	monthDays := make([]string, len(records))
	for i, rec := range records {
		urls[i] = rec.URL
		titles[i] = rec.Title
		years[i] = rec.Year
		monthDays[i] = rec.MonthDay
	}

	query := fmt.Sprintf(`
INSERT INTO %s (url, title, year, monthday)
SELECT r.url, r.title, r.year, r.monthday
FROM unnest($1::text[], $2::text[], $3::text[], $4::text[]) AS r(url, title, year, monthday)
ON CONFLICT (url) DO NOTHING
RETURNING url`, s.table)

	rows, err := s.pool.Query(ctx, query, urls, titles, years, monthDays)
	if err != nil {
		return nil, fmt.Errorf("insert records: %w", err)
	}
	defer rows.Close()

	var inserted []string
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("scan inserted url: %w", err)
		}
		inserted = append(inserted, url)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("insert records: %w", err)
	}
	return inserted, nil
}

func (s *RecordStore) insertSerial(ctx context.Context, records []archive.Record) ([]string, error) {
	query := fmt.Sprintf(`
INSERT INTO %s (url, title, year, monthday)
VALUES ($1, $2, $3, $4)
ON CONFLICT (url) DO NOTHING`, s.table)

	var inserted []string
	for _, rec := range records {
		tag, err := s.pool.Exec(ctx, query, rec.URL, rec.Title, rec.Year, rec.MonthDay)
		if err != nil {
			s.logger.Warn("record insert failed, continuing",
				zap.String("url", rec.URL),
				zap.Error(err))
			continue
		}
		if tag.RowsAffected() == 1 {
			inserted = append(inserted, rec.URL)
		}
	}
	return inserted, nil
}

// Exists reports whether a permalink is already archived.
func (s *RecordStore) Exists(ctx context.Context, url string) (bool, error) {
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE url = $1)`, s.table)
	var exists bool
	if err := s.pool.QueryRow(ctx, query, url).Scan(&exists); err != nil {
		return false, fmt.Errorf("check url exists: %w", err)
	}
	return exists, nil
}

// RandomByDate returns one uniformly random record archived for the
// given year and month-day, or archive.ErrNotFound when none exist.
func (s *RecordStore) RandomByDate(ctx context.Context, year, monthDay string) (archive.Record, error) {
	query := fmt.Sprintf(`
SELECT url, title, year, monthday
FROM %s
WHERE year = $1 AND monthday = $2
ORDER BY random()
LIMIT 1`, s.table)

	var rec archive.Record
	err := s.pool.QueryRow(ctx, query, year, monthDay).Scan(&rec.URL, &rec.Title, &rec.Year, &rec.MonthDay)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return archive.Record{}, archive.ErrNotFound
		}
		return archive.Record{}, fmt.Errorf("random record by date: %w", err)
	}
	return rec, nil
}

// DatesWithRecords returns the set of YYYYMMDD dates that have at
// least one archived record.
func (s *RecordStore) DatesWithRecords(ctx context.Context) (map[string]struct{}, error) {
	query := fmt.Sprintf(`SELECT DISTINCT year || monthday FROM %s`, s.table)
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list archived dates: %w", err)
	}
	defer rows.Close()

	dates := make(map[string]struct{})
	for rows.Next() {
		var date string
		if err := rows.Scan(&date); err != nil {
			return nil, fmt.Errorf("scan archived date: %w", err)
		}
		dates[date] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list archived dates: %w", err)
	}
	return dates, nil
}

// TotalCount returns the number of archived records.
func (s *RecordStore) TotalCount(ctx context.Context) (int64, error) {
	query := fmt.Sprintf(`SELECT count(*) FROM %s`, s.table)
	var total int64
	if err := s.pool.QueryRow(ctx, query).Scan(&total); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return total, nil
}

// CountByYear returns per-year record counts ordered by year.
func (s *RecordStore) CountByYear(ctx context.Context) ([]archive.YearCount, error) {
	query := fmt.Sprintf(`SELECT year, count(*) FROM %s GROUP BY year ORDER BY year`, s.table)
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("count records by year: %w", err)
	}
	defer rows.Close()

	var counts []archive.YearCount
	for rows.Next() {
		var yc archive.YearCount
		if err := rows.Scan(&yc.Year, &yc.Count); err != nil {
			return nil, fmt.Errorf("scan year count: %w", err)
		}
		counts = append(counts, yc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("count records by year: %w", err)
	}
	return counts, nil
}
