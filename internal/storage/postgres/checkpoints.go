package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/forumtrail/forumtrail/internal/archive"
)

// CheckpointStoreConfig controls table naming for the progress store.
type CheckpointStoreConfig struct {
	// Table defaults to "scrape_progress".
	Table string
}

// CheckpointStore tracks per-date crawl progress in Postgres.
type CheckpointStore struct {
	pool  db
	table string
}

// NewCheckpointStore constructs a store on top of an existing pool.
func NewCheckpointStore(pool db, cfg CheckpointStoreConfig) (*CheckpointStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	table, err := tableName(cfg.Table, "scrape_progress")
	if err != nil {
		return nil, err
	}
	return &CheckpointStore{pool: pool, table: table}, nil
}

// Get retrieves the checkpoint for a single date.
func (s *CheckpointStore) Get(ctx context.Context, date string) (archive.Checkpoint, error) {
	query := fmt.Sprintf(`
SELECT date, status, COALESCE(last_page_url, ''), pages_scraped, urls_found, updated_at
FROM %s
WHERE date = $1`, s.table)

	cp, err := scanCheckpoint(s.pool.QueryRow(ctx, query, date))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return archive.Checkpoint{}, archive.ErrNotFound
		}
		return archive.Checkpoint{}, fmt.Errorf("get checkpoint: %w", err)
	}
	return cp, nil
}

// NextEligible picks the date to work on next: in-progress dates take
// priority over pending ones, and within each tier the date whose
// month-day is nearest at or after the given month-day wins, wrapping
// to January when nothing remains later in the calendar. Ties fall
// back to natural date order. Returns archive.ErrNotFound when every
// date is completed.
func (s *CheckpointStore) NextEligible(ctx context.Context, monthDay string) (archive.Checkpoint, error) {
	query := fmt.Sprintf(`
SELECT date, status, COALESCE(last_page_url, ''), pages_scraped, urls_found, updated_at
FROM %s
WHERE status IN ('in_progress', 'pending')
ORDER BY
    CASE status WHEN 'in_progress' THEN 0 ELSE 1 END,
    CASE WHEN substr(date, 5, 4) >= $1 THEN 0 ELSE 1 END,
    substr(date, 5, 4),
    date
LIMIT 1`, s.table)

	cp, err := scanCheckpoint(s.pool.QueryRow(ctx, query, monthDay))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return archive.Checkpoint{}, archive.ErrNotFound
		}
		return archive.Checkpoint{}, fmt.Errorf("next eligible checkpoint: %w", err)
	}
	return cp, nil
}

// Update overwrites a date's status, cursor and cumulative counters.
// A date already marked completed never regresses to an earlier
// status; such updates are silently dropped.
func (s *CheckpointStore) Update(ctx context.Context, cp archive.Checkpoint) error {
	query := fmt.Sprintf(`
UPDATE %s
SET status = $2,
    last_page_url = NULLIF($3, ''),
    pages_scraped = $4,
    urls_found = $5,
    updated_at = now()
WHERE date = $1
  AND (status <> 'completed' OR $2 = 'completed')`, s.table)

	_, err := s.pool.Exec(ctx, query, cp.Date, string(cp.Status), cp.Cursor, cp.PagesScraped, cp.URLsFound)
	if err != nil {
		return fmt.Errorf("update checkpoint: %w", err)
	}
	return nil
}

// SeedDates inserts pending checkpoints for the given dates, skipping
// any that already exist. It returns the number of rows created.
func (s *CheckpointStore) SeedDates(ctx context.Context, dates []string) (int, error) {
	if len(dates) == 0 {
		return 0, nil
	}
	query := fmt.Sprintf(`
INSERT INTO %s (date, status)
SELECT d, 'pending' FROM unnest($1::text[]) AS d
ON CONFLICT (date) DO NOTHING`, s.table)

	tag, err := s.pool.Exec(ctx, query, dates)
	if err != nil {
		return 0, fmt.Errorf("seed checkpoints: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// List retrieves checkpoints in date order, optionally filtered by
// status.
func (s *CheckpointStore) List(ctx context.Context, status *archive.Status, limit, offset int) ([]archive.Checkpoint, error) {
	query := fmt.Sprintf(`
SELECT date, status, COALESCE(last_page_url, ''), pages_scraped, urls_found, updated_at
FROM %s
WHERE ($1::text IS NULL OR status = $1)
ORDER BY date
LIMIT $2 OFFSET $3`, s.table)

	rows, err := s.pool.Query(ctx, query, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	var cps []archive.Checkpoint
	for rows.Next() {
		cp, err := scanCheckpoint(rows)
		if err != nil {
			return nil, fmt.Errorf("scan checkpoint row: %w", err)
		}
		cps = append(cps, cp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	return cps, nil
}

// CountByStatus returns how many dates sit in each status.
func (s *CheckpointStore) CountByStatus(ctx context.Context) (map[archive.Status]int64, error) {
	query := fmt.Sprintf(`SELECT status, count(*) FROM %s GROUP BY status`, s.table)
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("count checkpoints by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[archive.Status]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[archive.Status(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("count checkpoints by status: %w", err)
	}
	return counts, nil
}

func scanCheckpoint(row pgx.Row) (archive.Checkpoint, error) {
	var cp archive.Checkpoint
	var status string
	err := row.Scan(&cp.Date, &status, &cp.Cursor, &cp.PagesScraped, &cp.URLsFound, &cp.UpdatedAt)
	if err != nil {
		return archive.Checkpoint{}, err
	}
	cp.Status = archive.Status(status)
	return cp, nil
}
