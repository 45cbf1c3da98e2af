// Package archive defines core types shared across subsystems.
package archive

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound signals that the requested row does not exist.
var ErrNotFound = errors.New("archive: not found")

// Record is one archived article permalink. Year and MonthDay are
// derived from the timestamp embedded in the URL at insert time and
// denormalized into the store for date lookups.
type Record struct {
	URL      string `json:"url"`
	Title    string `json:"title"`
	Year     string `json:"year"`
	MonthDay string `json:"monthDay"`
}

// Listing is the parsed form of one listing page: the records it
// carries and the next page of the pagination chain, empty on the
// last page.
type Listing struct {
	Records []Record
	NextURL string
}

// Page is the raw result of fetching one listing URL.
type Page struct {
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// Status represents the lifecycle state of one date's crawl.
type Status string

// Checkpoint status values persisted in scrape_progress.status.
const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Checkpoint tracks crawl progress for a single archived date
// (YYYYMMDD). Cursor holds the next listing page to fetch when the
// date is only partially crawled; the counters are cumulative across
// invocations.
type Checkpoint struct {
	Date         string    `json:"date"`
	Status       Status    `json:"status"`
	Cursor       string    `json:"cursor,omitempty"`
	PagesScraped int       `json:"pagesScraped"`
	URLsFound    int       `json:"urlsFound"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// YearCount is a per-year archive tally used by the stats endpoint.
type YearCount struct {
	Year  string `json:"year"`
	Count int64  `json:"count"`
}

// FetchError reports a non-success HTTP status for a listing page.
type FetchError struct {
	URL        string
	StatusCode int
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
}

// Fetcher retrieves one listing page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Page, error)
}

// Extractor parses raw listing markup into records plus the next-page
// link. Implementations must tolerate malformed markup and pages with
// zero records.
type Extractor interface {
	Extract(body []byte) (Listing, error)
}

// RecordStore owns the set of archived permalinks.
type RecordStore interface {
	// InsertIfAbsent persists the records that are not yet archived and
	// returns their URLs. Conflicts on url are silently skipped.
	InsertIfAbsent(ctx context.Context, records []Record) ([]string, error)
	// Exists reports whether the URL is already archived.
	Exists(ctx context.Context, url string) (bool, error)
	// RandomByDate picks one record uniformly at random among those whose
	// embedded date matches, or ErrNotFound.
	RandomByDate(ctx context.Context, year, monthDay string) (Record, error)
	// DatesWithRecords returns the set of YYYYMMDD dates that have at
	// least one archived record.
	DatesWithRecords(ctx context.Context) (map[string]struct{}, error)
	// TotalCount returns the number of archived records.
	TotalCount(ctx context.Context) (int64, error)
	// CountByYear returns per-year archive tallies ordered by year.
	CountByYear(ctx context.Context) ([]YearCount, error)
}

// CheckpointStore owns the per-date crawl progress map.
type CheckpointStore interface {
	// Get loads one checkpoint or returns ErrNotFound.
	Get(ctx context.Context, date string) (Checkpoint, error)
	// NextEligible selects the date to work on next: in_progress rows
	// before pending ones, then the smallest forward month/day distance
	// from today's MMDD in the year cycle, ties broken by date order.
	// Returns ErrNotFound when no row is eligible.
	NextEligible(ctx context.Context, monthDay string) (Checkpoint, error)
	// Update overwrites status and cursor and sets the counters to the
	// cumulative totals supplied by the caller. Rows already completed
	// are never regressed.
	Update(ctx context.Context, cp Checkpoint) error
	// SeedDates inserts pending checkpoints for the given dates, skipping
	// ones that already exist, and returns how many were created.
	SeedDates(ctx context.Context, dates []string) (int, error)
	// List returns checkpoints filtered by optional status plus limit/offset.
	List(ctx context.Context, status *Status, limit, offset int) ([]Checkpoint, error)
	// CountByStatus tallies checkpoints per status.
	CountByStatus(ctx context.Context) (map[Status]int64, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
