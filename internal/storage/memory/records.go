package memory

import (
	"context"
	"math/rand/v2"
	"sort"
	"sync"

	"github.com/forumtrail/forumtrail/internal/archive"
)

// RecordStore provides an in-memory implementation for development/testing.
type RecordStore struct {
	mu      sync.RWMutex
	records map[string]archive.Record
}

// NewRecordStore constructs a RecordStore.
func NewRecordStore() *RecordStore {
	return &RecordStore{
		records: make(map[string]archive.Record),
	}
}

// InsertIfAbsent stores the given records, skipping URLs that are
// already present or carry no recognizable timestamp. It returns the
// URLs that were actually inserted.
func (s *RecordStore) InsertIfAbsent(_ context.Context, records []archive.Record) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var inserted []string
	for _, rec := range records {
		year, monthDay, err := archive.SplitStamp(rec.URL)
		if err != nil {
			continue
		}
		if _, exists := s.records[rec.URL]; exists {
			continue
		}
		rec.Year = year
		rec.MonthDay = monthDay
		s.records[rec.URL] = rec
		inserted = append(inserted, rec.URL)
	}
	return inserted, nil
}

// Exists reports whether a permalink is already archived.
func (s *RecordStore) Exists(_ context.Context, url string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[url]
	return ok, nil
}

// RandomByDate returns one random record for the given year and
// month-day, or archive.ErrNotFound when none exist.
func (s *RecordStore) RandomByDate(_ context.Context, year, monthDay string) (archive.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []archive.Record
	for _, rec := range s.records {
		if rec.Year == year && rec.MonthDay == monthDay {
			matches = append(matches, rec)
		}
	}
	if len(matches) == 0 {
		return archive.Record{}, archive.ErrNotFound
	}
	return matches[rand.IntN(len(matches))], nil
}

// DatesWithRecords returns the set of YYYYMMDD dates that have at
// least one archived record.
func (s *RecordStore) DatesWithRecords(_ context.Context) (map[string]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dates := make(map[string]struct{})
	for _, rec := range s.records {
		dates[rec.Year+rec.MonthDay] = struct{}{}
	}
	return dates, nil
}

// TotalCount returns the number of archived records.
func (s *RecordStore) TotalCount(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.records)), nil
}

// CountByYear returns per-year record counts ordered by year.
func (s *RecordStore) CountByYear(_ context.Context) ([]archive.YearCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byYear := make(map[string]int64)
	for _, rec := range s.records {
		byYear[rec.Year]++
	}
	counts := make([]archive.YearCount, 0, len(byYear))
	for year, n := range byYear {
		counts = append(counts, archive.YearCount{Year: year, Count: n})
	}
	sort.Slice(counts, func(i, j int) bool { return counts[i].Year < counts[j].Year })
	return counts, nil
}
