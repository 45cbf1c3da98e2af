package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/forumtrail/forumtrail/internal/archive"
)

// CheckpointStore tracks per-date crawl progress in memory.
type CheckpointStore struct {
	mu          sync.RWMutex
	checkpoints map[string]archive.Checkpoint
}

// NewCheckpointStore constructs a CheckpointStore.
func NewCheckpointStore() *CheckpointStore {
	return &CheckpointStore{
		checkpoints: make(map[string]archive.Checkpoint),
	}
}

// Get retrieves the checkpoint for a single date.
func (s *CheckpointStore) Get(_ context.Context, date string) (archive.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp, ok := s.checkpoints[date]
	if !ok {
		return archive.Checkpoint{}, archive.ErrNotFound
	}
	return cp, nil
}

// NextEligible picks the next date to work on: in-progress before
// pending, then the nearest month-day at or after the given one with
// wrap-around, ties broken by natural date order.
func (s *CheckpointStore) NextEligible(_ context.Context, monthDay string) (archive.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var candidates []archive.Checkpoint
	for _, cp := range s.checkpoints {
		if cp.Status == archive.StatusInProgress || cp.Status == archive.StatusPending {
			candidates = append(candidates, cp)
		}
	}
	if len(candidates) == 0 {
		return archive.Checkpoint{}, archive.ErrNotFound
	}
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Status != b.Status {
			return a.Status == archive.StatusInProgress
		}
		aWrapped := a.Date[4:] < monthDay
		bWrapped := b.Date[4:] < monthDay
		if aWrapped != bWrapped {
			return !aWrapped
		}
		if a.Date[4:] != b.Date[4:] {
			return a.Date[4:] < b.Date[4:]
		}
		return a.Date < b.Date
	})
	return candidates[0], nil
}

// Update overwrites a date's status, cursor and cumulative counters.
// Dates already completed never regress to an earlier status.
func (s *CheckpointStore) Update(_ context.Context, cp archive.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.checkpoints[cp.Date]
	if !ok {
		return nil
	}
	if existing.Status == archive.StatusCompleted && cp.Status != archive.StatusCompleted {
		return nil
	}
	existing.Status = cp.Status
	existing.Cursor = cp.Cursor
	existing.PagesScraped = cp.PagesScraped
	existing.URLsFound = cp.URLsFound
	existing.UpdatedAt = time.Now().UTC()
	s.checkpoints[cp.Date] = existing
	return nil
}

// SeedDates inserts pending checkpoints for the given dates, skipping
// any that already exist. It returns the number of rows created.
func (s *CheckpointStore) SeedDates(_ context.Context, dates []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	created := 0
	for _, date := range dates {
		if _, exists := s.checkpoints[date]; exists {
			continue
		}
		s.checkpoints[date] = archive.Checkpoint{
			Date:      date,
			Status:    archive.StatusPending,
			UpdatedAt: time.Now().UTC(),
		}
		created++
	}
	return created, nil
}

// List retrieves checkpoints in date order, optionally filtered by
// status.
func (s *CheckpointStore) List(_ context.Context, status *archive.Status, limit, offset int) ([]archive.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var cps []archive.Checkpoint
	for _, cp := range s.checkpoints {
		if status != nil && cp.Status != *status {
			continue
		}
		cps = append(cps, cp)
	}
	sort.Slice(cps, func(i, j int) bool { return cps[i].Date < cps[j].Date })

	if offset >= len(cps) {
		return nil, nil
	}
	cps = cps[offset:]
	if limit > 0 && limit < len(cps) {
		cps = cps[:limit]
	}
	return cps, nil
}

// CountByStatus returns how many dates sit in each status.
func (s *CheckpointStore) CountByStatus(_ context.Context) (map[archive.Status]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[archive.Status]int64)
	for _, cp := range s.checkpoints {
		counts[cp.Status]++
	}
	return counts, nil
}
