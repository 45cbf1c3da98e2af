package crawl

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/forumtrail/forumtrail/internal/archive"
)

type fakeCheckpoints struct {
	mu      sync.Mutex
	byDate  map[string]archive.Checkpoint
	updates []archive.Checkpoint
	seeded  [][]string
}

func newFakeCheckpoints() *fakeCheckpoints {
	return &fakeCheckpoints{byDate: make(map[string]archive.Checkpoint)}
}

func (f *fakeCheckpoints) put(cp archive.Checkpoint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byDate[cp.Date] = cp
}

func (f *fakeCheckpoints) Get(_ context.Context, date string) (archive.Checkpoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp, ok := f.byDate[date]
	if !ok {
		return archive.Checkpoint{}, archive.ErrNotFound
	}
	return cp, nil
}

func (f *fakeCheckpoints) NextEligible(_ context.Context, monthDay string) (archive.Checkpoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var best *archive.Checkpoint
	for _, cp := range f.byDate {
		if cp.Status == archive.StatusCompleted {
			continue
		}
		cp := cp
		if best == nil || cp.Date < best.Date {
			best = &cp
		}
	}
	if best == nil {
		return archive.Checkpoint{}, archive.ErrNotFound
	}
	_ = monthDay
	return *best, nil
}

func (f *fakeCheckpoints) Update(_ context.Context, cp archive.Checkpoint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, cp)
	existing, ok := f.byDate[cp.Date]
	if !ok {
		return nil
	}
	if existing.Status == archive.StatusCompleted && cp.Status != archive.StatusCompleted {
		return nil
	}
	cp.UpdatedAt = existing.UpdatedAt
	f.byDate[cp.Date] = cp
	return nil
}

func (f *fakeCheckpoints) SeedDates(_ context.Context, dates []string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seeded = append(f.seeded, dates)
	created := 0
	for _, date := range dates {
		if _, ok := f.byDate[date]; ok {
			continue
		}
		f.byDate[date] = archive.Checkpoint{Date: date, Status: archive.StatusPending}
		created++
	}
	return created, nil
}

func (f *fakeCheckpoints) List(context.Context, *archive.Status, int, int) ([]archive.Checkpoint, error) {
	return nil, nil
}

func (f *fakeCheckpoints) CountByStatus(context.Context) (map[archive.Status]int64, error) {
	return nil, nil
}

func dateSite() *scriptedSite {
	return &scriptedSite{
		listings: map[string]archive.Listing{
			"https://forum.example.jp/20240110": {
				Records: []archive.Record{
					rec("https://forum.example.jp/20240110090000"),
					rec("https://forum.example.jp/20240110100000"),
				},
				NextURL: "https://forum.example.jp/20240110?page=2",
			},
			"https://forum.example.jp/20240110?page=2": {
				Records: []archive.Record{rec("https://forum.example.jp/20240110110000")},
			},
		},
	}
}

func newTestArchiver(site *scriptedSite, checkpoints archive.CheckpointStore, clock *stubClock) *Archiver {
	d, _ := newTestDriver(site, newFakeRecords(), clock, Config{})
	return NewArchiver(d, checkpoints, clock, ArchiverConfig{
		ListingURL:  "https://forum.example.jp/",
		BaseURL:     "https://forum.example.jp",
		Zone:        time.UTC,
		LightBudget: 1,
	}, nil)
}

func TestRunListingFullAndLight(t *testing.T) {
	t.Parallel()

	site := threePageSite()
	a := newTestArchiver(site, newFakeCheckpoints(), newStubClock())

	res, err := a.RunListing(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, 3, res.PagesScraped)
	require.Empty(t, res.NextCursor)

	site2 := threePageSite()
	a2 := newTestArchiver(site2, newFakeCheckpoints(), newStubClock())
	res, err = a2.RunListing(context.Background(), true)
	require.NoError(t, err)
	require.Equal(t, 1, res.PagesScraped)
	require.Equal(t, "https://forum.example.jp/?page=2", res.NextCursor)
}

func TestRunDateSeedsAndCompletesFreshDate(t *testing.T) {
	t.Parallel()

	site := dateSite()
	checkpoints := newFakeCheckpoints()
	a := newTestArchiver(site, checkpoints, newStubClock())

	res, err := a.RunDate(context.Background(), "20240110")
	require.NoError(t, err)
	require.Equal(t, 2, res.PagesScraped)
	require.Equal(t, 3, res.URLsFound)
	require.Equal(t, [][]string{{"20240110"}}, checkpoints.seeded)

	// Page-by-page updates carry the cursor forward, then completion
	// clears it.
	require.Len(t, checkpoints.updates, 3)
	require.Equal(t, archive.StatusInProgress, checkpoints.updates[0].Status)
	require.Equal(t, "https://forum.example.jp/20240110?page=2", checkpoints.updates[0].Cursor)
	require.Equal(t, 1, checkpoints.updates[0].PagesScraped)
	require.Equal(t, 2, checkpoints.updates[0].URLsFound)

	final, err := checkpoints.Get(context.Background(), "20240110")
	require.NoError(t, err)
	require.Equal(t, archive.StatusCompleted, final.Status)
	require.Empty(t, final.Cursor)
	require.Equal(t, 2, final.PagesScraped)
	require.Equal(t, 3, final.URLsFound)
}

func TestRunDateResumesFromCursor(t *testing.T) {
	t.Parallel()

	site := dateSite()
	checkpoints := newFakeCheckpoints()
	checkpoints.put(archive.Checkpoint{
		Date:         "20240110",
		Status:       archive.StatusInProgress,
		Cursor:       "https://forum.example.jp/20240110?page=2",
		PagesScraped: 1,
		URLsFound:    2,
	})
	a := newTestArchiver(site, checkpoints, newStubClock())

	res, err := a.RunDate(context.Background(), "20240110")
	require.NoError(t, err)
	require.Equal(t, []string{"https://forum.example.jp/20240110?page=2"}, site.fetched)
	require.Equal(t, 1, res.PagesScraped)

	final, err := checkpoints.Get(context.Background(), "20240110")
	require.NoError(t, err)
	require.Equal(t, archive.StatusCompleted, final.Status)
	require.Equal(t, 2, final.PagesScraped)
	require.Equal(t, 3, final.URLsFound)
}

func TestRunDateSkipsCompleted(t *testing.T) {
	t.Parallel()

	site := dateSite()
	checkpoints := newFakeCheckpoints()
	checkpoints.put(archive.Checkpoint{Date: "20240110", Status: archive.StatusCompleted})
	a := newTestArchiver(site, checkpoints, newStubClock())

	res, err := a.RunDate(context.Background(), "20240110")
	require.NoError(t, err)
	require.Zero(t, res.PagesScraped)
	require.Empty(t, site.fetched)
}

func TestRunDateFetchErrorKeepsCheckpointStatus(t *testing.T) {
	t.Parallel()

	site := dateSite()
	site.fetchErr = map[string]error{
		"https://forum.example.jp/20240110": &archive.FetchError{URL: "https://forum.example.jp/20240110", StatusCode: http.StatusInternalServerError},
	}
	checkpoints := newFakeCheckpoints()
	a := newTestArchiver(site, checkpoints, newStubClock())

	_, err := a.RunDate(context.Background(), "20240110")
	require.Error(t, err)

	cp, err := checkpoints.Get(context.Background(), "20240110")
	require.NoError(t, err)
	require.Equal(t, archive.StatusPending, cp.Status, "failed crawl must not mark the date")
	require.Empty(t, checkpoints.updates)
}

func TestRunDateBudgetLeavesInProgress(t *testing.T) {
	t.Parallel()

	site := dateSite()
	checkpoints := newFakeCheckpoints()
	clock := newStubClock()
	d, _ := newTestDriver(site, newFakeRecords(), clock, Config{})
	a := NewArchiver(d, checkpoints, clock, ArchiverConfig{
		BaseURL: "https://forum.example.jp",
		Zone:    time.UTC,
	}, nil)

	// Deadline expires after the first page.
	site.afterFetch = func() { clock.Advance(3 * time.Minute) }

	res, err := a.RunDate(context.Background(), "20240110")
	require.NoError(t, err)
	require.Equal(t, 1, res.PagesScraped)
	require.Equal(t, "https://forum.example.jp/20240110?page=2", res.NextCursor)

	cp, err := checkpoints.Get(context.Background(), "20240110")
	require.NoError(t, err)
	require.Equal(t, archive.StatusInProgress, cp.Status)
	require.Equal(t, "https://forum.example.jp/20240110?page=2", cp.Cursor)
}

func TestRunNextCrawlsEligibleDate(t *testing.T) {
	t.Parallel()

	site := dateSite()
	checkpoints := newFakeCheckpoints()
	checkpoints.put(archive.Checkpoint{Date: "20240110", Status: archive.StatusPending})
	a := newTestArchiver(site, checkpoints, newStubClock())

	cp, res, err := a.RunNext(context.Background())
	require.NoError(t, err)
	require.Equal(t, "20240110", cp.Date)
	require.Equal(t, 2, res.PagesScraped)

	final, err := checkpoints.Get(context.Background(), "20240110")
	require.NoError(t, err)
	require.Equal(t, archive.StatusCompleted, final.Status)
}

func TestRunNextNoEligibleDates(t *testing.T) {
	t.Parallel()

	a := newTestArchiver(dateSite(), newFakeCheckpoints(), newStubClock())
	_, _, err := a.RunNext(context.Background())
	require.ErrorIs(t, err, archive.ErrNotFound)
}
