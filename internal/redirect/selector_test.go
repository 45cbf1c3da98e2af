package redirect

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/forumtrail/forumtrail/internal/archive"
)

type lookupFunc func(ctx context.Context, year, monthDay string) (archive.Record, error)

func (f lookupFunc) RandomByDate(ctx context.Context, year, monthDay string) (archive.Record, error) {
	return f(ctx, year, monthDay)
}

func jst() *time.Location {
	return time.FixedZone("JST", 9*60*60)
}

func newSelector(t *testing.T, lookup RecordLookup) *Selector {
	t.Helper()
	s, err := New(lookup, Config{FirstDate: "20090707", Zone: jst()}, nil)
	require.NoError(t, err)
	return s
}

func TestPickQueriesAnniversaryDate(t *testing.T) {
	t.Parallel()

	var gotYear, gotMonthDay string
	s := newSelector(t, lookupFunc(func(_ context.Context, year, monthDay string) (archive.Record, error) {
		gotYear, gotMonthDay = year, monthDay
		return archive.Record{URL: "https://forum.example.jp/20151120080000", Title: "hit"}, nil
	}))
	var gotN int
	s.rng = func(n int) int {
		gotN = n
		return 6
	}

	now := time.Date(2024, 11, 20, 12, 0, 0, 0, jst())
	rec, err := s.Pick(context.Background(), now)
	require.NoError(t, err)
	require.Equal(t, "hit", rec.Title)
	// Operating years 2009..2023: fifteen candidates, offset 6 = 2015.
	require.Equal(t, 15, gotN)
	require.Equal(t, "2015", gotYear)
	require.Equal(t, "1120", gotMonthDay)
}

func TestPickSkipsLaunchYearBeforeAnniversary(t *testing.T) {
	t.Parallel()

	var gotYear string
	s := newSelector(t, lookupFunc(func(_ context.Context, year, _ string) (archive.Record, error) {
		gotYear = year
		return archive.Record{URL: "u"}, nil
	}))
	s.rng = func(int) int { return 0 }

	// March 1 precedes the July 7 launch anniversary, so 2009 never
	// carried this date and the window starts at 2010.
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, jst())
	_, err := s.Pick(context.Background(), now)
	require.NoError(t, err)
	require.Equal(t, "2010", gotYear)
}

func TestPickUsesLocalDate(t *testing.T) {
	t.Parallel()

	var gotMonthDay string
	s := newSelector(t, lookupFunc(func(_ context.Context, _, monthDay string) (archive.Record, error) {
		gotMonthDay = monthDay
		return archive.Record{URL: "u"}, nil
	}))
	s.rng = func(int) int { return 0 }

	// 20:00 UTC on Nov 19 is already Nov 20 in JST.
	now := time.Date(2024, 11, 19, 20, 0, 0, 0, time.UTC)
	_, err := s.Pick(context.Background(), now)
	require.NoError(t, err)
	require.Equal(t, "1120", gotMonthDay)
}

func TestPickEmptyWindowSkipsStore(t *testing.T) {
	t.Parallel()

	queried := false
	lookup := lookupFunc(func(context.Context, string, string) (archive.Record, error) {
		queried = true
		return archive.Record{}, nil
	})

	s, err := New(lookup, Config{FirstDate: "20230707", Zone: jst()}, nil)
	require.NoError(t, err)

	// Launch year is the only candidate and today's month-day
	// precedes the anniversary: no operating year qualifies.
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, jst())
	_, err = s.Pick(context.Background(), now)
	require.ErrorIs(t, err, ErrNoMatch)
	require.False(t, queried, "empty year window must not hit the store")
}

func TestPickMissIsNoMatch(t *testing.T) {
	t.Parallel()

	s := newSelector(t, lookupFunc(func(context.Context, string, string) (archive.Record, error) {
		return archive.Record{}, archive.ErrNotFound
	}))

	now := time.Date(2024, 11, 20, 12, 0, 0, 0, jst())
	_, err := s.Pick(context.Background(), now)
	require.ErrorIs(t, err, ErrNoMatch)
}

func TestPickStoreErrorPropagates(t *testing.T) {
	t.Parallel()

	s := newSelector(t, lookupFunc(func(context.Context, string, string) (archive.Record, error) {
		return archive.Record{}, errors.New("pool closed")
	}))

	now := time.Date(2024, 11, 20, 12, 0, 0, 0, jst())
	_, err := s.Pick(context.Background(), now)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNoMatch)
}

func TestNewRejectsBadFirstDate(t *testing.T) {
	t.Parallel()

	_, err := New(lookupFunc(func(context.Context, string, string) (archive.Record, error) {
		return archive.Record{}, nil
	}), Config{FirstDate: "not-a-date"}, nil)
	require.Error(t, err)
}
