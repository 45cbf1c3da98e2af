package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/forumtrail/forumtrail/internal/archive"
)

func newCheckpointStore(t *testing.T) (*CheckpointStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	store, err := NewCheckpointStore(mock, CheckpointStoreConfig{})
	require.NoError(t, err)
	return store, mock
}

func checkpointRows(cps ...archive.Checkpoint) *pgxmock.Rows {
	rows := pgxmock.NewRows([]string{"date", "status", "last_page_url", "pages_scraped", "urls_found", "updated_at"})
	for _, cp := range cps {
		rows.AddRow(cp.Date, string(cp.Status), cp.Cursor, cp.PagesScraped, cp.URLsFound, cp.UpdatedAt)
	}
	return rows
}

func TestCheckpointGet(t *testing.T) {
	t.Parallel()

	store, mock := newCheckpointStore(t)
	updated := time.Unix(1700000000, 0).UTC()
	want := archive.Checkpoint{
		Date:         "20090707",
		Status:       archive.StatusInProgress,
		Cursor:       "https://forum.example.jp/20090707?page=3",
		PagesScraped: 2,
		URLsFound:    40,
		UpdatedAt:    updated,
	}

	mock.ExpectQuery("FROM scrape_progress").
		WithArgs("20090707").
		WillReturnRows(checkpointRows(want))

	got, err := store.Get(context.Background(), "20090707")
	require.NoError(t, err)
	require.Equal(t, want, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckpointGetNotFound(t *testing.T) {
	t.Parallel()

	store, mock := newCheckpointStore(t)
	mock.ExpectQuery("FROM scrape_progress").
		WithArgs("19990101").
		WillReturnError(pgx.ErrNoRows)

	_, err := store.Get(context.Background(), "19990101")
	require.ErrorIs(t, err, archive.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNextEligible(t *testing.T) {
	t.Parallel()

	store, mock := newCheckpointStore(t)
	want := archive.Checkpoint{Date: "20101122", Status: archive.StatusPending, UpdatedAt: time.Unix(0, 0).UTC()}

	mock.ExpectQuery("ORDER BY").
		WithArgs("1120").
		WillReturnRows(checkpointRows(want))

	got, err := store.NextEligible(context.Background(), "1120")
	require.NoError(t, err)
	require.Equal(t, want, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNextEligibleAllCompleted(t *testing.T) {
	t.Parallel()

	store, mock := newCheckpointStore(t)
	mock.ExpectQuery("ORDER BY").
		WithArgs("1120").
		WillReturnError(pgx.ErrNoRows)

	_, err := store.NextEligible(context.Background(), "1120")
	require.ErrorIs(t, err, archive.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckpointUpdate(t *testing.T) {
	t.Parallel()

	store, mock := newCheckpointStore(t)
	cp := archive.Checkpoint{
		Date:         "20090707",
		Status:       archive.StatusInProgress,
		Cursor:       "https://forum.example.jp/20090707?page=4",
		PagesScraped: 3,
		URLsFound:    55,
	}

	mock.ExpectExec("UPDATE scrape_progress").
		WithArgs(cp.Date, string(cp.Status), cp.Cursor, cp.PagesScraped, cp.URLsFound).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, store.Update(context.Background(), cp))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckpointUpdateCompletedGuardIsSilent(t *testing.T) {
	t.Parallel()

	store, mock := newCheckpointStore(t)
	cp := archive.Checkpoint{Date: "20090707", Status: archive.StatusPending}

	mock.ExpectExec("UPDATE scrape_progress").
		WithArgs(cp.Date, string(cp.Status), "", 0, 0).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.NoError(t, store.Update(context.Background(), cp))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSeedDates(t *testing.T) {
	t.Parallel()

	store, mock := newCheckpointStore(t)
	dates := []string{"20090707", "20090708", "20090709"}

	mock.ExpectExec("INSERT INTO scrape_progress").
		WithArgs(dates).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))

	created, err := store.SeedDates(context.Background(), dates)
	require.NoError(t, err)
	require.Equal(t, 2, created)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSeedDatesEmpty(t *testing.T) {
	t.Parallel()

	store, mock := newCheckpointStore(t)
	created, err := store.SeedDates(context.Background(), nil)
	require.NoError(t, err)
	require.Zero(t, created)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckpointList(t *testing.T) {
	t.Parallel()

	store, mock := newCheckpointStore(t)
	updated := time.Unix(1700000000, 0).UTC()
	first := archive.Checkpoint{Date: "20090707", Status: archive.StatusCompleted, UpdatedAt: updated}
	second := archive.Checkpoint{Date: "20090708", Status: archive.StatusPending, UpdatedAt: updated}

	status := archive.StatusPending
	mock.ExpectQuery("FROM scrape_progress").
		WithArgs(&status, 50, 0).
		WillReturnRows(checkpointRows(first, second))

	cps, err := store.List(context.Background(), &status, 50, 0)
	require.NoError(t, err)
	require.Equal(t, []archive.Checkpoint{first, second}, cps)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCountByStatus(t *testing.T) {
	t.Parallel()

	store, mock := newCheckpointStore(t)
	mock.ExpectQuery("GROUP BY status").
		WillReturnRows(pgxmock.NewRows([]string{"status", "count"}).
			AddRow("completed", int64(120)).
			AddRow("pending", int64(8)))

	counts, err := store.CountByStatus(context.Background())
	require.NoError(t, err)
	require.Equal(t, map[archive.Status]int64{
		archive.StatusCompleted: 120,
		archive.StatusPending:   8,
	}, counts)
	require.NoError(t, mock.ExpectationsWereMet())
}
