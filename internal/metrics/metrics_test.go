package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInit(t *testing.T) {
	// Reset collectors for testing purposes.
	archivePagesFetchedTotal = nil
	archiveCrawlsTotal = nil
	httpRequestsTotal = nil
	httpRequestDurationSeconds = nil

	// Call Init multiple times to test idempotency.
	Init()
	Init()

	if archivePagesFetchedTotal == nil || archiveCrawlsTotal == nil ||
		httpRequestsTotal == nil || httpRequestDurationSeconds == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}

	// A simple check to see if a metric can be used.
	archivePagesFetchedTotal.WithLabelValues("success").Inc()
	if val := testutil.ToFloat64(archivePagesFetchedTotal); val < 1 {
		t.Errorf("Expected archivePagesFetchedTotal to be at least 1, got %f", val)
	}
}

func TestObservePage(t *testing.T) {
	Init()

	foundBefore := testutil.ToFloat64(archiveRecordsFoundTotal)
	archivedBefore := testutil.ToFloat64(archiveRecordsArchivedTotal)

	ObservePage(20, 3, 120*time.Millisecond)
	ObservePage(0, 0, 0)

	if got := testutil.ToFloat64(archiveRecordsFoundTotal) - foundBefore; got != 20 {
		t.Errorf("Expected 20 records found, got %f", got)
	}
	if got := testutil.ToFloat64(archiveRecordsArchivedTotal) - archivedBefore; got != 3 {
		t.Errorf("Expected 3 records archived, got %f", got)
	}
}

func TestObserveCrawlAndRedirect(t *testing.T) {
	Init()

	ObserveCrawl("date", "success", 3*time.Second)
	ObserveCrawl("light", "error", 0)
	ObserveRedirect("hit")
	ObserveRedirect("miss")

	if val := testutil.ToFloat64(archiveCrawlsTotal.WithLabelValues("date", "success")); val < 1 {
		t.Errorf("Expected crawl counter to be recorded, got %f", val)
	}
	if val := testutil.ToFloat64(archiveRedirectsTotal.WithLabelValues("miss")); val < 1 {
		t.Errorf("Expected redirect counter to be recorded, got %f", val)
	}
}
