// Package postgres provides Postgres-backed persistence for archived
// article URLs and per-date crawl checkpoints.
//
// Expected schema:
//
//	CREATE TABLE article_urls (
//	    id         BIGSERIAL PRIMARY KEY,
//	    url        TEXT NOT NULL UNIQUE,
//	    title      TEXT NOT NULL,
//	    year       TEXT NOT NULL,
//	    monthday   TEXT NOT NULL,
//	    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
//	CREATE INDEX article_urls_year_monthday_idx
//	    ON article_urls (year, monthday);
//
//	CREATE TABLE scrape_progress (
//	    date          TEXT PRIMARY KEY,
//	    status        TEXT NOT NULL DEFAULT 'pending',
//	    last_page_url TEXT,
//	    pages_scraped INTEGER NOT NULL DEFAULT 0,
//	    urls_found    INTEGER NOT NULL DEFAULT 0,
//	    updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
//	CREATE INDEX scrape_progress_status_idx
//	    ON scrape_progress (status);
package postgres
