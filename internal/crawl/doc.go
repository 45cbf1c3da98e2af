// Package crawl walks paginated listing pages and archives the
// article permalinks they contain.
//
// A Driver performs one crawl: fetch a page, extract its records,
// persist the batch, follow the next-page link. The Archiver layers
// per-date checkpoint bookkeeping on top so historical crawls resume
// where they left off, and the Seeder fills the checkpoint table with
// the dates worth crawling.
package crawl
