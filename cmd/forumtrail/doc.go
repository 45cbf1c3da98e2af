// Command forumtrail runs the archive service: the HTTP API, the
// periodic listing crawl, and the checkpointed historical backfill.
package main
