// Package api exposes the HTTP interface of the archive service: the
// root redirect, the crawl triggers, and the read-only progress and
// stats endpoints. Handlers validate input and map errors to status
// codes; all crawling goes through the crawl package.
package api
