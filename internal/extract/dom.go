package extract

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/forumtrail/forumtrail/internal/archive"
)

// DOM extracts records by querying the parsed markup tree.
type DOM struct {
	base *url.URL
}

// NewDOM builds the tree-query extractor.
func NewDOM(cfg Config) (*DOM, error) {
	base, err := parseBase(cfg)
	if err != nil {
		return nil, err
	}
	return &DOM{base: base}, nil
}

// Extract parses the page and returns its records plus the next-page
// link. Zero matching containers yield an empty record list, not an
// error.
func (e *DOM) Extract(body []byte) (archive.Listing, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return archive.Listing{}, fmt.Errorf("parse listing markup: %w", err)
	}

	var listing archive.Listing
	doc.Find(entrySelector).Each(func(_ int, entry *goquery.Selection) {
		link := entry.Find("a").First()
		href, ok := link.Attr("href")
		href = strings.TrimSpace(href)
		if !ok || href == "" {
			return
		}
		title := strings.TrimSpace(link.Text())
		if title == "" {
			title = TitleFallback
		}
		listing.Records = append(listing.Records, archive.Record{
			URL:   resolve(e.base, href),
			Title: title,
		})
	})

	doc.Find(pagerSelector + " a").EachWithBreak(func(_ int, link *goquery.Selection) bool {
		if !strings.Contains(link.Text(), nextMarker) {
			return true
		}
		if href, ok := link.Attr("href"); ok && strings.TrimSpace(href) != "" {
			listing.NextURL = resolve(e.base, strings.TrimSpace(href))
		}
		return false
	})

	return listing, nil
}
