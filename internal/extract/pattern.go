package extract

import (
	"html"
	"net/url"
	"regexp"
	"strings"

	"github.com/forumtrail/forumtrail/internal/archive"
)

var (
	entryOpenExpr = regexp.MustCompile(`<div[^>]*\bclass="[^"]*\bentry\b[^"]*"[^>]*>`)
	pagerExpr     = regexp.MustCompile(`(?s)<div[^>]*\bclass="[^"]*\bpager\b[^"]*"[^>]*>(.*?)</div>`)
	anchorExpr    = regexp.MustCompile(`(?s)<a\b[^>]*\bhref="([^"]*)"[^>]*>(.*?)</a>`)
	stampExpr     = regexp.MustCompile(`(?:^|/)\d{14}(?:/|[?#]|$)`)
	tagExpr       = regexp.MustCompile(`<[^>]*>`)
)

// Pattern extracts records by matching the site's fixed markup shape
// directly, skipping tree construction. It assumes well-formed listing
// pages; DOM is the tolerant fallback for anything else.
type Pattern struct {
	base *url.URL
}

// NewPattern builds the pattern-match extractor.
func NewPattern(cfg Config) (*Pattern, error) {
	base, err := parseBase(cfg)
	if err != nil {
		return nil, err
	}
	return &Pattern{base: base}, nil
}

// Extract scans for entry containers and takes each one's first
// stamped anchor as the permalink.
func (e *Pattern) Extract(body []byte) (archive.Listing, error) {
	markup := string(body)

	var listing archive.Listing
	segments := entryOpenExpr.Split(markup, -1)
	if len(segments) > 1 {
		for _, segment := range segments[1:] {
			m := anchorExpr.FindStringSubmatch(segment)
			if m == nil {
				continue
			}
			href := strings.TrimSpace(html.UnescapeString(m[1]))
			if href == "" || !stampExpr.MatchString(href) {
				continue
			}
			title := cleanText(m[2])
			if title == "" {
				title = TitleFallback
			}
			listing.Records = append(listing.Records, archive.Record{
				URL:   resolve(e.base, href),
				Title: title,
			})
		}
	}

	if pager := pagerExpr.FindStringSubmatch(markup); pager != nil {
		for _, link := range anchorExpr.FindAllStringSubmatch(pager[1], -1) {
			if !strings.Contains(cleanText(link[2]), nextMarker) {
				continue
			}
			if href := strings.TrimSpace(html.UnescapeString(link[1])); href != "" {
				listing.NextURL = resolve(e.base, href)
			}
			break
		}
	}

	return listing, nil
}

func cleanText(fragment string) string {
	return strings.TrimSpace(html.UnescapeString(tagExpr.ReplaceAllString(fragment, "")))
}
