package archive

import (
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"
)

const (
	stampLen    = 14
	stampLayout = "20060102150405"
	dateLayout  = "20060102"
)

// SplitStamp extracts the year and month/day encoded in a permalink.
// The final path segment must be exactly the site's 14-digit
// YYYYMMDDHHMMSS stamp; any other shape is rejected so that a reshaped
// permalink can never produce silently wrong derived fields.
func SplitStamp(rawURL string) (year, monthDay string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("parse permalink %q: %w", rawURL, err)
	}
	seg := path.Base(u.Path)
	if len(seg) != stampLen {
		return "", "", fmt.Errorf("permalink %q: segment %q is not a %d-digit timestamp", rawURL, seg, stampLen)
	}
	if _, err := time.Parse(stampLayout, seg); err != nil {
		return "", "", fmt.Errorf("permalink %q: invalid timestamp segment: %w", rawURL, err)
	}
	return seg[:4], seg[4:8], nil
}

// Stamped reports whether the URL carries a valid permalink stamp.
func Stamped(rawURL string) bool {
	_, _, err := SplitStamp(rawURL)
	return err == nil
}

// DateListingURL builds the listing page URL for one archived date.
func DateListingURL(baseURL, date string) string {
	return strings.TrimSuffix(baseURL, "/") + "/" + date
}

// ValidDate reports whether s is a real calendar date in YYYYMMDD form.
func ValidDate(s string) bool {
	if len(s) != 8 {
		return false
	}
	_, err := time.Parse(dateLayout, s)
	return err == nil
}
