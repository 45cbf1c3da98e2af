package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/forumtrail/forumtrail/internal/archive"
	"github.com/forumtrail/forumtrail/internal/crawl"
)

// scrapeSummary is the JSON shape every crawl endpoint returns.
type scrapeSummary struct {
	NewURLs           []string `json:"newUrls"`
	ExistingURLsCount int      `json:"existingUrlsCount"`
	PagesScraped      int      `json:"pagesScraped"`
}

// dayResult pairs one archived date with its crawl summary.
type dayResult struct {
	Date    string        `json:"date"`
	Summary scrapeSummary `json:"summary"`
}

func summarize(res crawl.Result) scrapeSummary {
	newURLs := res.NewURLs
	if newURLs == nil {
		newURLs = []string{}
	}
	return scrapeSummary{
		NewURLs:           newURLs,
		ExistingURLsCount: res.URLsFound - len(res.NewURLs),
		PagesScraped:      res.PagesScraped,
	}
}

// scrape crawls the live listing from its root. ?light=1 caps the
// crawl at the configured light page budget.
func (s *Server) scrape(w http.ResponseWriter, r *http.Request) {
	light := false
	if v := r.URL.Query().Get("light"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "light must be a boolean")
			return
		}
		light = parsed
	}
	res, err := s.archiver.RunListing(r.Context(), light)
	if err != nil {
		s.logger.Error("listing crawl failed", zap.Bool("light", light), zap.Error(err))
		s.writeCrawlError(w, res, err)
		return
	}
	writeJSON(w, http.StatusOK, summarize(res))
}

// scrapeHistorical crawls one date's listing, resuming from its
// checkpoint cursor when one exists.
func (s *Server) scrapeHistorical(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if !archive.ValidDate(date) {
		writeError(w, http.StatusBadRequest, "date must be a YYYYMMDD date")
		return
	}
	res, err := s.archiver.RunDate(r.Context(), date)
	if err != nil {
		s.logger.Error("historical crawl failed", zap.String("date", date), zap.Error(err))
		s.writeCrawlError(w, res, err)
		return
	}
	writeJSON(w, http.StatusOK, summarize(res))
}

// scrapeHistoricalBatch crawls a contiguous span of dates, capped at
// maxDays, pausing between dates.
func (s *Server) scrapeHistoricalBatch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, end := q.Get("startDate"), q.Get("endDate")
	if !archive.ValidDate(start) || !archive.ValidDate(end) {
		writeError(w, http.StatusBadRequest, "startDate and endDate must be YYYYMMDD dates")
		return
	}
	if start > end {
		writeError(w, http.StatusBadRequest, "startDate must not be after endDate")
		return
	}
	maxDays := s.cfg.Crawl.BatchMaxDays
	if v := q.Get("maxDays"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "maxDays must be a positive integer")
			return
		}
		maxDays = n
	}
	dates, err := archive.DatesBetween(start, end)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date range")
		return
	}
	if len(dates) > maxDays {
		dates = dates[:maxDays]
	}
	s.crawlDates(w, r, dates)
}

// scrapeMonthDay crawls the given month/day across every operating
// year of the site.
func (s *Server) scrapeMonthDay(w http.ResponseWriter, r *http.Request) {
	monthDay := chi.URLParam(r, "monthDay")
	today := s.clock.Now().In(s.cfg.Site.Location())
	dates, err := archive.DatesForMonthDay(monthDay, s.cfg.Site.FirstDate, today)
	if err != nil {
		writeError(w, http.StatusBadRequest, "monthDay must be a valid MMDD")
		return
	}
	s.crawlDates(w, r, dates)
}

// scrapeDateRange expands an MMDD range (wrapping across the year
// boundary) into every matching date of the site's history and crawls
// them in sequence.
func (s *Server) scrapeDateRange(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	seq, err := archive.MonthDaySequence(q.Get("startDate"), q.Get("endDate"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "startDate and endDate must be valid MMDD values")
		return
	}
	today := s.clock.Now().In(s.cfg.Site.Location())
	var dates []string
	for _, monthDay := range seq {
		expanded, err := archive.DatesForMonthDay(monthDay, s.cfg.Site.FirstDate, today)
		if err != nil {
			writeError(w, http.StatusBadRequest, "startDate and endDate must be valid MMDD values")
			return
		}
		dates = append(dates, expanded...)
	}
	s.crawlDates(w, r, dates)
}

// crawlDates runs one date crawl after another, pausing between them.
// The first failure stops the run; the response then carries the days
// that did finish.
func (s *Server) crawlDates(w http.ResponseWriter, r *http.Request, dates []string) {
	days := make([]dayResult, 0, len(dates))
	for i, date := range dates {
		if i > 0 {
			if err := s.pause(r.Context(), s.cfg.Crawl.DayPacing()); err != nil {
				writeJSON(w, http.StatusInternalServerError, map[string]any{
					"error": "request canceled",
					"days":  days,
				})
				return
			}
		}
		res, err := s.archiver.RunDate(r.Context(), date)
		if err != nil {
			s.logger.Error("date crawl failed", zap.String("date", date), zap.Error(err))
			status, msg := crawlErrorStatus(err)
			writeJSON(w, status, map[string]any{
				"error":      msg,
				"failedDate": date,
				"days":       days,
			})
			return
		}
		days = append(days, dayResult{Date: date, Summary: summarize(res)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"days": days})
}

// writeCrawlError maps upstream fetch failures to 502 with the partial
// counts; anything else is an opaque 500.
func (s *Server) writeCrawlError(w http.ResponseWriter, res crawl.Result, err error) {
	var fetchErr *archive.FetchError
	if errors.As(err, &fetchErr) {
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error":   "upstream fetch failed",
			"partial": summarize(res),
		})
		return
	}
	writeError(w, http.StatusInternalServerError, "crawl failed")
}

func crawlErrorStatus(err error) (int, string) {
	var fetchErr *archive.FetchError
	if errors.As(err, &fetchErr) {
		return http.StatusBadGateway, "upstream fetch failed"
	}
	return http.StatusInternalServerError, "crawl failed"
}
