package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/forumtrail/forumtrail/internal/archive"
)

const (
	defaultProgressLimit = 50
	maxProgressLimit     = 500
	storeTimeout         = 3 * time.Second
)

// listProgress handles GET /progress?status=&limit=&offset=. It
// returns {"progress": [...]}, 400 for invalid filters, or 500 when
// the store call fails.
func (s *Server) listProgress(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parseLimitOffset(r, defaultProgressLimit, maxProgressLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var status *archive.Status
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		parsed, parseErr := parseStatusFilter(raw)
		if parseErr != nil {
			writeError(w, http.StatusBadRequest, parseErr.Error())
			return
		}
		status = parsed
	}
	ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
	defer cancel()

	checkpoints, err := s.checkpoints.List(ctx, status, limit, offset)
	if err != nil {
		s.logger.Error("list progress failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list progress")
		return
	}
	if checkpoints == nil {
		checkpoints = []archive.Checkpoint{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"progress": checkpoints})
}

// getProgress handles GET /progress/{date}: one checkpoint or 404.
func (s *Server) getProgress(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	if !archive.ValidDate(date) {
		writeError(w, http.StatusBadRequest, "date must be a YYYYMMDD date")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
	defer cancel()

	cp, err := s.checkpoints.Get(ctx, date)
	if err != nil {
		if errors.Is(err, archive.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no progress for date")
			return
		}
		s.logger.Error("get progress failed", zap.String("date", date), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load progress")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"progress": cp})
}

type statsResponse struct {
	TotalURLs int64               `json:"totalUrls"`
	Years     []archive.YearCount `json:"years"`
	Progress  progressCounts      `json:"progress"`
}

type progressCounts struct {
	Pending    int64 `json:"pending"`
	InProgress int64 `json:"inProgress"`
	Completed  int64 `json:"completed"`
}

// stats handles GET /stats: archive totals plus checkpoint counts.
func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
	defer cancel()

	total, err := s.records.TotalCount(ctx)
	if err != nil {
		s.logger.Error("stats total failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}
	years, err := s.records.CountByYear(ctx)
	if err != nil {
		s.logger.Error("stats per-year counts failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}
	if years == nil {
		years = []archive.YearCount{}
	}
	counts, err := s.checkpoints.CountByStatus(ctx)
	if err != nil {
		s.logger.Error("stats progress counts failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{
		TotalURLs: total,
		Years:     years,
		Progress: progressCounts{
			Pending:    counts[archive.StatusPending],
			InProgress: counts[archive.StatusInProgress],
			Completed:  counts[archive.StatusCompleted],
		},
	})
}

// seedProgress handles POST /seed-progress?startYear=&endYear=&missing=.
// It fills the checkpoint table for the year range; missing=1 restricts
// seeding to dates with no archived records yet.
func (s *Server) seedProgress(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	startYear, err := strconv.Atoi(q.Get("startYear"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "startYear must be an integer")
		return
	}
	endYear, err := strconv.Atoi(q.Get("endYear"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "endYear must be an integer")
		return
	}
	if startYear > endYear {
		writeError(w, http.StatusBadRequest, "startYear must not exceed endYear")
		return
	}
	missing := false
	if v := q.Get("missing"); v != "" {
		parsed, parseErr := strconv.ParseBool(v)
		if parseErr != nil {
			writeError(w, http.StatusBadRequest, "missing must be a boolean")
			return
		}
		missing = parsed
	}

	var seeded int
	if missing {
		seeded, err = s.seeder.SeedMissing(r.Context(), startYear, endYear)
	} else {
		seeded, err = s.seeder.SeedRange(r.Context(), startYear, endYear)
	}
	if err != nil {
		s.logger.Error("seeding failed",
			zap.Int("start_year", startYear),
			zap.Int("end_year", endYear),
			zap.Bool("missing", missing),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "seeding failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"seeded": seeded})
}

func parseLimitOffset(r *http.Request, def, maxLimit int) (int, int, error) {
	q := r.URL.Query()
	limit := def
	if limStr := q.Get("limit"); limStr != "" {
		val, err := strconv.Atoi(limStr)
		if err != nil || val <= 0 {
			return 0, 0, errors.New("invalid limit")
		}
		if val > maxLimit {
			val = maxLimit
		}
		limit = val
	}
	offset := 0
	if offStr := q.Get("offset"); offStr != "" {
		val, err := strconv.Atoi(offStr)
		if err != nil || val < 0 {
			return 0, 0, errors.New("invalid offset")
		}
		offset = val
	}
	return limit, offset, nil
}

func parseStatusFilter(input string) (*archive.Status, error) {
	var status archive.Status
	switch strings.ToLower(input) {
	case "pending":
		status = archive.StatusPending
	case "in_progress", "in-progress":
		status = archive.StatusInProgress
	case "completed", "done":
		status = archive.StatusCompleted
	default:
		return nil, errors.New("invalid status")
	}
	return &status, nil
}
