package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/forumtrail/forumtrail/internal/archive"
	"github.com/forumtrail/forumtrail/internal/config"
	"github.com/forumtrail/forumtrail/internal/crawl"
	"github.com/forumtrail/forumtrail/internal/metrics"
	"github.com/forumtrail/forumtrail/internal/redirect"
)

const (
	readTimeout  = 10 * time.Second
	probeTimeout = 2 * time.Second
)

// Archiver runs crawls against the live listing or one date's listing.
type Archiver interface {
	RunListing(ctx context.Context, light bool) (crawl.Result, error)
	RunDate(ctx context.Context, date string) (crawl.Result, error)
}

// Seeder prepares checkpoint rows for historical crawling.
type Seeder interface {
	SeedRange(ctx context.Context, startYear, endYear int) (int, error)
	SeedMissing(ctx context.Context, startYear, endYear int) (int, error)
}

// RedirectPicker chooses the article the root redirect points at.
type RedirectPicker interface {
	Pick(ctx context.Context, now time.Time) (archive.Record, error)
}

// Pinger reports whether the backing store is reachable. The pgx pool
// satisfies it; the memory provider runs without one.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps carries everything the HTTP layer calls into.
type Deps struct {
	Archiver    Archiver
	Seeder      Seeder
	Picker      RedirectPicker
	Checkpoints archive.CheckpointStore
	Records     archive.RecordStore
	Clock       archive.Clock
	Pinger      Pinger
	Logger      *zap.Logger
}

// Server wires HTTP handlers to the crawl and storage layers.
type Server struct {
	router      chi.Router
	archiver    Archiver
	seeder      Seeder
	picker      RedirectPicker
	checkpoints archive.CheckpointStore
	records     archive.RecordStore
	clock       archive.Clock
	pinger      Pinger
	cfg         config.Config
	logger      *zap.Logger
	pause       func(ctx context.Context, d time.Duration) error
}

// NewServer constructs a Server with middleware and routes.
func NewServer(deps Deps, cfg config.Config) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		archiver:    deps.Archiver,
		seeder:      deps.Seeder,
		picker:      deps.Picker,
		checkpoints: deps.Checkpoints,
		records:     deps.Records,
		clock:       deps.Clock,
		pinger:      deps.Pinger,
		cfg:         cfg,
		logger:      logger,
		pause:       sleepUntil,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)

	// Crawl routes run for as long as the crawl deadline allows, so the
	// request timeout only covers the fast read paths.
	r.Group(func(r chi.Router) {
		r.Use(timeoutMiddleware(readTimeout))
		r.Get("/", s.redirectToday)
		r.Get("/healthz", s.healthz)
		r.Get("/readyz", s.readyz)
		r.Get("/progress", s.listProgress)
		r.Get("/progress/{date}", s.getProgress)
		r.Get("/stats", s.stats)
	})
	r.Handle("/metrics", metrics.Handler())

	r.Post("/scrape", s.scrape)
	r.Get("/scrape", s.scrape)
	r.Group(func(r chi.Router) {
		r.Use(s.requireDevMode)
		r.Get("/scrape-historical", s.scrapeHistorical)
		r.Get("/scrape-historical-batch", s.scrapeHistoricalBatch)
		r.Get("/scrape/date/{monthDay}", s.scrapeMonthDay)
		r.Get("/scrape/date-range", s.scrapeDateRange)
		r.Post("/seed-progress", s.seedProgress)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		defer cancel()
		if err := s.pinger.Ping(ctx); err != nil {
			s.logger.Warn("readiness probe failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// redirectToday sends the visitor to a random article published on
// today's month and day in some earlier year.
func (s *Server) redirectToday(w http.ResponseWriter, r *http.Request) {
	rec, err := s.picker.Pick(r.Context(), s.clock.Now())
	switch {
	case errors.Is(err, redirect.ErrNoMatch):
		metrics.ObserveRedirect("miss")
		writeError(w, http.StatusNotFound, "no article for today")
	case err != nil:
		metrics.ObserveRedirect("error")
		s.logger.Error("redirect lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "lookup failed")
	default:
		metrics.ObserveRedirect("hit")
		http.Redirect(w, r, rec.URL, http.StatusFound)
	}
}

// requireDevMode hides the operator-only crawl endpoints in production.
func (s *Server) requireDevMode(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Server.Mode != config.ModeDevelopment {
			writeError(w, http.StatusForbidden, "not available in production")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.String("request_id", requestIDFrom(r.Context())),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered",
					zap.Any("error", rec),
					zap.String("path", r.URL.Path),
				)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type requestIDKey struct{}

func requestIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// sleepUntil is the context-aware pause between per-date crawls.
func sleepUntil(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("pause interrupted: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
