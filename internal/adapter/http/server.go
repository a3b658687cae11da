// Package http exposes the pipeline over HTTP: health and readiness probes,
// Prometheus metrics, and a small query API that serves summaries,
// aggregations, event samples, and the rejection list from the current
// snapshot.
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/maritime-event-pipeline/internal/aggregate"
	"github.com/couchcryptid/maritime-event-pipeline/internal/domain"
)

// Pipeline is the slice of the ETL pipeline the HTTP surface consumes:
// readiness for probes, the serving snapshot for queries, and refresh for
// the trigger endpoint.
type Pipeline interface {
	CheckReadiness(ctx context.Context) error
	Current() (domain.Snapshot, bool)
	Refresh(ctx context.Context, force bool) error
}

// Server exposes health, readiness, and metrics endpoints plus the
// /api/v1 query routes over the serving snapshot.
type Server struct {
	httpServer  *http.Server
	pipe        Pipeline
	sampleLimit int
	logger      *slog.Logger
}

// NewServer wires all routes. sampleLimit caps how many events or rejects
// one response may carry; 0 disables the cap.
func NewServer(addr string, pipe Pipeline, sampleLimit int, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		pipe:        pipe,
		sampleLimit: sampleLimit,
		logger:      logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /api/v1/summary", s.handleSummary)
	mux.HandleFunc("GET /api/v1/aggregates", s.handleAggregates)
	mux.HandleFunc("GET /api/v1/events", s.handleEvents)
	mux.HandleFunc("GET /api/v1/rejects", s.handleRejects)
	mux.HandleFunc("POST /api/v1/refresh", s.handleRefresh)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.pipe.CheckReadiness(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type summaryResponse struct {
	RunID       string            `json:"run_id"`
	Source      string            `json:"source"`
	Fingerprint string            `json:"fingerprint"`
	RefreshedAt time.Time         `json:"refreshed_at"`
	RowsLoaded  int               `json:"rows_loaded"`
	Duplicates  int               `json:"duplicates"`
	Rejects     int               `json:"rejects"`
	Excluded    int               `json:"excluded"`
	Dataset     aggregate.Summary `json:"dataset"`
}

func (s *Server) handleSummary(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.snapshot(w)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, summaryResponse{
		RunID:       snap.RunID,
		Source:      snap.Source,
		Fingerprint: snap.Fingerprint,
		RefreshedAt: snap.RefreshedAt,
		RowsLoaded:  snap.RowsLoaded,
		Duplicates:  snap.Duplicates,
		Rejects:     len(snap.Rejects),
		Excluded:    len(snap.Excluded),
		Dataset:     aggregate.Summarize(snap.Events),
	})
}

type aggregatesResponse struct {
	Buckets []aggregate.Bucket `json:"buckets"`
	Total   int                `json:"total"`
}

func (s *Server) handleAggregates(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w)
	if !ok {
		return
	}

	q := r.URL.Query()

	bucket, err := aggregate.ParseTimeBucket(q.Get("bucket"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	region, err := aggregate.ParseRegionDim(q.Get("region"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	order, err := aggregate.ParseOrder(q.Get("order"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	byType, err := queryBool(q, "by_type")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	bySubType, err := queryBool(q, "by_sub_type")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := queryInt(q, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	buckets := aggregate.Group(snap.Events, aggregate.GroupSpec{
		Bucket:    bucket,
		Region:    region,
		ByType:    byType,
		BySubType: bySubType,
		Stat:      strings.TrimSpace(q.Get("stat")),
		Order:     order,
		Limit:     limit,
	})
	if buckets == nil {
		buckets = []aggregate.Bucket{}
	}
	writeJSON(w, http.StatusOK, aggregatesResponse{Buckets: buckets, Total: len(buckets)})
}

type eventsResponse struct {
	Events []domain.NormalizedEvent `json:"events"`
	Count  int                      `json:"count"`
	Limit  int                      `json:"limit"`
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w)
	if !ok {
		return
	}

	q := r.URL.Query()

	from, err := queryTime(q, "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := queryTime(q, "to")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	flagged, err := queryBool(q, "flagged")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := queryInt(q, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	f := aggregate.Filter{
		From:        from,
		To:          to,
		Country:     strings.TrimSpace(q.Get("country")),
		Ocean:       strings.TrimSpace(q.Get("ocean")),
		Type:        domain.EventType(strings.ToLower(strings.TrimSpace(q.Get("type")))),
		FlaggedOnly: flagged,
		Limit:       s.clampLimit(limit),
	}

	events := aggregate.FilterEvents(snap.Events, f)
	writeJSON(w, http.StatusOK, eventsResponse{Events: events, Count: len(events), Limit: f.Limit})
}

type rejectsResponse struct {
	Rejects []domain.RejectedRow `json:"rejects"`
	Count   int                  `json:"count"`
	Total   int                  `json:"total"`
}

func (s *Server) handleRejects(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w)
	if !ok {
		return
	}

	limit, err := queryInt(r.URL.Query(), "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit = s.clampLimit(limit)

	rejects := snap.Rejects
	if limit > 0 && len(rejects) > limit {
		rejects = rejects[:limit]
	}
	if rejects == nil {
		rejects = []domain.RejectedRow{}
	}
	writeJSON(w, http.StatusOK, rejectsResponse{
		Rejects: rejects,
		Count:   len(rejects),
		Total:   len(snap.Rejects),
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.pipe.Refresh(r.Context(), true); err != nil {
		s.logger.Error("refresh via http failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	snap, ok := s.pipe.Current()
	if !ok {
		writeError(w, http.StatusInternalServerError, "refresh completed without a snapshot")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "refreshed",
		"run_id": snap.RunID,
		"events": len(snap.Events),
	})
}

// snapshot fetches the serving snapshot, answering 503 when none is
// installed yet.
func (s *Server) snapshot(w http.ResponseWriter) (domain.Snapshot, bool) {
	snap, ok := s.pipe.Current()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "no snapshot available yet")
	}
	return snap, ok
}

// clampLimit applies the server's sample cap to a requested limit.
func (s *Server) clampLimit(requested int) int {
	if s.sampleLimit <= 0 {
		return requested
	}
	if requested <= 0 || requested > s.sampleLimit {
		return s.sampleLimit
	}
	return requested
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func queryBool(q url.Values, name string) (bool, error) {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %q", name, v)
	}
	return b, nil
}

func queryInt(q url.Values, name string) (int, error) {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s: %q", name, v)
	}
	return n, nil
}

// queryTime accepts RFC 3339 timestamps or bare dates.
func queryTime(q url.Values, name string) (time.Time, error) {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid %s: %q (want RFC 3339 or YYYY-MM-DD)", name, v)
}
