package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/couchcryptid/maritime-event-pipeline/internal/adapter/http"
	"github.com/couchcryptid/maritime-event-pipeline/internal/domain"
)

// --- mocks ---

type mockPipeline struct {
	readyErr   error
	snap       domain.Snapshot
	hasSnap    bool
	refreshErr error
	refreshed  int
	forced     bool
}

func (m *mockPipeline) CheckReadiness(context.Context) error { return m.readyErr }

func (m *mockPipeline) Current() (domain.Snapshot, bool) { return m.snap, m.hasSnap }

func (m *mockPipeline) Refresh(_ context.Context, force bool) error {
	m.refreshed++
	m.forced = force
	return m.refreshErr
}

// --- tests ---

func TestHealthzReturns200(t *testing.T) {
	srv := newTestServer(&mockPipeline{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	srv := newTestServer(&mockPipeline{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	srv := newTestServer(&mockPipeline{readyErr: errors.New("pipeline has no snapshot yet")})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "pipeline has no snapshot yet", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(&mockPipeline{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestSummary(t *testing.T) {
	srv := newTestServer(&mockPipeline{snap: fixtureSnapshot(), hasSnap: true})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/summary", nil)

	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		RunID      string `json:"run_id"`
		RowsLoaded int    `json:"rows_loaded"`
		Duplicates int    `json:"duplicates"`
		Rejects    int    `json:"rejects"`
		Excluded   int    `json:"excluded"`
		Dataset    struct {
			TotalEvents      int     `json:"total_events"`
			Countries        int     `json:"countries"`
			FlaggedSmuggling int     `json:"flagged_smuggling"`
			TotalFatalities  float64 `json:"total_fatalities"`
		} `json:"dataset"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "run-1", body.RunID)
	assert.Equal(t, 6, body.RowsLoaded)
	assert.Equal(t, 1, body.Duplicates)
	assert.Equal(t, 2, body.Rejects)
	assert.Equal(t, 1, body.Excluded)
	assert.Equal(t, 3, body.Dataset.TotalEvents)
	assert.Equal(t, 3, body.Dataset.Countries)
	assert.Equal(t, 1, body.Dataset.FlaggedSmuggling)
	assert.InEpsilon(t, 2.0, body.Dataset.TotalFatalities, 0.0001)
}

func TestSummaryWithoutSnapshotReturns503(t *testing.T) {
	srv := newTestServer(&mockPipeline{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/summary", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body["error"], "no snapshot")
}

func TestAggregatesByMonthAndType(t *testing.T) {
	srv := newTestServer(&mockPipeline{snap: fixtureSnapshot(), hasSnap: true})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/aggregates?bucket=month&by_type=true&order=key", nil)

	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body aggregatesBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 3, body.Total)

	assert.Equal(t, "2024-05", body.Buckets[0].Key.Time)
	assert.Equal(t, "piracy", body.Buckets[0].Key.EventType)
	assert.Equal(t, "2024-05", body.Buckets[1].Key.Time)
	assert.Equal(t, "smuggling", body.Buckets[1].Key.EventType)
	assert.Equal(t, "2024-06", body.Buckets[2].Key.Time)
	assert.Equal(t, "collision", body.Buckets[2].Key.EventType)
	for _, b := range body.Buckets {
		assert.Equal(t, 1, b.Count)
	}
}

func TestAggregatesByCountryWithStat(t *testing.T) {
	srv := newTestServer(&mockPipeline{snap: fixtureSnapshot(), hasSnap: true})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/aggregates?region=country&stat=fatalities&order=key", nil)

	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body aggregatesBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 3, body.Total)

	assert.Equal(t, "Indonesia", body.Buckets[0].Key.Region)
	assert.Nil(t, body.Buckets[0].Stat, "no fatalities recorded for this bucket")
	assert.Equal(t, "United States", body.Buckets[2].Key.Region)
	require.NotNil(t, body.Buckets[2].Stat)
	assert.InEpsilon(t, 2.0, body.Buckets[2].Stat.Sum, 0.0001)
}

func TestAggregatesRejectsUnknownBucket(t *testing.T) {
	srv := newTestServer(&mockPipeline{snap: fixtureSnapshot(), hasSnap: true})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/aggregates?bucket=century", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body["error"], "time bucket")
}

func TestEventsFlaggedFilter(t *testing.T) {
	srv := newTestServer(&mockPipeline{snap: fixtureSnapshot(), hasSnap: true})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/events?flagged=true", nil)

	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body eventsBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "smuggling-bbbb", body.Events[0].ID)
}

func TestEventsCountryFilterIsCaseInsensitive(t *testing.T) {
	srv := newTestServer(&mockPipeline{snap: fixtureSnapshot(), hasSnap: true})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/events?country=somalia", nil)

	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body eventsBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "piracy-aaaa", body.Events[0].ID)
}

func TestEventsFromDateFilter(t *testing.T) {
	srv := newTestServer(&mockPipeline{snap: fixtureSnapshot(), hasSnap: true})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/events?from=2024-06-01", nil)

	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body eventsBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "collision-cccc", body.Events[0].ID)
}

func TestEventsRejectsBadDate(t *testing.T) {
	srv := newTestServer(&mockPipeline{snap: fixtureSnapshot(), hasSnap: true})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/events?from=yesterday", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body["error"], "from")
}

func TestEventsLimitClampedToSampleCap(t *testing.T) {
	srv := httpadapter.NewServer(":0", &mockPipeline{snap: fixtureSnapshot(), hasSnap: true}, 2, slog.Default())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/events?limit=100", nil)
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body eventsBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
	assert.Equal(t, 2, body.Limit)
}

func TestRejectsEndpoint(t *testing.T) {
	srv := newTestServer(&mockPipeline{snap: fixtureSnapshot(), hasSnap: true})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/rejects?limit=1", nil)

	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Rejects []struct {
			Line   int    `json:"line"`
			Kind   string `json:"kind"`
			Reason string `json:"reason"`
		} `json:"rejects"`
		Count int `json:"count"`
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, 2, body.Total)
	require.Len(t, body.Rejects, 1)
	assert.Equal(t, 4, body.Rejects[0].Line)
	assert.Equal(t, "validation", body.Rejects[0].Kind)
}

func TestRefreshEndpointForcesRefresh(t *testing.T) {
	pipe := &mockPipeline{snap: fixtureSnapshot(), hasSnap: true}
	srv := newTestServer(pipe)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/refresh", nil)
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, pipe.refreshed)
	assert.True(t, pipe.forced)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "refreshed", body["status"])
	assert.Equal(t, "run-1", body["run_id"])
}

func TestRefreshEndpointReportsFailure(t *testing.T) {
	pipe := &mockPipeline{refreshErr: errors.New("source unreachable")}
	srv := newTestServer(pipe)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/refresh", nil)
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "source unreachable", body["error"])
}

func TestRefreshRejectsGET(t *testing.T) {
	srv := newTestServer(&mockPipeline{snap: fixtureSnapshot(), hasSnap: true})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/refresh", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

// --- helpers ---

type aggregatesBody struct {
	Buckets []struct {
		Key struct {
			Time      string `json:"time"`
			Region    string `json:"region"`
			EventType string `json:"event_type"`
			SubType   string `json:"sub_type"`
		} `json:"key"`
		Count int `json:"count"`
		Stat  *struct {
			Count int     `json:"count"`
			Sum   float64 `json:"sum"`
			Mean  float64 `json:"mean"`
			Min   float64 `json:"min"`
			Max   float64 `json:"max"`
		} `json:"stat"`
	} `json:"buckets"`
	Total int `json:"total"`
}

type eventsBody struct {
	Events []struct {
		ID        string  `json:"id"`
		EventType string  `json:"event_type"`
		Country   string  `json:"country"`
		Ocean     string  `json:"ocean"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"events"`
	Count int `json:"count"`
	Limit int `json:"limit"`
}

func newTestServer(pipe *mockPipeline) *httpadapter.Server {
	return httpadapter.NewServer(":0", pipe, 1000, slog.Default())
}

func fixtureSnapshot() domain.Snapshot {
	fatalities := 2.0
	return domain.Snapshot{
		RunID:       "run-1",
		Source:      "data/events.csv",
		Fingerprint: "1700000000-2048-",
		RefreshedAt: time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC),
		RowsLoaded:  6,
		Duplicates:  1,
		Events: []domain.NormalizedEvent{
			{
				ID:        "piracy-aaaa",
				Timestamp: time.Date(2024, time.May, 1, 6, 0, 0, 0, time.UTC),
				EventType: domain.EventPiracy,
				Country:   "Somalia",
				Ocean:     "Indian",
			},
			{
				ID:            "smuggling-bbbb",
				Timestamp:     time.Date(2024, time.May, 20, 9, 0, 0, 0, time.UTC),
				EventType:     domain.EventSmuggling,
				Country:       "Indonesia",
				Ocean:         "Pacific",
				SmugglingFlag: true,
			},
			{
				ID:         "collision-cccc",
				Timestamp:  time.Date(2024, time.June, 3, 15, 0, 0, 0, time.UTC),
				EventType:  domain.EventCollision,
				Country:    "United States",
				Ocean:      "Pacific",
				Fatalities: &fatalities,
			},
		},
		Rejects: []domain.RejectedRow{
			{Line: 4, Field: "latitude", Kind: domain.KindValidation, Reason: "latitude out of range"},
			{Line: 7, Field: "timestamp", Kind: domain.KindParse, Reason: "unparseable timestamp"},
		},
		Excluded: []domain.ExcludedEvent{
			{Event: domain.NormalizedEvent{ID: "unknown-dddd"}, Reason: domain.ExcludeLandlocked},
		},
	}
}
