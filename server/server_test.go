package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"sublet-scraper/models"
	"sublet-scraper/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRuns struct {
	status services.RunStatus
	ok     bool
}

func (f fakeRuns) LastRun() (services.RunStatus, bool) { return f.status, f.ok }

type fakeSeen struct {
	entries   []models.SeenEntry
	err       error
	lastLimit int
}

func (f *fakeSeen) Count(context.Context) (int64, error) {
	return int64(len(f.entries)), f.err
}

func (f *fakeSeen) Recent(_ context.Context, limit int) ([]models.SeenEntry, error) {
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.entries) {
		return f.entries[:limit], nil
	}
	return f.entries, nil
}

func get(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		runs       fakeRuns
		wantCode   int
		wantStatus string
	}{
		{name: "no run yet", runs: fakeRuns{}, wantCode: http.StatusOK, wantStatus: "pending"},
		{
			name:       "last run ok",
			runs:       fakeRuns{ok: true, status: services.RunStatus{Report: services.Report{RunID: "r1"}}},
			wantCode:   http.StatusOK,
			wantStatus: "ok",
		},
		{
			name:       "last run failed",
			runs:       fakeRuns{ok: true, status: services.RunStatus{Report: services.Report{RunID: "r2"}, Error: "store record: disk full"}},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "failing",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(":0", tt.runs, &fakeSeen{}, zap.NewNop())
			rec := get(t, s, "/healthz")

			assert.Equal(t, tt.wantCode, rec.Code)
			var body healthResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tt.wantStatus, body.Status)
			assert.Equal(t, tt.runs.status.Error, body.Error)
		})
	}
}

func TestRecent(t *testing.T) {
	seen := &fakeSeen{entries: []models.SeenEntry{
		{ID: 3, URL: "https://example.com/3", FirstSeen: time.Date(2024, 2, 3, 4, 5, 6, 0, time.Local)},
		{ID: 2, URL: "https://example.com/2"},
		{ID: 1, URL: "https://example.com/1"},
	}}
	s := New(":0", fakeRuns{}, seen, zap.NewNop())

	rec := get(t, s, "/listings/recent?limit=2")
	require.Equal(t, http.StatusOK, rec.Code)

	var body recentResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.EqualValues(t, 3, body.Total)
	require.Len(t, body.Listings, 2)
	assert.Equal(t, "https://example.com/3", body.Listings[0].URL)
	assert.Equal(t, "2024-02-03 04:05:06", body.Listings[0].FirstSeen)
	assert.Empty(t, body.Listings[1].FirstSeen)

	get(t, s, "/listings/recent")
	assert.Equal(t, defaultRecentLimit, seen.lastLimit)

	get(t, s, "/listings/recent?limit=100000")
	assert.Equal(t, maxRecentLimit, seen.lastLimit)
}

func TestRecent_Errors(t *testing.T) {
	s := New(":0", fakeRuns{}, &fakeSeen{}, zap.NewNop())
	assert.Equal(t, http.StatusBadRequest, get(t, s, "/listings/recent?limit=abc").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, s, "/listings/recent?limit=0").Code)

	failing := New(":0", fakeRuns{}, &fakeSeen{err: errors.New("db locked")}, zap.NewNop())
	assert.Equal(t, http.StatusInternalServerError, get(t, failing, "/listings/recent").Code)
}

func TestMethodNotAllowed(t *testing.T) {
	s := New(":0", fakeRuns{}, &fakeSeen{}, zap.NewNop())
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestStartAndShutdown(t *testing.T) {
	s := New("127.0.0.1:0", fakeRuns{}, &fakeSeen{}, zap.NewNop())
	require.NoError(t, s.Start())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Shutdown(ctx))
}
