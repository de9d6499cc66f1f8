package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/syncer"
)

// newTestServer creates an httptest server that routes requests to handler functions
// keyed by path. Verifies the HTTP client sends correct paths and query params.
func newTestServer(t *testing.T, handlers map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, ok := handlers[r.URL.Path]
		if !ok {
			t.Errorf("unexpected request path: %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		h(w, r)
	}))
}

func writeTestJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Fatal(err)
	}
}

// TestQueryWorkouts verifies the HTTP client sends the date range and
// correctly parses the JSON array response.
func TestQueryWorkouts(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v1/workouts": func(w http.ResponseWriter, r *http.Request) {
			if got := r.URL.Query().Get("start"); got == "" {
				t.Error("missing start param")
			}
			if got := r.URL.Query().Get("end"); got == "" {
				t.Error("missing end param")
			}
			writeTestJSON(t, w, []*models.Workout{{ID: "w1", Name: "Leg Day"}})
		},
	})
	defer ts.Close()

	client := NewHTTPClient(ts.URL, "")
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, 7, 0, 0, 0, 0, time.UTC)

	workouts, err := client.QueryWorkouts(context.Background(), start, end)
	if err != nil {
		t.Fatal(err)
	}
	if len(workouts) != 1 {
		t.Fatalf("got %d workouts, want 1", len(workouts))
	}
	if workouts[0].Name != "Leg Day" {
		t.Errorf("name = %q, want %q", workouts[0].Name, "Leg Day")
	}
}

// TestSyncStatus verifies the HTTP client correctly parses a single struct response.
func TestSyncStatus(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v1/sync/status": func(w http.ResponseWriter, r *http.Request) {
			writeTestJSON(t, w, &syncer.Status{IsOnline: true, PendingWorkouts: 3})
		},
	})
	defer ts.Close()

	client := NewHTTPClient(ts.URL, "")
	status, err := client.SyncStatus(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !status.IsOnline {
		t.Error("expected online status")
	}
	if status.PendingWorkouts != 3 {
		t.Errorf("pending = %d, want 3", status.PendingWorkouts)
	}
}

// TestForceSyncSendsAPIKey verifies the API key header rides along on POSTs.
func TestForceSyncSendsAPIKey(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v1/sync/force": func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				t.Errorf("method = %s, want POST", r.Method)
			}
			if got := r.Header.Get("X-API-Key"); got != "k1" {
				t.Errorf("api key = %q, want %q", got, "k1")
			}
			writeTestJSON(t, w, &syncer.Result{Pushed: 2})
		},
	})
	defer ts.Close()

	client := NewHTTPClient(ts.URL, "k1")
	result, err := client.ForceSync(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if result.Pushed != 2 {
		t.Errorf("pushed = %d, want 2", result.Pushed)
	}
}

// TestErrorStatus verifies non-200 responses surface as errors with the body.
func TestErrorStatus(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v1/stats": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":"boom"}`, http.StatusInternalServerError)
		},
	})
	defer ts.Close()

	client := NewHTTPClient(ts.URL, "")
	if _, err := client.Stats(context.Background()); err == nil {
		t.Fatal("expected error for 500 response")
	}
}
