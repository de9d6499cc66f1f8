package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/claude/liftlog/internal/models"
)

func TestClientGetWorkouts(t *testing.T) {
	var gotQuery map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/workouts" {
			t.Errorf("path = %q", r.URL.Path)
		}
		gotQuery = r.URL.Query()
		json.NewEncoder(w).Encode([]*models.Workout{{ID: "w1", Name: "remote"}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k1", 0)
	since := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	workouts, err := c.GetWorkouts(context.Background(), "u1", since)
	if err != nil {
		t.Fatalf("GetWorkouts: %v", err)
	}
	if len(workouts) != 1 || workouts[0].ID != "w1" {
		t.Fatalf("workouts = %+v", workouts)
	}
	if gotQuery["user_id"][0] != "u1" {
		t.Errorf("user_id = %v", gotQuery["user_id"])
	}
	if gotQuery["since"][0] != since.Format(time.RFC3339Nano) {
		t.Errorf("since = %v", gotQuery["since"])
	}
}

func TestClientSendsAPIKey(t *testing.T) {
	var gotKey, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-Key")
		gotMethod = r.Method
		json.NewEncoder(w).Encode(&models.Workout{ID: "w1"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret", 0)
	if _, err := c.CreateWorkout(context.Background(), &models.Workout{ID: "w1"}, "u1"); err != nil {
		t.Fatalf("CreateWorkout: %v", err)
	}
	if gotKey != "secret" {
		t.Errorf("api key = %q", gotKey)
	}
	if gotMethod != http.MethodPost {
		t.Errorf("method = %q", gotMethod)
	}
}

func TestClientStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "out of storage", http.StatusInsufficientStorage)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", 0)
	_, err := c.UpdateWorkout(context.Background(), "w1", &models.Workout{ID: "w1"}, "u1")
	se, ok := err.(*StatusError)
	if !ok {
		t.Fatalf("err = %T %v, want StatusError", err, err)
	}
	if se.Code != http.StatusInsufficientStorage || se.Body != "out of storage" {
		t.Errorf("status error = %+v", se)
	}
}

func TestClientDeleteUnseenIDSucceeds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", 0)
	// Replaying a delete for an id the remote already dropped must not fail
	// the queue drain.
	if err := c.DeleteWorkout(context.Background(), "long-gone", "u1"); err != nil {
		t.Fatalf("DeleteWorkout: %v", err)
	}
	if err := c.DeleteTemplate(context.Background(), "also-gone", "u1"); err != nil {
		t.Fatalf("DeleteTemplate: %v", err)
	}
}
