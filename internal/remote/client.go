package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/claude/liftlog/internal/models"
)

const defaultTimeout = 30 * time.Second

// Client talks to the remote store over HTTP/JSON. Each request carries its
// own timeout so a hung request degrades one record's sync rather than
// hanging the whole cycle. Retries are the queue's job, not the client's.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

var _ Store = (*Client)(nil)

// NewClient creates a Client targeting the given base URL. A zero timeout
// gets the default.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// GetWorkouts fetches workouts updated after since.
func (c *Client) GetWorkouts(ctx context.Context, userID string, since time.Time) ([]*models.Workout, error) {
	q := url.Values{"user_id": {userID}}
	if !since.IsZero() {
		q.Set("since", since.UTC().Format(time.RFC3339Nano))
	}
	var workouts []*models.Workout
	if err := c.do(ctx, http.MethodGet, "/api/v1/workouts?"+q.Encode(), nil, &workouts); err != nil {
		return nil, err
	}
	return workouts, nil
}

// CreateWorkout creates (or, by id, re-creates) a workout remotely.
func (c *Client) CreateWorkout(ctx context.Context, w *models.Workout, userID string) (*models.Workout, error) {
	var out models.Workout
	if err := c.do(ctx, http.MethodPost, "/api/v1/workouts?user_id="+url.QueryEscape(userID), w, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateWorkout replaces the remote workout content.
func (c *Client) UpdateWorkout(ctx context.Context, id string, w *models.Workout, userID string) (*models.Workout, error) {
	var out models.Workout
	path := "/api/v1/workouts/" + url.PathEscape(id) + "?user_id=" + url.QueryEscape(userID)
	if err := c.do(ctx, http.MethodPut, path, w, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteWorkout removes the remote workout. Deleting an id the remote never
// saw is a success (idempotent replay).
func (c *Client) DeleteWorkout(ctx context.Context, id, userID string) error {
	path := "/api/v1/workouts/" + url.PathEscape(id) + "?user_id=" + url.QueryEscape(userID)
	err := c.do(ctx, http.MethodDelete, path, nil, nil)
	if isStatus(err, http.StatusNotFound) {
		return nil
	}
	return err
}

// UpsertTemplate creates or replaces the remote template by id.
func (c *Client) UpsertTemplate(ctx context.Context, t *models.Template, userID string) error {
	path := "/api/v1/templates/" + url.PathEscape(t.ID) + "?user_id=" + url.QueryEscape(userID)
	return c.do(ctx, http.MethodPut, path, t, nil)
}

// DeleteTemplate removes the remote template.
func (c *Client) DeleteTemplate(ctx context.Context, id, userID string) error {
	path := "/api/v1/templates/" + url.PathEscape(id) + "?user_id=" + url.QueryEscape(userID)
	err := c.do(ctx, http.MethodDelete, path, nil, nil)
	if isStatus(err, http.StatusNotFound) {
		return nil
	}
	return err
}

// StatusError is a non-2xx response from the remote store.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("remote returned status %d: %s", e.Code, e.Body)
}

func isStatus(err error, code int) bool {
	se, ok := err.(*StatusError)
	return ok && se.Code == code
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("remote request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
