package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/recovery"
	"github.com/claude/liftlog/internal/storage"
	"github.com/claude/liftlog/internal/syncer"
)

// HTTPClient implements DataSource by calling the LiftLog daemon's REST API.
// Used for remote MCP mode where the binary runs locally (stdio) but data
// lives in a daemon elsewhere (typically reached over Tailscale). The API
// key is only needed for force_sync; read tools work without one.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Compile-time check: HTTPClient satisfies DataSource.
var _ DataSource = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient targeting the given base URL.
func NewHTTPClient(baseURL, apiKey string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPClient) do(ctx context.Context, method, path string, params url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return nil, fmt.Errorf("httpclient: create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpclient: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("httpclient: read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("httpclient: %s returned %d: %s", path, resp.StatusCode, body)
	}

	return body, nil
}

func (c *HTTPClient) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, params)
}

func (c *HTTPClient) QueryWorkouts(ctx context.Context, start, end time.Time) ([]*models.Workout, error) {
	params := url.Values{}
	params.Set("start", start.Format(time.RFC3339))
	params.Set("end", end.Format(time.RFC3339))

	body, err := c.get(ctx, "/api/v1/workouts", params)
	if err != nil {
		return nil, err
	}

	var workouts []*models.Workout
	if err := json.Unmarshal(body, &workouts); err != nil {
		return nil, fmt.Errorf("httpclient: decode workouts: %w", err)
	}
	return workouts, nil
}

func (c *HTTPClient) GetWorkout(ctx context.Context, id string) (*models.Workout, error) {
	body, err := c.get(ctx, "/api/v1/workouts/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}

	var workout models.Workout
	if err := json.Unmarshal(body, &workout); err != nil {
		return nil, fmt.Errorf("httpclient: decode workout: %w", err)
	}
	return &workout, nil
}

func (c *HTTPClient) ListTemplates(ctx context.Context) ([]*models.Template, error) {
	body, err := c.get(ctx, "/api/v1/templates", nil)
	if err != nil {
		return nil, err
	}

	var templates []*models.Template
	if err := json.Unmarshal(body, &templates); err != nil {
		return nil, fmt.Errorf("httpclient: decode templates: %w", err)
	}
	return templates, nil
}

func (c *HTTPClient) SyncStatus(ctx context.Context) (*syncer.Status, error) {
	body, err := c.get(ctx, "/api/v1/sync/status", nil)
	if err != nil {
		return nil, err
	}

	var status syncer.Status
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, fmt.Errorf("httpclient: decode sync status: %w", err)
	}
	return &status, nil
}

func (c *HTTPClient) ForceSync(ctx context.Context) (*syncer.Result, error) {
	body, err := c.do(ctx, http.MethodPost, "/api/v1/sync/force", nil)
	if err != nil {
		return nil, err
	}

	var result syncer.Result
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("httpclient: decode sync result: %w", err)
	}
	return &result, nil
}

func (c *HTTPClient) QueueOps(ctx context.Context) ([]*models.QueuedOperation, error) {
	body, err := c.get(ctx, "/api/v1/queue", nil)
	if err != nil {
		return nil, err
	}

	var ops []*models.QueuedOperation
	if err := json.Unmarshal(body, &ops); err != nil {
		return nil, fmt.Errorf("httpclient: decode queue: %w", err)
	}
	return ops, nil
}

func (c *HTTPClient) Diagnose(ctx context.Context) (*recovery.Report, error) {
	body, err := c.get(ctx, "/api/v1/diagnostics", nil)
	if err != nil {
		return nil, err
	}

	var report recovery.Report
	if err := json.Unmarshal(body, &report); err != nil {
		return nil, fmt.Errorf("httpclient: decode diagnostics: %w", err)
	}
	return &report, nil
}

func (c *HTTPClient) Stats(ctx context.Context) (*storage.Stats, error) {
	body, err := c.get(ctx, "/api/v1/stats", nil)
	if err != nil {
		return nil, err
	}

	var stats storage.Stats
	if err := json.Unmarshal(body, &stats); err != nil {
		return nil, fmt.Errorf("httpclient: decode stats: %w", err)
	}
	return &stats, nil
}
