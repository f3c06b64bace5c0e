// Package client is the HTTP transport of the adaptive-testing service.
//
// A *Client is safe for concurrent use; many runs may share one.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/pavelanni/adaptest/internal/mapper"
	"github.com/pavelanni/adaptest/internal/model"
)

const (
	DefaultBaseURL  = "https://dashboard.trismik.com/api"
	DefaultTimeout  = 30 * time.Second
	DefaultMaxItems = 150

	// APIKeyHeader carries the API key on every request.
	APIKeyHeader    = "x-api-key"
	RequestIDHeader = "X-Request-ID"
)

// Config configures a Client. Zero values take the defaults above.
type Config struct {
	BaseURL  string        `validate:"required,url"`
	APIKey   string        `validate:"required"`
	Timeout  time.Duration `validate:"gt=0"`
	MaxItems int           `validate:"gt=0"`

	// RateLimit caps requests per second; 0 disables throttling.
	RateLimit float64 `validate:"gte=0"`

	HTTPClient *http.Client
	Metrics    *Metrics
	Logger     *slog.Logger
}

// Client sends requests to the service and maps the replies.
type Client struct {
	base     *url.URL
	apiKey   string
	maxItems int
	http     *http.Client
	limiter  *rate.Limiter
	metrics  *Metrics
	logger   *slog.Logger
}

var configValidate = validator.New()

// New validates cfg and creates a Client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxItems == 0 {
		cfg.MaxItems = DefaultMaxItems
	}
	if err := configValidate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate client config: %w", err)
	}

	// A trailing slash makes relative paths resolve below the base path.
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	// Copy so the caller's client is left untouched.
	hc := *httpClient
	hc.Timeout = cfg.Timeout

	c := &Client{
		base:     base,
		apiKey:   cfg.APIKey,
		maxItems: cfg.MaxItems,
		http:     &hc,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
	}
	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c, nil
}

// BaseURL returns the normalized service base URL.
func (c *Client) BaseURL() string {
	return strings.TrimRight(c.base.String(), "/")
}

// MaxItems returns the configured progress cap.
func (c *Client) MaxItems() int {
	return c.maxItems
}

// send performs one request and returns the body of a 2xx reply.
// endpoint is a stable name used for metrics and logs.
func (c *Client) send(ctx context.Context, endpoint, method, path string, body any) ([]byte, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("parse path %q: %w", path, err)
	}
	target := c.base.ResolveReference(ref)

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s request: %w", endpoint, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", endpoint, err)
	}
	requestID := uuid.NewString()
	req.Header.Set(APIKeyHeader, c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set(RequestIDHeader, requestID)

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("throttle %s request: %w", endpoint, err)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.observe(endpoint, method, 0, time.Since(start))
		return nil, fmt.Errorf("%s %s: %w", method, target.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	elapsed := time.Since(start)
	c.metrics.observe(endpoint, method, resp.StatusCode, elapsed)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", endpoint, err)
	}

	c.logger.Debug("service request",
		"endpoint", endpoint,
		"method", method,
		"status", resp.StatusCode,
		"request_id", requestID,
		"elapsed", elapsed,
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newAPIError(method, target.Path, resp.StatusCode, data, requestID)
	}
	return data, nil
}

type startRunRequest struct {
	DatasetID  string         `json:"datasetId"`
	ProjectID  string         `json:"projectId"`
	Experiment string         `json:"experiment"`
	Metadata   map[string]any `json:"metadata"`
}

// StartRun opens a run. The reply carries the first item, or Completed when
// the test has no items.
func (c *Client) StartRun(ctx context.Context, testID, projectID, experiment string, meta model.RunMetadata) (model.RunResponse, error) {
	data, err := c.send(ctx, "runs.start", http.MethodPost, "runs/start", startRunRequest{
		DatasetID:  testID,
		ProjectID:  projectID,
		Experiment: experiment,
		Metadata:   meta.ToMap(),
	})
	if err != nil {
		return model.RunResponse{}, fmt.Errorf("start run: %w", err)
	}
	return mapper.ToRunResponse(data)
}

type continueRunRequest struct {
	RunID        string `json:"runId"`
	ItemChoiceID string `json:"itemChoiceId"`
}

// ContinueRun submits the answer to the current item and returns the next one.
func (c *Client) ContinueRun(ctx context.Context, runID, choiceID string) (model.RunResponse, error) {
	data, err := c.send(ctx, "runs.continue", http.MethodPost, "runs/continue", continueRunRequest{
		RunID:        runID,
		ItemChoiceID: choiceID,
	})
	if err != nil {
		return model.RunResponse{}, fmt.Errorf("continue run %s: %w", runID, err)
	}
	return mapper.ToRunResponse(data)
}

// RunSummary fetches the full record of an adaptive run.
func (c *Client) RunSummary(ctx context.Context, runID string) (model.RunSummary, error) {
	data, err := c.send(ctx, "runs.summary", http.MethodGet, "runs/adaptive/"+url.PathEscape(runID), nil)
	if err != nil {
		return model.RunSummary{}, fmt.Errorf("get run summary %s: %w", runID, err)
	}
	return mapper.ToRunSummary(data)
}

type replayRequest struct {
	Responses []model.ReplayResponse `json:"responses"`
	Metadata  map[string]any         `json:"metadata"`
}

// SubmitReplay answers the recorded items of runID in one request.
func (c *Client) SubmitReplay(ctx context.Context, runID string, responses []model.ReplayResponse, meta model.RunMetadata) (model.ReplayResult, error) {
	if responses == nil {
		responses = []model.ReplayResponse{}
	}
	data, err := c.send(ctx, "runs.replay", http.MethodPost, "runs/"+url.PathEscape(runID)+"/replay", replayRequest{
		Responses: responses,
		Metadata:  meta.ToMap(),
	})
	if err != nil {
		return model.ReplayResult{}, fmt.Errorf("submit replay of %s: %w", runID, err)
	}
	return mapper.ToReplayResult(data)
}

// ListDatasets returns the tests available to the API key.
func (c *Client) ListDatasets(ctx context.Context) ([]model.Dataset, error) {
	data, err := c.send(ctx, "datasets.list", http.MethodGet, "datasets", nil)
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	return mapper.ToDatasets(data)
}

// Me returns the identity behind the API key.
func (c *Client) Me(ctx context.Context) (model.Me, error) {
	data, err := c.send(ctx, "admin.me", http.MethodGet, "../admin/api-keys/me", nil)
	if err != nil {
		return model.Me{}, fmt.Errorf("get api key owner: %w", err)
	}
	return mapper.ToMe(data)
}

type createProjectRequest struct {
	Name        string `json:"name"`
	TeamID      string `json:"teamId,omitempty"`
	Description string `json:"description,omitempty"`
}

// CreateProject creates a project. teamID and description may be empty.
func (c *Client) CreateProject(ctx context.Context, name, teamID, description string) (model.Project, error) {
	data, err := c.send(ctx, "admin.projects.create", http.MethodPost, "../admin/public/projects", createProjectRequest{
		Name:        name,
		TeamID:      teamID,
		Description: description,
	})
	if err != nil {
		return model.Project{}, fmt.Errorf("create project: %w", err)
	}
	return mapper.ToProject(data)
}

// ListProjects returns the projects visible to the API key.
func (c *Client) ListProjects(ctx context.Context) ([]model.Project, error) {
	data, err := c.send(ctx, "admin.projects.list", http.MethodGet, "../admin/public/projects", nil)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return mapper.ToProjects(data)
}

type classicMetricWire struct {
	MetricID  string `json:"metricId"`
	ValueType string `json:"valueType"`
	Value     any    `json:"value"`
}

type classicItemWire struct {
	DatasetItemID string              `json:"datasetItemId"`
	ModelInput    string              `json:"modelInput"`
	ModelOutput   string              `json:"modelOutput"`
	GoldOutput    string              `json:"goldOutput"`
	Metrics       []classicMetricWire `json:"metrics"`
}

type classicEvalWire struct {
	ProjectID       string              `json:"projectId"`
	ExperimentName  string              `json:"experimentName"`
	DatasetID       string              `json:"datasetId"`
	ModelName       string              `json:"modelName"`
	Hyperparameters map[string]any      `json:"hyperparameters"`
	Items           []classicItemWire   `json:"items"`
	Metrics         []classicMetricWire `json:"metrics"`
}

// SubmitClassicEval stores the results of an evaluation computed elsewhere.
// Metric values are tagged with their wire type.
func (c *Client) SubmitClassicEval(ctx context.Context, req model.ClassicEvalRequest) (model.ClassicEvalResponse, error) {
	if err := configValidate.Struct(req); err != nil {
		return model.ClassicEvalResponse{}, fmt.Errorf("validate classic evaluation: %w", err)
	}
	data, err := c.send(ctx, "runs.classic", http.MethodPost, "runs/classic", classicEvalToWire(req))
	if err != nil {
		return model.ClassicEvalResponse{}, fmt.Errorf("submit classic evaluation: %w", err)
	}
	return mapper.ToClassicEvalResponse(data)
}

func classicEvalToWire(req model.ClassicEvalRequest) classicEvalWire {
	w := classicEvalWire{
		ProjectID:       req.ProjectID,
		ExperimentName:  req.ExperimentName,
		DatasetID:       req.DatasetID,
		ModelName:       req.ModelName,
		Hyperparameters: req.Hyperparameters,
		Items:           make([]classicItemWire, 0, len(req.Items)),
		Metrics:         make([]classicMetricWire, 0, len(req.Metrics)),
	}
	if w.Hyperparameters == nil {
		w.Hyperparameters = map[string]any{}
	}
	for _, it := range req.Items {
		iw := classicItemWire{
			DatasetItemID: it.DatasetItemID,
			ModelInput:    it.ModelInput,
			ModelOutput:   it.ModelOutput,
			GoldOutput:    it.GoldOutput,
			Metrics:       make([]classicMetricWire, 0, len(it.Metrics)),
		}
		for _, id := range slices.Sorted(maps.Keys(it.Metrics)) {
			v := it.Metrics[id]
			iw.Metrics = append(iw.Metrics, classicMetricWire{MetricID: id, ValueType: model.MetricValueType(v), Value: v})
		}
		w.Items = append(w.Items, iw)
	}
	for _, m := range req.Metrics {
		w.Metrics = append(w.Metrics, classicMetricWire{MetricID: m.MetricID, ValueType: model.MetricValueType(m.Value), Value: m.Value})
	}
	return w
}
