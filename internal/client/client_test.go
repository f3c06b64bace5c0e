package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/adaptest/internal/model"
)

const runReply = `{
	"runInfo": {"id": "run-1"},
	"state": {"responses": [], "thetas": [], "std_error_history": []},
	"nextItem": {"id": "i1", "question": "q1", "choices": [{"id": "a", "value": "A"}]},
	"completed": false
}`

type captured struct {
	method string
	path   string
	header http.Header
	body   map[string]any
}

// newTestClient starts a server that answers every request with status and
// reply, recording the last request into got.
func newTestClient(t *testing.T, status int, reply string, got *captured) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got != nil {
			got.method = r.Method
			got.path = r.URL.Path
			got.header = r.Header.Clone()
			data, _ := io.ReadAll(r.Body)
			if len(data) > 0 {
				_ = json.Unmarshal(data, &got.body)
			}
		}
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)

	c, err := New(Config{BaseURL: srv.URL + "/api", APIKey: "secret"})
	require.NoError(t, err)
	return c
}

func TestNewDefaults(t *testing.T) {
	c, err := New(Config{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, c.BaseURL())
	assert.Equal(t, DefaultMaxItems, c.MaxItems())
	assert.Equal(t, DefaultTimeout, c.http.Timeout)
}

func TestNewInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing api key", Config{}},
		{"bad base url", Config{APIKey: "k", BaseURL: "not a url"}},
		{"negative timeout", Config{APIKey: "k", Timeout: -time.Second}},
		{"negative rate", Config{APIKey: "k", RateLimit: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestStartRunRequest(t *testing.T) {
	var got captured
	c := newTestClient(t, http.StatusOK, runReply, &got)

	meta := model.RunMetadata{ModelMetadata: map[string]any{"name": "m"}}
	resp, err := c.StartRun(context.Background(), "DEMO1", "proj", "exp", meta)
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "/api/runs/start", got.path)
	assert.Equal(t, "secret", got.header.Get(APIKeyHeader))
	assert.Equal(t, "application/json", got.header.Get("Accept"))
	assert.True(t, strings.HasPrefix(got.header.Get("Content-Type"), "application/json"))
	assert.NotEmpty(t, got.header.Get(RequestIDHeader))

	assert.Equal(t, "DEMO1", got.body["datasetId"])
	assert.Equal(t, "proj", got.body["projectId"])
	assert.Equal(t, "exp", got.body["experiment"])
	md, ok := got.body["metadata"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, md, "model_metadata")
	assert.Contains(t, md, "test_configuration")
	assert.Contains(t, md, "inference_setup")

	assert.Equal(t, "run-1", resp.RunInfo.ID)
	require.NotNil(t, resp.NextItem)
	assert.Equal(t, "i1", resp.NextItem.ID)
}

func TestEndpointPaths(t *testing.T) {
	tests := []struct {
		name       string
		reply      string
		call       func(c *Client) error
		wantMethod string
		wantPath   string
	}{
		{
			name:  "continue",
			reply: runReply,
			call: func(c *Client) error {
				_, err := c.ContinueRun(context.Background(), "run-1", "a")
				return err
			},
			wantMethod: http.MethodPost,
			wantPath:   "/api/runs/continue",
		},
		{
			name:  "summary",
			reply: `{"id": "run-1", "datasetId": "d", "state": {}}`,
			call: func(c *Client) error {
				_, err := c.RunSummary(context.Background(), "run-1")
				return err
			},
			wantMethod: http.MethodGet,
			wantPath:   "/api/runs/adaptive/run-1",
		},
		{
			name:  "replay",
			reply: `{"id": "r2", "datasetId": "d", "state": {}, "replayOfRun": "run-1"}`,
			call: func(c *Client) error {
				_, err := c.SubmitReplay(context.Background(), "run-1", nil, model.RunMetadata{})
				return err
			},
			wantMethod: http.MethodPost,
			wantPath:   "/api/runs/run-1/replay",
		},
		{
			name:  "datasets",
			reply: `{"data": []}`,
			call: func(c *Client) error {
				_, err := c.ListDatasets(context.Background())
				return err
			},
			wantMethod: http.MethodGet,
			wantPath:   "/api/datasets",
		},
		{
			name:  "me",
			reply: `{"user": {"id": "u", "email": "e@x"}, "teams": []}`,
			call: func(c *Client) error {
				_, err := c.Me(context.Background())
				return err
			},
			wantMethod: http.MethodGet,
			wantPath:   "/admin/api-keys/me",
		},
		{
			name:  "list projects",
			reply: `[]`,
			call: func(c *Client) error {
				_, err := c.ListProjects(context.Background())
				return err
			},
			wantMethod: http.MethodGet,
			wantPath:   "/admin/public/projects",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got captured
			c := newTestClient(t, http.StatusOK, tt.reply, &got)
			require.NoError(t, tt.call(c))
			assert.Equal(t, tt.wantMethod, got.method)
			assert.Equal(t, tt.wantPath, got.path)
		})
	}
}

func TestContinueRunBody(t *testing.T) {
	var got captured
	c := newTestClient(t, http.StatusOK, runReply, &got)
	_, err := c.ContinueRun(context.Background(), "run-1", "choice-b")
	require.NoError(t, err)
	assert.Equal(t, "run-1", got.body["runId"])
	assert.Equal(t, "choice-b", got.body["itemChoiceId"])
}

func TestSubmitReplayBody(t *testing.T) {
	var got captured
	c := newTestClient(t, http.StatusOK, `{"id": "r2", "datasetId": "d", "state": {}, "replayOfRun": "run-1"}`, &got)
	res, err := c.SubmitReplay(context.Background(), "run-1", []model.ReplayResponse{
		{ItemID: "i1", ChoiceID: "a"},
		{ItemID: "i2", ChoiceID: "b"},
	}, model.RunMetadata{})
	require.NoError(t, err)
	assert.Equal(t, "run-1", res.ReplayOfRun)

	responses, ok := got.body["responses"].([]any)
	require.True(t, ok)
	require.Len(t, responses, 2)
	first := responses[0].(map[string]any)
	assert.Equal(t, "i1", first["itemId"])
	assert.Equal(t, "a", first["itemChoiceId"])
}

func TestCreateProjectOmitsEmptyFields(t *testing.T) {
	var got captured
	reply := `{"id": "p1", "name": "n", "organizationId": "o", "createdAt": "c", "updatedAt": "u"}`
	c := newTestClient(t, http.StatusOK, reply, &got)
	p, err := c.CreateProject(context.Background(), "n", "", "")
	require.NoError(t, err)
	assert.Equal(t, "p1", p.ID)
	assert.Equal(t, "/admin/public/projects", got.path)
	assert.Equal(t, "n", got.body["name"])
	assert.NotContains(t, got.body, "teamId")
	assert.NotContains(t, got.body, "description")
}

func TestSubmitClassicEvalValueTypes(t *testing.T) {
	var got captured
	reply := `{"id": "c", "accountId": "a", "projectId": "p", "experimentId": "e", "experimentName": "n",
		"datasetId": "d", "userId": "u", "type": "Classic", "modelName": "m", "createdAt": "t",
		"user": {"id": "u", "email": "x@y.z"}, "responseCount": 1}`
	c := newTestClient(t, http.StatusOK, reply, &got)

	res, err := c.SubmitClassicEval(context.Background(), model.ClassicEvalRequest{
		ProjectID:      "p",
		ExperimentName: "n",
		DatasetID:      "d",
		ModelName:      "m",
		Items: []model.ClassicEvalItem{{
			DatasetItemID: "i1",
			Metrics:       map[string]any{"exact": true, "bleu": 0.5},
		}},
		Metrics: []model.ClassicEvalMetric{{MetricID: "accuracy", Value: 0.9}, {MetricID: "label", Value: "ok"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.ResponseCount)
	assert.Equal(t, "/api/runs/classic", got.path)

	items := got.body["items"].([]any)
	itemMetrics := items[0].(map[string]any)["metrics"].([]any)
	require.Len(t, itemMetrics, 2)
	// Item metrics are sent in key order.
	assert.Equal(t, "bleu", itemMetrics[0].(map[string]any)["metricId"])
	assert.Equal(t, "Float", itemMetrics[0].(map[string]any)["valueType"])
	assert.Equal(t, "Boolean", itemMetrics[1].(map[string]any)["valueType"])

	metrics := got.body["metrics"].([]any)
	assert.Equal(t, "Float", metrics[0].(map[string]any)["valueType"])
	assert.Equal(t, "String", metrics[1].(map[string]any)["valueType"])
}

func TestSubmitClassicEvalRejectsInvalidRequest(t *testing.T) {
	c := newTestClient(t, http.StatusOK, `{}`, nil)
	_, err := c.SubmitClassicEval(context.Background(), model.ClassicEvalRequest{ProjectID: "p"})
	assert.Error(t, err)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantKind    error
		wantMessage string
	}{
		{"unauthorized", http.StatusUnauthorized, `{"message": "Invalid API key"}`, ErrUnauthorized, "Invalid API key"},
		{"forbidden", http.StatusForbidden, `{}`, ErrUnauthorized, "Unauthorized."},
		{"not found", http.StatusNotFound, `{"message": "Run not found"}`, ErrNotFound, "Run not found"},
		{"too large", http.StatusRequestEntityTooLarge, `{"detail": "Metadata exceeds 10KB"}`, ErrPayloadTooLarge, "Metadata exceeds 10KB"},
		{"too large default", http.StatusRequestEntityTooLarge, `{}`, ErrPayloadTooLarge, "Payload too large."},
		{"validation", http.StatusUnprocessableEntity, `{"detail": "datasetId is required"}`, ErrValidation, "datasetId is required"},
		{"validation default", http.StatusUnprocessableEntity, `{"message": "ignored"}`, ErrValidation, "Validation failed."},
		{"server error", http.StatusInternalServerError, `{"message": "boom"}`, nil, "boom"},
		{"server error no message", http.StatusBadGateway, `{"error": "x"}`, nil, "Unknown error"},
		{"plain text body", http.StatusServiceUnavailable, "upstream down\n", nil, "upstream down"},
	}
	kinds := []error{ErrUnauthorized, ErrNotFound, ErrPayloadTooLarge, ErrValidation}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.status, tt.body, nil)
			_, err := c.ListDatasets(context.Background())
			require.Error(t, err)

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr), "expected *APIError, got %T", err)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.wantMessage, apiErr.Message)
			assert.Equal(t, tt.body, string(apiErr.Body))
			assert.NotEmpty(t, apiErr.RequestID)

			for _, k := range kinds {
				assert.Equal(t, k == tt.wantKind, errors.Is(err, k), "errors.Is(%v)", k)
			}
		})
	}
}

func TestNetworkFailureIsWrapped(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(Config{BaseURL: url, APIKey: "k"})
	require.NoError(t, err)
	_, err = c.ListDatasets(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
}

func TestMalformedReplyIsMapperError(t *testing.T) {
	c := newTestClient(t, http.StatusOK, `{"state": {}}`, nil)
	_, err := c.StartRun(context.Background(), "DEMO1", "", "", model.RunMetadata{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "runInfo")
}

func TestContextCanceled(t *testing.T) {
	c := newTestClient(t, http.StatusOK, runReply, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.StartRun(ctx, "DEMO1", "", "", model.RunMetadata{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMetrics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/datasets" {
			_, _ = io.WriteString(w, `{"data": []}`)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)
	c, err := New(Config{BaseURL: srv.URL + "/api", APIKey: "k", Metrics: m})
	require.NoError(t, err)

	ctx := context.Background()
	_, err = c.ListDatasets(ctx)
	require.NoError(t, err)
	_, err = c.ListDatasets(ctx)
	require.NoError(t, err)
	_, err = c.RunSummary(ctx, "missing")
	require.Error(t, err)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("datasets.list", http.MethodGet, "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("runs.summary", http.MethodGet, "404")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.requestDuration))

	_, err = NewMetrics(reg)
	assert.Error(t, err, "registering twice should fail")
}

func TestRateLimitWaits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data": []}`)
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL, APIKey: "k", RateLimit: 10})
	require.NoError(t, err)

	start := time.Now()
	for range 12 {
		_, err := c.ListDatasets(context.Background())
		require.NoError(t, err)
	}
	// Burst of 10, then two more tokens at 10/s.
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}
