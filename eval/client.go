package eval

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/promptpulse/errors"
	"github.com/teranos/promptpulse/internal/httpclient"
)

const (
	// DefaultModel is the fallback model when none is specified.
	// Should match the default in config/defaults.go for consistency.
	DefaultModel = "gpt-4o-mini"

	// DefaultTimeout bounds a single evaluation HTTP round trip.
	DefaultTimeout = 120 * time.Second
)

// Config holds evaluation service client configuration.
type Config struct {
	BaseURL     string
	APIKey      string
	Provider    string
	Model       string
	Temperature *float64 // nil = use default (0.0)
	MaxTokens   *int     // nil = use default (1000)
	Timeout     time.Duration

	// AllowPrivateHosts disables private-IP blocking so the client can
	// reach an evaluator on localhost. Default deployments run the
	// evaluator as a sidecar, so this is commonly true.
	AllowPrivateHosts bool

	Logger *zap.SugaredLogger // nil = nop logger
}

// Client talks JSON over HTTP to the external evaluation service.
// It implements Evaluator.
type Client struct {
	baseURL    string
	apiKey     string
	config     Config
	httpClient *httpclient.SaferClient
	logger     *zap.SugaredLogger
}

var _ Evaluator = (*Client)(nil)

// NewClient creates an evaluation service client.
func NewClient(config Config) *Client {
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	blockPrivateIP := !config.AllowPrivateHosts
	saferClient := httpclient.NewWithOptions(config.Timeout, httpclient.Options{
		BlockPrivateIP: &blockPrivateIP,
	})

	return &Client{
		baseURL:    config.BaseURL,
		apiKey:     config.APIKey,
		config:     config,
		httpClient: saferClient,
		logger:     logger,
	}
}

// evaluateRequest is the wire shape of one evaluation call.
type evaluateRequest struct {
	Template   string                 `json:"template"`
	Vars       map[string]interface{} `json:"vars,omitempty"`
	Assertions []AssertionSpec        `json:"assertions,omitempty"`
	Provider   ProviderConfig         `json:"provider"`
}

// EvaluateTest runs one test case against the evaluation service.
func (c *Client) EvaluateTest(ctx context.Context, req TestRequest) (*TestOutcome, error) {
	if c.baseURL == "" {
		return nil, errors.Wrap(errors.ErrEvaluationDispatchFailure, "evaluator base URL not configured")
	}

	provider := req.Provider
	if provider.Model == "" {
		provider.Model = c.config.Model
	}
	if provider.Provider == "" {
		provider.Provider = c.config.Provider
	}

	reqBody, err := json.Marshal(evaluateRequest{
		Template:   req.Template,
		Vars:       req.Vars,
		Assertions: req.Assertions,
		Provider:   provider,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal evaluation request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/evaluate", bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, errors.Wrap(errors.ErrEvaluationDispatchFailure, err.Error())
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.WithDetail(
			errors.Wrapf(errors.ErrEvaluationDispatchFailure, "evaluation request failed: %v", err),
			"base_url: "+c.baseURL)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrEvaluationDispatchFailure, "failed to read evaluation response: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Wrapf(errors.ErrEvaluationDispatchFailure,
			"evaluation service returned status %d: %s", resp.StatusCode, truncate(string(respBody), 512))
	}

	var outcome TestOutcome
	if err := json.Unmarshal(respBody, &outcome); err != nil {
		return nil, errors.Wrapf(errors.ErrResultParseFailure, "malformed evaluation response: %v", err)
	}
	if outcome.LatencyMs == 0 {
		outcome.LatencyMs = float64(time.Since(start).Milliseconds())
	}
	if outcome.TestVars == nil {
		outcome.TestVars = req.Vars
	}

	return &outcome, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
