// Package eval defines the evaluation collaborator contract: the request
// shape sent per test case and the raw result shape the engine consumes.
// The evaluator service owns grading semantics; this package only shapes
// inputs and validates output structure.
package eval

import "context"

// Evaluator runs one test case against a prompt template and grades the
// model output. Implementations must be safe for concurrent use; the engine
// fans out calls bounded only by its own concurrency limit.
type Evaluator interface {
	EvaluateTest(ctx context.Context, req TestRequest) (*TestOutcome, error)
}

// ProviderConfig selects the model the evaluator should run the template
// against.
type ProviderConfig struct {
	Provider    string  `json:"provider,omitempty"`
	Model       string  `json:"model,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
}

// AssertionSpec is one grading instruction forwarded to the evaluator.
type AssertionSpec struct {
	Type      string      `json:"type"`
	Value     interface{} `json:"value,omitempty"`
	Threshold float64     `json:"threshold,omitempty"`
}

// TestRequest is the request for a single (template, test case) evaluation.
type TestRequest struct {
	Template   string                 `json:"template"`
	Vars       map[string]interface{} `json:"vars,omitempty"`
	Assertions []AssertionSpec        `json:"assertions,omitempty"`
	Provider   ProviderConfig         `json:"provider"`
}

// TokenUsage mirrors the evaluator's token accounting.
type TokenUsage struct {
	Prompt     int `json:"prompt"`
	Completion int `json:"completion"`
	Total      int `json:"total"`
}

// AssertionResult is the graded outcome of one assertion.
type AssertionResult struct {
	Type   string  `json:"type"`
	Pass   bool    `json:"pass"`
	Score  float64 `json:"score"`
	Reason string  `json:"reason,omitempty"`
}

// GradingResult aggregates the assertion outcomes for one test.
type GradingResult struct {
	Pass             bool              `json:"pass"`
	Score            float64           `json:"score"`
	Reason           string            `json:"reason,omitempty"`
	ComponentResults []AssertionResult `json:"componentResults,omitempty"`
}

// TestOutcome is one per-test entry of the raw evaluation result.
type TestOutcome struct {
	Output        string                 `json:"output"`
	Success       bool                   `json:"success"`
	Score         float64                `json:"score"`
	NamedScores   map[string]float64     `json:"namedScores,omitempty"`
	TokenUsage    TokenUsage             `json:"tokenUsage"`
	Cost          float64                `json:"cost"`
	LatencyMs     float64                `json:"latencyMs"`
	GradingResult *GradingResult         `json:"gradingResult,omitempty"`
	Error         string                 `json:"error,omitempty"`
	TestVars      map[string]interface{} `json:"testVars,omitempty"`
}

// SummaryStats counts successes and failures over a result set.
type SummaryStats struct {
	Successes int `json:"successes"`
	Failures  int `json:"failures"`
}

// Summary is the evaluator's aggregate over a result set.
type Summary struct {
	NumTests int          `json:"numTests"`
	Stats    SummaryStats `json:"stats"`
}

// RawResult is the full evaluation payload for one job: per-test outcomes in
// input order plus the aggregate summary.
type RawResult struct {
	Results []TestOutcome `json:"results"`
	Summary Summary       `json:"summary"`
}

// BuildRawResult assembles a RawResult from per-test outcomes, computing the
// summary from the outcomes themselves.
func BuildRawResult(outcomes []TestOutcome) *RawResult {
	raw := &RawResult{
		Results: outcomes,
		Summary: Summary{NumTests: len(outcomes)},
	}
	for _, o := range outcomes {
		if o.Success {
			raw.Summary.Stats.Successes++
		} else {
			raw.Summary.Stats.Failures++
		}
	}
	return raw
}
