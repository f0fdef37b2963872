package pulse

import (
	"time"

	"github.com/teranos/promptpulse/errors"
	"github.com/teranos/promptpulse/eval"
)

// Option bounds. Submissions outside these ranges are rejected rather than
// clamped.
const (
	MinTemperature = 0.0
	MaxTemperature = 2.0

	MinMaxTokens = 1
	MaxMaxTokens = 8000

	MinConcurrency = 1
	MaxConcurrency = 10

	MinTimeout = 10 * time.Second
	MaxTimeout = 300 * time.Second
)

// Options shape one test submission.
type Options struct {
	Environment    string        `json:"environment,omitempty"`
	Provider       string        `json:"provider,omitempty"`
	Model          string        `json:"model,omitempty"`
	Temperature    *float64      `json:"temperature,omitempty"`
	MaxTokens      *int          `json:"max_tokens,omitempty"`
	MaxConcurrency int           `json:"max_concurrency,omitempty"`
	Timeout        time.Duration `json:"timeout,omitempty"`

	// Async submissions return a job ID immediately; synchronous ones
	// block until the job is terminal.
	Async bool `json:"async,omitempty"`

	// SaveResults hands the raw output to the result parser on completion.
	SaveResults bool `json:"save_results,omitempty"`

	// CustomEvaluators are extra grading assertions appended to every
	// test case in the run.
	CustomEvaluators []eval.AssertionSpec `json:"custom_evaluators,omitempty"`
}

// Defaults to fill unset options with.
type OptionDefaults struct {
	Environment    string
	MaxConcurrency int
	Timeout        time.Duration
}

// normalized validates the option bounds and fills defaults, returning a
// copy ready for execution.
func (o Options) normalized(defaults OptionDefaults) (Options, error) {
	if o.Temperature != nil && (*o.Temperature < MinTemperature || *o.Temperature > MaxTemperature) {
		return o, errors.Newf("temperature %.2f out of range [%.0f, %.0f]", *o.Temperature, MinTemperature, MaxTemperature)
	}
	if o.MaxTokens != nil && (*o.MaxTokens < MinMaxTokens || *o.MaxTokens > MaxMaxTokens) {
		return o, errors.Newf("max tokens %d out of range [%d, %d]", *o.MaxTokens, MinMaxTokens, MaxMaxTokens)
	}

	if o.MaxConcurrency == 0 {
		o.MaxConcurrency = defaults.MaxConcurrency
	}
	if o.MaxConcurrency < MinConcurrency || o.MaxConcurrency > MaxConcurrency {
		return o, errors.Newf("max concurrency %d out of range [%d, %d]", o.MaxConcurrency, MinConcurrency, MaxConcurrency)
	}

	if o.Timeout == 0 {
		o.Timeout = defaults.Timeout
	}
	if o.Timeout < MinTimeout || o.Timeout > MaxTimeout {
		return o, errors.Newf("timeout %s out of range [%s, %s]", o.Timeout, MinTimeout, MaxTimeout)
	}

	if o.Environment == "" {
		o.Environment = defaults.Environment
	}
	return o, nil
}
