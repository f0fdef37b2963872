package pulse

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/teranos/promptpulse/errors"
	"github.com/teranos/promptpulse/eval"
	"github.com/teranos/promptpulse/logger"
	"github.com/teranos/promptpulse/prompt"
	"github.com/teranos/promptpulse/pulse/budget"
	"github.com/teranos/promptpulse/results"
)

// EngineConfig carries the engine's operational defaults.
type EngineConfig struct {
	DefaultEnvironment string
	MaxConcurrency     int
	Timeout            time.Duration
	CostPerTestUSD     float64
}

// Engine executes test submissions: it loads the prompt's primary template
// and its test cases, fans each case out to the evaluator bounded by the
// concurrency limit, and hands completed output to the result parser.
//
// The engine exclusively owns job mutation; callers observe jobs through
// the registry.
type Engine struct {
	registry   *Registry
	store      *prompt.Store
	evaluator  eval.Evaluator
	parser     *results.Parser
	aggregator *results.Aggregator
	budget     *budget.Tracker // nil disables spend gating
	limiter    *budget.Limiter // nil disables rate limiting
	cfg        EngineConfig
	logger     *zap.SugaredLogger
}

// NewEngine creates a test-execution engine. budgetTracker and limiter may
// be nil.
func NewEngine(registry *Registry, store *prompt.Store, evaluator eval.Evaluator,
	parser *results.Parser, aggregator *results.Aggregator,
	budgetTracker *budget.Tracker, limiter *budget.Limiter,
	cfg EngineConfig, log *zap.SugaredLogger) *Engine {

	if cfg.MaxConcurrency == 0 {
		cfg.MaxConcurrency = 3
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.DefaultEnvironment == "" {
		cfg.DefaultEnvironment = "development"
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	return &Engine{
		registry:   registry,
		store:      store,
		evaluator:  evaluator,
		parser:     parser,
		aggregator: aggregator,
		budget:     budgetTracker,
		limiter:    limiter,
		cfg:        cfg,
		logger:     log,
	}
}

// Registry exposes the job registry for status and result reads.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Submit runs the prompt's primary template against test cases. With no
// explicit IDs, every test case bound to the prompt runs.
//
// Async submissions return the job snapshot immediately; synchronous ones
// block until the job is terminal and also return the raw payload.
func (e *Engine) Submit(ctx context.Context, promptID string, testCaseIDs []string, opts Options) (*Job, *eval.RawResult, error) {
	opts, err := opts.normalized(OptionDefaults{
		Environment:    e.cfg.DefaultEnvironment,
		MaxConcurrency: e.cfg.MaxConcurrency,
		Timeout:        e.cfg.Timeout,
	})
	if err != nil {
		return nil, nil, err
	}

	p, err := e.store.GetPrompt(ctx, promptID)
	if err != nil {
		return nil, nil, err
	}
	primary := p.Primary()
	if primary == nil {
		return nil, nil, errors.Wrapf(errors.ErrEvaluationDispatchFailure,
			"prompt %s has no resolvable primary version", promptID)
	}

	var cases []prompt.TestCase
	if len(testCaseIDs) == 0 {
		cases, err = e.store.ListTestCases(ctx, promptID)
	} else {
		cases, err = e.store.GetTestCases(ctx, testCaseIDs)
	}
	if err != nil {
		return nil, nil, err
	}
	if len(cases) == 0 {
		return nil, nil, errors.Wrapf(errors.ErrEvaluationDispatchFailure,
			"prompt %s has no test cases to run", promptID)
	}

	ids := make([]string, len(cases))
	for i, tc := range cases {
		ids[i] = tc.ID
	}

	if e.budget != nil {
		estimate := e.cfg.CostPerTestUSD * float64(len(cases))
		if err := e.budget.Check(ctx, estimate); err != nil {
			return nil, nil, err
		}
	}

	now := time.Now().UTC()
	job := &Job{
		ID:          uuid.NewString(),
		PromptID:    promptID,
		Version:     primary.Version,
		TestCaseIDs: ids,
		Status:      JobStatusPending,
		Progress:    Progress{Total: len(cases)},
		Metadata: Metadata{
			TotalTests:  len(cases),
			Environment: opts.Environment,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.registry.Add(job); err != nil {
		return nil, nil, err
	}
	e.registry.markRunning(job.ID)

	e.logger.Infow("Test job submitted",
		logger.FieldJobID, job.ID,
		logger.FieldPromptID, promptID,
		logger.FieldVersion, primary.Version,
		logger.FieldTotalTests, len(cases),
		logger.FieldEnvironment, opts.Environment,
	)

	if opts.Async {
		// The job outlives the submitting request.
		go e.execute(context.Background(), job.ID, primary.Template, cases, opts)
		snap, err := e.registry.Get(job.ID)
		return snap, nil, err
	}

	raw, execErr := e.execute(ctx, job.ID, primary.Template, cases, opts)
	snap, getErr := e.registry.Get(job.ID)
	if getErr != nil {
		return nil, nil, getErr
	}
	return snap, raw, execErr
}

// execute runs every sub-evaluation and drives the job to a terminal state.
// The timeout abandons the wait only: in-flight evaluator calls are not
// guaranteed to stop consuming resources, which is an accepted leak since
// evaluation requests are stateless on the caller's side.
func (e *Engine) execute(ctx context.Context, jobID, template string, cases []prompt.TestCase, opts Options) (*eval.RawResult, error) {
	outcomes := make([]eval.TestOutcome, len(cases))
	done := make(chan struct{})

	go func() {
		defer close(done)
		sem := semaphore.NewWeighted(int64(opts.MaxConcurrency))
		var wg sync.WaitGroup
		for i := range cases {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if err := sem.Acquire(ctx, 1); err != nil {
					outcomes[i] = eval.TestOutcome{
						Success:  false,
						Error:    err.Error(),
						TestVars: cases[i].Vars,
					}
					e.registry.updateProgress(jobID, true)
					return
				}
				defer sem.Release(1)

				outcomes[i] = e.evaluateOne(ctx, template, cases[i], opts)
				e.registry.updateProgress(jobID, !outcomes[i].Success)
			}(i)
		}
		wg.Wait()
	}()

	select {
	case <-done:
	case <-time.After(opts.Timeout):
		e.registry.fail(jobID, "evaluation timed out after "+opts.Timeout.String())
		e.logger.Warnw("Job timed out, abandoning wait",
			logger.FieldJobID, jobID,
			logger.FieldDurationMS, opts.Timeout.Milliseconds(),
		)
		return nil, errors.Wrapf(errors.ErrEvaluationTimeout, "job %s exceeded %s", jobID, opts.Timeout)
	}

	raw := eval.BuildRawResult(outcomes)

	// Boundary check before trusting the payload any further.
	encoded, err := json.Marshal(raw)
	if err != nil || !eval.ValidateRawResult(encoded) {
		e.registry.fail(jobID, "malformed raw evaluation output")
		return nil, errors.Wrapf(errors.ErrResultParseFailure, "job %s produced malformed raw output", jobID)
	}

	var resultIDs []string
	if opts.SaveResults {
		job, err := e.registry.Get(jobID)
		if err != nil {
			return nil, err
		}
		resultIDs, err = e.parser.ParseAndStore(ctx, job.PromptID, job.Version, job.TestCaseIDs, raw, results.StoreOptions{
			Environment: opts.Environment,
		})
		if err != nil {
			e.registry.fail(jobID, err.Error())
			return nil, err
		}

		// Metrics are derived data; recomputation failure never fails
		// the job.
		if e.aggregator != nil {
			if aggErr := e.aggregator.Recompute(ctx, job.PromptID, job.Version, opts.Environment); aggErr != nil {
				e.logger.Warnw("Metrics recomputation failed",
					logger.FieldJobID, jobID,
					logger.FieldError, aggErr,
				)
			}
		}
	}

	if e.budget != nil {
		var totalCost float64
		for _, o := range outcomes {
			totalCost += o.Cost
		}
		if spendErr := e.budget.RecordSpend(ctx, totalCost); spendErr != nil {
			e.logger.Warnw("Failed to record evaluation spend",
				logger.FieldJobID, jobID,
				logger.FieldError, spendErr,
			)
		}
	}

	e.registry.complete(jobID, raw, resultIDs)

	e.logger.Infow("Job completed",
		logger.FieldJobID, jobID,
		logger.FieldCompletedTests, raw.Summary.Stats.Successes,
		logger.FieldFailedTests, raw.Summary.Stats.Failures,
		logger.FieldTotalTests, raw.Summary.NumTests,
	)
	return raw, nil
}

// evaluateOne dispatches a single test case. Evaluator errors become failed
// outcomes; individual test failures never fail the job.
func (e *Engine) evaluateOne(ctx context.Context, template string, tc prompt.TestCase, opts Options) eval.TestOutcome {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return eval.TestOutcome{Success: false, Error: err.Error(), TestVars: tc.Vars}
		}
	}

	assertions := make([]eval.AssertionSpec, 0, len(tc.Assertions)+len(opts.CustomEvaluators))
	for _, a := range tc.Assertions {
		assertions = append(assertions, eval.AssertionSpec{
			Type:      a.Type,
			Value:     a.Value,
			Threshold: a.Threshold,
		})
	}
	assertions = append(assertions, opts.CustomEvaluators...)

	provider := eval.ProviderConfig{
		Provider: opts.Provider,
		Model:    opts.Model,
	}
	if opts.Temperature != nil {
		provider.Temperature = *opts.Temperature
	}
	if opts.MaxTokens != nil {
		provider.MaxTokens = *opts.MaxTokens
	}

	outcome, err := e.evaluator.EvaluateTest(ctx, eval.TestRequest{
		Template:   template,
		Vars:       tc.Vars,
		Assertions: assertions,
		Provider:   provider,
	})
	if err != nil {
		e.logger.Warnw("Evaluation failed",
			logger.FieldTestCase, tc.ID,
			logger.FieldError, err,
		)
		return eval.TestOutcome{Success: false, Error: err.Error(), TestVars: tc.Vars}
	}
	return *outcome
}
