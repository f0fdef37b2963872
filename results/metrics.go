package results

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/promptpulse/errors"
	"github.com/teranos/promptpulse/eval"
	"github.com/teranos/promptpulse/logger"
)

// TokenBreakdown splits token usage by role.
type TokenBreakdown struct {
	Prompt     int `json:"prompt"`
	Completion int `json:"completion"`
}

// SummaryMetrics are the aggregates derived from one raw result set.
type SummaryMetrics struct {
	TotalTests       int            `json:"totalTests"`
	SuccessfulTests  int            `json:"successfulTests"`
	FailedTests      int            `json:"failedTests"`
	SuccessRate      float64        `json:"successRate"`
	AverageScore     float64        `json:"averageScore"`
	AverageLatencyMs float64        `json:"averageLatencyMs"`
	TotalTokensUsed  int            `json:"totalTokensUsed"`
	TotalCost        float64        `json:"totalCost"`
	TokenBreakdown   TokenBreakdown `json:"tokenBreakdown"`
}

// ExtractSummaryMetrics computes aggregates over a raw result. Zero tests
// yield all-zero metrics, never a division fault.
func ExtractSummaryMetrics(raw *eval.RawResult) SummaryMetrics {
	m := SummaryMetrics{}
	if raw == nil {
		return m
	}

	m.TotalTests = len(raw.Results)
	var scoreSum, latencySum float64
	for _, r := range raw.Results {
		if r.Success {
			m.SuccessfulTests++
		} else {
			m.FailedTests++
		}
		scoreSum += r.Score
		latencySum += r.LatencyMs
		m.TotalTokensUsed += r.TokenUsage.Total
		m.TokenBreakdown.Prompt += r.TokenUsage.Prompt
		m.TokenBreakdown.Completion += r.TokenUsage.Completion
		m.TotalCost += r.Cost
	}

	if m.TotalTests > 0 {
		m.SuccessRate = float64(m.SuccessfulTests) / float64(m.TotalTests)
		m.AverageScore = scoreSum / float64(m.TotalTests)
		m.AverageLatencyMs = latencySum / float64(m.TotalTests)
	}
	return m
}

// metricPeriods maps each aggregation period to its lookback window.
var metricPeriods = map[string]time.Duration{
	"hour":  time.Hour,
	"day":   24 * time.Hour,
	"week":  7 * 24 * time.Hour,
	"month": 30 * 24 * time.Hour,
}

// Aggregator recomputes PromptMetrics rows from stored test results.
// Recomputation is best-effort from the caller's point of view: the engine
// logs its failures and moves on.
type Aggregator struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

// NewAggregator creates a metrics aggregator over db.
func NewAggregator(db *sql.DB, log *zap.SugaredLogger) *Aggregator {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Aggregator{db: db, logger: log}
}

// Recompute rebuilds the metrics rows for one (promptID, version,
// environment) across every period, replacing whatever was there. Metrics
// are derived data, never hand-edited.
func (a *Aggregator) Recompute(ctx context.Context, promptID, version, environment string) error {
	now := time.Now().UTC()
	for period, window := range metricPeriods {
		if err := a.recomputePeriod(ctx, promptID, version, environment, period, now.Add(-window), now); err != nil {
			return err
		}
	}

	a.logger.Debugw("Prompt metrics recomputed",
		logger.FieldPromptID, promptID,
		logger.FieldVersion, version,
		logger.FieldEnvironment, environment,
	)
	return nil
}

func (a *Aggregator) recomputePeriod(ctx context.Context, promptID, version, environment, period string, since, now time.Time) error {
	var (
		total, successes     int
		avgScore, avgLatency sql.NullFloat64
		totalTokens          sql.NullInt64
		totalCost            sql.NullFloat64
	)
	err := a.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(success), 0),
		       AVG(score),
		       AVG(latency_ms),
		       SUM(total_tokens),
		       SUM(cost)
		FROM test_results
		WHERE prompt_id = ? AND prompt_version = ? AND environment = ? AND created_at >= ?`,
		promptID, version, environment, since,
	).Scan(&total, &successes, &avgScore, &avgLatency, &totalTokens, &totalCost)
	if err != nil {
		return errors.WrapStorageFailure(err, "aggregate test results")
	}

	successRate := 0.0
	if total > 0 {
		successRate = float64(successes) / float64(total)
	}

	_, err = a.db.ExecContext(ctx, `
		INSERT INTO prompt_metrics (
			prompt_id, version, period, environment,
			total_tests, successful_tests, failed_tests, success_rate,
			average_score, average_latency_ms, total_tokens, total_cost, computed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (prompt_id, version, period, environment) DO UPDATE SET
			total_tests = excluded.total_tests,
			successful_tests = excluded.successful_tests,
			failed_tests = excluded.failed_tests,
			success_rate = excluded.success_rate,
			average_score = excluded.average_score,
			average_latency_ms = excluded.average_latency_ms,
			total_tokens = excluded.total_tokens,
			total_cost = excluded.total_cost,
			computed_at = excluded.computed_at`,
		promptID, version, period, environment,
		total, successes, total-successes, successRate,
		avgScore.Float64, avgLatency.Float64, totalTokens.Int64, totalCost.Float64, now,
	)
	return errors.WrapStorageFailure(err, "upsert prompt metrics")
}

// PromptMetrics is one derived aggregate row.
type PromptMetrics struct {
	PromptID         string    `json:"prompt_id"`
	Version          string    `json:"version"`
	Period           string    `json:"period"`
	Environment      string    `json:"environment"`
	TotalTests       int       `json:"total_tests"`
	SuccessfulTests  int       `json:"successful_tests"`
	FailedTests      int       `json:"failed_tests"`
	SuccessRate      float64   `json:"success_rate"`
	AverageScore     float64   `json:"average_score"`
	AverageLatencyMs float64   `json:"average_latency_ms"`
	TotalTokens      int64     `json:"total_tokens"`
	TotalCost        float64   `json:"total_cost"`
	ComputedAt       time.Time `json:"computed_at"`
}

// GetMetrics loads the metrics row for one period, or nil when never
// computed.
func (a *Aggregator) GetMetrics(ctx context.Context, promptID, version, period, environment string) (*PromptMetrics, error) {
	var m PromptMetrics
	err := a.db.QueryRowContext(ctx, `
		SELECT prompt_id, version, period, environment,
		       total_tests, successful_tests, failed_tests, success_rate,
		       average_score, average_latency_ms, total_tokens, total_cost, computed_at
		FROM prompt_metrics
		WHERE prompt_id = ? AND version = ? AND period = ? AND environment = ?`,
		promptID, version, period, environment,
	).Scan(&m.PromptID, &m.Version, &m.Period, &m.Environment,
		&m.TotalTests, &m.SuccessfulTests, &m.FailedTests, &m.SuccessRate,
		&m.AverageScore, &m.AverageLatencyMs, &m.TotalTokens, &m.TotalCost, &m.ComputedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.WrapStorageFailure(err, "get prompt metrics")
	}
	return &m, nil
}
