// Package results turns raw evaluation output into persisted TestResults,
// derived PromptMetrics, and human-readable reports. It is the only writer
// of the test_results and prompt_metrics tables.
package results

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teranos/promptpulse/errors"
	"github.com/teranos/promptpulse/eval"
	"github.com/teranos/promptpulse/logger"
)

// TestResult is one persisted evaluation outcome. Created here, never
// mutated afterward.
type TestResult struct {
	ID            string              `json:"id"`
	TestCaseID    string              `json:"test_case_id"`
	PromptID      string              `json:"prompt_id"`
	PromptVersion string              `json:"prompt_version"`
	Success       bool                `json:"success"`
	Score         float64             `json:"score"`
	LatencyMs     int64               `json:"latency_ms"`
	TokenUsage    eval.TokenUsage     `json:"token_usage"`
	Cost          float64             `json:"cost"`
	GradingResult *eval.GradingResult `json:"grading_result,omitempty"`
	Environment   string              `json:"environment"`
	CreatedAt     time.Time           `json:"created_at"`
}

// StoreOptions scope a ParseAndStore call.
type StoreOptions struct {
	Environment string
}

// Parser persists raw evaluation results.
type Parser struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

// NewParser creates a result parser writing to db.
func NewParser(db *sql.DB, log *zap.SugaredLogger) *Parser {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Parser{db: db, logger: log}
}

// ParseAndStore maps raw.Results[i] to testCaseIDs[i] and persists one
// TestResult per entry in a single transaction; any individual failure rolls
// back the whole batch. When the evaluator returns more entries than test
// cases, excess entries fall back to testCaseIDs[0]. That mapping is almost
// certainly a misattribution, so it is logged at WARN, but kept for
// compatibility with evaluators that expand one case into several runs.
//
// Returns the IDs of the stored results in entry order.
func (p *Parser) ParseAndStore(ctx context.Context, promptID, version string, testCaseIDs []string, raw *eval.RawResult, opts StoreOptions) ([]string, error) {
	if raw == nil {
		return nil, errors.Wrap(errors.ErrResultParseFailure, "nil raw result")
	}
	if len(testCaseIDs) == 0 {
		return nil, errors.Wrap(errors.ErrResultParseFailure, "no test case IDs to attribute results to")
	}

	environment := opts.Environment
	if environment == "" {
		environment = "development"
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.WrapStorageFailure(err, "begin store results")
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	resultIDs := make([]string, 0, len(raw.Results))

	for i, entry := range raw.Results {
		caseID := testCaseIDs[0]
		if i < len(testCaseIDs) {
			caseID = testCaseIDs[i]
		} else {
			p.logger.Warnw("Result index exceeds test case list, attributing to first case",
				logger.FieldPromptID, promptID,
				logger.FieldVersion, version,
				logger.FieldTestCase, caseID,
				"result_index", i,
				"test_case_count", len(testCaseIDs),
			)
		}

		grading := "{}"
		if entry.GradingResult != nil {
			encoded, err := json.Marshal(entry.GradingResult)
			if err != nil {
				return nil, errors.Wrapf(errors.ErrResultParseFailure, "marshal grading result %d: %v", i, err)
			}
			grading = string(encoded)
		}

		id := uuid.NewString()
		_, err = tx.ExecContext(ctx, `
			INSERT INTO test_results (
				id, test_case_id, prompt_id, prompt_version, success, score,
				latency_ms, prompt_tokens, completion_tokens, total_tokens,
				cost, grading_result, environment, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, caseID, promptID, version, entry.Success, entry.Score,
			int64(entry.LatencyMs), entry.TokenUsage.Prompt, entry.TokenUsage.Completion, entry.TokenUsage.Total,
			entry.Cost, grading, environment, now,
		)
		if err != nil {
			return nil, errors.WrapStorageFailure(err, "insert test result")
		}
		resultIDs = append(resultIDs, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.WrapStorageFailure(err, "commit store results")
	}

	p.logger.Infow("Test results stored",
		logger.FieldPromptID, promptID,
		logger.FieldVersion, version,
		logger.FieldTotalTests, len(resultIDs),
		logger.FieldEnvironment, environment,
	)
	return resultIDs, nil
}

// ListResults loads stored results for a prompt version, newest first.
func (p *Parser) ListResults(ctx context.Context, promptID, version string) ([]TestResult, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, test_case_id, prompt_id, prompt_version, success, score,
		       latency_ms, prompt_tokens, completion_tokens, total_tokens,
		       cost, grading_result, environment, created_at
		FROM test_results
		WHERE prompt_id = ? AND prompt_version = ?
		ORDER BY created_at DESC`, promptID, version)
	if err != nil {
		return nil, errors.WrapStorageFailure(err, "list test results")
	}
	defer rows.Close()

	var results []TestResult
	for rows.Next() {
		var r TestResult
		var grading string
		if err := rows.Scan(&r.ID, &r.TestCaseID, &r.PromptID, &r.PromptVersion, &r.Success, &r.Score,
			&r.LatencyMs, &r.TokenUsage.Prompt, &r.TokenUsage.Completion, &r.TokenUsage.Total,
			&r.Cost, &grading, &r.Environment, &r.CreatedAt); err != nil {
			return nil, errors.WrapStorageFailure(err, "scan test result")
		}
		if grading != "" && grading != "{}" {
			r.GradingResult = &eval.GradingResult{}
			if err := json.Unmarshal([]byte(grading), r.GradingResult); err != nil {
				return nil, errors.Wrap(err, "unmarshal grading result")
			}
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapStorageFailure(err, "iterate test results")
	}
	return results, nil
}
