package prompt

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/teranos/promptpulse/errors"
)

// CreateTestCase inserts a test case for a prompt.
func (s *Store) CreateTestCase(ctx context.Context, tc *TestCase) error {
	vars, err := json.Marshal(tc.Vars)
	if err != nil {
		return errors.Wrap(err, "marshal test case vars")
	}
	assertions, err := json.Marshal(tc.Assertions)
	if err != nil {
		return errors.Wrap(err, "marshal test case assertions")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO test_cases (id, prompt_id, name, vars, assertions, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		tc.ID, tc.PromptID, tc.Name, string(vars), string(assertions), tc.CreatedAt,
	)
	return errors.WrapStorageFailure(err, "insert test case")
}

// GetTestCases loads test cases by ID, in the order requested. Missing IDs
// are an error: a test run against a nonexistent case is a caller mistake.
func (s *Store) GetTestCases(ctx context.Context, ids []string) ([]TestCase, error) {
	cases := make([]TestCase, 0, len(ids))
	for _, id := range ids {
		tc, err := s.getTestCase(ctx, id)
		if err != nil {
			return nil, err
		}
		cases = append(cases, *tc)
	}
	return cases, nil
}

// ListTestCases returns every test case bound to a prompt.
func (s *Store) ListTestCases(ctx context.Context, promptID string) ([]TestCase, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, prompt_id, name, vars, assertions, created_at
		FROM test_cases WHERE prompt_id = ? ORDER BY created_at`, promptID)
	if err != nil {
		return nil, errors.WrapStorageFailure(err, "list test cases")
	}
	defer rows.Close()

	var cases []TestCase
	for rows.Next() {
		tc, err := scanTestCase(rows)
		if err != nil {
			return nil, err
		}
		cases = append(cases, *tc)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapStorageFailure(err, "iterate test cases")
	}
	return cases, nil
}

func (s *Store) getTestCase(ctx context.Context, id string) (*TestCase, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, prompt_id, name, vars, assertions, created_at
		FROM test_cases WHERE id = ?`, id)

	tc, err := scanTestCase(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Newf("test case not found: %s", id)
	}
	return tc, err
}

func scanTestCase(row rowScanner) (*TestCase, error) {
	var tc TestCase
	var vars, assertions string
	if err := row.Scan(&tc.ID, &tc.PromptID, &tc.Name, &vars, &assertions, &tc.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, errors.WrapStorageFailure(err, "scan test case")
	}
	if vars != "" {
		if err := json.Unmarshal([]byte(vars), &tc.Vars); err != nil {
			return nil, errors.Wrap(err, "unmarshal test case vars")
		}
	}
	if assertions != "" {
		if err := json.Unmarshal([]byte(assertions), &tc.Assertions); err != nil {
			return nil, errors.Wrap(err, "unmarshal test case assertions")
		}
	}
	return &tc, nil
}
