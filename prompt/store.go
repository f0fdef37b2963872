package prompt

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/teranos/promptpulse/errors"
)

// Store persists prompts, versions, and test cases in SQLite.
//
// The store exposes CRUD plus the group query and transactional production
// activation the lifecycle manager needs. Prompt mutation policy lives in
// the Manager; the store only enforces referential integrity and atomicity.
type Store struct {
	db *sql.DB
}

// NewStore creates a prompt store backed by db.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreatePrompt inserts a prompt together with its initial versions.
func (s *Store) CreatePrompt(ctx context.Context, p *Prompt) error {
	if len(p.Versions) == 0 {
		return errors.New("prompt must have at least one version")
	}

	tags, err := json.Marshal(p.Tags)
	if err != nil {
		return errors.Wrap(err, "marshal tags")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.WrapStorageFailure(err, "begin create prompt")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO prompts (id, name, agent_type, operation, tags, is_production, primary_version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.AgentType, p.Operation, string(tags), p.IsProduction, p.PrimaryVersion, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return errors.WrapStorageFailure(err, "insert prompt")
	}

	for i, v := range p.Versions {
		if err := insertVersion(ctx, tx, p.ID, v, i); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.WrapStorageFailure(err, "commit create prompt")
	}
	return nil
}

// GetPrompt loads a prompt with its versions in insertion order.
func (s *Store) GetPrompt(ctx context.Context, id string) (*Prompt, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, agent_type, operation, tags, is_production, primary_version, created_at, updated_at
		FROM prompts WHERE id = ?`, id)

	p, err := scanPrompt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(errors.ErrPromptNotFound, "id %s", id)
	}
	if err != nil {
		return nil, errors.WrapStorageFailure(err, "get prompt")
	}

	versions, err := s.loadVersions(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Versions = versions
	return p, nil
}

// ListGroup returns all prompts sharing an (agentType, operation) pair,
// without their version lists. Used for production-activation exclusivity.
func (s *Store) ListGroup(ctx context.Context, agentType, operation string) ([]*Prompt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, agent_type, operation, tags, is_production, primary_version, created_at, updated_at
		FROM prompts WHERE agent_type = ? AND operation = ? ORDER BY created_at`, agentType, operation)
	if err != nil {
		return nil, errors.WrapStorageFailure(err, "list prompt group")
	}
	defer rows.Close()

	var prompts []*Prompt
	for rows.Next() {
		p, err := scanPrompt(rows)
		if err != nil {
			return nil, errors.WrapStorageFailure(err, "scan prompt")
		}
		prompts = append(prompts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapStorageFailure(err, "iterate prompt group")
	}
	return prompts, nil
}

// AppendVersion adds a version at the end of the prompt's list. When
// newPrimary is non-empty the prompt's primary version is updated in the
// same transaction.
func (s *Store) AppendVersion(ctx context.Context, promptID string, v Version, newPrimary string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.WrapStorageFailure(err, "begin append version")
	}
	defer tx.Rollback()

	var next int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position), -1) + 1 FROM prompt_versions WHERE prompt_id = ?`, promptID,
	).Scan(&next); err != nil {
		return errors.WrapStorageFailure(err, "next version position")
	}

	if err := insertVersion(ctx, tx, promptID, v, next); err != nil {
		return err
	}

	if err := touchPrompt(ctx, tx, promptID, newPrimary); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.WrapStorageFailure(err, "commit append version")
	}
	return nil
}

// ReplaceVersion overwrites an existing version's template, changelog, and
// metadata in place, preserving its original createdAt and position.
func (s *Store) ReplaceVersion(ctx context.Context, promptID string, v Version) error {
	metadata, err := json.Marshal(v.Metadata)
	if err != nil {
		return errors.Wrap(err, "marshal version metadata")
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE prompt_versions SET template = ?, changelog = ?, metadata = ?
		WHERE prompt_id = ? AND version = ?`,
		v.Template, v.Changelog, string(metadata), promptID, v.Version,
	)
	if err != nil {
		return errors.WrapStorageFailure(err, "replace version")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.WrapVersionNotFound(promptID, v.Version)
	}

	_, err = s.db.ExecContext(ctx, `UPDATE prompts SET updated_at = ? WHERE id = ?`, time.Now().UTC(), promptID)
	return errors.WrapStorageFailure(err, "touch prompt")
}

// DeleteVersion removes a version and, when newPrimary is non-empty,
// reassigns the primary version in the same transaction.
func (s *Store) DeleteVersion(ctx context.Context, promptID, version, newPrimary string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.WrapStorageFailure(err, "begin delete version")
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`DELETE FROM prompt_versions WHERE prompt_id = ? AND version = ?`, promptID, version)
	if err != nil {
		return errors.WrapStorageFailure(err, "delete version")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.WrapVersionNotFound(promptID, version)
	}

	if err := touchPrompt(ctx, tx, promptID, newPrimary); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.WrapStorageFailure(err, "commit delete version")
	}
	return nil
}

// SetPrimaryVersion updates the prompt's primary version pointer.
func (s *Store) SetPrimaryVersion(ctx context.Context, promptID, version string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE prompts SET primary_version = ?, updated_at = ? WHERE id = ?`,
		version, time.Now().UTC(), promptID)
	if err != nil {
		return errors.WrapStorageFailure(err, "set primary version")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Wrapf(errors.ErrPromptNotFound, "id %s", promptID)
	}
	return nil
}

// ActivateProduction flips IsProduction to the target prompt and clears it
// on every sibling in the same (agentType, operation) group, as one
// transaction holding the write lock for its whole span. Two concurrent
// activations in the same group therefore serialize; the group is never
// observed with zero or multiple active prompts.
//
// Returns the IDs of deactivated siblings.
func (s *Store) ActivateProduction(ctx context.Context, promptID string) ([]string, error) {
	// A dedicated connection so BEGIN IMMEDIATE, the reads, the write, and
	// COMMIT all run on the same SQLite handle. BEGIN IMMEDIATE takes the
	// write lock up front, so the check-and-set below cannot interleave
	// with a concurrent activation in the same group.
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, errors.WrapStorageFailure(err, "acquire connection")
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return nil, errors.WrapStorageFailure(err, "begin activation")
	}
	committed := false
	defer func() {
		if !committed {
			conn.ExecContext(ctx, "ROLLBACK")
		}
	}()

	var agentType, operation string
	var isProduction bool
	err = conn.QueryRowContext(ctx,
		`SELECT agent_type, operation, is_production FROM prompts WHERE id = ?`, promptID,
	).Scan(&agentType, &operation, &isProduction)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(errors.ErrPromptNotFound, "id %s", promptID)
	}
	if err != nil {
		return nil, errors.WrapStorageFailure(err, "load activation target")
	}
	if isProduction {
		return nil, errors.Wrapf(errors.ErrAlreadyActive, "prompt %s is already the production prompt for %s/%s", promptID, agentType, operation)
	}

	rows, err := conn.QueryContext(ctx,
		`SELECT id FROM prompts WHERE agent_type = ? AND operation = ? AND is_production = 1 AND id != ?`,
		agentType, operation, promptID)
	if err != nil {
		return nil, errors.WrapStorageFailure(err, "list active siblings")
	}
	var deactivated []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, errors.WrapStorageFailure(err, "scan sibling")
		}
		deactivated = append(deactivated, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, errors.WrapStorageFailure(err, "iterate siblings")
	}

	// One conditional write over the whole group, never read-then-write
	// per row.
	_, err = conn.ExecContext(ctx, `
		UPDATE prompts
		SET is_production = CASE WHEN id = ? THEN 1 ELSE 0 END,
		    updated_at = ?
		WHERE agent_type = ? AND operation = ?`,
		promptID, time.Now().UTC(), agentType, operation)
	if err != nil {
		return nil, errors.WrapStorageFailure(err, "activate production")
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return nil, errors.WrapStorageFailure(err, "commit activation")
	}
	committed = true
	return deactivated, nil
}

func (s *Store) loadVersions(ctx context.Context, promptID string) ([]Version, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT version, template, changelog, metadata, created_at
		FROM prompt_versions WHERE prompt_id = ? ORDER BY position`, promptID)
	if err != nil {
		return nil, errors.WrapStorageFailure(err, "load versions")
	}
	defer rows.Close()

	var versions []Version
	for rows.Next() {
		var v Version
		var metadata string
		if err := rows.Scan(&v.Version, &v.Template, &v.Changelog, &metadata, &v.CreatedAt); err != nil {
			return nil, errors.WrapStorageFailure(err, "scan version")
		}
		if metadata != "" {
			if err := json.Unmarshal([]byte(metadata), &v.Metadata); err != nil {
				return nil, errors.Wrap(err, "unmarshal version metadata")
			}
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapStorageFailure(err, "iterate versions")
	}
	return versions, nil
}

func insertVersion(ctx context.Context, tx *sql.Tx, promptID string, v Version, position int) error {
	metadata, err := json.Marshal(v.Metadata)
	if err != nil {
		return errors.Wrap(err, "marshal version metadata")
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO prompt_versions (prompt_id, version, template, changelog, metadata, position, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		promptID, v.Version, v.Template, v.Changelog, string(metadata), position, v.CreatedAt,
	)
	return errors.WrapStorageFailure(err, "insert version")
}

func touchPrompt(ctx context.Context, tx *sql.Tx, promptID, newPrimary string) error {
	var err error
	if newPrimary != "" {
		_, err = tx.ExecContext(ctx,
			`UPDATE prompts SET primary_version = ?, updated_at = ? WHERE id = ?`,
			newPrimary, time.Now().UTC(), promptID)
	} else {
		_, err = tx.ExecContext(ctx,
			`UPDATE prompts SET updated_at = ? WHERE id = ?`, time.Now().UTC(), promptID)
	}
	return errors.WrapStorageFailure(err, "touch prompt")
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPrompt(row rowScanner) (*Prompt, error) {
	var p Prompt
	var tags string
	err := row.Scan(&p.ID, &p.Name, &p.AgentType, &p.Operation, &tags,
		&p.IsProduction, &p.PrimaryVersion, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if tags != "" {
		if err := json.Unmarshal([]byte(tags), &p.Tags); err != nil {
			return nil, errors.Wrap(err, "unmarshal tags")
		}
	}
	return &p, nil
}
