// Package service is the caller-facing facade: it composes the version
// lifecycle manager, the test-execution engine, and the job registry into
// the operations a transport (CLI today) renders. All failures come back as
// typed errors; the facade adds prompt/job scoping on top of the
// collaborators.
package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/teranos/promptpulse/errors"
	"github.com/teranos/promptpulse/eval"
	"github.com/teranos/promptpulse/prompt"
	"github.com/teranos/promptpulse/pulse"
)

// Service exposes the caller-facing operations.
type Service struct {
	lifecycle *prompt.Manager
	store     *prompt.Store
	engine    *pulse.Engine
	logger    *zap.SugaredLogger
}

// New creates the service facade.
func New(lifecycle *prompt.Manager, store *prompt.Store, engine *pulse.Engine, log *zap.SugaredLogger) *Service {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Service{lifecycle: lifecycle, store: store, engine: engine, logger: log}
}

// SubmitTest runs the prompt's primary template against the given test
// cases (all bound cases when nil). Returns the job snapshot, plus the raw
// payload for synchronous submissions.
func (s *Service) SubmitTest(ctx context.Context, promptID string, testCaseIDs []string, opts pulse.Options) (*pulse.Job, *eval.RawResult, error) {
	return s.engine.Submit(ctx, promptID, testCaseIDs, opts)
}

// JobStatusView is a job snapshot with the engine's system load attached.
type JobStatusView struct {
	Job    *pulse.Job           `json:"job"`
	System pulse.SystemSnapshot `json:"system"`
}

// GetJobStatus returns the current job snapshot. The job must belong to the
// given prompt; a mismatch is an error rather than a leak of another
// prompt's job.
func (s *Service) GetJobStatus(promptID, jobID string) (*JobStatusView, error) {
	job, err := s.scopedJob(promptID, jobID)
	if err != nil {
		return nil, err
	}
	return &JobStatusView{Job: job, System: s.engine.SystemSnapshot()}, nil
}

// GetJobResult returns the raw payload of a completed job, or "not ready"
// while the job is still in flight.
func (s *Service) GetJobResult(promptID, jobID string) (*eval.RawResult, error) {
	if _, err := s.scopedJob(promptID, jobID); err != nil {
		return nil, err
	}
	return s.engine.Registry().Result(jobID)
}

// DismissJob removes a terminal job. Running jobs cannot be dismissed.
func (s *Service) DismissJob(promptID, jobID string) error {
	if _, err := s.scopedJob(promptID, jobID); err != nil {
		return err
	}
	return s.engine.Registry().Dismiss(jobID)
}

// CleanupJob removes a terminal job if present, reporting whether anything
// was removed. Unlike DismissJob, an absent or still-running job is not an
// error.
func (s *Service) CleanupJob(promptID, jobID string) (bool, error) {
	if _, err := s.scopedJob(promptID, jobID); err != nil {
		if errors.Is(err, errors.ErrJobNotFound) {
			return false, nil
		}
		return false, err
	}
	return s.engine.Registry().Cleanup(jobID), nil
}

func (s *Service) scopedJob(promptID, jobID string) (*pulse.Job, error) {
	job, err := s.engine.Registry().Get(jobID)
	if err != nil {
		return nil, err
	}
	if promptID != "" && job.PromptID != promptID {
		return nil, errors.Wrapf(errors.ErrJobMismatch,
			"job %s belongs to prompt %s, not %s", jobID, job.PromptID, promptID)
	}
	return job, nil
}

// CreateOrSaveVersion applies a version spec (new, overwrite, or draft save)
// and returns the updated prompt.
func (s *Service) CreateOrSaveVersion(ctx context.Context, promptID string, spec prompt.VersionSpec) (*prompt.Prompt, error) {
	return s.lifecycle.CreateVersion(ctx, promptID, spec)
}

// DeleteVersion removes a version, reassigning the primary version when the
// deleted one held that role.
func (s *Service) DeleteVersion(ctx context.Context, promptID, version string) (*prompt.Prompt, error) {
	return s.lifecycle.DeleteVersion(ctx, promptID, version)
}

// ActivateVersion makes a version the prompt's primary version.
func (s *Service) ActivateVersion(ctx context.Context, promptID, version string) error {
	return s.lifecycle.ActivateVersion(ctx, promptID, version)
}

// ActivateProduction makes the prompt the production prompt of its
// (agentType, operation) group.
func (s *Service) ActivateProduction(ctx context.Context, promptID string) (*prompt.ActivationResult, error) {
	return s.lifecycle.ActivateProduction(ctx, promptID)
}

// GetPrompt loads a prompt with its versions.
func (s *Service) GetPrompt(ctx context.Context, promptID string) (*prompt.Prompt, error) {
	return s.store.GetPrompt(ctx, promptID)
}

// ListGroup lists the prompts sharing an (agentType, operation) pair.
func (s *Service) ListGroup(ctx context.Context, agentType, operation string) ([]*prompt.Prompt, error) {
	return s.store.ListGroup(ctx, agentType, operation)
}
