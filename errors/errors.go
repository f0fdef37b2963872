// Package errors provides error handling for PromptPulse.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - PII-safe error formatting
//
// Usage:
//
//	// Create new error
//	err := errors.New("something went wrong")
//
//	// Wrap with context
//	if err := doSomething(); err != nil {
//	    return errors.Wrap(err, "failed to do something")
//	}
//
//	// Check errors
//	if errors.Is(err, errors.ErrVersionNotFound) {
//	    // handle missing version
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint      = crdb.WithHint
	WithHintf     = crdb.WithHintf
	WithDetail    = crdb.WithDetail
	WithDetailf   = crdb.WithDetailf
	WithSecondary = crdb.WithSecondaryError
	GetAllHints   = crdb.GetAllHints
	GetAllDetails = crdb.GetAllDetails
)

// Error inspection
var (
	Is         = crdb.Is
	IsAny      = crdb.IsAny
	As         = crdb.As
	Unwrap     = crdb.Unwrap
	UnwrapOnce = crdb.UnwrapOnce
	UnwrapAll  = crdb.UnwrapAll
)

// Sentinel errors for the version lifecycle.
// Use these with errors.Is() for type-safe error checking.
// Wrap these with errors.Wrap() to add prompt/version context while preserving the kind.
var (
	// ErrInvalidVersionFormat indicates a version string that is not major.minor.patch
	ErrInvalidVersionFormat = New("invalid version format")

	// ErrVersionAlreadyExists indicates a save-mode "new" collision with an existing version
	ErrVersionAlreadyExists = New("version already exists")

	// ErrVersionNotFound indicates the referenced version is absent from the prompt
	ErrVersionNotFound = New("version not found")

	// ErrCannotDeleteOnlyVersion guards the never-empty versions invariant
	ErrCannotDeleteOnlyVersion = New("cannot delete the only version")

	// ErrNoSuitablePrimaryVersion indicates primary reassignment found no candidate
	ErrNoSuitablePrimaryVersion = New("no suitable primary version")

	// ErrAlreadyActive indicates the target already holds the active role
	ErrAlreadyActive = New("already active")

	// ErrPromptNotFound indicates the referenced prompt does not exist
	ErrPromptNotFound = New("prompt not found")
)

// Sentinel errors for the test-execution engine.
var (
	// ErrJobNotFound indicates the job is not (or no longer) in the registry
	ErrJobNotFound = New("job not found")

	// ErrJobMismatch indicates the job does not belong to the referenced prompt
	ErrJobMismatch = New("job does not match prompt")

	// ErrJobStillRunning indicates an operation that requires a terminal job
	ErrJobStillRunning = New("job is still running")

	// ErrEvaluationTimeout indicates the engine abandoned its wait on the evaluator
	ErrEvaluationTimeout = New("evaluation timed out")

	// ErrEvaluationDispatchFailure indicates the evaluator call could not be dispatched
	ErrEvaluationDispatchFailure = New("evaluation dispatch failed")

	// ErrResultParseFailure indicates malformed raw evaluation output
	ErrResultParseFailure = New("failed to parse evaluation result")

	// ErrStorageFailure indicates a persistence-layer fault
	ErrStorageFailure = New("storage failure")
)

// IsNotFound reports whether err is any of the not-found kinds.
func IsNotFound(err error) bool {
	return err != nil && IsAny(err, ErrVersionNotFound, ErrJobNotFound, ErrPromptNotFound)
}

// IsConflict reports whether err is a state-conflict kind that a caller
// can resolve by changing its request rather than retrying.
func IsConflict(err error) bool {
	return err != nil && IsAny(err, ErrVersionAlreadyExists, ErrAlreadyActive, ErrJobStillRunning)
}

// WrapVersionNotFound wraps ErrVersionNotFound with the offending version string.
func WrapVersionNotFound(promptID, version string) error {
	err := Wrapf(ErrVersionNotFound, "prompt %s has no version %q", promptID, version)
	return WithDetailf(err, "Prompt ID: %s", promptID)
}

// WrapStorageFailure wraps a persistence error as ErrStorageFailure while
// keeping the underlying cause in the chain.
func WrapStorageFailure(err error, context string) error {
	if err == nil {
		return nil
	}
	return Wrap(WithSecondary(ErrStorageFailure, err), context)
}
