package prompt

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"go.uber.org/zap"

	"github.com/teranos/promptpulse/errors"
	"github.com/teranos/promptpulse/logger"
)

// SaveMode controls how CreateVersion treats an existing version string.
type SaveMode string

const (
	// SaveModeNew appends a new version; colliding with an existing one
	// is an error.
	SaveModeNew SaveMode = "new"
	// SaveModeOverwrite replaces an existing version in place; the version
	// must already exist.
	SaveModeOverwrite SaveMode = "overwrite"
	// SaveModeDraft creates the draft if absent, overwrites it otherwise.
	SaveModeDraft SaveMode = "draft"
)

// VersionSpec describes one CreateVersion request.
type VersionSpec struct {
	Version   string                 `json:"version"`
	Template  string                 `json:"template"`
	Changelog string                 `json:"changelog,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	SaveMode  SaveMode               `json:"save_mode"`
}

// Manager owns all prompt mutation: version creation, deletion, primary
// reassignment, and production activation. Nothing else writes prompts.
type Manager struct {
	store  *Store
	logger *zap.SugaredLogger
}

// NewManager creates a lifecycle manager over the given store.
func NewManager(store *Store, log *zap.SugaredLogger) *Manager {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Manager{store: store, logger: log}
}

var semanticVersionPattern = regexp.MustCompile(`^\d+\.\d+\.\d+(-draft)?$`)

// ValidateSemanticVersion checks that v is major.minor.patch, optionally
// with the draft suffix.
func ValidateSemanticVersion(v string) error {
	if !semanticVersionPattern.MatchString(v) {
		return errors.Wrapf(errors.ErrInvalidVersionFormat, "%q is not major.minor.patch", v)
	}
	return nil
}

// IncrementVersion returns current with its patch component bumped.
// Anything that is not exactly three dot-separated numeric parts
// (including the empty string) yields "1.0.1".
func IncrementVersion(current string) string {
	parts := strings.Split(current, ".")
	if len(parts) != 3 {
		return "1.0.1"
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return "1.0.1"
		}
		nums[i] = n
	}
	return strconv.Itoa(nums[0]) + "." + strconv.Itoa(nums[1]) + "." + strconv.Itoa(nums[2]+1)
}

// CreateVersion applies a VersionSpec to a prompt and returns the updated
// prompt. Non-draft versions must be semantic; a non-draft save becomes the
// new primary version.
func (m *Manager) CreateVersion(ctx context.Context, promptID string, spec VersionSpec) (*Prompt, error) {
	p, err := m.store.GetPrompt(ctx, promptID)
	if err != nil {
		return nil, err
	}

	isDraft := spec.SaveMode == SaveModeDraft || IsDraftVersion(spec.Version)
	if !isDraft {
		if err := ValidateSemanticVersion(spec.Version); err != nil {
			return nil, err
		}
	}

	existing, _ := p.FindVersion(spec.Version)

	switch spec.SaveMode {
	case SaveModeNew:
		if existing != nil {
			return nil, errors.Wrapf(errors.ErrVersionAlreadyExists, "prompt %s version %s", promptID, spec.Version)
		}
		newPrimary := ""
		if !IsDraftVersion(spec.Version) {
			newPrimary = spec.Version
		}
		v := Version{
			Version:   spec.Version,
			Template:  spec.Template,
			Changelog: spec.Changelog,
			Metadata:  spec.Metadata,
			CreatedAt: time.Now().UTC(),
		}
		if err := m.store.AppendVersion(ctx, promptID, v, newPrimary); err != nil {
			return nil, err
		}
		m.logger.Infow("Version created",
			logger.FieldPromptID, promptID,
			logger.FieldVersion, spec.Version,
		)

	case SaveModeOverwrite:
		// Strict policy: overwrite means the version must already exist.
		// Create-if-absent is what drafts are for.
		if existing == nil {
			return nil, errors.WrapVersionNotFound(promptID, spec.Version)
		}
		if err := m.overwrite(ctx, promptID, spec, existing); err != nil {
			return nil, err
		}

	case SaveModeDraft:
		if existing != nil {
			if err := m.overwrite(ctx, promptID, spec, existing); err != nil {
				return nil, err
			}
		} else {
			v := Version{
				Version:   spec.Version,
				Template:  spec.Template,
				Changelog: spec.Changelog,
				Metadata:  spec.Metadata,
				CreatedAt: time.Now().UTC(),
			}
			if err := m.store.AppendVersion(ctx, promptID, v, ""); err != nil {
				return nil, err
			}
			m.logger.Infow("Draft version created",
				logger.FieldPromptID, promptID,
				logger.FieldVersion, spec.Version,
			)
		}

	default:
		return nil, errors.Newf("unknown save mode %q", spec.SaveMode)
	}

	return m.store.GetPrompt(ctx, promptID)
}

func (m *Manager) overwrite(ctx context.Context, promptID string, spec VersionSpec, existing *Version) error {
	v := Version{
		Version:   spec.Version,
		Template:  spec.Template,
		Changelog: spec.Changelog,
		Metadata:  spec.Metadata,
		CreatedAt: existing.CreatedAt, // overwrite preserves the original createdAt
	}
	if err := m.store.ReplaceVersion(ctx, promptID, v); err != nil {
		return err
	}
	m.logger.Infow("Version overwritten",
		logger.FieldPromptID, promptID,
		logger.FieldVersion, spec.Version,
	)
	return nil
}

// DeleteVersion removes a version. Deleting the last remaining version is
// refused. If the deleted version was primary, the primary is reassigned:
// highest non-draft semantic version first, latest-created draft otherwise.
func (m *Manager) DeleteVersion(ctx context.Context, promptID, version string) (*Prompt, error) {
	p, err := m.store.GetPrompt(ctx, promptID)
	if err != nil {
		return nil, err
	}

	if len(p.Versions) == 1 {
		return nil, errors.Wrapf(errors.ErrCannotDeleteOnlyVersion, "prompt %s", promptID)
	}
	if _, idx := p.FindVersion(version); idx < 0 {
		return nil, errors.WrapVersionNotFound(promptID, version)
	}

	newPrimary := ""
	if p.PrimaryVersion == version {
		remaining := make([]Version, 0, len(p.Versions)-1)
		for _, v := range p.Versions {
			if v.Version != version {
				remaining = append(remaining, v)
			}
		}
		next, err := findNextPrimary(remaining)
		if err != nil {
			return nil, err
		}
		newPrimary = next
	}

	if err := m.store.DeleteVersion(ctx, promptID, version, newPrimary); err != nil {
		return nil, err
	}

	m.logger.Infow("Version deleted",
		logger.FieldPromptID, promptID,
		logger.FieldVersion, version,
	)
	if newPrimary != "" {
		m.logger.Infow("Primary version reassigned",
			logger.FieldPromptID, promptID,
			logger.FieldVersion, newPrimary,
		)
	}

	return m.store.GetPrompt(ctx, promptID)
}

// findNextPrimary picks the next primary among the remaining versions:
// the highest non-draft by semantic ordering, otherwise the draft with the
// latest createdAt. Reaching it with no versions at all is a bug upstream.
func findNextPrimary(remaining []Version) (string, error) {
	var best *semver.Version
	bestStr := ""
	for _, v := range remaining {
		if v.IsDraft() {
			continue
		}
		// NewVersion coerces partial versions, so a missing component
		// compares as zero.
		sv, err := semver.NewVersion(v.Version)
		if err != nil {
			continue
		}
		if best == nil || sv.GreaterThan(best) {
			best = sv
			bestStr = v.Version
		}
	}
	if bestStr != "" {
		return bestStr, nil
	}

	var latest *Version
	for i := range remaining {
		v := &remaining[i]
		if !v.IsDraft() {
			continue
		}
		if latest == nil || v.CreatedAt.After(latest.CreatedAt) {
			latest = v
		}
	}
	if latest != nil {
		return latest.Version, nil
	}

	return "", errors.WithStack(errors.ErrNoSuitablePrimaryVersion)
}

// ActivateVersion marks a version as the prompt's serving template
// (its primary version). Drafts can never hold that role.
func (m *Manager) ActivateVersion(ctx context.Context, promptID, version string) error {
	p, err := m.store.GetPrompt(ctx, promptID)
	if err != nil {
		return err
	}

	v, idx := p.FindVersion(version)
	if idx < 0 {
		return errors.WrapVersionNotFound(promptID, version)
	}
	if v.IsDraft() {
		return errors.Wrapf(errors.ErrInvalidVersionFormat, "draft version %s cannot be activated", version)
	}
	if p.PrimaryVersion == version {
		return errors.Wrapf(errors.ErrAlreadyActive, "version %s is already primary for prompt %s", version, promptID)
	}

	if err := m.store.SetPrimaryVersion(ctx, promptID, version); err != nil {
		return err
	}

	m.logger.Infow("Version activated",
		logger.FieldPromptID, promptID,
		logger.FieldVersion, version,
	)
	return nil
}

// ActivationResult reports a production activation.
type ActivationResult struct {
	Activated           string   `json:"activated"`
	DeactivatedSiblings []string `json:"deactivated_siblings"`
}

// ActivateProduction makes the prompt the production prompt of its
// (agentType, operation) group, deactivating every sibling in one
// transactional write against the store.
func (m *Manager) ActivateProduction(ctx context.Context, promptID string) (*ActivationResult, error) {
	deactivated, err := m.store.ActivateProduction(ctx, promptID)
	if err != nil {
		return nil, err
	}

	m.logger.Infow("Production activated",
		logger.FieldPromptID, promptID,
		"deactivated_siblings", len(deactivated),
	)
	return &ActivationResult{
		Activated:           promptID,
		DeactivatedSiblings: deactivated,
	}, nil
}
