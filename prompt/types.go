// Package prompt implements the versioned prompt data model and the
// version lifecycle: semantic-version validation, primary-version
// reassignment, and atomic production activation.
package prompt

import (
	"strings"
	"time"
)

// DraftSuffix marks a version string as a draft. Draft versions bypass
// semantic-version validation and can never become the primary version.
const DraftSuffix = "-draft"

// Prompt is a named, versioned template entity scoped to an
// (agentType, operation) pair.
//
// Invariants:
//   - Versions is never empty.
//   - Among all prompts sharing (AgentType, Operation), at most one has
//     IsProduction set at any observable instant.
//   - PrimaryVersion references an existing non-draft version, unless
//     every version is a draft.
type Prompt struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	AgentType      string    `json:"agent_type"`
	Operation      string    `json:"operation"`
	Tags           []string  `json:"tags,omitempty"`
	IsProduction   bool      `json:"is_production"`
	PrimaryVersion string    `json:"primary_version"`
	Versions       []Version `json:"versions"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Version is one template body plus metadata. The template text is
// immutable once created except through an explicit overwrite save.
type Version struct {
	Version   string                 `json:"version"`
	Template  string                 `json:"template"`
	Changelog string                 `json:"changelog,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// IsDraft reports whether the version identifier carries the draft suffix.
func (v Version) IsDraft() bool {
	return IsDraftVersion(v.Version)
}

// IsDraftVersion reports whether a version string carries the draft suffix.
func IsDraftVersion(version string) bool {
	return strings.HasSuffix(version, DraftSuffix)
}

// FindVersion returns the version with the given identifier and its index,
// or nil and -1 when absent.
func (p *Prompt) FindVersion(version string) (*Version, int) {
	for i := range p.Versions {
		if p.Versions[i].Version == version {
			return &p.Versions[i], i
		}
	}
	return nil, -1
}

// Primary returns the current primary version, or nil if PrimaryVersion
// does not resolve (which indicates a store-level inconsistency).
func (p *Prompt) Primary() *Version {
	v, _ := p.FindVersion(p.PrimaryVersion)
	return v
}

// TestCase binds variables and assertions to a prompt for evaluation.
type TestCase struct {
	ID         string                 `json:"id"`
	PromptID   string                 `json:"prompt_id"`
	Name       string                 `json:"name"`
	Vars       map[string]interface{} `json:"vars,omitempty"`
	Assertions []Assertion            `json:"assertions,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
}

// Assertion is a single pass/fail/score judgment the evaluator applies to
// one test case. The shape is owned by the evaluator; we carry it opaquely.
type Assertion struct {
	Type      string      `json:"type"`
	Value     interface{} `json:"value,omitempty"`
	Threshold float64     `json:"threshold,omitempty"`
}
