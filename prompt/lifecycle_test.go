package prompt_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/teranos/promptpulse/db"
	"github.com/teranos/promptpulse/errors"
	pptest "github.com/teranos/promptpulse/internal/testing"
	"github.com/teranos/promptpulse/prompt"
)

func newTestManager(t *testing.T) (*prompt.Manager, *prompt.Store) {
	t.Helper()
	db := pptest.CreateMigratedDB(t)
	store := prompt.NewStore(db)
	return prompt.NewManager(store, zap.NewNop().Sugar()), store
}

func seedPrompt(t *testing.T, store *prompt.Store, id string, versions ...string) *prompt.Prompt {
	t.Helper()
	p := &prompt.Prompt{
		ID:        id,
		Name:      "summarize-ticket",
		AgentType: "support",
		Operation: "summarize",
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	base := time.Now().UTC().Add(-time.Hour)
	for i, v := range versions {
		p.Versions = append(p.Versions, prompt.Version{
			Version:   v,
			Template:  "Summarize: {{input}}",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if !prompt.IsDraftVersion(v) {
			p.PrimaryVersion = v
		}
	}
	if p.PrimaryVersion == "" && len(p.Versions) > 0 {
		p.PrimaryVersion = p.Versions[len(p.Versions)-1].Version
	}
	require.NoError(t, store.CreatePrompt(context.Background(), p))
	return p
}

func TestValidateSemanticVersion(t *testing.T) {
	valid := []string{"1.0.0", "0.0.1", "12.34.56", "1.0.0-draft"}
	for _, v := range valid {
		assert.NoError(t, prompt.ValidateSemanticVersion(v), "expected %q to validate", v)
	}

	invalid := []string{"", "1.0", "v1.0.0", "1.0.0.0", "1.0.x", "1.0.0-beta", "one.two.three"}
	for _, v := range invalid {
		err := prompt.ValidateSemanticVersion(v)
		require.Error(t, err, "expected %q to be rejected", v)
		assert.True(t, errors.Is(err, errors.ErrInvalidVersionFormat))
	}
}

func TestIncrementVersion(t *testing.T) {
	cases := map[string]string{
		"1.0.5":       "1.0.6",
		"0.0.0":       "0.0.1",
		"2.9.19":      "2.9.20",
		"":            "1.0.1",
		"garbage":     "1.0.1",
		"1.0":         "1.0.1",
		"1.0.x":       "1.0.1",
		"1.0.0.0":     "1.0.1",
		"1.0.0-draft": "1.0.1",
	}
	for in, want := range cases {
		assert.Equal(t, want, prompt.IncrementVersion(in), "IncrementVersion(%q)", in)
	}
}

func TestCreateVersion_NewBecomesPrimary(t *testing.T) {
	mgr, store := newTestManager(t)
	seedPrompt(t, store, "p1", "1.0.0")

	updated, err := mgr.CreateVersion(context.Background(), "p1", prompt.VersionSpec{
		Version:  "1.1.0",
		Template: "Summarize briefly: {{input}}",
		SaveMode: prompt.SaveModeNew,
	})
	require.NoError(t, err)
	assert.Equal(t, "1.1.0", updated.PrimaryVersion)
	assert.Len(t, updated.Versions, 2)
}

func TestCreateVersion_DuplicateRejected(t *testing.T) {
	mgr, store := newTestManager(t)
	seedPrompt(t, store, "p1", "1.0.0")

	_, err := mgr.CreateVersion(context.Background(), "p1", prompt.VersionSpec{
		Version:  "1.0.0",
		Template: "dupe",
		SaveMode: prompt.SaveModeNew,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrVersionAlreadyExists))
}

func TestCreateVersion_InvalidFormatRejected(t *testing.T) {
	mgr, store := newTestManager(t)
	seedPrompt(t, store, "p1", "1.0.0")

	_, err := mgr.CreateVersion(context.Background(), "p1", prompt.VersionSpec{
		Version:  "v2",
		Template: "bad",
		SaveMode: prompt.SaveModeNew,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidVersionFormat))
}

func TestCreateVersion_OverwriteRequiresExisting(t *testing.T) {
	mgr, store := newTestManager(t)
	seedPrompt(t, store, "p1", "1.0.0")

	_, err := mgr.CreateVersion(context.Background(), "p1", prompt.VersionSpec{
		Version:  "1.2.0",
		Template: "does not exist yet",
		SaveMode: prompt.SaveModeOverwrite,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrVersionNotFound))
}

func TestCreateVersion_OverwritePreservesCreatedAt(t *testing.T) {
	mgr, store := newTestManager(t)
	seeded := seedPrompt(t, store, "p1", "1.0.0")
	originalCreated := seeded.Versions[0].CreatedAt

	updated, err := mgr.CreateVersion(context.Background(), "p1", prompt.VersionSpec{
		Version:  "1.0.0",
		Template: "Summarize, second pass: {{input}}",
		SaveMode: prompt.SaveModeOverwrite,
	})
	require.NoError(t, err)

	v, _ := updated.FindVersion("1.0.0")
	require.NotNil(t, v)
	assert.Equal(t, "Summarize, second pass: {{input}}", v.Template)
	assert.WithinDuration(t, originalCreated, v.CreatedAt, time.Second,
		"overwrite must keep the original creation time")
	assert.Len(t, updated.Versions, 1, "overwrite must not add a version")
}

func TestCreateVersion_DraftUpsert(t *testing.T) {
	mgr, store := newTestManager(t)
	seedPrompt(t, store, "p1", "1.0.0")

	// First draft save creates it.
	updated, err := mgr.CreateVersion(context.Background(), "p1", prompt.VersionSpec{
		Version:  "1.1.0-draft",
		Template: "draft one",
		SaveMode: prompt.SaveModeDraft,
	})
	require.NoError(t, err)
	assert.Len(t, updated.Versions, 2)
	assert.Equal(t, "1.0.0", updated.PrimaryVersion,
		"a draft save must not steal the primary version")

	// Second draft save overwrites in place.
	updated, err = mgr.CreateVersion(context.Background(), "p1", prompt.VersionSpec{
		Version:  "1.1.0-draft",
		Template: "draft two",
		SaveMode: prompt.SaveModeDraft,
	})
	require.NoError(t, err)
	assert.Len(t, updated.Versions, 2)
	v, _ := updated.FindVersion("1.1.0-draft")
	require.NotNil(t, v)
	assert.Equal(t, "draft two", v.Template)
}

func TestDeleteVersion_NonPrimaryKeepsPrimary(t *testing.T) {
	mgr, store := newTestManager(t)
	seedPrompt(t, store, "p1", "1.0.0", "1.1.0")

	updated, err := mgr.DeleteVersion(context.Background(), "p1", "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, "1.1.0", updated.PrimaryVersion)
	assert.Len(t, updated.Versions, 1)
}

func TestDeleteVersion_PrimaryReassignsToHighestSemver(t *testing.T) {
	mgr, store := newTestManager(t)
	seedPrompt(t, store, "p1", "1.0.0", "1.1.0", "1.2.0")

	updated, err := mgr.DeleteVersion(context.Background(), "p1", "1.2.0")
	require.NoError(t, err)
	assert.Equal(t, "1.1.0", updated.PrimaryVersion,
		"highest remaining non-draft version becomes primary")
}

func TestDeleteVersion_FallsBackToLatestDraft(t *testing.T) {
	mgr, store := newTestManager(t)
	seedPrompt(t, store, "p1", "1.0.0", "1.1.0-draft", "1.2.0-draft")

	updated, err := mgr.DeleteVersion(context.Background(), "p1", "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, "1.2.0-draft", updated.PrimaryVersion,
		"with only drafts left, the most recently created draft takes over")
}

func TestDeleteVersion_OnlyVersionRefused(t *testing.T) {
	mgr, store := newTestManager(t)
	seedPrompt(t, store, "p1", "1.0.0")

	_, err := mgr.DeleteVersion(context.Background(), "p1", "1.0.0")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCannotDeleteOnlyVersion))
}

func TestDeleteVersion_UnknownVersion(t *testing.T) {
	mgr, store := newTestManager(t)
	seedPrompt(t, store, "p1", "1.0.0", "1.1.0")

	_, err := mgr.DeleteVersion(context.Background(), "p1", "9.9.9")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrVersionNotFound))
}

func TestActivateVersion(t *testing.T) {
	mgr, store := newTestManager(t)
	seedPrompt(t, store, "p1", "1.0.0", "1.1.0", "1.2.0-draft")

	ctx := context.Background()

	// Switching back to an older version works.
	require.NoError(t, mgr.ActivateVersion(ctx, "p1", "1.0.0"))
	p, err := store.GetPrompt(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", p.PrimaryVersion)

	// Re-activating the current primary is a conflict.
	err = mgr.ActivateVersion(ctx, "p1", "1.0.0")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrAlreadyActive))

	// Drafts can never be primary.
	err = mgr.ActivateVersion(ctx, "p1", "1.2.0-draft")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidVersionFormat))

	// Unknown version.
	err = mgr.ActivateVersion(ctx, "p1", "3.0.0")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrVersionNotFound))
}

func TestActivateProduction_DeactivatesSiblings(t *testing.T) {
	mgr, store := newTestManager(t)
	ctx := context.Background()

	a := seedPrompt(t, store, "pa", "1.0.0")
	b := seedPrompt(t, store, "pb", "1.0.0")
	seedPrompt(t, store, "pc", "1.0.0")

	res, err := mgr.ActivateProduction(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "pa", res.Activated)
	assert.Empty(t, res.DeactivatedSiblings)

	res, err = mgr.ActivateProduction(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"pa"}, res.DeactivatedSiblings)

	// Exactly one production prompt in the group, ever.
	group, err := store.ListGroup(ctx, "support", "summarize")
	require.NoError(t, err)
	productionCount := 0
	for _, p := range group {
		if p.IsProduction {
			productionCount++
			assert.Equal(t, "pb", p.ID)
		}
	}
	assert.Equal(t, 1, productionCount)
}

func TestActivateProduction_ConcurrentActivations(t *testing.T) {
	// File-backed WAL database so activations contend on real connections
	// instead of the single shared :memory: handle.
	log := zap.NewNop().Sugar()
	conn, err := db.Open(filepath.Join(t.TempDir(), "prompts.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, db.Migrate(conn, log))

	store := prompt.NewStore(conn)
	mgr := prompt.NewManager(store, log)
	ctx := context.Background()

	ids := []string{"pa", "pb", "pc", "pd"}
	for _, id := range ids {
		seedPrompt(t, store, id, "1.0.0")
	}

	var wg sync.WaitGroup
	errs := make([]error, len(ids))
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = mgr.ActivateProduction(ctx, id)
		}(i, id)
	}
	wg.Wait()

	for i, activateErr := range errs {
		require.NoError(t, activateErr, "activation of %s", ids[i])
	}

	// However the activations interleave, a reader never finds the group
	// with zero or two production prompts.
	group, err := store.ListGroup(ctx, "support", "summarize")
	require.NoError(t, err)
	active := 0
	for _, p := range group {
		if p.IsProduction {
			active++
		}
	}
	assert.Equal(t, 1, active)
}

func TestActivateProduction_AlreadyActive(t *testing.T) {
	mgr, store := newTestManager(t)
	ctx := context.Background()

	seedPrompt(t, store, "pa", "1.0.0")
	_, err := mgr.ActivateProduction(ctx, "pa")
	require.NoError(t, err)

	_, err = mgr.ActivateProduction(ctx, "pa")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrAlreadyActive))
}

func TestActivateProduction_UnknownPrompt(t *testing.T) {
	mgr, _ := newTestManager(t)

	_, err := mgr.ActivateProduction(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}
