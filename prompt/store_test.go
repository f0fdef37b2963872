package prompt_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/promptpulse/errors"
	pptest "github.com/teranos/promptpulse/internal/testing"
	"github.com/teranos/promptpulse/prompt"
)

func TestStore_PromptRoundTrip(t *testing.T) {
	db := pptest.CreateMigratedDB(t)
	store := prompt.NewStore(db)
	ctx := context.Background()

	created := &prompt.Prompt{
		ID:             "rt1",
		Name:           "classify-intent",
		AgentType:      "router",
		Operation:      "classify",
		Tags:           []string{"nlp", "routing"},
		PrimaryVersion: "1.0.0",
		Versions: []prompt.Version{
			{
				Version:   "1.0.0",
				Template:  "Classify: {{input}}",
				Changelog: "initial",
				Metadata:  map[string]interface{}{"author": "mira"},
				CreatedAt: time.Now().UTC(),
			},
		},
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.CreatePrompt(ctx, created))

	loaded, err := store.GetPrompt(ctx, "rt1")
	require.NoError(t, err)
	assert.Equal(t, created.Name, loaded.Name)
	assert.Equal(t, created.Tags, loaded.Tags)
	assert.Equal(t, "1.0.0", loaded.PrimaryVersion)
	require.Len(t, loaded.Versions, 1)
	assert.Equal(t, "Classify: {{input}}", loaded.Versions[0].Template)
	assert.Equal(t, "initial", loaded.Versions[0].Changelog)
	assert.Equal(t, "mira", loaded.Versions[0].Metadata["author"])
}

func TestStore_PromptWithoutVersionsRejected(t *testing.T) {
	db := pptest.CreateMigratedDB(t)
	store := prompt.NewStore(db)

	err := store.CreatePrompt(context.Background(), &prompt.Prompt{
		ID: "empty", Name: "empty", AgentType: "a", Operation: "b",
	})
	require.Error(t, err)
}

func TestStore_GetPromptNotFound(t *testing.T) {
	db := pptest.CreateMigratedDB(t)
	store := prompt.NewStore(db)

	_, err := store.GetPrompt(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrPromptNotFound))
}

func TestStore_VersionsKeepInsertionOrder(t *testing.T) {
	db := pptest.CreateMigratedDB(t)
	store := prompt.NewStore(db)
	ctx := context.Background()

	seedPrompt(t, store, "ord1", "1.0.0")
	for _, v := range []string{"0.9.0", "2.0.0", "1.5.0"} {
		require.NoError(t, store.AppendVersion(ctx, "ord1", prompt.Version{
			Version: v, Template: "t", CreatedAt: time.Now().UTC(),
		}, ""))
	}

	loaded, err := store.GetPrompt(ctx, "ord1")
	require.NoError(t, err)
	got := make([]string, 0, len(loaded.Versions))
	for _, v := range loaded.Versions {
		got = append(got, v.Version)
	}
	// Insertion order, not semantic order.
	assert.Equal(t, []string{"1.0.0", "0.9.0", "2.0.0", "1.5.0"}, got)
}

func TestStore_ReplaceVersionKeepsPosition(t *testing.T) {
	db := pptest.CreateMigratedDB(t)
	store := prompt.NewStore(db)
	ctx := context.Background()

	seedPrompt(t, store, "rp1", "1.0.0", "1.1.0")
	require.NoError(t, store.ReplaceVersion(ctx, "rp1", prompt.Version{
		Version: "1.0.0", Template: "rewritten",
	}))

	loaded, err := store.GetPrompt(ctx, "rp1")
	require.NoError(t, err)
	require.Len(t, loaded.Versions, 2)
	assert.Equal(t, "1.0.0", loaded.Versions[0].Version, "replaced version stays first")
	assert.Equal(t, "rewritten", loaded.Versions[0].Template)
}

func TestStore_ReplaceUnknownVersion(t *testing.T) {
	db := pptest.CreateMigratedDB(t)
	store := prompt.NewStore(db)

	seedPrompt(t, store, "rp2", "1.0.0")
	err := store.ReplaceVersion(context.Background(), "rp2", prompt.Version{
		Version: "8.8.8", Template: "x",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrVersionNotFound))
}

func TestStore_ListGroup(t *testing.T) {
	db := pptest.CreateMigratedDB(t)
	store := prompt.NewStore(db)
	ctx := context.Background()

	seedPrompt(t, store, "g1", "1.0.0")
	seedPrompt(t, store, "g2", "1.0.0")

	other := &prompt.Prompt{
		ID: "other", Name: "other", AgentType: "billing", Operation: "invoice",
		PrimaryVersion: "1.0.0",
		Versions:       []prompt.Version{{Version: "1.0.0", Template: "t", CreatedAt: time.Now().UTC()}},
		CreatedAt:      time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.CreatePrompt(ctx, other))

	group, err := store.ListGroup(ctx, "support", "summarize")
	require.NoError(t, err)
	require.Len(t, group, 2)
	for _, p := range group {
		assert.NotEqual(t, "other", p.ID)
	}
}

func TestStore_TestCases(t *testing.T) {
	db := pptest.CreateMigratedDB(t)
	store := prompt.NewStore(db)
	ctx := context.Background()

	seedPrompt(t, store, "tc1", "1.0.0")

	cases := []prompt.TestCase{
		{
			ID: "case-a", PromptID: "tc1", Name: "happy path",
			Vars:       map[string]interface{}{"input": "refund my order"},
			Assertions: []prompt.Assertion{{Type: "contains", Value: "refund"}},
			CreatedAt:  time.Now().UTC(),
		},
		{
			ID: "case-b", PromptID: "tc1", Name: "empty input",
			Vars:      map[string]interface{}{"input": ""},
			CreatedAt: time.Now().UTC().Add(time.Second),
		},
	}
	for i := range cases {
		require.NoError(t, store.CreateTestCase(ctx, &cases[i]))
	}

	// GetTestCases returns cases in the requested order.
	got, err := store.GetTestCases(ctx, []string{"case-b", "case-a"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "case-b", got[0].ID)
	assert.Equal(t, "case-a", got[1].ID)
	assert.Equal(t, "refund my order", got[1].Vars["input"])
	require.Len(t, got[1].Assertions, 1)
	assert.Equal(t, "contains", got[1].Assertions[0].Type)

	// A missing ID fails the whole lookup.
	_, err = store.GetTestCases(ctx, []string{"case-a", "ghost"})
	require.Error(t, err)

	listed, err := store.ListTestCases(ctx, "tc1")
	require.NoError(t, err)
	assert.Len(t, listed, 2)
}
