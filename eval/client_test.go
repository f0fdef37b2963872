package eval

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/promptpulse/errors"
)

func newEvalServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_EvaluateTest(t *testing.T) {
	var received evaluateRequest
	srv := newEvalServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/evaluate", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		json.NewEncoder(w).Encode(TestOutcome{
			Output:     "Paris",
			Success:    true,
			Score:      0.95,
			TokenUsage: TokenUsage{Prompt: 12, Completion: 3, Total: 15},
			Cost:       0.0004,
			LatencyMs:  812,
		})
	})

	client := NewClient(Config{
		BaseURL:           srv.URL,
		APIKey:            "sk-test",
		Model:             "gpt-4o-mini",
		AllowPrivateHosts: true,
	})

	outcome, err := client.EvaluateTest(context.Background(), TestRequest{
		Template: "What is the capital of {{country}}?",
		Vars:     map[string]interface{}{"country": "France"},
		Assertions: []AssertionSpec{
			{Type: "contains", Value: "Paris"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "Paris", outcome.Output)
	assert.True(t, outcome.Success)
	assert.InDelta(t, 0.95, outcome.Score, 1e-9)
	assert.Equal(t, 15, outcome.TokenUsage.Total)

	// The client fills in its configured model when the request omits one.
	assert.Equal(t, "gpt-4o-mini", received.Provider.Model)
	assert.Equal(t, "What is the capital of {{country}}?", received.Template)
	require.Len(t, received.Assertions, 1)
}

func TestClient_EvaluateTest_ServerError(t *testing.T) {
	srv := newEvalServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream provider unavailable", http.StatusBadGateway)
	})

	client := NewClient(Config{BaseURL: srv.URL, AllowPrivateHosts: true})
	_, err := client.EvaluateTest(context.Background(), TestRequest{Template: "t"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrEvaluationDispatchFailure))
}

func TestClient_EvaluateTest_MalformedResponse(t *testing.T) {
	srv := newEvalServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("this is not json"))
	})

	client := NewClient(Config{BaseURL: srv.URL, AllowPrivateHosts: true})
	_, err := client.EvaluateTest(context.Background(), TestRequest{Template: "t"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrResultParseFailure))
}

func TestClient_EvaluateTest_NoBaseURL(t *testing.T) {
	client := NewClient(Config{})
	_, err := client.EvaluateTest(context.Background(), TestRequest{Template: "t"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrEvaluationDispatchFailure))
}

func TestClient_EvaluateTest_PrivateHostBlocked(t *testing.T) {
	srv := newEvalServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("request must never reach the server")
	})

	// Default posture blocks loopback targets.
	client := NewClient(Config{BaseURL: srv.URL})
	_, err := client.EvaluateTest(context.Background(), TestRequest{Template: "t"})
	require.Error(t, err)
}
