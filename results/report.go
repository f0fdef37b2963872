package results

import (
	"fmt"

	"github.com/teranos/promptpulse/eval"
)

// FailedAssertion is one assertion-level failure detail.
type FailedAssertion struct {
	Type   string  `json:"type"`
	Reason string  `json:"reason,omitempty"`
	Score  float64 `json:"score"`
}

// TestFailure describes one non-successful test entry.
type TestFailure struct {
	TestIndex        int                    `json:"testIndex"`
	TestVars         map[string]interface{} `json:"testVars,omitempty"`
	Error            string                 `json:"error"`
	FailedAssertions []FailedAssertion      `json:"failedAssertions,omitempty"`
}

// Report is the full human-facing report over one raw result.
type Report struct {
	Summary         SummaryMetrics `json:"summary"`
	Failures        []TestFailure  `json:"failures"`
	Recommendations []string       `json:"recommendations"`
}

// ExtractTestFailures collects every non-success entry with its error text
// and the first graded assertion, if the evaluator attached one.
func ExtractTestFailures(raw *eval.RawResult) []TestFailure {
	if raw == nil {
		return nil
	}

	var failures []TestFailure
	for i, r := range raw.Results {
		if r.Success {
			continue
		}

		errText := r.Error
		if errText == "" {
			errText = r.Output
		}

		failure := TestFailure{
			TestIndex: i,
			TestVars:  r.TestVars,
			Error:     errText,
		}
		if r.GradingResult != nil && len(r.GradingResult.ComponentResults) > 0 {
			first := r.GradingResult.ComponentResults[0]
			failure.FailedAssertions = []FailedAssertion{{
				Type:   first.Type,
				Reason: first.Reason,
				Score:  first.Score,
			}}
		}
		failures = append(failures, failure)
	}
	return failures
}

// Report thresholds. All rules whose threshold trips contribute a
// recommendation, in this order.
const (
	minAcceptableSuccessRate = 0.8
	minAcceptableAvgScore    = 0.7
	maxAcceptableLatencyMs   = 10000
	maxAcceptableCost        = 1.0
)

// GenerateTestReport computes the summary, failure list, and deterministic
// recommendations for a raw result.
func GenerateTestReport(raw *eval.RawResult) *Report {
	summary := ExtractSummaryMetrics(raw)
	failures := ExtractTestFailures(raw)

	var recs []string

	if summary.TotalTests > 0 && summary.SuccessRate < minAcceptableSuccessRate {
		recs = append(recs, fmt.Sprintf(
			"Success rate %.0f%% is below 80%%; consider revising the prompt template",
			summary.SuccessRate*100))
	}
	if summary.TotalTests > 0 && summary.AverageScore < minAcceptableAvgScore {
		recs = append(recs, fmt.Sprintf(
			"Average score %.2f is below 0.70; review the assertion criteria",
			summary.AverageScore))
	}
	if summary.AverageLatencyMs > maxAcceptableLatencyMs {
		recs = append(recs, fmt.Sprintf(
			"Average latency %.0fms exceeds 10s; optimize the template for latency",
			summary.AverageLatencyMs))
	}
	if assertionType, count := mostFrequentFailingAssertion(raw); assertionType != "" {
		recs = append(recs, fmt.Sprintf(
			"Assertion type %q failed %d time(s); address it first",
			assertionType, count))
	}
	if summary.TotalCost > maxAcceptableCost {
		recs = append(recs, fmt.Sprintf(
			"Total cost $%.2f exceeds $1.00; consider a cheaper model or a shorter prompt",
			summary.TotalCost))
	}

	return &Report{
		Summary:         summary,
		Failures:        failures,
		Recommendations: recs,
	}
}

// mostFrequentFailingAssertion counts failing assertion types across all
// entries. Ties break by first occurrence in result order.
func mostFrequentFailingAssertion(raw *eval.RawResult) (string, int) {
	if raw == nil {
		return "", 0
	}

	counts := map[string]int{}
	var order []string
	for _, r := range raw.Results {
		if r.GradingResult == nil {
			continue
		}
		for _, comp := range r.GradingResult.ComponentResults {
			if comp.Pass {
				continue
			}
			if _, seen := counts[comp.Type]; !seen {
				order = append(order, comp.Type)
			}
			counts[comp.Type]++
		}
	}

	best, bestCount := "", 0
	for _, t := range order {
		if counts[t] > bestCount {
			best, bestCount = t, counts[t]
		}
	}
	return best, bestCount
}
