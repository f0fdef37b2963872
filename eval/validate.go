package eval

import "encoding/json"

// ValidateRawResult reports whether candidate has the structural shape of a
// RawResult: a results array and numeric summary.numTests and
// summary.stats.{successes,failures}. It never returns an error; malformed
// input is simply untrusted.
func ValidateRawResult(candidate []byte) bool {
	// float64, not json.Number: the decoder accepts JSON strings like "3"
	// into json.Number, which would let quoted counts through.
	var probe struct {
		Results *json.RawMessage `json:"results"`
		Summary *struct {
			NumTests *float64 `json:"numTests"`
			Stats    *struct {
				Successes *float64 `json:"successes"`
				Failures  *float64 `json:"failures"`
			} `json:"stats"`
		} `json:"summary"`
	}
	if err := json.Unmarshal(candidate, &probe); err != nil {
		return false
	}
	if probe.Results == nil || !isJSONArray(*probe.Results) {
		return false
	}
	if probe.Summary == nil || probe.Summary.NumTests == nil {
		return false
	}
	if probe.Summary.Stats == nil || probe.Summary.Stats.Successes == nil || probe.Summary.Stats.Failures == nil {
		return false
	}
	return true
}

func isJSONArray(raw json.RawMessage) bool {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		case '[':
			return true
		default:
			return false
		}
	}
	return false
}
