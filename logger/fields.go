package logger

// Standard field names for consistent structured logging across PromptPulse.
// Use these constants instead of raw strings so log queries stay stable.
const (
	// Identity and context
	FieldJobID    = "job_id"
	FieldPromptID = "prompt_id"
	FieldVersion  = "version"
	FieldTestCase = "test_case_id"

	// Components
	FieldComponent = "component"

	// Operations
	FieldOperation   = "operation"
	FieldEnvironment = "environment"
	FieldProvider    = "provider"
	FieldModel       = "model"

	// Timing
	FieldDurationMS = "duration_ms"
	FieldLatencyMS  = "latency_ms"

	// Errors
	FieldError = "error"

	// Counts and costs
	FieldTotalTests     = "total_tests"
	FieldCompletedTests = "completed_tests"
	FieldFailedTests    = "failed_tests"
	FieldCost           = "cost"
	FieldTokens         = "tokens"
)
