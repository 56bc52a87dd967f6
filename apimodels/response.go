package apimodels

// AnalysisResult is the assessment returned for a code snippet. Every field
// is always populated.
type AnalysisResult struct {
	// Bugs, logical and syntax issues found, or a statement that none were
	Errors string `json:"Errors"`

	// The corrected or optimized code
	Code string `json:"Code"`

	// Purpose, trade-offs and other commentary
	Details string `json:"Details"`
}

// AsMap re-shapes the result for clients of the legacy endpoint.
func (r AnalysisResult) AsMap() map[string]any {
	return map[string]any{
		"Errors":  r.Errors,
		"Code":    r.Code,
		"Details": r.Details,
	}
}

type StatusResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

type HealthResponse struct {
	Status       string `json:"status"`
	LLMAvailable bool   `json:"llm_available"`
	Version      string `json:"version"`
}

type ErrorResponse struct {
	Error  string `json:"error,omitempty"`
	Detail string `json:"detail"`
}
