package apimodels

type AnalysisRequest struct {
	// Code is the source snippet to review
	Code string `json:"code"`
}
