package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/sozercan/code-analyzer/apimodels"
	"github.com/sozercan/code-analyzer/internal/analyzer"
)

const (
	detailInvalidInput = "Code field is required and cannot be empty"
	detailUnavailable  = "LLM service is not available. Please check your configuration."
	detailInternal     = "Internal server error during code analysis"
)

var errTrailingData = errors.New("unexpected data after JSON object")

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, apimodels.StatusResponse{
		Message: "Code Analyzer API is running",
		Status:  "healthy",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, apimodels.HealthResponse{
		Status:       "healthy",
		LLMAvailable: s.analyzer.Available(),
		Version:      Version,
	})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}

	result, err := s.analyzer.Analyze(r.Context(), req)
	if err != nil {
		writeAnalysisError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleLegacyAnalyze(w http.ResponseWriter, r *http.Request) {
	slog.Warn("Deprecated endpoint called, use /analyze", "path", r.URL.Path, "remote_addr", r.RemoteAddr)

	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}

	result, err := s.analyzer.AnalyzeLegacy(r.Context(), req)
	if err != nil {
		writeAnalysisError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, apimodels.ErrorResponse{
		Error:  "Endpoint not found",
		Detail: "Please use /analyze endpoint for code analysis",
	})
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, apimodels.ErrorResponse{
		Detail: "Method not allowed",
	})
}

func decodeRequest(w http.ResponseWriter, r *http.Request) (apimodels.AnalysisRequest, bool) {
	defer r.Body.Close()

	var req apimodels.AnalysisRequest
	dec := json.NewDecoder(r.Body)
	err := dec.Decode(&req)
	if err == nil {
		// only whitespace may follow the object
		if _, terr := dec.Token(); terr != io.EOF {
			err = errTrailingData
			var tooLarge *http.MaxBytesError
			if errors.As(terr, &tooLarge) {
				err = terr
			}
		}
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, apimodels.ErrorResponse{
				Detail: fmt.Sprintf("Request body exceeds %d bytes", tooLarge.Limit),
			})
			return req, false
		}
		slog.Warn("Invalid analysis request", "error", err, "request_id", middleware.GetReqID(r.Context()))
		writeJSON(w, http.StatusBadRequest, apimodels.ErrorResponse{
			Detail: fmt.Sprintf("Invalid request: %v", err),
		})
		return req, false
	}
	return req, true
}

// writeAnalysisError maps analyzer failures to a status and a client-safe
// detail. The underlying cause is only logged.
func writeAnalysisError(w http.ResponseWriter, r *http.Request, err error) {
	status, detail := http.StatusInternalServerError, detailInternal
	switch {
	case errors.Is(err, analyzer.ErrInvalidInput):
		status, detail = http.StatusBadRequest, detailInvalidInput
	case errors.Is(err, analyzer.ErrServiceUnavailable):
		detail = detailUnavailable
	}

	level := slog.LevelError
	if status < http.StatusInternalServerError {
		level = slog.LevelWarn
	}
	slog.Log(r.Context(), level, "Analysis request failed",
		"category", analyzer.Category(err),
		"status", status,
		"error", err,
		"request_id", middleware.GetReqID(r.Context()),
	)
	writeJSON(w, status, apimodels.ErrorResponse{Detail: detail})
}

// recoverer turns a panic into the generic 500 body and logs the cause.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rvr := recover()
			if rvr == nil {
				return
			}
			if rvr == http.ErrAbortHandler {
				panic(rvr)
			}

			slog.Error("Internal server error",
				"category", "internal",
				"panic", rvr,
				"method", r.Method,
				"path", r.URL.Path,
				"request_id", middleware.GetReqID(r.Context()),
				"stack", string(debug.Stack()),
			)
			writeJSON(w, http.StatusInternalServerError, apimodels.ErrorResponse{
				Error:  "Internal server error",
				Detail: "Please try again later",
			})
		}()

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
