package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"realtime-collab/internal/execute"
	"realtime-collab/pkg/metrics"
)

// Executor runs code on the execution service
type Executor interface {
	Execute(ctx context.Context, req execute.Request) (execute.Result, error)
}

type CompileAPI struct {
	Exec Executor
	Log  *slog.Logger
}

type compileReq struct {
	Code     string `json:"code" validate:"required"`
	Language string `json:"language" validate:"required"`
}

type compileErr struct {
	Error  string `json:"error"`
	Output string `json:"output"`
}

// Compile forwards code to the execution service and relays its verdict
func (a *CompileAPI) Compile(w http.ResponseWriter, r *http.Request) {
	var req compileReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || validate.Struct(req) != nil {
		writeJSON(w, http.StatusBadRequest, compileErr{
			Error:  "Code and language are required",
			Output: "Error: Please provide both code and language",
		})
		return
	}

	res, err := a.Exec.Execute(r.Context(), execute.Request{Code: req.Code, Language: req.Language})
	if err != nil {
		status, body := compileFailure(req.Language, err)
		if status >= 500 {
			a.Log.Error("compile.failed", "language", req.Language, "err", err)
		}
		metrics.Compiles.WithLabelValues(languageLabel(req.Language), "error").Inc()
		writeJSON(w, status, body)
		return
	}
	metrics.Compiles.WithLabelValues(languageLabel(req.Language), "ok").Inc()
	writeJSON(w, http.StatusOK, res)
}

// Languages lists what Compile accepts
func (a *CompileAPI) Languages(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"languages": execute.Languages()})
}

// languageLabel keeps the metric label set bounded to known languages
func languageLabel(language string) string {
	if execute.Supported(language) {
		return language
	}
	return "unsupported"
}

// compileFailure maps an execution error to a status code and client body
func compileFailure(language string, err error) (int, compileErr) {
	var upstream *execute.UpstreamError
	switch {
	case errors.Is(err, execute.ErrUnsupportedLanguage):
		return http.StatusBadRequest, compileErr{
			Error:  fmt.Sprintf("Unsupported language: %s", language),
			Output: fmt.Sprintf("Error: Language '%s' is not supported", language),
		}
	case errors.Is(err, execute.ErrNotConfigured):
		return http.StatusInternalServerError, compileErr{
			Error:  "Code execution service not configured",
			Output: "Error: Code execution service is not configured. Set JDOODLE_CLIENT_ID and JDOODLE_CLIENT_SECRET.",
		}
	case errors.Is(err, execute.ErrTimeout):
		return http.StatusInternalServerError, compileErr{
			Error:  "Request timeout",
			Output: "Error: Code execution timed out. Please try again with a simpler program.",
		}
	case errors.As(err, &upstream):
		out := upstream.Output
		if out == "" {
			out = "Error: " + upstream.Message
		}
		return upstream.Status, compileErr{Error: upstream.Message, Output: out}
	}
	return http.StatusInternalServerError, compileErr{
		Error:  "Failed to compile code",
		Output: "Error: Failed to connect to code execution service",
	}
}
