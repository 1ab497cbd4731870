package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	apperrors "github.com/socialchef/recipe-gantt/internal/errors"
)

var (
	errURLRequired   = apperrors.NewValidationError("URL is required", "URL_REQUIRED", "Send a JSON body like {\"url\": \"https://...\"}.")
	errQueueDisabled = &apperrors.AppError{
		Type:          apperrors.ErrorTypeInternal,
		Message:       "Job queue is not configured",
		StatusCode:    http.StatusServiceUnavailable,
		ErrorCode:     "QUEUE_DISABLED",
		IsOperational: true,
		Recovery:      "Set REDIS_URL and run cmd/worker, or use POST /api/gantt.",
	}
)

type errorResponse struct {
	Error *apperrors.AppError `json:"error"`
}

func decodeURL(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req GanttRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, apperrors.NewValidationError("Invalid request body", "INVALID_BODY", ""))
		return "", false
	}
	url := strings.TrimSpace(req.URL)
	if url == "" {
		writeError(w, r, errURLRequired)
		return "", false
	}
	return url, true
}

// toAppError keeps AppErrors as they are and hides anything else behind a
// generic internal error.
func toAppError(err error) *apperrors.AppError {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return &apperrors.AppError{
		Type:       apperrors.ErrorTypeInternal,
		Message:    "Internal server error",
		StatusCode: http.StatusInternalServerError,
		ErrorCode:  "INTERNAL_ERROR",
		Err:        err,
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := toAppError(err)
	if appErr.StatusCode >= 500 {
		slog.ErrorContext(r.Context(), "Request failed", "path", r.URL.Path, "error", err)
	} else {
		slog.InfoContext(r.Context(), "Request rejected", "path", r.URL.Path, "code", appErr.ErrorCode)
	}
	writeJSON(w, appErr.StatusCode, errorResponse{Error: appErr})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
