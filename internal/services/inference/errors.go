package inference

import (
	"errors"
	"strings"

	apperrors "github.com/socialchef/recipe-gantt/internal/errors"
)

// ProviderError is a backend failure sorted into a coarse class.
type ProviderError struct {
	Type     string // rate_limit, unavailable, server_error, client_error, unknown
	Message  string
	Provider string
}

func (e *ProviderError) Error() string {
	return e.Message
}

var errorClasses = []struct {
	typ      string
	patterns []string
}{
	{"rate_limit", []string{"status 429", "http 429", "rate limit", "too many requests"}},
	{"unavailable", []string{
		"connection refused",
		"no such host",
		"executable file not found",
		"no such file or directory",
		"status 503",
		"loading model",
	}},
	{"server_error", []string{"status 5", "http 5", "server error", "internal error", "signal: killed"}},
	{"client_error", []string{"status 4", "http 4", "bad request", "unauthorized", "forbidden"}},
}

// ClassifyError sorts a generation failure so the fallback provider knows
// whether trying another backend could help.
func ClassifyError(err error, provider string) *ProviderError {
	if err == nil {
		return nil
	}

	msg := err.Error()
	lower := strings.ToLower(msg)

	for _, class := range errorClasses {
		for _, pattern := range class.patterns {
			if strings.Contains(lower, pattern) {
				return &ProviderError{Type: class.typ, Message: msg, Provider: provider}
			}
		}
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		switch {
		case appErr.StatusCode >= 500:
			return &ProviderError{Type: "server_error", Message: msg, Provider: provider}
		case appErr.StatusCode >= 400:
			return &ProviderError{Type: "client_error", Message: msg, Provider: provider}
		}
	}

	return &ProviderError{Type: "unknown", Message: msg, Provider: provider}
}

// IsRetryableError reports whether another backend might succeed where this
// one failed.
func IsRetryableError(err error) bool {
	providerErr := ClassifyError(err, "")
	if providerErr == nil {
		return false
	}

	switch providerErr.Type {
	case "rate_limit", "unavailable", "server_error":
		return true
	default:
		return false
	}
}
