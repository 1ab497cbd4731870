package errors

import (
	"fmt"
	"net/http"
)

// ErrorType defines the category of the error
type ErrorType string

const (
	ErrorTypeValidation      ErrorType = "VALIDATION_ERROR"
	ErrorTypeUnsupportedSite ErrorType = "UNSUPPORTED_SITE_ERROR"
	ErrorTypeScraper         ErrorType = "SCRAPER_ERROR"
	ErrorTypeGeneration      ErrorType = "GENERATION_ERROR"
	ErrorTypeParse           ErrorType = "PARSE_ERROR"
	ErrorTypeModel           ErrorType = "MODEL_ERROR"
	ErrorTypeStorage         ErrorType = "STORAGE_ERROR"
	ErrorTypeInternal        ErrorType = "INTERNAL_ERROR"
)

// SupportedSitesURL lists the recipe sites known to publish structured recipe data.
const SupportedSitesURL = "https://github.com/hhursev/recipe-scrapers?tab=readme-ov-file#scrapers-available-for"

// AppError represents a structured error for the application
type AppError struct {
	Type          ErrorType `json:"type"`
	Message       string    `json:"message"`
	StatusCode    int       `json:"statusCode"`
	ErrorCode     string    `json:"errorCode"`
	IsOperational bool      `json:"isOperational"`
	Recovery      string    `json:"recoverySuggestion,omitempty"`
	Err           error     `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap exposes the underlying cause to errors.Is and errors.As
func (e *AppError) Unwrap() error {
	return e.Err
}

// Code returns the application-specific error code
func (e *AppError) Code() string {
	return e.ErrorCode
}

// RecoverySuggestion returns the suggestion on how to recover from the error
func (e *AppError) RecoverySuggestion() string {
	return e.Recovery
}

// IsRetryable determines if the operation that caused the error should be retried
func (e *AppError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeScraper, ErrorTypeGeneration, ErrorTypeModel:
		return e.StatusCode >= 500
	default:
		return false
	}
}

// NewValidationError creates a new validation error (400)
func NewValidationError(message string, errorCode string, suggestion string) *AppError {
	return &AppError{
		Type:          ErrorTypeValidation,
		Message:       message,
		StatusCode:    http.StatusBadRequest,
		ErrorCode:     errorCode,
		IsOperational: true,
		Recovery:      suggestion,
	}
}

// NewUnsupportedSiteError reports a recipe page the scraper cannot read (422)
func NewUnsupportedSiteError(url string, err error) *AppError {
	return &AppError{
		Type:          ErrorTypeUnsupportedSite,
		Message:       "Invalid URL. Most likely this recipe site is not yet supported",
		StatusCode:    http.StatusUnprocessableEntity,
		ErrorCode:     "UNSUPPORTED_SITE",
		IsOperational: true,
		Recovery:      fmt.Sprintf("Please see %s for a list of supported sites.", SupportedSitesURL),
		Err:           err,
	}
}

// NewScraperError creates a new scraper error (502)
func NewScraperError(message string, errorCode string, err error) *AppError {
	return &AppError{
		Type:          ErrorTypeScraper,
		Message:       message,
		StatusCode:    http.StatusBadGateway,
		ErrorCode:     errorCode,
		IsOperational: true,
		Recovery:      "Verify the URL is accessible and try again later.",
		Err:           err,
	}
}

// NewGenerationError creates a new generation error (502)
func NewGenerationError(message string, errorCode string, err error) *AppError {
	return &AppError{
		Type:          ErrorTypeGeneration,
		Message:       message,
		StatusCode:    http.StatusBadGateway,
		ErrorCode:     errorCode,
		IsOperational: true,
		Recovery:      "Check that the model runtime is reachable and the model artifact is valid.",
		Err:           err,
	}
}

// NewParseError wraps a malformed model output (502)
func NewParseError(message string, errorCode string, err error) *AppError {
	return &AppError{
		Type:          ErrorTypeParse,
		Message:       message,
		StatusCode:    http.StatusBadGateway,
		ErrorCode:     errorCode,
		IsOperational: true,
		Recovery:      "The raw model output was saved; inspect it or run the generation again.",
		Err:           err,
	}
}

// NewModelError reports a missing or undownloadable model artifact (500)
func NewModelError(message string, errorCode string, err error) *AppError {
	return &AppError{
		Type:          ErrorTypeModel,
		Message:       message,
		StatusCode:    http.StatusInternalServerError,
		ErrorCode:     errorCode,
		IsOperational: false,
		Recovery:      "Pass -model with a local GGUF file or check network access to huggingface.co.",
		Err:           err,
	}
}

// NewStorageError reports a failed output write (500)
func NewStorageError(message string, errorCode string, err error) *AppError {
	return &AppError{
		Type:          ErrorTypeStorage,
		Message:       message,
		StatusCode:    http.StatusInternalServerError,
		ErrorCode:     errorCode,
		IsOperational: false,
		Err:           err,
	}
}
