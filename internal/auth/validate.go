package auth

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/call-sentiment/internal/assemblyai"
	"github.com/fpang/call-sentiment/internal/metrics"
)

// ValidationError represents a specific type of API key validation failure.
type ValidationError struct {
	Type    ValidationErrorType
	Message string
	Err     error
}

// ValidationErrorType categorizes validation failures.
type ValidationErrorType int

const (
	// ErrTypeNoKey indicates no API key was found.
	ErrTypeNoKey ValidationErrorType = iota
	// ErrTypeInvalidKey indicates the API key is invalid or revoked.
	ErrTypeInvalidKey
	// ErrTypeNetworkError indicates a network connectivity issue.
	ErrTypeNetworkError
	// ErrTypeQuotaExceeded indicates the API quota has been exceeded.
	ErrTypeQuotaExceeded
	// ErrTypeUnknown indicates an unknown error occurred.
	ErrTypeUnknown
)

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// AuthChecker makes a minimal authenticated call. *assemblyai.Client
// implements it.
type AuthChecker interface {
	CheckAuth(ctx context.Context) error
}

// ValidateAPIKey verifies the key with a minimal API call. It returns nil
// if the key is valid, or a *ValidationError whose Type tells the caller
// what went wrong.
func ValidateAPIKey(ctx context.Context, checker AuthChecker) error {
	log.Debug().Msg("Validating API key with AssemblyAI")

	start := time.Now()
	err := checker.CheckAuth(ctx)
	elapsed := time.Since(start)

	result := "success"
	var valErr *ValidationError
	if err != nil {
		valErr = classifyError(err)
		switch valErr.Type {
		case ErrTypeInvalidKey:
			result = "invalid"
		case ErrTypeNetworkError:
			result = "network_error"
		case ErrTypeQuotaExceeded:
			result = "quota"
		default:
			result = "unknown"
		}
	}

	metrics.New().
		Dimension("Result", result).
		Duration("ApiKeyValidationMs", elapsed).
		Count("ApiKeyValidationResult").
		Flush()

	log.Debug().
		Str("result", result).
		Dur("duration", elapsed).
		Msg("API key validation result")

	if valErr != nil {
		return valErr
	}
	log.Info().Msg("API key validated successfully")
	return nil
}

// classifyError analyzes an error and returns a ValidationError with the appropriate type.
func classifyError(err error) *ValidationError {
	var respErr *assemblyai.ResponseError
	if errors.As(err, &respErr) {
		return classifyStatus(respErr.StatusCode, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		log.Error().Err(err).Msg("Network error during API validation")
		return &ValidationError{
			Type:    ErrTypeNetworkError,
			Message: "Network error - check your internet connection",
			Err:     err,
		}
	}

	errLower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errLower, "connection") ||
		strings.Contains(errLower, "dial") ||
		strings.Contains(errLower, "no such host") ||
		strings.Contains(errLower, "unreachable"):
		log.Error().Err(err).Msg("Network error during API validation")
		return &ValidationError{
			Type:    ErrTypeNetworkError,
			Message: "Network error - check your internet connection",
			Err:     err,
		}
	default:
		log.Error().Err(err).Msg("Unknown error during API validation")
		return &ValidationError{
			Type:    ErrTypeUnknown,
			Message: "Failed to validate API key",
			Err:     err,
		}
	}
}

// classifyStatus categorizes a non-success API response.
func classifyStatus(code int, err error) *ValidationError {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		log.Error().Int("code", code).Msg("Authentication failed - invalid API key")
		return &ValidationError{
			Type:    ErrTypeInvalidKey,
			Message: "API key is invalid, expired, or lacks permissions",
			Err:     err,
		}
	case http.StatusTooManyRequests, http.StatusPaymentRequired:
		log.Error().Int("code", code).Msg("Rate limit or account quota exceeded")
		return &ValidationError{
			Type:    ErrTypeQuotaExceeded,
			Message: "API rate limit or account balance exceeded - try again later",
			Err:     err,
		}
	default:
		if code >= 500 {
			log.Error().Int("code", code).Msg("AssemblyAI server error")
			return &ValidationError{
				Type:    ErrTypeNetworkError,
				Message: "AssemblyAI service unavailable - try again later",
				Err:     err,
			}
		}
		log.Error().Int("code", code).Msg("Unexpected API error")
		return &ValidationError{
			Type:    ErrTypeUnknown,
			Message: "Failed to validate API key",
			Err:     err,
		}
	}
}
