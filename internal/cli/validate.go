package cli

import (
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/fpang/call-sentiment/internal/assemblyai"
	"github.com/fpang/call-sentiment/internal/auth"
	"github.com/fpang/call-sentiment/internal/jobutil"
	"github.com/fpang/call-sentiment/internal/sentiment"
)

// Exit codes returned by the terminal binary.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitConfig      = 2
	ExitTranscribe  = 3
	ExitNoSentences = 4
)

// HandleValidationError logs an auth.ValidationError with guidance and
// returns the exit code to use.
func HandleValidationError(err error) int {
	var validationErr *auth.ValidationError
	if errors.As(err, &validationErr) {
		switch validationErr.Type {
		case auth.ErrTypeNoKey:
			log.Error().Msg("No API key configured. Set ASSEMBLYAI_API_KEY or store it in ~/.call-sentiment/credentials.gpg")
		case auth.ErrTypeInvalidKey:
			log.Error().Err(err).Msg("Invalid API key. Please check your API key and try again")
		case auth.ErrTypeNetworkError:
			log.Error().Err(err).Msg("Network error. Please check your internet connection")
		case auth.ErrTypeQuotaExceeded:
			log.Error().Err(err).Msg("API quota exceeded. Please try again later or check your usage limits")
		default:
			log.Error().Err(err).Msg("API key validation failed")
		}
		return ExitConfig
	}
	log.Error().Err(err).Msg("Unexpected error during API key validation")
	return ExitConfig
}

// HandlePipelineError logs a failed analysis and returns the exit code.
func HandlePipelineError(err error) int {
	log.Error().Err(err).Msg(jobutil.Describe(err))

	var (
		aggErr     *sentiment.AggregationError
		failedErr  *assemblyai.JobFailedError
		timeoutErr *assemblyai.PollTimeoutError
	)
	switch {
	case errors.As(err, &aggErr):
		return ExitNoSentences
	case errors.As(err, &failedErr), errors.As(err, &timeoutErr):
		return ExitTranscribe
	default:
		return ExitFailure
	}
}
