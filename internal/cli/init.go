package cli

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/fpang/call-sentiment/internal/auth"
)

// ResolveAPIKey returns the AssemblyAI key. A non-zero exit code means no
// key was found; the reason has been logged.
func ResolveAPIKey() (string, int) {
	apiKey, err := auth.GetAPIKey()
	if err != nil {
		return "", HandleValidationError(err)
	}
	return apiKey, ExitOK
}

// CheckAPIKey verifies the key with a minimal authenticated call before any
// audio is uploaded.
func CheckAPIKey(ctx context.Context, checker auth.AuthChecker) int {
	if err := auth.ValidateAPIKey(ctx, checker); err != nil {
		return HandleValidationError(err)
	}
	log.Info().Msg("API key validation complete - ready for operations")
	return ExitOK
}
