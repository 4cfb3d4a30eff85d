package auth

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

const (
	credentialDir = ".call-sentiment"

	// AssemblyAIKeyEnv and GeminiKeyEnv name the environment variables
	// checked before any encrypted credentials file.
	AssemblyAIKeyEnv = "ASSEMBLYAI_API_KEY"
	GeminiKeyEnv     = "GEMINI_API_KEY"
)

// credentialFiles maps each key's environment variable to its GPG file
// under ~/.call-sentiment.
var credentialFiles = map[string]string{
	AssemblyAIKeyEnv: "credentials.gpg",
	GeminiKeyEnv:     "gemini.gpg",
}

// GetAPIKey retrieves the AssemblyAI API key from available sources.
// Priority order:
//  1. ASSEMBLYAI_API_KEY environment variable
//  2. GPG-encrypted file at ~/.call-sentiment/credentials.gpg
//
// Lambda deployments populate the variable from SSM first (LoadAPIKeyFromSSM).
func GetAPIKey() (string, error) {
	return getKey(AssemblyAIKeyEnv)
}

// GetGeminiKey retrieves the optional Gemini API key used for highlights,
// from GEMINI_API_KEY or ~/.call-sentiment/gemini.gpg.
func GetGeminiKey() (string, error) {
	return getKey(GeminiKeyEnv)
}

func getKey(envVar string) (string, error) {
	if key := strings.TrimSpace(os.Getenv(envVar)); key != "" {
		log.Debug().Str("source", envVar).Msg("Using API key from environment variable")
		return key, nil
	}

	key, err := getFromGPG(credentialFiles[envVar])
	if err == nil && key != "" {
		log.Debug().Str("source", envVar).Msg("Using API key from GPG encrypted file")
		return key, nil
	}

	log.Debug().Err(err).Str("source", envVar).Msg("API key not found")
	return "", &ValidationError{
		Type:    ErrTypeNoKey,
		Message: fmt.Sprintf("API key not found. Set %s or store it in ~/%s/%s", envVar, credentialDir, credentialFiles[envVar]),
		Err:     err,
	}
}

// getFromGPG decrypts an API key from the named GPG-encrypted credentials file.
func getFromGPG(file string) (string, error) {
	credPath, err := getCredentialPath(file)
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(credPath); os.IsNotExist(err) {
		return "", fmt.Errorf("GPG credentials file not found at %s", credPath)
	}

	log.Debug().Str("file", credPath).Msg("Decrypting GPG credentials")

	// Build GPG command with optional passphrase file for non-interactive use
	args := []string{"--decrypt", "--quiet"}

	passphrasePath, err := getPassphrasePath()
	if err == nil {
		fi, statErr := os.Stat(passphrasePath)
		if statErr == nil {
			// passphrase file must be owner-only
			mode := fi.Mode().Perm()
			if mode&0077 != 0 {
				log.Warn().
					Str("passphrase_file", passphrasePath).
					Str("permissions", fmt.Sprintf("%04o", mode)).
					Msg("Passphrase file has insecure permissions (should be 0600); skipping")
			} else {
				log.Debug().Str("passphrase_file", passphrasePath).Msg("Using passphrase file for GPG decryption")
				args = append(args, "--pinentry-mode", "loopback", "--passphrase-file", passphrasePath)
			}
		}
	}

	args = append(args, credPath)
	cmd := exec.Command("gpg", args...)
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("GPG decryption failed: %s", string(exitErr.Stderr))
		}
		return "", fmt.Errorf("GPG decryption failed: %w", err)
	}

	return strings.TrimSpace(string(output)), nil
}

// getCredentialPath returns the full path to a credentials file.
func getCredentialPath(file string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	return filepath.Join(home, credentialDir, file), nil
}

// getPassphrasePath returns the path to the GPG passphrase file, looking
// next to the executable first and then in the working directory.
func getPassphrasePath() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to get executable path: %w", err)
	}

	passphrasePath := filepath.Join(filepath.Dir(exe), ".gpg-passphrase")
	if _, err := os.Stat(passphrasePath); err == nil {
		return passphrasePath, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}

	return filepath.Join(cwd, ".gpg-passphrase"), nil
}
