// Package chat asks Gemini for a short list of investor-relevant
// highlights from a call transcript. The feature is optional; callers
// treat any failure as "no highlights".
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/fpang/call-sentiment/internal/assets"
	"github.com/fpang/call-sentiment/internal/jsonutil"
	"github.com/fpang/call-sentiment/internal/metrics"
)

const (
	// DefaultMaxHighlights is how many highlights are requested.
	DefaultMaxHighlights = 5

	// maxTranscriptChars keeps very long calls inside a single request.
	maxTranscriptChars = 200_000
)

// Generator is the subset of *genai.Models used here.
type Generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// NewGeminiClient creates a Gemini API client authenticated with apiKey.
func NewGeminiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create Gemini client: %w", err)
	}
	return client, nil
}

// Highlighter extracts highlights with a Gemini model.
type Highlighter struct {
	gen   Generator
	model string
	max   int
}

// NewHighlighter creates a Highlighter. An empty model selects
// DefaultModelName; max <= 0 selects DefaultMaxHighlights.
func NewHighlighter(gen Generator, model string, max int) *Highlighter {
	if max <= 0 {
		max = DefaultMaxHighlights
	}
	return &Highlighter{gen: gen, model: ResolveModel(model), max: max}
}

// Highlights returns up to h.max short statements from transcript.
func (h *Highlighter) Highlights(ctx context.Context, title, transcript string) ([]string, error) {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return nil, errors.New("empty transcript")
	}
	if len(transcript) > maxTranscriptChars {
		log.Debug().Int("length", len(transcript)).Int("limit", maxTranscriptChars).Msg("Truncating transcript for highlights")
		transcript = transcript[:maxTranscriptChars]
	}

	prompt := assets.RenderHighlightsPrompt(assets.HighlightsPromptData{
		Title:      title,
		Transcript: transcript,
		Max:        h.max,
	})
	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: assets.HighlightsSystemPrompt}},
		},
		ResponseMIMEType: "application/json",
	}
	contents := []*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: prompt}}}}

	log.Debug().
		Str("model", h.model).
		Int("prompt_length", len(prompt)).
		Msg("Starting Gemini API call for highlights")

	callStart := time.Now()
	resp, err := h.gen.GenerateContent(ctx, h.model, contents, config)
	duration := time.Since(callStart)

	metrics.New().
		Dimension("Stage", "highlights").
		Duration("GeminiMs", duration).
		Property("model", h.model).
		Flush()

	if err != nil {
		log.Error().Err(err).Dur("duration", duration).Msg("Failed to generate highlights from Gemini")
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}
	if resp == nil {
		return nil, fmt.Errorf("received empty response from Gemini API")
	}

	responseText := resp.Text()
	log.Debug().
		Int("response_length", len(responseText)).
		Dur("duration", duration).
		Msg("Gemini API response received for highlights")

	raw, err := jsonutil.ParseJSON[[]string](responseText)
	if err != nil {
		return nil, fmt.Errorf("failed to parse highlights response: %w", err)
	}

	highlights := make([]string, 0, h.max)
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		highlights = append(highlights, s)
		if len(highlights) == h.max {
			break
		}
	}

	log.Info().Int("count", len(highlights)).Dur("duration", duration).Msg("Highlights generated")
	return highlights, nil
}
