package chat

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/fpang/call-sentiment/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.SetOutput(io.Discard)
	os.Exit(m.Run())
}

type fakeGenerator struct {
	text   string
	err    error
	model  string
	prompt string
	config *genai.GenerateContentConfig
}

func (f *fakeGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.config = config
	f.prompt = contents[0].Parts[0].Text
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Role: "model", Parts: []*genai.Part{{Text: f.text}}},
		}},
	}, nil
}

func TestHighlights(t *testing.T) {
	gen := &fakeGenerator{text: "```json\n[\"Revenue up 12%\", \"  \", \"Guidance raised to $4B\"]\n```"}
	h := NewHighlighter(gen, "", 5)

	got, err := h.Highlights(context.Background(), "Q3 Call", "Revenue was up 12%. We raised guidance to $4B.")
	require.NoError(t, err)
	require.Equal(t, []string{"Revenue up 12%", "Guidance raised to $4B"}, got)
	require.Equal(t, DefaultModelName, gen.model)
	require.Contains(t, gen.prompt, "Call: Q3 Call")
	require.Contains(t, gen.prompt, "We raised guidance")
	require.Equal(t, "application/json", gen.config.ResponseMIMEType)
	require.NotNil(t, gen.config.SystemInstruction)
}

func TestHighlights_CapsAtMax(t *testing.T) {
	gen := &fakeGenerator{text: `["a","b","c","d"]`}
	h := NewHighlighter(gen, ModelGemini25Flash, 2)

	got, err := h.Highlights(context.Background(), "", "some transcript")
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, got)
	require.Equal(t, ModelGemini25Flash, gen.model)
	require.True(t, strings.Contains(gen.prompt, "at most 2 highlights"))
}

func TestHighlights_Errors(t *testing.T) {
	h := NewHighlighter(&fakeGenerator{err: errors.New("quota")}, "", 0)
	_, err := h.Highlights(context.Background(), "", "text")
	require.Error(t, err)

	h = NewHighlighter(&fakeGenerator{text: "I cannot help with that."}, "", 0)
	_, err = h.Highlights(context.Background(), "", "text")
	require.Error(t, err)

	_, err = h.Highlights(context.Background(), "", "   ")
	require.Error(t, err)
}

func TestResolveModel(t *testing.T) {
	require.Equal(t, DefaultModelName, ResolveModel(""))
	require.Equal(t, "gemini-2.5-flash-lite", ResolveModel("gemini-2.5-flash-lite"))
}
