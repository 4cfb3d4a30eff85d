package assets

import (
	"io/fs"
	"strings"
	"testing"
)

func TestRenderHighlightsPrompt(t *testing.T) {
	got := RenderHighlightsPrompt(HighlightsPromptData{
		Title:      "Q3 Earnings Call",
		Transcript: "Revenue grew 12 percent.",
		Max:        5,
	})
	for _, want := range []string{"Call: Q3 Earnings Call", "at most 5 highlights", "Revenue grew 12 percent."} {
		if !strings.Contains(got, want) {
			t.Errorf("expected prompt to contain %q, got:\n%s", want, got)
		}
	}

	noTitle := RenderHighlightsPrompt(HighlightsPromptData{Transcript: "x", Max: 3})
	if strings.Contains(noTitle, "Call:") {
		t.Errorf("expected no title line, got:\n%s", noTitle)
	}
}

func TestHighlightsSystemPrompt(t *testing.T) {
	if !strings.Contains(HighlightsSystemPrompt, "JSON array") {
		t.Error("system prompt should ask for a JSON array")
	}
}

func TestWebFS(t *testing.T) {
	data, err := fs.ReadFile(WebFS(), "index.html")
	if err != nil {
		t.Fatalf("index.html not embedded: %v", err)
	}
	if !strings.Contains(string(data), "/api/analyze") {
		t.Error("index.html should call the analyze API")
	}
}
