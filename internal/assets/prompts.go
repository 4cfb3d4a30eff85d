package assets

import (
	"bytes"
	_ "embed"
	"text/template"
)

// HighlightsSystemPrompt frames the model as an earnings-call analyst.
//
//go:embed prompts/highlights-system.txt
var HighlightsSystemPrompt string

//go:embed prompts/highlights.tmpl
var highlightsTemplate string

// template.Must panics on malformed templates, which surfaces at init.
var highlightsTmpl = template.Must(template.New("highlights").Parse(highlightsTemplate))

// HighlightsPromptData holds the dynamic data injected into the highlights prompt.
type HighlightsPromptData struct {
	Title      string
	Transcript string
	Max        int
}

// RenderHighlightsPrompt renders the user prompt asking for up to data.Max
// highlights of the transcript.
func RenderHighlightsPrompt(data HighlightsPromptData) string {
	var buf bytes.Buffer
	// Execution errors are not expected with this template; fall back to
	// the bare transcript so the call still has content.
	if err := highlightsTmpl.Execute(&buf, data); err != nil {
		return data.Transcript
	}
	return buf.String()
}
