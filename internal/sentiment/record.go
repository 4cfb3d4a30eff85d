// Package sentiment holds the per-sentence sentiment records returned by the
// transcription service and the pure aggregation that turns them into a
// SentimentSummary (label counts, percentages and a single scalar score).
package sentiment

import (
	"fmt"
	"strings"
)

// Label is the sentiment classification assigned to one sentence.
type Label string

const (
	Positive Label = "POSITIVE"
	Negative Label = "NEGATIVE"
	Neutral  Label = "NEUTRAL"
)

// Labels lists every label in display order (matches the bar chart order).
var Labels = []Label{Negative, Neutral, Positive}

// ParseLabel normalizes a remote label string. Unknown labels are rejected.
func ParseLabel(s string) (Label, error) {
	switch l := Label(strings.ToUpper(strings.TrimSpace(s))); l {
	case Positive, Negative, Neutral:
		return l, nil
	default:
		return "", fmt.Errorf("unknown sentiment label %q", s)
	}
}

// Valid reports whether l is one of the three known labels.
func (l Label) Valid() bool {
	_, err := ParseLabel(string(l))
	return err == nil
}

// Record is one analyzed sentence. Start and End are offsets in milliseconds
// from the start of the audio; Speaker is empty unless diarization was on.
type Record struct {
	Text       string  `json:"text" dynamodbav:"text"`
	Sentiment  Label   `json:"sentiment" dynamodbav:"sentiment"`
	Confidence float64 `json:"confidence" dynamodbav:"confidence"`
	Start      int64   `json:"start,omitempty" dynamodbav:"start,omitempty"`
	End        int64   `json:"end,omitempty" dynamodbav:"end,omitempty"`
	Speaker    string  `json:"speaker,omitempty" dynamodbav:"speaker,omitempty"`
}

// Validate checks the label and the confidence range.
func (r Record) Validate() error {
	if _, err := ParseLabel(string(r.Sentiment)); err != nil {
		return err
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("confidence %v outside [0,1]", r.Confidence)
	}
	return nil
}

// ValidateAll validates every record and normalizes label casing in place.
// The returned error names the first offending index.
func ValidateAll(records []Record) error {
	for i := range records {
		l, err := ParseLabel(string(records[i].Sentiment))
		if err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		records[i].Sentiment = l
		if err := records[i].Validate(); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}
	return nil
}
