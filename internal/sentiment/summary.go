package sentiment

import "fmt"

// ScoreReference is the baseline the score display measures its delta
// against. It is a fixed presentation constant and is not derived from the
// data; an all-neutral call scores 100, not 50.
const ScoreReference = 50.0

// AggregationError reports input that cannot be summarized.
type AggregationError struct {
	Reason string
}

func (e *AggregationError) Error() string {
	return "aggregate sentiment: " + e.Reason
}

// Summary is the derived view over a record sequence. It is never stored;
// call Summarize again whenever the records change.
type Summary struct {
	Total   int               `json:"total"`
	Counts  map[Label]int     `json:"counts"`
	Percent map[Label]float64 `json:"percent"`
	Score   float64           `json:"score"`
}

// Summarize groups records by label and computes
//
//	score = pct(NEUTRAL) + pct(POSITIVE) - pct(NEGATIVE)
//
// where pct(label) = 100 * count(label) / total. Every label is present in
// the result; a label with no sentences counts 0. An empty sequence is an
// AggregationError because the percentages are undefined.
func Summarize(records []Record) (Summary, error) {
	if len(records) == 0 {
		return Summary{}, &AggregationError{Reason: "no sentiment records"}
	}

	counts := make(map[Label]int, len(Labels))
	for _, l := range Labels {
		counts[l] = 0
	}
	for i, r := range records {
		l, err := ParseLabel(string(r.Sentiment))
		if err != nil {
			return Summary{}, &AggregationError{Reason: fmt.Sprintf("record %d: %v", i, err)}
		}
		counts[l]++
	}

	total := len(records)
	percent := make(map[Label]float64, len(Labels))
	for _, l := range Labels {
		percent[l] = 100 * float64(counts[l]) / float64(total)
	}

	return Summary{
		Total:   total,
		Counts:  counts,
		Percent: percent,
		Score:   percent[Neutral] + percent[Positive] - percent[Negative],
	}, nil
}

// Delta returns the score relative to reference, as shown next to the score.
func (s Summary) Delta(reference float64) float64 {
	return s.Score - reference
}
