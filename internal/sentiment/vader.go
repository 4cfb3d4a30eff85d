package sentiment

import (
	"sync"

	"github.com/jonreiter/govader"
)

// VADER compound thresholds for mapping a local score onto a Label.
const (
	vaderPositiveThreshold = 0.20
	vaderNegativeThreshold = -0.20
)

var (
	analyzerOnce sync.Once
	vader        *govader.SentimentIntensityAnalyzer
)

// analyzer builds the VADER lexicon on first use.
func analyzer() *govader.SentimentIntensityAnalyzer {
	analyzerOnce.Do(func() { vader = govader.NewSentimentIntensityAnalyzer() })
	return vader
}

// LocalLabel scores text with VADER and maps the compound score to a Label.
func LocalLabel(text string) (float64, Label) {
	score := analyzer().PolarityScores(text).Compound

	switch {
	case score >= vaderPositiveThreshold:
		return score, Positive
	case score <= vaderNegativeThreshold:
		return score, Negative
	default:
		return score, Neutral
	}
}

// Agreement is how often the local VADER label matched the remote label.
type Agreement struct {
	Compared int     `json:"compared"`
	Agreed   int     `json:"agreed"`
	Rate     float64 `json:"rate"`
}

// CrossCheck re-labels every record locally and compares against the remote
// label. Records with empty text are skipped. It is display-only; the
// remote label always drives the Summary.
func CrossCheck(records []Record) Agreement {
	var a Agreement
	for _, r := range records {
		if r.Text == "" {
			continue
		}
		a.Compared++
		if _, local := LocalLabel(r.Text); local == r.Sentiment {
			a.Agreed++
		}
	}
	if a.Compared > 0 {
		a.Rate = float64(a.Agreed) / float64(a.Compared)
	}
	return a
}
