// Package report turns a completed transcript into the view data the
// terminal and browser surfaces render: label bars, the score against its
// reference, and one point per sentence.
package report

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/fpang/call-sentiment/internal/sentiment"
)

// Colors maps each label to its chart colour.
var Colors = map[sentiment.Label]string{
	sentiment.Negative: "firebrick",
	sentiment.Neutral:  "navajowhite",
	sentiment.Positive: "darkgreen",
}

// maxLowlights is how many of the most confidently negative sentences are listed.
const maxLowlights = 3

// Bar is one column of the label bar chart.
type Bar struct {
	Label   sentiment.Label `json:"label"`
	Count   int             `json:"count"`
	Percent float64         `json:"percent"`
	Color   string          `json:"color"`
}

// Point is one sentence on the confidence scatter plot.
type Point struct {
	Index      int             `json:"index"`
	Label      sentiment.Label `json:"label"`
	Confidence float64         `json:"confidence"`
	Text       string          `json:"text"`
	StartMs    int64           `json:"startMs"`
	Color      string          `json:"color"`
}

// Report is everything a surface needs to display one analysis.
type Report struct {
	ID            string               `json:"id"`
	VideoURL      string               `json:"videoUrl"`
	Title         string               `json:"title"`
	JobID         string               `json:"jobId"`
	Cached        bool                 `json:"cached"`
	Transcript    string               `json:"transcript"`
	AudioDuration float64              `json:"audioDuration,omitempty"`
	SentenceCount int                  `json:"sentenceCount"`
	Summary       sentiment.Summary    `json:"summary"`
	Score         float64              `json:"score"`
	Reference     float64              `json:"reference"`
	Delta         float64              `json:"delta"`
	Bars          []Bar                `json:"bars"`
	Points        []Point              `json:"points"`
	Lowlights     []Point              `json:"lowlights"`
	Agreement     *sentiment.Agreement `json:"agreement,omitempty"`
	Highlights    []string             `json:"highlights,omitempty"`
	GeneratedAt   time.Time            `json:"generatedAt"`
}

// Input is the data Build needs. Records must already be validated.
type Input struct {
	VideoURL      string
	Title         string
	JobID         string
	Cached        bool
	Transcript    string
	AudioDuration float64
	Records       []sentiment.Record
	Reference     float64
	CrossCheck    bool
	Highlights    []string
}

// Build aggregates the records and assembles the view. It fails only when
// aggregation fails (no records); no partial report is returned.
func Build(in Input) (*Report, error) {
	summary, err := sentiment.Summarize(in.Records)
	if err != nil {
		return nil, err
	}

	title := in.Title
	if title == "" {
		title = in.VideoURL
	}

	r := &Report{
		ID:            uuid.NewString(),
		VideoURL:      in.VideoURL,
		Title:         title,
		JobID:         in.JobID,
		Cached:        in.Cached,
		Transcript:    in.Transcript,
		AudioDuration: in.AudioDuration,
		SentenceCount: summary.Total,
		Summary:       summary,
		Score:         summary.Score,
		Reference:     in.Reference,
		Delta:         summary.Delta(in.Reference),
		Highlights:    in.Highlights,
		GeneratedAt:   time.Now().UTC(),
	}

	for _, l := range sentiment.Labels {
		r.Bars = append(r.Bars, Bar{
			Label:   l,
			Count:   summary.Counts[l],
			Percent: summary.Percent[l],
			Color:   Colors[l],
		})
	}

	r.Points = make([]Point, len(in.Records))
	for i, rec := range in.Records {
		r.Points[i] = Point{
			Index:      i,
			Label:      rec.Sentiment,
			Confidence: rec.Confidence,
			Text:       rec.Text,
			StartMs:    rec.Start,
			Color:      Colors[rec.Sentiment],
		}
	}
	r.Lowlights = lowlights(r.Points, maxLowlights)

	if in.CrossCheck {
		a := sentiment.CrossCheck(in.Records)
		r.Agreement = &a
	}
	return r, nil
}

// lowlights returns up to n negative points, most confident first and in
// speech order on ties.
func lowlights(points []Point, n int) []Point {
	var neg []Point
	for _, p := range points {
		if p.Label == sentiment.Negative {
			neg = append(neg, p)
		}
	}
	sort.SliceStable(neg, func(i, j int) bool {
		return neg[i].Confidence > neg[j].Confidence
	})
	if len(neg) > n {
		neg = neg[:n]
	}
	return neg
}
