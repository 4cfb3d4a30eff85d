package sentiment

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func recs(labels ...Label) []Record {
	out := make([]Record, len(labels))
	for i, l := range labels {
		out[i] = Record{Text: "sentence", Sentiment: l, Confidence: 0.9}
	}
	return out
}

func TestSummarize_WorkedExample(t *testing.T) {
	s, err := Summarize(recs(Positive, Positive, Negative, Neutral))
	require.NoError(t, err)

	require.Equal(t, 4, s.Total)
	require.Equal(t, 2, s.Counts[Positive])
	require.Equal(t, 1, s.Counts[Negative])
	require.Equal(t, 1, s.Counts[Neutral])
	require.InDelta(t, 50.0, s.Percent[Positive], 1e-9)
	require.InDelta(t, 25.0, s.Percent[Negative], 1e-9)
	require.InDelta(t, 25.0, s.Percent[Neutral], 1e-9)
	require.InDelta(t, 50.0, s.Score, 1e-9)
}

func TestSummarize_CountsSumToTotal(t *testing.T) {
	cases := [][]Label{
		{Positive, Negative, Neutral},
		{Positive, Positive, Positive, Negative, Neutral, Neutral},
		{Neutral, Negative, Negative, Negative, Positive, Neutral, Positive},
	}
	for _, labels := range cases {
		s, err := Summarize(recs(labels...))
		require.NoError(t, err)

		sum := 0
		for _, c := range s.Counts {
			sum += c
		}
		require.Equal(t, len(labels), sum)
		require.Equal(t, len(labels), s.Total)
	}
}

func TestSummarize_MissingLabelCountsZero(t *testing.T) {
	s, err := Summarize(recs(Positive, Neutral, Positive))
	require.NoError(t, err)

	count, ok := s.Counts[Negative]
	require.True(t, ok, "missing label must still be present in counts")
	require.Zero(t, count)
	require.Zero(t, s.Percent[Negative])
	require.InDelta(t, 100.0, s.Score, 1e-9)
}

func TestSummarize_OnlyNegative(t *testing.T) {
	s, err := Summarize(recs(Negative, Negative))
	require.NoError(t, err)
	require.InDelta(t, -100.0, s.Score, 1e-9)
	require.Zero(t, s.Counts[Positive])
	require.Zero(t, s.Counts[Neutral])
}

func TestSummarize_AllNeutralScoresHundred(t *testing.T) {
	for _, n := range []int{1, 2, 7, 50} {
		labels := make([]Label, n)
		for i := range labels {
			labels[i] = Neutral
		}
		s, err := Summarize(recs(labels...))
		require.NoError(t, err)
		require.InDelta(t, 100.0, s.Score, 1e-9, "n=%d", n)
	}
}

func TestSummarize_OrderIndependent(t *testing.T) {
	base := recs(Positive, Negative, Neutral, Positive, Negative, Negative, Neutral)
	want, err := Summarize(base)
	require.NoError(t, err)

	reversed := make([]Record, len(base))
	for i, r := range base {
		reversed[len(base)-1-i] = r
	}
	rotated := append(append([]Record{}, base[3:]...), base[:3]...)

	for _, perm := range [][]Record{reversed, rotated} {
		got, err := Summarize(perm)
		require.NoError(t, err)
		require.Equal(t, want.Score, got.Score)
		require.Equal(t, want.Counts, got.Counts)
	}
}

func TestSummarize_EmptyIsAggregationError(t *testing.T) {
	_, err := Summarize(nil)
	var aggErr *AggregationError
	require.ErrorAs(t, err, &aggErr)
}

func TestSummarize_UnknownLabel(t *testing.T) {
	_, err := Summarize([]Record{{Text: "x", Sentiment: "MIXED", Confidence: 0.5}})
	var aggErr *AggregationError
	require.ErrorAs(t, err, &aggErr)
}

func TestSummary_Delta(t *testing.T) {
	s, err := Summarize(recs(Positive, Positive, Negative, Neutral))
	require.NoError(t, err)
	require.InDelta(t, 0.0, s.Delta(ScoreReference), 1e-9)
	require.InDelta(t, 50.0, s.Delta(0), 1e-9)
}
