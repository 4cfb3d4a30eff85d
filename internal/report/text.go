package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"
)

// WriteText renders r as plain-text tables for a terminal.
func WriteText(w io.Writer, r *Report) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "%s\n", r.Title)
	if r.Title != r.VideoURL {
		fmt.Fprintf(tw, "%s\n", r.VideoURL)
	}
	source := "job " + r.JobID
	if r.Cached {
		source += " (cached)"
	}
	fmt.Fprintf(tw, "%s\n", source)
	if r.AudioDuration > 0 {
		fmt.Fprintf(tw, "Audio:\t%s\n", formatAudio(r.AudioDuration))
	}
	fmt.Fprintf(tw, "Sentences:\t%d\n\n", r.SentenceCount)

	fmt.Fprintln(tw, "SENTIMENT\tCOUNT\tPERCENT\t")
	for _, b := range r.Bars {
		fmt.Fprintf(tw, "%s\t%d\t%.1f%%\t%s\n", b.Label, b.Count, b.Percent, bar(b.Percent))
	}
	fmt.Fprintln(tw)

	fmt.Fprintf(tw, "Score:\t%.1f\t(%+.1f vs %.0f)\n", r.Score, r.Delta, r.Reference)
	if r.Agreement != nil && r.Agreement.Compared > 0 {
		fmt.Fprintf(tw, "Local agreement:\t%.0f%%\t(%d of %d sentences)\n",
			r.Agreement.Rate*100, r.Agreement.Agreed, r.Agreement.Compared)
	}

	if len(r.Lowlights) > 0 {
		fmt.Fprintln(tw, "\nMost negative:")
		for _, p := range r.Lowlights {
			fmt.Fprintf(tw, "  #%d\t%.2f\t%s\n", p.Index+1, p.Confidence, clip(p.Text, 100))
		}
	}

	if len(r.Highlights) > 0 {
		fmt.Fprintln(tw, "\nHighlights:")
		for _, h := range r.Highlights {
			fmt.Fprintf(tw, "  - %s\n", h)
		}
	}

	return tw.Flush()
}

// bar draws a 0-100 percentage as up to 25 blocks.
func bar(pct float64) string {
	n := int(pct/4 + 0.5)
	if n < 0 {
		n = 0
	}
	return strings.Repeat("#", n)
}

func formatAudio(seconds float64) string {
	return (time.Duration(seconds * float64(time.Second))).Round(time.Second).String()
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
