package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"
)

// DefaultVideoURL is offered when the user gives no input.
const DefaultVideoURL = "https://www.youtube.com/watch?v=-xDfaDKDeqk"

// PromptForURL asks for a video link or audio file on out and reads the
// answer from in. Returns def if the user enters nothing.
func PromptForURL(in io.Reader, out io.Writer, def string) string {
	fmt.Fprintf(out, "Video URL or audio file [%s]: ", def)

	reader := bufio.NewReader(in)
	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		log.Warn().Err(err).Msg("Failed to read input, using default URL")
		return def
	}

	input = strings.TrimSpace(input)
	if input == "" {
		return def
	}
	return input
}
