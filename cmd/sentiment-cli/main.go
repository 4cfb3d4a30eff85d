package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/call-sentiment/internal/app"
	"github.com/fpang/call-sentiment/internal/assemblyai"
	"github.com/fpang/call-sentiment/internal/cli"
	"github.com/fpang/call-sentiment/internal/config"
	"github.com/fpang/call-sentiment/internal/logging"
	"github.com/fpang/call-sentiment/internal/media"
	"github.com/fpang/call-sentiment/internal/metrics"
	"github.com/fpang/call-sentiment/internal/pipeline"
	"github.com/fpang/call-sentiment/internal/report"
)

// CLI flags
var (
	pollTimeoutFlag  time.Duration
	pollIntervalFlag time.Duration
	storeFlag        string
	highlightsFlag   bool
	crossCheckFlag   bool
	jsonFlag         bool
	emitMetricsFlag  bool
	skipKeyCheckFlag bool
	envFileFlag      string
)

var rootCmd = &cobra.Command{
	Use:   "sentiment-cli [video-url | audio-file]",
	Short: "Score the sentiment of an earnings call",
	Long: `Sentiment CLI downloads the audio of an earnings call, transcribes it with
AssemblyAI sentiment analysis, and prints the per-sentence label counts and
the overall sentiment score (% neutral + % positive - % negative) against a
reference of 50.

A local audio file may be given instead of a link; it is uploaded as-is.

Examples:
  sentiment-cli https://www.youtube.com/watch?v=-xDfaDKDeqk
  sentiment-cli ./q3-call.mp3 --json
  sentiment-cli --poll-timeout 45m --store dynamodb
  sentiment-cli  # Interactive mode - prompts for the link`,
	Args: cobra.MaximumNArgs(1),
	Run:  runMain,
}

func init() {
	rootCmd.Flags().DurationVar(&pollTimeoutFlag, "poll-timeout", config.DefaultPollTimeout, "Give up waiting for the transcript after this long (0 = no limit)")
	rootCmd.Flags().DurationVar(&pollIntervalFlag, "poll-interval", assemblyai.DefaultPollInterval, "Time between transcript status checks")
	rootCmd.Flags().StringVar(&storeFlag, "store", "", "Transcript cache: none, memory, dynamodb or s3 (default from "+config.EnvStore+")")
	rootCmd.Flags().BoolVar(&highlightsFlag, "highlights", false, "Ask Gemini for the call's highlights (needs GEMINI_API_KEY)")
	rootCmd.Flags().BoolVar(&crossCheckFlag, "cross-check", false, "Compare the remote labels with a local VADER scorer")
	rootCmd.Flags().BoolVar(&jsonFlag, "json", false, "Print the report as JSON")
	rootCmd.Flags().BoolVar(&emitMetricsFlag, "emit-metrics", false, "Write CloudWatch EMF metric lines to stdout")
	rootCmd.Flags().BoolVar(&skipKeyCheckFlag, "skip-key-check", false, "Do not verify the API key before uploading")
	rootCmd.Flags().StringVar(&envFileFlag, "env-file", ".env", "Optional .env file to load")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(cli.ExitFailure)
	}
}

// runMain is the main execution logic called by Cobra.
func runMain(cmd *cobra.Command, args []string) {
	os.Exit(run(cmd, args))
}

func run(cmd *cobra.Command, args []string) int {
	logging.Init()
	if !emitMetricsFlag {
		metrics.SetOutput(io.Discard)
	}

	cfg, err := config.Load(envFileFlag)
	if err != nil {
		log.Error().Err(err).Msg("Invalid configuration")
		return cli.ExitConfig
	}
	if cmd.Flags().Changed("poll-timeout") {
		cfg.PollTimeout = pollTimeoutFlag
	}
	if cmd.Flags().Changed("poll-interval") {
		cfg.PollInterval = pollIntervalFlag
	}
	if storeFlag != "" {
		cfg.Store = storeFlag
	}
	if highlightsFlag {
		cfg.Highlights = true
	}
	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("Invalid configuration")
		return cli.ExitConfig
	}

	input := ""
	if len(args) > 0 {
		input = args[0]
	} else {
		input = cli.PromptForURL(os.Stdin, os.Stderr, cli.DefaultVideoURL)
	}

	if !media.IsLocalFile(input) {
		if err := media.CheckYtDlpAvailable(); err != nil {
			log.Error().Err(err).Msg("yt-dlp is required to download audio")
			return cli.ExitConfig
		}
	}

	apiKey, code := cli.ResolveAPIKey()
	if code != cli.ExitOK {
		return code
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, apiKey, app.Settings{
		CrossCheck: crossCheckFlag,
		ChunkObserver: func(index, size int) {
			log.Debug().Int("chunk", index).Int("bytes", size).Msg("Uploaded chunk")
		},
	})
	if err != nil {
		return cli.HandleValidationError(err)
	}

	if !skipKeyCheckFlag {
		if code := cli.CheckAPIKey(ctx, a.Client); code != cli.ExitOK {
			return code
		}
	}

	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "============================================")
	fmt.Fprintln(os.Stderr, "Earnings Call Sentiment")
	fmt.Fprintln(os.Stderr, "============================================")
	fmt.Fprintf(os.Stderr, "Input: %s\n", input)
	fmt.Fprintf(os.Stderr, "Cache: %s\n", cfg.Store)
	fmt.Fprintln(os.Stderr, "--------------------------------------------")

	start := time.Now()
	r, err := a.Pipeline.Run(ctx, input, pipeline.Hooks{
		OnPhase: func(p pipeline.Phase) {
			if p != pipeline.PhaseDone {
				fmt.Fprintf(os.Stderr, "  %s...\n", p)
			}
		},
		OnStatus: func(s assemblyai.Status) {
			fmt.Fprintf(os.Stderr, "    transcript %s (%s elapsed)\n", s, cli.FormatDurationShort(time.Since(start)))
		},
	})
	if err != nil {
		return cli.HandlePipelineError(err)
	}

	fmt.Fprintf(os.Stderr, "Finished in %s\n\n", cli.FormatDurationShort(time.Since(start)))

	if jsonFlag {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(r); err != nil {
			log.Error().Err(err).Msg("Failed to write report")
			return cli.ExitFailure
		}
		return cli.ExitOK
	}
	if err := report.WriteText(os.Stdout, r); err != nil {
		log.Error().Err(err).Msg("Failed to write report")
		return cli.ExitFailure
	}
	return cli.ExitOK
}
