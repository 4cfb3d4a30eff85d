package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/call-sentiment/internal/app"
	"github.com/fpang/call-sentiment/internal/auth"
	"github.com/fpang/call-sentiment/internal/cli"
	"github.com/fpang/call-sentiment/internal/config"
	"github.com/fpang/call-sentiment/internal/lambdaboot"
	"github.com/fpang/call-sentiment/internal/logging"
	"github.com/fpang/call-sentiment/internal/media"
	"github.com/fpang/call-sentiment/internal/metrics"
	"github.com/fpang/call-sentiment/internal/web"
)

// CLI flags
var (
	portFlag        int
	storeFlag       string
	syncFlag        bool
	jobTimeoutFlag  time.Duration
	emitMetricsFlag bool
	envFileFlag     string
)

var rootCmd = &cobra.Command{
	Use:   "sentiment-web",
	Short: "Web UI for earnings call sentiment",
	Long: `Sentiment Web starts a local web server with a page that takes a video
link, runs the sentiment pipeline in the background, and shows the label bar
chart, the per-sentence confidence plot and the score against 50.

Examples:
  sentiment-web
  sentiment-web --port 9090
  sentiment-web --store memory --job-timeout 45m`,
	Args: cobra.NoArgs,
	Run:  runMain,
}

func init() {
	rootCmd.Flags().IntVar(&portFlag, "port", 8080, "Port to listen on")
	rootCmd.Flags().StringVar(&storeFlag, "store", config.StoreMemory, "Transcript cache: none, memory, dynamodb or s3")
	rootCmd.Flags().BoolVar(&syncFlag, "sync", false, "Run analyses inside the POST request")
	rootCmd.Flags().DurationVar(&jobTimeoutFlag, "job-timeout", time.Hour, "Upper bound for one background analysis")
	rootCmd.Flags().BoolVar(&emitMetricsFlag, "emit-metrics", false, "Write CloudWatch EMF metric lines to stdout")
	rootCmd.Flags().StringVar(&envFileFlag, "env-file", ".env", "Optional .env file to load")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(cli.ExitFailure)
	}
}

func runMain(cmd *cobra.Command, args []string) {
	initStart := time.Now()
	logging.Init()
	if !emitMetricsFlag {
		metrics.SetOutput(io.Discard)
	}

	cfg, err := config.Load(envFileFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	if cmd.Flags().Changed("store") || os.Getenv(config.EnvStore) == "" {
		cfg.Store = storeFlag
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	if err := media.CheckYtDlpAvailable(); err != nil {
		log.Fatal().Err(err).Msg("yt-dlp is required to download audio")
	}

	// Validate API key at startup
	apiKey, err := auth.GetAPIKey()
	if err != nil {
		os.Exit(cli.HandleValidationError(err))
	}

	ctx := context.Background()
	a, err := app.New(ctx, cfg, apiKey, app.Settings{CrossCheck: true})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to assemble pipeline")
	}
	if code := cli.CheckAPIKey(ctx, a.Client); code != cli.ExitOK {
		os.Exit(code)
	}

	srv := web.NewServer(a.Pipeline, web.Options{Sync: syncFlag, JobTimeout: jobTimeoutFlag})

	addr := fmt.Sprintf(":%d", portFlag)
	httpSrv := &http.Server{
		Addr:        addr,
		Handler:     srv.Handler(),
		ReadTimeout: 30 * time.Second,
		// Synchronous analyses hold the response open until the transcript is done.
		WriteTimeout: cfg.PollTimeout + 10*time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info().Msg("Shutting down...")
		srv.Shutdown()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpSrv.Shutdown(ctx)
	}()

	lambdaboot.StartupLog("sentiment-web", initStart, cfg).
		Version(commitHash+"@"+buildTime).
		Config("port", fmt.Sprintf("%d", portFlag)).
		Feature("sync", syncFlag).
		Log()

	log.Info().Int("port", portFlag).Msg("Starting web server")
	fmt.Printf("\n  Call Sentiment UI: http://localhost:%d\n\n", portFlag)

	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server failed")
	}
}
