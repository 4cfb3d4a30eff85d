// Package main provides a Worker Lambda entry point for background analyses.
//
// The worker is invoked asynchronously (lambda:Invoke with
// InvocationType=Event from sentiment-lambda, or an EventBridge rule). It
// runs the full pipeline and reports through its side effects: the job
// record named by requestId is kept up to date in the shared store, the
// transcript lands in the cache and an AnalysisCompleted event is
// published to the configured bus.
//
// Event format:
//
//	{
//	  "type": "analyze",
//	  "requestId": "optional caller correlation id",
//	  "videoUrl": "https://..."
//	}
package main

import (
	"context"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog/log"

	"github.com/fpang/call-sentiment/internal/app"
	"github.com/fpang/call-sentiment/internal/auth"
	"github.com/fpang/call-sentiment/internal/config"
	"github.com/fpang/call-sentiment/internal/lambdaboot"
	"github.com/fpang/call-sentiment/internal/logging"
)

func main() {
	w := setup()
	lambda.Start(w.handle)
}

func setup() *worker {
	initStart := time.Now()
	logging.InitJSON(os.Stdout)

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	if cfg.EventBus == "" && cfg.Store == config.StoreNone {
		log.Warn().Msg("Neither a cache nor an event bus is configured; results will only be logged")
	}
	if cfg.WorkDir == "" || cfg.WorkDir == os.TempDir() {
		cfg.WorkDir = "/tmp"
	}

	aws := lambdaboot.InitAWS()
	lambdaboot.LoadAPIKey(aws.SSM, cfg.SSMKeyParam)
	if cfg.Highlights {
		lambdaboot.LoadGeminiKey(aws.SSM)
	}
	apiKey, err := auth.GetAPIKey()
	if err != nil {
		log.Fatal().Err(err).Msg("No AssemblyAI API key")
	}

	a, err := app.New(context.Background(), cfg, apiKey, app.Settings{AWS: &aws})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to assemble pipeline")
	}

	lambdaboot.StartupLog("sentiment-worker", initStart, cfg).
		Version(commitHash + "@" + buildTime).
		Log()

	return &worker{
		runner:    a.Pipeline,
		jobs:      lambdaboot.InitJobStore(aws.Config, cfg),
		coldStart: true,
	}
}
