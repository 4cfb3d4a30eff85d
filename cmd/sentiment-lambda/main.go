// Package main provides the Lambda entry point for the analysis API.
//
// It serves the same handler as sentiment-web behind API Gateway (HTTP API,
// payload v2). An analysis takes minutes and API Gateway cuts requests off
// after 30 seconds, so with WORKER_LAMBDA_ARN set POST /api/analyze records
// a job in the shared store (DynamoDB or S3), invokes sentiment-worker
// asynchronously and returns 202. The browser then polls the job record.
// Without a worker the analysis runs inside the request, which only suits
// direct invocations with a long function timeout.
//
// Endpoints:
//
//	GET  /api/health         health check
//	POST /api/analyze        start an analysis of {"videoUrl": ...}
//	GET  /api/analyze/{id}   poll a started analysis
//	GET  /                   embedded browser page
//
// The AssemblyAI key is read from SSM Parameter Store at cold start unless
// ASSEMBLYAI_API_KEY is set.
package main

import (
	"context"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"github.com/rs/zerolog/log"

	"github.com/fpang/call-sentiment/internal/app"
	"github.com/fpang/call-sentiment/internal/auth"
	"github.com/fpang/call-sentiment/internal/config"
	"github.com/fpang/call-sentiment/internal/lambdaboot"
	"github.com/fpang/call-sentiment/internal/logging"
	"github.com/fpang/call-sentiment/internal/web"
)

func main() {
	adapter := setup()
	lambda.Start(adapter.ProxyWithContext)
}

// setup runs the cold-start wiring.
func setup() *httpadapter.HandlerAdapterV2 {
	initStart := time.Now()
	logging.InitJSON(os.Stdout)

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
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

	// Lambda /tmp is the only writable directory.
	if cfg.WorkDir == "" || cfg.WorkDir == os.TempDir() {
		cfg.WorkDir = "/tmp"
	}

	a, err := app.New(context.Background(), cfg, apiKey, app.Settings{AWS: &aws, CrossCheck: true})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to assemble pipeline")
	}

	opts := web.Options{Sync: true}
	mode := "sync"
	if d := lambdaboot.InitDispatcher(aws.Config, cfg.WorkerLambda); d != nil {
		opts.Dispatcher = d
		opts.Jobs = lambdaboot.InitJobStore(aws.Config, cfg)
		mode = "dispatch"
	} else {
		log.Warn().Str("envVar", config.EnvWorkerLambda).Msg("No worker Lambda, analyses run inside the request")
	}
	srv := web.NewServer(a.Pipeline, opts)

	lambdaboot.StartupLog("sentiment-lambda", initStart, cfg).
		Version(commitHash + "@" + buildTime).
		Config("mode", mode).
		Log()

	return httpadapter.NewV2(srv.Handler())
}
