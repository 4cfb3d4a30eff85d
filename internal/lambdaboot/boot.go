// Package lambdaboot provides the shared cold-start bootstrap for the
// binaries: AWS config, the transcript cache backend, the event publisher,
// SSM-held API keys and startup logging.
//
// Each helper is a short composition step so a binary's init stays a list of
// calls. Misconfiguration is fatal, as at Lambda cold start there is nobody
// to report it to but the log.
package lambdaboot

import (
	"context"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	lambdasvc "github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"

	"github.com/fpang/call-sentiment/internal/auth"
	"github.com/fpang/call-sentiment/internal/config"
	"github.com/fpang/call-sentiment/internal/dispatch"
	"github.com/fpang/call-sentiment/internal/events"
	"github.com/fpang/call-sentiment/internal/logging"
	"github.com/fpang/call-sentiment/internal/store"
)

// AWSClients holds the core AWS SDK config and the SSM client.
type AWSClients struct {
	Config aws.Config
	SSM    *ssm.Client
}

// NeedsAWS reports whether cfg uses any AWS-backed component.
func NeedsAWS(cfg config.Config) bool {
	return cfg.Store == config.StoreDynamoDB || cfg.Store == config.StoreS3 || cfg.EventBus != ""
}

// InitAWS loads the default AWS config and returns it along with common clients.
func InitAWS() AWSClients {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load AWS config")
	}
	log.Debug().Str("region", cfg.Region).Msg("AWS config loaded")
	return AWSClients{
		Config: cfg,
		SSM:    ssm.NewFromConfig(cfg),
	}
}

// InitStore creates the transcript cache selected by cfg.Store. It returns
// nil for config.StoreNone. awsCfg is only read for the AWS backends.
func InitStore(awsCfg aws.Config, cfg config.Config) store.TranscriptStore {
	switch cfg.Store {
	case config.StoreMemory:
		return store.NewMemoryStore()
	case config.StoreDynamoDB:
		if cfg.Table == "" {
			log.Fatal().Str("envVar", config.EnvTable).Msg("DynamoDB table environment variable is required")
		}
		return store.NewDynamoStore(dynamodb.NewFromConfig(awsCfg), cfg.Table)
	case config.StoreS3:
		if cfg.Bucket == "" {
			log.Fatal().Str("envVar", config.EnvBucket).Msg("Bucket environment variable is required")
		}
		return store.NewS3Store(s3.NewFromConfig(awsCfg), cfg.Bucket)
	default:
		log.Debug().Msg("Transcript cache disabled")
		return nil
	}
}

// InitJobStore returns the job record store for the backend cfg.Store names.
// Only DynamoDB and S3 are visible to both the API and the worker; other
// backends return nil.
func InitJobStore(awsCfg aws.Config, cfg config.Config) store.JobStore {
	switch cfg.Store {
	case config.StoreDynamoDB:
		return store.NewDynamoStore(dynamodb.NewFromConfig(awsCfg), cfg.Table)
	case config.StoreS3:
		return store.NewS3Store(s3.NewFromConfig(awsCfg), cfg.Bucket)
	default:
		log.Debug().Str("store", cfg.Store).Msg("No shared job store")
		return nil
	}
}

// InitDispatcher creates the worker invoker if function is set.
// Returns nil (with a debug line) if not configured.
func InitDispatcher(awsCfg aws.Config, function string) *dispatch.WorkerInvoker {
	if function == "" {
		log.Debug().Str("envVar", config.EnvWorkerLambda).Msg("Worker Lambda not set, analyses run in the request")
		return nil
	}
	return dispatch.NewWorkerInvoker(lambdasvc.NewFromConfig(awsCfg), function)
}

// InitPublisher creates an EventBridge publisher if busName is set.
// Returns nil (with a debug line) if not configured.
func InitPublisher(awsCfg aws.Config, busName string) *events.Publisher {
	if busName == "" {
		log.Debug().Str("envVar", config.EnvEventBus).Msg("Event bus not set, events disabled")
		return nil
	}
	return events.NewPublisher(eventbridge.NewFromConfig(awsCfg), busName)
}

// LoadAPIKey fetches the AssemblyAI API key from SSM Parameter Store if not
// already set via ASSEMBLYAI_API_KEY. Fatals on error.
func LoadAPIKey(ssmClient auth.ParameterGetter, paramName string) {
	if err := auth.LoadAPIKeyFromSSM(context.Background(), ssmClient, auth.AssemblyAIKeyEnv, paramName); err != nil {
		log.Fatal().Err(err).Msg("Failed to read API key from SSM")
	}
}

// LoadGeminiKey fetches the optional Gemini key from the parameter named by
// SSM_GEMINI_KEY_PARAM. Non-fatal: highlights are simply unavailable
// without it.
func LoadGeminiKey(ssmClient auth.ParameterGetter) {
	paramName := os.Getenv("SSM_GEMINI_KEY_PARAM")
	if paramName == "" || os.Getenv(auth.GeminiKeyEnv) != "" {
		return
	}
	if err := auth.LoadAPIKeyFromSSM(context.Background(), ssmClient, auth.GeminiKeyEnv, paramName); err != nil {
		log.Warn().Err(err).Str("param", paramName).Msg("Gemini API key not found in SSM, highlights disabled")
	}
}

// StartupLog is a convenience wrapper for the startup logger, pre-filled
// with the resources cfg names.
func StartupLog(name string, initStart time.Time, cfg config.Config) *logging.StartupLogger {
	return logging.NewStartupLogger(name).
		InitDuration(time.Since(initStart)).
		DynamoTable("transcripts", cfg.Table).
		S3Bucket("transcripts", cfg.Bucket).
		EventBus("events", cfg.EventBus).
		Config("workerLambda", cfg.WorkerLambda).
		SSMParam("assemblyaiKey", logging.EnvOrDefault(config.EnvSSMKeyParam, auth.DefaultSSMKeyParam)).
		Feature("highlights", cfg.Highlights).
		Config("store", cfg.Store).
		Config("pollTimeout", cfg.PollTimeout.String())
}
