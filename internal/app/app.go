// Package app assembles a ready-to-run pipeline from a Config. It is the one
// place that knows which concrete collaborator backs each pipeline stage.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/rs/zerolog/log"

	"github.com/fpang/call-sentiment/internal/assemblyai"
	"github.com/fpang/call-sentiment/internal/auth"
	"github.com/fpang/call-sentiment/internal/chat"
	"github.com/fpang/call-sentiment/internal/config"
	"github.com/fpang/call-sentiment/internal/lambdaboot"
	"github.com/fpang/call-sentiment/internal/media"
	"github.com/fpang/call-sentiment/internal/pipeline"
)

// App is a wired pipeline plus the client used for the key check.
type App struct {
	Config   config.Config
	Client   *assemblyai.Client
	Pipeline *pipeline.Pipeline
}

// Settings are the per-binary choices that are not environment config.
type Settings struct {
	// CrossCheck attaches the local VADER agreement rate to reports.
	CrossCheck bool

	// AWS is used for the AWS-backed cache and events. When nil and the
	// config needs AWS, the default AWS config is loaded.
	AWS *lambdaboot.AWSClients

	// ChunkObserver is told about every upload chunk.
	ChunkObserver func(index, size int)
}

// New builds an App. apiKey is the AssemblyAI key.
func New(ctx context.Context, cfg config.Config, apiKey string, s Settings) (*App, error) {
	if apiKey == "" {
		return nil, &auth.ValidationError{Type: auth.ErrTypeNoKey, Message: "no AssemblyAI API key"}
	}

	opts := []assemblyai.Option{
		assemblyai.WithBaseURL(cfg.BaseURL),
		assemblyai.WithMaxRetries(uint64(cfg.MaxRetries)),
	}
	if s.ChunkObserver != nil {
		opts = append(opts, assemblyai.WithChunkObserver(s.ChunkObserver))
	}
	client := assemblyai.NewClient(apiKey, opts...)

	deps := pipeline.Deps{
		Downloader:  media.NewDownloader(),
		Transcriber: client,
		Title: func(ctx context.Context, videoURL string) (string, error) {
			return media.FetchTitle(ctx, http.DefaultClient, videoURL)
		},
	}

	var awsCfg aws.Config
	if lambdaboot.NeedsAWS(cfg) {
		if s.AWS == nil {
			clients := lambdaboot.InitAWS()
			s.AWS = &clients
		}
		awsCfg = s.AWS.Config
	}
	deps.Store = lambdaboot.InitStore(awsCfg, cfg)
	if pub := lambdaboot.InitPublisher(awsCfg, cfg.EventBus); pub != nil {
		deps.Publisher = pub
	}

	if cfg.Highlights {
		h, err := newHighlighter(ctx, cfg)
		if err != nil {
			log.Warn().Err(err).Msg("Highlights disabled")
		} else {
			deps.Highlighter = h
		}
	}

	p := pipeline.New(deps, pipeline.Options{
		WorkDir:        cfg.WorkDir,
		PollInterval:   cfg.PollInterval,
		PollTimeout:    cfg.PollTimeout,
		ScoreReference: cfg.ScoreReference,
		CrossCheck:     s.CrossCheck,
	})

	log.Debug().
		Str("store", cfg.Store).
		Bool("events", deps.Publisher != nil).
		Bool("highlights", deps.Highlighter != nil).
		Bool("crossCheck", s.CrossCheck).
		Msg("Pipeline assembled")

	return &App{Config: cfg, Client: client, Pipeline: p}, nil
}

func newHighlighter(ctx context.Context, cfg config.Config) (*chat.Highlighter, error) {
	key, err := auth.GetGeminiKey()
	if err != nil {
		return nil, err
	}
	client, err := chat.NewGeminiClient(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("highlights: %w", err)
	}
	return chat.NewHighlighter(client.Models, cfg.GeminiModel, chat.DefaultMaxHighlights), nil
}
