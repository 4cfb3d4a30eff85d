package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/fpang/call-sentiment/internal/assemblyai"
	"github.com/fpang/call-sentiment/internal/events"
	"github.com/fpang/call-sentiment/internal/media"
	"github.com/fpang/call-sentiment/internal/store"
)

type DownloaderMock struct{ mock.Mock }

func (m *DownloaderMock) Download(ctx context.Context, videoURL, workDir string) (*media.Asset, func(), error) {
	args := m.Called(ctx, videoURL, workDir)
	var asset *media.Asset
	if v := args.Get(0); v != nil {
		asset = v.(*media.Asset)
	}
	var cleanup func()
	if v := args.Get(1); v != nil {
		cleanup = v.(func())
	}
	return asset, cleanup, args.Error(2)
}

type TranscriberMock struct{ mock.Mock }

func (m *TranscriberMock) Upload(ctx context.Context, path string) (assemblyai.RemoteReference, error) {
	args := m.Called(ctx, path)
	return args.Get(0).(assemblyai.RemoteReference), args.Error(1)
}

func (m *TranscriberMock) Submit(ctx context.Context, ref assemblyai.RemoteReference, opts assemblyai.Options) (string, error) {
	args := m.Called(ctx, ref, opts)
	return args.String(0), args.Error(1)
}

func (m *TranscriberMock) Poll(ctx context.Context, jobID string, opts assemblyai.PollOptions) (*assemblyai.Transcript, error) {
	args := m.Called(ctx, jobID, opts)
	if v := args.Get(0); v != nil {
		return v.(*assemblyai.Transcript), args.Error(1)
	}
	return nil, args.Error(1)
}

type StoreMock struct{ mock.Mock }

func (m *StoreMock) GetTranscript(ctx context.Context, videoURL string) (*store.CachedTranscript, error) {
	args := m.Called(ctx, videoURL)
	if v := args.Get(0); v != nil {
		return v.(*store.CachedTranscript), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *StoreMock) PutTranscript(ctx context.Context, t *store.CachedTranscript) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

type HighlighterMock struct{ mock.Mock }

func (m *HighlighterMock) Highlights(ctx context.Context, title, transcript string) ([]string, error) {
	args := m.Called(ctx, title, transcript)
	if v := args.Get(0); v != nil {
		return v.([]string), args.Error(1)
	}
	return nil, args.Error(1)
}

type PublisherMock struct{ mock.Mock }

func (m *PublisherMock) AnalysisCompleted(ctx context.Context, e events.AnalysisCompleted) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}
