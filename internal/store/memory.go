package store

import (
	"context"
	"slices"
	"sync"
	"time"
)

// MemoryStore keeps transcripts and job records in maps for the life of
// the process.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]CachedTranscript
	jobs  map[string]JobRecord
	now   func() time.Time
}

var (
	_ TranscriptStore = (*MemoryStore)(nil)
	_ JobStore        = (*MemoryStore)(nil)
)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[string]CachedTranscript),
		jobs:  make(map[string]JobRecord),
		now:   time.Now,
	}
}

func (m *MemoryStore) GetTranscript(ctx context.Context, videoURL string) (*CachedTranscript, error) {
	m.mu.RLock()
	item, ok := m.items[Key(videoURL)]
	m.mu.RUnlock()
	if !ok || item.Expired(m.now()) {
		return nil, nil
	}
	item.Records = slices.Clone(item.Records)
	return &item, nil
}

func (m *MemoryStore) PutTranscript(ctx context.Context, t *CachedTranscript) error {
	if err := prepare(t); err != nil {
		return err
	}
	item := *t
	item.Records = slices.Clone(t.Records)

	m.mu.Lock()
	m.items[Key(t.VideoURL)] = item
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) GetJob(ctx context.Context, id string) (*JobRecord, error) {
	m.mu.RLock()
	j, ok := m.jobs[id]
	m.mu.RUnlock()
	if !ok || j.Expired(m.now()) {
		return nil, nil
	}
	return &j, nil
}

func (m *MemoryStore) PutJob(ctx context.Context, j *JobRecord) error {
	if err := prepareJob(j, m.now()); err != nil {
		return err
	}
	m.mu.Lock()
	m.jobs[j.ID] = *j
	m.mu.Unlock()
	return nil
}
