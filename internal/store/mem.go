package store

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/casyncd/casyncd/internal/cdcerr"
	"github.com/casyncd/casyncd/internal/chunkid"
)

// MemStore is an in-memory ChunkStore, used by tests and by short-lived
// CLI invocations (e.g. "casyncd verify") that don't need a persistent
// backing.
type MemStore struct {
	mu     sync.RWMutex
	frames map[[32]byte][]byte
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{frames: make(map[[32]byte][]byte)}
}

func (m *MemStore) Put(ctx context.Context, id [32]byte, frame []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.frames[id]; ok {
		return nil
	}
	cp := make([]byte, len(frame))
	copy(cp, frame)
	m.frames[id] = cp
	return nil
}

func (m *MemStore) Get(ctx context.Context, id [32]byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	frame, ok := m.frames[id]
	if !ok {
		return nil, cdcerr.WithChunk(cdcerr.NotFound, "store.MemStore.Get", chunkid.Hex(id), -1, nil)
	}
	cp := make([]byte, len(frame))
	copy(cp, frame)
	return cp, nil
}

func (m *MemStore) GetReader(ctx context.Context, id [32]byte) (io.ReadCloser, error) {
	frame, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(frame)), nil
}

func (m *MemStore) Exists(ctx context.Context, id [32]byte) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.frames[id]
	return ok, nil
}

func (m *MemStore) Delete(ctx context.Context, id [32]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.frames, id)
	return nil
}

func (m *MemStore) List(ctx context.Context) ([][32]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([][32]byte, 0, len(m.frames))
	for id := range m.frames {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *MemStore) Stats(ctx context.Context) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st := Stats{ChunkCount: len(m.frames)}
	for _, f := range m.frames {
		st.TotalBytes += int64(len(f))
	}
	return st, nil
}
