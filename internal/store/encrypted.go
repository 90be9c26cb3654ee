package store

import (
	"bytes"
	"context"
	"io"

	"github.com/casyncd/casyncd/internal/cdcerr"
	"github.com/casyncd/casyncd/internal/crypto"
)

// EncryptedStore wraps another ChunkStore, sealing every frame with
// AES-256-GCM before it reaches the inner store and opening it again on
// the way out. The chunk id the caller passes in is handed to the inner
// store unchanged for addressing, so an EncryptedStore composes transparently with
// LocalStore/S3Store/MemStore without changing how callers name chunks.
type EncryptedStore struct {
	inner ChunkStore
	enc   *crypto.Encryptor
}

// NewEncryptedStore wraps inner, sealing with enc.
func NewEncryptedStore(inner ChunkStore, enc *crypto.Encryptor) *EncryptedStore {
	return &EncryptedStore{inner: inner, enc: enc}
}

func (s *EncryptedStore) Put(ctx context.Context, id [32]byte, frame []byte) error {
	const op = "store.EncryptedStore.Put"
	sealed, err := s.enc.Seal(frame)
	if err != nil {
		return cdcerr.New(cdcerr.IoError, op, err)
	}
	return s.inner.Put(ctx, id, sealed)
}

func (s *EncryptedStore) Get(ctx context.Context, id [32]byte) ([]byte, error) {
	const op = "store.EncryptedStore.Get"
	sealed, err := s.inner.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	frame, err := s.enc.Open(sealed)
	if err != nil {
		return nil, cdcerr.New(cdcerr.DecompressionFailed, op, err)
	}
	return frame, nil
}

func (s *EncryptedStore) Exists(ctx context.Context, id [32]byte) (bool, error) {
	return s.inner.Exists(ctx, id)
}

func (s *EncryptedStore) Delete(ctx context.Context, id [32]byte) error {
	return s.inner.Delete(ctx, id)
}

func (s *EncryptedStore) List(ctx context.Context) ([][32]byte, error) {
	return s.inner.List(ctx)
}

func (s *EncryptedStore) Stats(ctx context.Context) (Stats, error) {
	return s.inner.Stats(ctx)
}

// GetReader decrypts eagerly (there is no streaming AES-GCM open without
// buffering the whole frame to verify its tag) and returns the plaintext
// wrapped in a no-op closer.
func (s *EncryptedStore) GetReader(ctx context.Context, id [32]byte) (io.ReadCloser, error) {
	frame, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(frame)), nil
}
