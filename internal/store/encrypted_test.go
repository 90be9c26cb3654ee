package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casyncd/casyncd/internal/chunkid"
	"github.com/casyncd/casyncd/internal/crypto"
)

func TestEncryptedStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	enc, err := crypto.NewEncryptor("a passphrase nobody will guess", nil)
	require.NoError(t, err)

	inner := NewMemStore()
	es := NewEncryptedStore(inner, enc)

	id := chunkid.Compute([]byte("plaintext frame"))
	frame := []byte("CANK\x00\x00\x00\x00\x00plaintext frame")

	require.NoError(t, es.Put(ctx, id, frame))

	got, err := es.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, frame, got)

	// The inner store must never see plaintext.
	raw, err := inner.Get(ctx, id)
	require.NoError(t, err)
	assert.NotEqual(t, frame, raw)
}

func TestEncryptedStoreWrongKeyFails(t *testing.T) {
	ctx := context.Background()
	enc1, err := crypto.NewEncryptor("correct passphrase", nil)
	require.NoError(t, err)
	enc2, err := crypto.NewEncryptor("wrong passphrase", enc1.Salt())
	require.NoError(t, err)

	inner := NewMemStore()
	es1 := NewEncryptedStore(inner, enc1)
	es2 := NewEncryptedStore(inner, enc2)

	id := chunkid.Compute([]byte("secret"))
	require.NoError(t, es1.Put(ctx, id, []byte("secret frame bytes")))

	_, err = es2.Get(ctx, id)
	assert.Error(t, err)
}
