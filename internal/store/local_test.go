package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casyncd/casyncd/internal/cdcerr"
	"github.com/casyncd/casyncd/internal/chunkid"
)

func TestLocalStorePutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	st, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	id := chunkid.Compute([]byte("chunk payload"))
	frame := []byte("CANK\x00\x00\x00\x00\x00")

	require.NoError(t, st.Put(ctx, id, frame))

	got, err := st.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, frame, got)

	exists, err := st.Exists(ctx, id)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestLocalStoreGetMissingReturnsNotFound(t *testing.T) {
	ctx := context.Background()
	st, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, err = st.Get(ctx, chunkid.Compute([]byte("absent")))
	require.Error(t, err)
	assert.Equal(t, cdcerr.NotFound, cdcerr.KindOf(err))
}

func TestLocalStoreWritesLandAtomically(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	st, err := NewLocalStore(root)
	require.NoError(t, err)

	id := chunkid.Compute([]byte("atomic"))
	require.NoError(t, st.Put(ctx, id, []byte("frame bytes")))

	// No leftover temp files should remain in the shard directory.
	shardDir := filepath.Dir(st.path(id))
	entries, err := filepathGlob(shardDir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e, ".tmp")
	}
}

func TestLocalStoreListAndStats(t *testing.T) {
	ctx := context.Background()
	st, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	id1 := chunkid.Compute([]byte("one"))
	id2 := chunkid.Compute([]byte("two"))
	require.NoError(t, st.Put(ctx, id1, []byte("aaaa")))
	require.NoError(t, st.Put(ctx, id2, []byte("bbbbbb")))

	ids, err := st.List(ctx)
	require.NoError(t, err)
	assert.Len(t, ids, 2)

	stats, err := st.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.ChunkCount)
	assert.Equal(t, int64(10), stats.TotalBytes)
}

func TestLocalStoreDeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	id := chunkid.Compute([]byte("gone"))
	assert.NoError(t, st.Delete(ctx, id))

	require.NoError(t, st.Put(ctx, id, []byte("x")))
	assert.NoError(t, st.Delete(ctx, id))
	assert.NoError(t, st.Delete(ctx, id))
}

func filepathGlob(dir string) ([]string, error) {
	return filepath.Glob(filepath.Join(dir, "*"))
}
