package assembler

import (
	"bytes"
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casyncd/casyncd/internal/chunker"
	"github.com/casyncd/casyncd/internal/chunkid"
	"github.com/casyncd/casyncd/internal/cdcerr"
	"github.com/casyncd/casyncd/internal/codec"
	"github.com/casyncd/casyncd/internal/index"
	"github.com/casyncd/casyncd/internal/store"
	"github.com/casyncd/casyncd/pkg/chunk"
)

func testConfig() chunk.Config {
	return chunk.Config{MinSize: 16 * 1024, AvgSize: 64 * 1024, MaxSize: 256 * 1024, Compression: chunk.CompressionNone}
}

// buildIndexAndStore chunks data, stores every chunk in a MemStore, and
// returns a payload-less index (so resolveChunk must hit the store).
func buildIndexAndStore(t *testing.T, data []byte) (index.Index, *store.MemStore) {
	t.Helper()
	cfg := testConfig()
	chunks, err := chunker.SplitAll(bytes.NewReader(data), cfg)
	require.NoError(t, err)

	cc, err := codec.New(chunk.CompressionNone, 0)
	require.NoError(t, err)
	defer cc.Close()

	st := store.NewMemStore()
	var descs []index.ChunkDescriptor
	for _, c := range chunks {
		id := chunkid.Compute(c.Uncompressed)
		frame, err := cc.Encode(c.Uncompressed)
		require.NoError(t, err)
		require.NoError(t, st.Put(context.Background(), id, frame))
		descs = append(descs, index.ChunkDescriptor{ID: id, Size: c.Size, Offset: c.Offset, CompressedSize: uint32(len(frame))})
	}

	idx := index.New(descs, index.Caibx, time.Now())
	return idx, st
}

// S3-style round trip: chunk_and_index(S) then assemble == S.
func TestAssembleRoundTrip(t *testing.T) {
	rnd := rand.New(rand.NewSource(3))
	data := make([]byte, 1024*1024)
	rnd.Read(data)

	idx, st := buildIndexAndStore(t, data)

	var out bytes.Buffer
	err := Assemble(context.Background(), &idx, st, &out, Options{Verify: true})
	require.NoError(t, err)
	assert.Equal(t, data, out.Bytes())
}

func TestVerifyPassesForIntactIndex(t *testing.T) {
	rnd := rand.New(rand.NewSource(11))
	data := make([]byte, 256*1024)
	rnd.Read(data)

	idx, st := buildIndexAndStore(t, data)
	assert.NoError(t, Verify(context.Background(), &idx, st))
}

func TestAssembleFailsOnMissingChunk(t *testing.T) {
	rnd := rand.New(rand.NewSource(23))
	data := make([]byte, 512*1024)
	rnd.Read(data)

	idx, st := buildIndexAndStore(t, data)
	require.NoError(t, st.Delete(context.Background(), idx.Chunks[0].ID))

	var out bytes.Buffer
	err := Assemble(context.Background(), &idx, st, &out, Options{Verify: true})
	require.Error(t, err)
	assert.Equal(t, cdcerr.NotFound, cdcerr.KindOf(err))
}

func TestAssembleDetectsTamperedChunk(t *testing.T) {
	rnd := rand.New(rand.NewSource(29))
	data := make([]byte, 300*1024)
	rnd.Read(data)

	idx, st := buildIndexAndStore(t, data)

	cc, err := codec.New(chunk.CompressionNone, 0)
	require.NoError(t, err)
	defer cc.Close()
	tamperedFrame, err := cc.Encode([]byte("not the original bytes at all"))
	require.NoError(t, err)

	require.NoError(t, st.Delete(context.Background(), idx.Chunks[0].ID))
	require.NoError(t, st.Put(context.Background(), idx.Chunks[0].ID, tamperedFrame))

	var out bytes.Buffer
	err = Assemble(context.Background(), &idx, st, &out, Options{Verify: true, Force: true})
	require.Error(t, err)
	assert.Equal(t, cdcerr.ChunkIdMismatch, cdcerr.KindOf(err))
}
