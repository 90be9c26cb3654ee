package codec

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casyncd/casyncd/internal/cdcerr"
	"github.com/casyncd/casyncd/pkg/chunk"
)

func TestZstdRoundTrip(t *testing.T) {
	c, err := New(chunk.CompressionZstd, 1)
	require.NoError(t, err)
	defer c.Close()

	rnd := rand.New(rand.NewSource(1))
	data := make([]byte, 8192)
	rnd.Read(data)

	frame, err := c.Encode(data)
	require.NoError(t, err)

	got, err := c.Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestNoneRoundTrip(t *testing.T) {
	c, err := New(chunk.CompressionNone, 0)
	require.NoError(t, err)
	defer c.Close()

	data := []byte("hello, casyncd")
	frame, err := c.Encode(data)
	require.NoError(t, err)

	got, err := c.Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	c, err := New(chunk.CompressionNone, 0)
	require.NoError(t, err)
	defer c.Close()

	bad := append([]byte{'X', 'X', 'X', 'X'}, make([]byte, 5)...)
	_, err = c.Decode(bad)
	require.Error(t, err)
	assert.Equal(t, cdcerr.InvalidMagic, cdcerr.KindOf(err))
}

func TestDecodeTagIsSelfDescribing(t *testing.T) {
	// A Codec configured for "none" must still be able to decode a
	// zstd-tagged frame produced by a different Codec instance.
	zc, err := New(chunk.CompressionZstd, 1)
	require.NoError(t, err)
	defer zc.Close()

	data := bytes.Repeat([]byte("ab"), 1000)
	frame, err := zc.Encode(data)
	require.NoError(t, err)

	nc, err := New(chunk.CompressionNone, 0)
	require.NoError(t, err)
	defer nc.Close()

	got, err := nc.Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestRatio(t *testing.T) {
	assert.Equal(t, 1.0, Ratio(0, 0))
	assert.InDelta(t, 0.5, Ratio(100, 50), 0.0001)
}
