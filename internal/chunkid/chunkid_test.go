package chunkid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeIsDeterministic(t *testing.T) {
	data := []byte("the quick brown fox")
	assert.Equal(t, Compute(data), Compute(data))
}

func TestHexParseRoundTrip(t *testing.T) {
	id := Compute([]byte("round trip me"))
	hex := Hex(id)
	assert.Len(t, hex, 64)

	parsed, err := Parse(hex)
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}

func TestShardedPathLayout(t *testing.T) {
	id := Compute([]byte("shard me"))
	path := ShardedPath(id)
	hex := Hex(id)
	assert.Equal(t, hex[0:2]+"/"+hex[2:4]+"/"+hex+".cacnk", path)
}

func TestFlatPath(t *testing.T) {
	id := Compute([]byte("flat"))
	assert.Equal(t, Hex(id)+".cacnk", FlatPath(id))
}

func TestDistinctInputsDistinctIDs(t *testing.T) {
	assert.NotEqual(t, Compute([]byte("a")), Compute([]byte("b")))
}
