package rollhash

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitRollConsistency(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	data := make([]byte, 4096)
	rnd.Read(data)

	require.True(t, len(data) > WindowSize*2)

	h := New()
	h.Write(data[:WindowSize])

	for pos := WindowSize; pos < len(data); pos++ {
		out := data[pos-WindowSize]
		in := data[pos]
		rolled := h.Roll(out, in)

		want := Init(data[pos-WindowSize+1 : pos+1])
		assert.Equal(t, want, rolled, "mismatch at position %d", pos)
	}
}

func TestInitDeterministic(t *testing.T) {
	window := make([]byte, WindowSize)
	for i := range window {
		window[i] = byte(i)
	}
	assert.Equal(t, Init(window), Init(window))
}

func TestTableIsFullyPopulated(t *testing.T) {
	seen := make(map[uint32]bool)
	for _, v := range table {
		seen[v] = true
	}
	assert.Greater(t, len(seen), 250, "table entries should be distinct (buzhash requires it)")
}
