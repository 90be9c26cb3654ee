package chunk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidates(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
}

func TestValidateRejectsMinBelowWindow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinSize = WindowSize - 1
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsOutOfOrderSizes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AvgSize = cfg.MinSize
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsMaxBelow4xAvg(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxSize = cfg.AvgSize + 1
	assert.Error(t, cfg.Validate())
}

func TestParseCompression(t *testing.T) {
	c, err := ParseCompression("zstd")
	require.NoError(t, err)
	assert.Equal(t, CompressionZstd, c)

	c, err = ParseCompression("")
	require.NoError(t, err)
	assert.Equal(t, CompressionZstd, c)

	c, err = ParseCompression("none")
	require.NoError(t, err)
	assert.Equal(t, CompressionNone, c)

	_, err = ParseCompression("lz4")
	assert.Error(t, err)
}
