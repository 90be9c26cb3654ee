package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestValidateRejectsUnknownStoreKind(t *testing.T) {
	cfg := Default()
	cfg.Store.Kind = "azure"
	err := cfg.Validate()
	require.Error(t, err)
}

func TestValidateRejectsMissingLocalPath(t *testing.T) {
	cfg := Default()
	cfg.Store.Path = ""
	err := cfg.Validate()
	require.Error(t, err)
}

func TestValidateRejectsMissingS3Bucket(t *testing.T) {
	cfg := Default()
	cfg.Store.Kind = "s3"
	err := cfg.Validate()
	require.Error(t, err)
}

func TestValidateRejectsBadChunkSizes(t *testing.T) {
	cfg := Default()
	cfg.Chunking.MaxSize = cfg.Chunking.AvgSize // violates max >= 4*avg
	err := cfg.Validate()
	require.Error(t, err)
}

func TestValidateDoesNotSilentlyCorrect(t *testing.T) {
	cfg := Default()
	cfg.Chunking.MinSize = 0
	err := cfg.Validate()
	require.Error(t, err, "a malformed config must be rejected, not auto-corrected")
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "casyncd.yaml")

	cfg := Default()
	cfg.Store.Path = dir
	require.NoError(t, cfg.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Store.Path, got.Store.Path)
	assert.Equal(t, cfg.Chunking.AvgSize, got.Chunking.AvgSize)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoadRejectsInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("not: [valid yaml"), 0o644))
	_, err := Load(path)
	require.Error(t, err)
}
