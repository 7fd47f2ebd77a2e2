package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJson_OverlaysOnlyNamedFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body := `{
		"endpoint_addr": ":9090",
		"storage_backend": "badger",
		"chunk_size_default": 1048576,
		"session_ttl": "30m"
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	oldArgs := os.Args
	os.Args = []string{"server", "-c", path}
	defer func() { os.Args = oldArgs }()

	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)

	assert.Equal(t, ":9090", cfg.EndpointAddr)
	assert.Equal(t, "badger", cfg.StorageBackend)
	assert.Equal(t, int32(1048576), cfg.ChunkSizeDefault)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)

	// untouched fields keep their defaults
	assert.Equal(t, "secretKey", cfg.SecretKey)
	assert.Equal(t, int32(64*1024), cfg.ChunkSizeMin)
}

func TestParseJson_NoFileFlagIsNoop(t *testing.T) {
	oldArgs := os.Args
	os.Args = []string{"server"}
	defer func() { os.Args = oldArgs }()

	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)

	assert.Equal(t, ":8080", cfg.EndpointAddr)
}
