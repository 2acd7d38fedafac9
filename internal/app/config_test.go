package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"b3-dataflow/internal/codec"
	"b3-dataflow/internal/errors"
	"b3-dataflow/internal/provider"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "b3.yaml")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "America/Sao_Paulo", cfg.Location().String())
	assert.Equal(t, codec.CompressionZstd, cfg.CodecOptions().Compression)
	assert.False(t, cfg.UsesNATS())
}

func TestLoadFileThenEnv(t *testing.T) {
	path := writeFile(t, `
ticker: "^BVSP"
dataset: bvsp
lookback: 168h
storage: nats
nats_url: nats://127.0.0.1:4222
polygon_api_keys: [a, b]
`)
	t.Setenv("B3_DATASET", "ibov")
	t.Setenv("B3_COMPRESSION", "snappy")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ibov", cfg.Dataset, "env wins over file")
	assert.Equal(t, 7*24*time.Hour, cfg.Lookback)
	assert.Equal(t, "nats", cfg.Storage)
	assert.Equal(t, []string{"a", "b"}, cfg.PolygonAPIKeys)
	assert.Equal(t, codec.CompressionSnappy, cfg.CodecOptions().Compression)
	assert.Equal(t, "IBOV", cfg.TickerLabel, "defaults survive")
	assert.True(t, cfg.UsesNATS())
}

func TestLoadEnvList(t *testing.T) {
	t.Setenv("B3_PROVIDER", "polygon")
	t.Setenv("B3_POLYGON_API_KEYS", "k1,k2")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"k1", "k2"}, cfg.PolygonAPIKeys)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown provider", "provider: bloomberg"},
		{"polygon without keys", "provider: polygon"},
		{"nats storage without url", "storage: nats"},
		{"nats runner without url", "runner: nats"},
		{"raw prefix without slash", "raw_prefix: raw"},
		{"same prefixes", "raw_prefix: data/\nrefined_prefix: data/"},
		{"dataset with dot", "dataset: ibov.v2"},
		{"bad timezone", "timezone: Mars/Olympus"},
		{"zero lookback", "lookback: 0s"},
		{"bad compression", "compression: brotli"},
		{"malformed yaml", "ticker: [unterminated"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.yaml))
			require.ErrorIs(t, err, errors.ErrInvalidConfig)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestCreateProvider(t *testing.T) {
	cfg := DefaultConfig()
	dp, err := CreateProvider(cfg)
	require.NoError(t, err)
	assert.IsType(t, &provider.YahooProvider{}, dp)

	cfg.Provider = "polygon"
	_, err = CreateProvider(cfg)
	require.ErrorIs(t, err, errors.ErrInvalidConfig)

	cfg.PolygonAPIKeys = []string{"k"}
	dp, err = CreateProvider(cfg)
	require.NoError(t, err)
	assert.Equal(t, "Polygon", dp.GetName())

	cfg.Provider = "tiingo"
	_, err = CreateProvider(cfg)
	require.ErrorIs(t, err, errors.ErrInvalidConfig)
}
