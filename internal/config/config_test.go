package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "mongo:\n  uri: mongodb://localhost:27017\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "Users", cfg.Mongo.Database)
	assert.Equal(t, "Users-API-Keys", cfg.Mongo.Collection)
	assert.Equal(t, "input", cfg.Model.InputName)
	assert.Equal(t, "output_0", cfg.Model.OutputName)
	assert.Equal(t, 300, cfg.Model.ImageSize)
	assert.Positive(t, cfg.Model.MaxConcurrent)
	assert.False(t, cfg.Preprocess.FallbackScaling)
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
mongo:
  uri: mongodb://db.internal:27017
  database: Prod
model:
  path: /srv/models/skin.onnx
  image_size: 384
  max_concurrent: 2
preprocess:
  fallback_scaling: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "mongodb://db.internal:27017", cfg.Mongo.URI)
	assert.Equal(t, "Prod", cfg.Mongo.Database)
	assert.Equal(t, "/srv/models/skin.onnx", cfg.Model.Path)
	assert.Equal(t, 384, cfg.Model.ImageSize)
	assert.Equal(t, int64(2), cfg.Model.MaxConcurrent)
	assert.True(t, cfg.Preprocess.FallbackScaling)
}

func TestLoadRequiresMongoURI(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9090\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mongo.uri")
}
