package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "app:\n  env: development\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8084, cfg.App.Port)
	assert.Equal(t, "mongodb://localhost:27017", cfg.Mongo.URI)
	assert.Equal(t, "uplift", cfg.Mongo.Database)
	assert.Equal(t, "message.persisted", cfg.Kafka.Topic)
}

func TestLoadEnvOverridesNestedKeys(t *testing.T) {
	path := writeConfig(t, `app:
  env: development
  port: 9000
  jwt_secret: from-file
mongodb:
  uri: mongodb://file:27017
`)

	t.Setenv("APP_JWT_SECRET", "from-env")
	t.Setenv("MONGODB_URI", "mongodb://env:27017")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.App.JWTSecret)
	assert.Equal(t, "mongodb://env:27017", cfg.Mongo.URI)
	assert.Equal(t, 9000, cfg.App.Port)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
