package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"SERVER_HOST", "SERVER_PORT", "SERVER_NUM_SUB_REACTOR", "SERVER_USE_SENDFILE",
		"SERVER_USE_THREAD_POOL", "SERVER_THREAD_POOL_SIZE", "SERVER_THREAD_POOL_QUEUE",
		"SERVER_TIMEOUT_MS", "SERVER_MAX_CONNECTIONS", "DB_DSN", "DB_MAX_OPEN_CONNS",
		"DB_MAX_IDLE_CONNS", "DB_CONN_MAX_LIFETIME", "LOG_LEVEL", "LOG_PATH", "DOC_ROOT",
	} {
		os.Unsetenv(key)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("/nonexistent/path.yaml")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, uint16(8080), cfg.Server.Port)
	assert.Equal(t, 4, cfg.Server.NumSubReactors)
	assert.True(t, cfg.Server.UseSendfile)
	assert.False(t, cfg.Server.UseThreadPool)
	assert.Equal(t, 8, cfg.Server.ThreadPoolSize)
	assert.Equal(t, "./www", cfg.DocRoot)
}

func TestLoadEnvOverridesDefault(t *testing.T) {
	clearEnv(t)
	os.Setenv("SERVER_PORT", "9999")
	defer os.Unsetenv("SERVER_PORT")

	cfg, err := Load("/nonexistent/path.yaml")
	require.NoError(t, err)
	assert.Equal(t, uint16(9999), cfg.Server.Port)
}

func TestLoadRejectsZeroSubReactors(t *testing.T) {
	clearEnv(t)
	os.Setenv("SERVER_NUM_SUB_REACTOR", "0")
	defer os.Unsetenv("SERVER_NUM_SUB_REACTOR")

	_, err := Load("/nonexistent/path.yaml")
	assert.Error(t, err)
}

func TestLoadRejectsZeroPort(t *testing.T) {
	clearEnv(t)
	os.Setenv("SERVER_PORT", "0")
	defer os.Unsetenv("SERVER_PORT")

	_, err := Load("/nonexistent/path.yaml")
	assert.Error(t, err)
}

func TestLoadRejectsEmptyDocRoot(t *testing.T) {
	clearEnv(t)
	os.Setenv("DOC_ROOT", "")
	defer os.Unsetenv("DOC_ROOT")

	_, err := Load("/nonexistent/path.yaml")
	assert.Error(t, err)
}
