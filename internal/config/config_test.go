package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		ServerPort:       8080,
		CallingAETitle:   "DICOMTRANSFER",
		BatchWorkers:     4,
		PatientCacheSize: 64,
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	c := validConfig()
	c.ServerPort = 0
	assert.Error(t, c.Validate())

	c = validConfig()
	c.ServerPort = 70000
	assert.Error(t, c.Validate())

	c = validConfig()
	c.CallingAETitle = ""
	assert.Error(t, c.Validate())

	c = validConfig()
	c.CallingAETitle = "WAY_TOO_LONG_AE_TITLE"
	assert.Error(t, c.Validate())

	c = validConfig()
	c.BatchWorkers = 0
	assert.Error(t, c.Validate())

	c = validConfig()
	c.PatientCacheSize = -1
	assert.Error(t, c.Validate())
}

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, "DICOMTRANSFER", cfg.CallingAETitle)
	assert.Equal(t, 5*time.Second, cfg.RetryInterval)
	assert.Equal(t, []string{"PR", "SR"}, cfg.ExcludedModalities)
	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("CALLING_AE_TITLE", "RESEARCHNODE")
	t.Setenv("EXCLUDED_MODALITIES", "PR, SR ,KO")
	t.Setenv("RETRY_INTERVAL", "30s")

	cfg := Load()

	assert.Equal(t, 9090, cfg.ServerPort)
	assert.Equal(t, "RESEARCHNODE", cfg.CallingAETitle)
	assert.Equal(t, []string{"PR", "SR", "KO"}, cfg.ExcludedModalities)
	assert.Equal(t, 30*time.Second, cfg.RetryInterval)
}
