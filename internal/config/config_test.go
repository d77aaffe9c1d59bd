package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autouplift/internal/logger"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "adj_qini", cfg.Search.Metric)
	assert.True(t, cfg.Search.NormedMetric)
	assert.True(t, cfg.Search.IncreasingMetric)
	assert.Equal(t, 0.2, cfg.Search.TestSize)
	assert.Equal(t, int64(42), cfg.Search.Seed)
	assert.Equal(t, 3, cfg.Search.Level2Burst)
	assert.Equal(t, "binary", cfg.Search.BaseTask)
	assert.NoError(t, cfg.Validate())
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Search, cfg.Search)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
search:
  metric: qini
  test_size: 0.3
  timeout_seconds: 120
  seed: 7
  strategies:
    - TLearner
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "qini", cfg.Search.Metric)
	assert.Equal(t, 0.3, cfg.Search.TestSize)
	assert.Equal(t, 120, cfg.Search.TimeoutSeconds)
	assert.Equal(t, int64(7), cfg.Search.Seed)
	assert.Equal(t, []string{"TLearner"}, cfg.Search.Strategies)
	assert.Equal(t, logger.LevelDebug, cfg.Logging.Level)
	// fields absent from the file keep their defaults
	assert.Equal(t, 3, cfg.Search.Level2Burst)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("AUTOUPLIFT_METRIC", "qini")
	t.Setenv("AUTOUPLIFT_TEST_SIZE", "0.4")
	t.Setenv("AUTOUPLIFT_TIMEOUT_SECONDS", "60")
	t.Setenv("AUTOUPLIFT_NORMED_METRIC", "false")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "qini", cfg.Search.Metric)
	assert.Equal(t, 0.4, cfg.Search.TestSize)
	assert.Equal(t, 60, cfg.Search.TimeoutSeconds)
	assert.False(t, cfg.Search.NormedMetric)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"test size too small", func(c *Config) { c.Search.TestSize = 0 }},
		{"test size too large", func(c *Config) { c.Search.TestSize = 1.0 }},
		{"negative timeout", func(c *Config) { c.Search.TimeoutSeconds = -1 }},
		{"zero burst", func(c *Config) { c.Search.Level2Burst = 0 }},
		{"bad task", func(c *Config) { c.Search.BaseTask = "multiclass" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestEnvReaderTypes(t *testing.T) {
	t.Setenv("TESTPFX_NUM", "12")
	t.Setenv("TESTPFX_RATIO", "0.5")
	t.Setenv("TESTPFX_FLAG", "true")
	t.Setenv("TESTPFX_BADNUM", "not-a-number")

	env := NewEnvReader("TESTPFX_")
	assert.Equal(t, 12, env.GetInt("num", 0))
	assert.Equal(t, 0.5, env.GetFloat("ratio", 0))
	assert.True(t, env.GetBool("flag", false))
	assert.Equal(t, 99, env.GetInt("badnum", 99))
	assert.Equal(t, "fallback", env.GetString("missing", "fallback"))
}
