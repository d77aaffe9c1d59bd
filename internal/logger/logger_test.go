package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerLevels(t *testing.T) {
	cfg := DefaultConfig
	cfg.Level = LevelDebug
	log := NewLogger(cfg)

	assert.Equal(t, LevelDebug, log.GetLevel())

	log.SetLevel(LevelError)
	assert.Equal(t, LevelError, log.GetLevel())

	// an unknown level is ignored
	log.SetLevel(LogLevel("verbose"))
	assert.Equal(t, LevelError, log.GetLevel())
}

func TestNewLoggerBadLevelFallsBack(t *testing.T) {
	cfg := DefaultConfig
	cfg.Level = LogLevel("nope")
	log := NewLogger(cfg)
	require.NotNil(t, log)
	log.Info("still works")
}

func TestWithFieldReturnsIndependentLogger(t *testing.T) {
	base := NewLogger(DefaultConfig)
	child := base.WithField("run_id", "abc")
	require.NotNil(t, child)
	assert.NotSame(t, base, child)

	grandchild := child.WithFields(map[string]interface{}{"stage": "propensity"})
	require.NotNil(t, grandchild)
	grandchild.Info("fields attached")
}

func TestGlobalLogger(t *testing.T) {
	require.NotNil(t, GetGlobalLogger())

	cfg := DefaultConfig
	cfg.Format = FormatJSON
	Init(cfg)
	assert.NotNil(t, GetGlobalLogger())

	Init(DefaultConfig)
}

func TestFieldPairsAreTolerant(t *testing.T) {
	log := NewLogger(DefaultConfig)
	// odd field counts and non-string keys must not panic
	log.Info("message", "key")
	log.Info("message", 42, "value")
	log.Info("message", "key", "value", "dangling")
}
