package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"autouplift/internal/logger"
)

// Config represents the application configuration
type Config struct {
	Search  SearchConfig  `yaml:"search"`
	Logging logger.Config `yaml:"logging"`
}

// SearchConfig represents the uplift search configuration
type SearchConfig struct {
	Metric           string   `yaml:"metric"`
	NormedMetric     bool     `yaml:"normed_metric"`
	IncreasingMetric bool     `yaml:"increasing_metric"`
	TestSize         float64  `yaml:"test_size"`
	TimeoutSeconds   int      `yaml:"timeout_seconds"`        // 0 = unbounded
	LearnerTimeout   int      `yaml:"learner_timeout_seconds"` // 0 = derived from global budget
	Seed             int64    `yaml:"seed"`
	Level2Burst      int      `yaml:"level2_burst"`
	Strategies       []string `yaml:"strategies"`
	BaseTask         string   `yaml:"base_task"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Search: SearchConfig{
			Metric:           "adj_qini",
			NormedMetric:     true,
			IncreasingMetric: true,
			TestSize:         0.2,
			Seed:             42,
			Level2Burst:      3,
			BaseTask:         "binary",
		},
		Logging: logger.DefaultConfig,
	}
}

// Load loads configuration from a YAML file, applies environment
// overrides and validates the result
func Load(filename string) (*Config, error) {
	config := Default()

	if filename != "" {
		data, err := os.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	config.applyEnv()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// applyEnv overrides config fields from AUTOUPLIFT_* variables
func (c *Config) applyEnv() {
	env := NewEnvReader("AUTOUPLIFT_")

	c.Search.Metric = env.GetString("metric", c.Search.Metric)
	c.Search.TestSize = env.GetFloat("test_size", c.Search.TestSize)
	c.Search.TimeoutSeconds = env.GetInt("timeout_seconds", c.Search.TimeoutSeconds)
	c.Search.LearnerTimeout = env.GetInt("learner_timeout_seconds", c.Search.LearnerTimeout)
	c.Search.Seed = int64(env.GetInt("seed", int(c.Search.Seed)))
	c.Search.IncreasingMetric = env.GetBool("increasing_metric", c.Search.IncreasingMetric)
	c.Search.NormedMetric = env.GetBool("normed_metric", c.Search.NormedMetric)
	c.Search.BaseTask = env.GetString("base_task", c.Search.BaseTask)
	c.Logging.Level = logger.LogLevel(env.GetString("log_level", string(c.Logging.Level)))
}

// Validate checks the configuration for consistency
func (c *Config) Validate() error {
	if c.Search.TestSize <= 0.0 || c.Search.TestSize >= 1.0 {
		return fmt.Errorf("search.test_size must be in (0, 1), got %v", c.Search.TestSize)
	}
	if c.Search.TimeoutSeconds < 0 {
		return fmt.Errorf("search.timeout_seconds must not be negative")
	}
	if c.Search.Level2Burst <= 0 {
		return fmt.Errorf("search.level2_burst must be positive")
	}
	switch c.Search.BaseTask {
	case "binary", "reg":
	default:
		return fmt.Errorf("search.base_task must be binary or reg, got %q", c.Search.BaseTask)
	}
	return nil
}
