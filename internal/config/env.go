package config

import (
	"os"
	"strconv"
	"strings"
)

// EnvReader reads typed configuration overrides from prefixed
// environment variables
type EnvReader struct {
	prefix string
}

// NewEnvReader creates a reader using the given variable prefix
func NewEnvReader(prefix string) *EnvReader {
	return &EnvReader{prefix: prefix}
}

// GetString gets a string environment variable
func (e *EnvReader) GetString(key string, defaultValue string) string {
	value := os.Getenv(e.prefix + strings.ToUpper(key))
	if value == "" {
		return defaultValue
	}
	return value
}

// GetInt gets an integer environment variable
func (e *EnvReader) GetInt(key string, defaultValue int) int {
	value := e.GetString(key, "")
	if value == "" {
		return defaultValue
	}
	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}
	return defaultValue
}

// GetFloat gets a float environment variable
func (e *EnvReader) GetFloat(key string, defaultValue float64) float64 {
	value := e.GetString(key, "")
	if value == "" {
		return defaultValue
	}
	if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
		return floatValue
	}
	return defaultValue
}

// GetBool gets a boolean environment variable
func (e *EnvReader) GetBool(key string, defaultValue bool) bool {
	value := e.GetString(key, "")
	if value == "" {
		return defaultValue
	}
	if boolValue, err := strconv.ParseBool(value); err == nil {
		return boolValue
	}
	return defaultValue
}
