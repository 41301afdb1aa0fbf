package config

import (
	"os"
	"strings"
)

// Environment constants
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// GetEnv returns the value of an environment variable or a default value if not set.
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// normalizeEnvironment lowercases an environment name. Empty means development.
func normalizeEnvironment(env string) string {
	env = strings.ToLower(strings.TrimSpace(env))
	if env == "" {
		return EnvDevelopment
	}
	return env
}

// IsProductionLike reports whether env is staging or production. Those
// environments must not fall back to local infrastructure defaults.
func IsProductionLike(env string) bool {
	switch normalizeEnvironment(env) {
	case EnvStaging, EnvProduction:
		return true
	default:
		return false
	}
}
