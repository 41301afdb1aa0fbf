package config

import (
	"os"
	"testing"
)

func TestGetEnv(t *testing.T) {
	// Test with existing env var
	os.Setenv("TEST_GET_ENV_VAR", "test_value")
	defer os.Unsetenv("TEST_GET_ENV_VAR")

	got := GetEnv("TEST_GET_ENV_VAR", "default")
	if got != "test_value" {
		t.Errorf("GetEnv() = %v, want %v", got, "test_value")
	}

	// Test with non-existing env var
	got = GetEnv("NON_EXISTING_VAR", "default_value")
	if got != "default_value" {
		t.Errorf("GetEnv() = %v, want %v", got, "default_value")
	}
}

func TestNormalizeEnvironment(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"development", "development"},
		{"STAGING", "staging"},
		{" Production ", "production"},
		{"", "development"},
	}

	for _, tt := range tests {
		if got := normalizeEnvironment(tt.in); got != tt.want {
			t.Errorf("normalizeEnvironment(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestIsProductionLike(t *testing.T) {
	tests := []struct {
		env  string
		want bool
	}{
		{"development", false},
		{"", false},
		{"test", false},
		{"staging", true},
		{"production", true},
		{"PRODUCTION", true},
	}

	for _, tt := range tests {
		if got := IsProductionLike(tt.env); got != tt.want {
			t.Errorf("IsProductionLike(%q) = %v, want %v", tt.env, got, tt.want)
		}
	}
}
