package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"slices"
	"strings"
	"testing"
	"time"
)

// clearEnv blanks every variable Load reads.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		envListenAddr, envDBPath, envLogLevel, envBackendURL, envBackendToken,
		envTokens, envPollInterval, envPollMaxAttempts, envPollMaxDuration,
		envModelPolicy, envRedisAddr, envPipelineCacheTTL, envPipelineDir,
		envExecutionTimeout,
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.ListenAddr != defaultListenAddr {
		t.Errorf("ListenAddr = %q, want %q", cfg.ListenAddr, defaultListenAddr)
	}
	if cfg.DBPath != defaultDBPath {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, defaultDBPath)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want %v", cfg.LogLevel, slog.LevelInfo)
	}
	if cfg.PollInterval != defaultPollInterval || cfg.PollMaxAttempts != 0 || cfg.PollMaxDuration != 0 {
		t.Errorf("poll settings = %v/%d/%v", cfg.PollInterval, cfg.PollMaxAttempts, cfg.PollMaxDuration)
	}
	if cfg.ModelPolicy != defaultModelPolicy {
		t.Errorf("ModelPolicy = %q", cfg.ModelPolicy)
	}
	if cfg.PipelineCacheTTL != defaultPipelineTTL || cfg.RedisAddr != "" {
		t.Errorf("cache settings = %q/%v", cfg.RedisAddr, cfg.PipelineCacheTTL)
	}
	if len(cfg.Tokens) != 0 {
		t.Errorf("Tokens = %v, want none", cfg.Tokens)
	}
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(envListenAddr, ":9090")
	t.Setenv(envDBPath, "/tmp/test.db")
	t.Setenv(envLogLevel, "debug")
	t.Setenv(envBackendURL, "http://mq:3069")
	t.Setenv(envBackendToken, "k")
	t.Setenv(envTokens, "a: b ::c")
	t.Setenv(envPollInterval, "250ms")
	t.Setenv(envPollMaxAttempts, "12")
	t.Setenv(envPollMaxDuration, "10m")
	t.Setenv(envModelPolicy, "exact")
	t.Setenv(envRedisAddr, "localhost:6379")
	t.Setenv(envPipelineCacheTTL, "30s")
	t.Setenv(envPipelineDir, "./pipelines")
	t.Setenv(envExecutionTimeout, "1h")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.ListenAddr != ":9090" {
		t.Errorf("ListenAddr = %q, want %q", cfg.ListenAddr, ":9090")
	}
	if cfg.DBPath != "/tmp/test.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "/tmp/test.db")
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, want %v", cfg.LogLevel, slog.LevelDebug)
	}
	if cfg.BackendURL != "http://mq:3069" || cfg.BackendToken != "k" {
		t.Errorf("backend = %q/%q", cfg.BackendURL, cfg.BackendToken)
	}
	if !slices.Equal(cfg.Tokens, []string{"a", "b", "c"}) {
		t.Errorf("Tokens = %v", cfg.Tokens)
	}
	if cfg.PollInterval != 250*time.Millisecond || cfg.PollMaxAttempts != 12 || cfg.PollMaxDuration != 10*time.Minute {
		t.Errorf("poll settings = %v/%d/%v", cfg.PollInterval, cfg.PollMaxAttempts, cfg.PollMaxDuration)
	}
	if cfg.ModelPolicy != "exact" || cfg.RedisAddr != "localhost:6379" || cfg.PipelineCacheTTL != 30*time.Second {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.PipelineDir != "./pipelines" || cfg.ExecutionTimeout != time.Hour {
		t.Errorf("cfg = %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadMalformedValues(t *testing.T) {
	clearEnv(t)
	t.Setenv(envPollInterval, "often")
	t.Setenv(envPollMaxAttempts, "many")

	_, err := Load()
	if err == nil {
		t.Fatal("Load succeeded with malformed values")
	}
	for _, env := range []string{envPollInterval, envPollMaxAttempts} {
		if !strings.Contains(err.Error(), env) {
			t.Errorf("error %q does not mention %s", err, env)
		}
	}
}

func TestValidate(t *testing.T) {
	valid := Config{BackendURL: "http://mq", BackendToken: "k", PollInterval: time.Second}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"valid", func(*Config) {}, ""},
		{"no backend url", func(c *Config) { c.BackendURL = "" }, envBackendURL},
		{"no token", func(c *Config) { c.BackendToken = "" }, envBackendToken},
		{"zero interval", func(c *Config) { c.PollInterval = 0 }, envPollInterval},
		{"negative attempts", func(c *Config) { c.PollMaxAttempts = -1 }, envPollMaxAttempts},
		{"negative timeout", func(c *Config) { c.ExecutionTimeout = -time.Second }, "negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.want == "" {
				if err != nil {
					t.Errorf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"invalid", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		got := ParseLogLevel(tt.input)
		if got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestNewLoggerOutputsJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo)
	if logger == nil {
		t.Fatal("NewLogger returned nil")
	}

	logger.Info("test message", "key", "value")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("logger output is not valid JSON: %v\noutput: %s", err, buf.String())
	}

	for _, key := range []string{"time", "level", "msg"} {
		if _, ok := entry[key]; !ok {
			t.Errorf("JSON output missing expected key %q", key)
		}
	}
	if entry["msg"] != "test message" {
		t.Errorf("msg = %v, want %q", entry["msg"], "test message")
	}
	if entry["key"] != "value" {
		t.Errorf("key = %v, want %q", entry["key"], "value")
	}
}
