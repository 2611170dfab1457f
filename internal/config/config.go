package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultListenAddr   = ":8080"
	defaultDBPath       = "taskflow.db"
	defaultPollInterval = 5 * time.Second
	defaultModelPolicy  = "first"
	defaultPipelineTTL  = 5 * time.Minute
	tokenSeparator      = ":"

	envListenAddr       = "TASKFLOW_LISTEN_ADDR"
	envDBPath           = "TASKFLOW_DB_PATH"
	envLogLevel         = "TASKFLOW_LOG_LEVEL"
	envBackendURL       = "OFFLOADMQ_BACKEND_URL"
	envBackendToken     = "OFFLOADMQ_TOKEN"
	envTokens           = "OAI_TOKENS"
	envPollInterval     = "TASKFLOW_POLL_INTERVAL"
	envPollMaxAttempts  = "TASKFLOW_POLL_MAX_ATTEMPTS"
	envPollMaxDuration  = "TASKFLOW_POLL_MAX_DURATION"
	envModelPolicy      = "TASKFLOW_MODEL_POLICY"
	envRedisAddr        = "TASKFLOW_REDIS_ADDR"
	envPipelineCacheTTL = "TASKFLOW_PIPELINE_CACHE_TTL"
	envPipelineDir      = "TASKFLOW_PIPELINE_DIR"
	envExecutionTimeout = "TASKFLOW_EXECUTION_TIMEOUT"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	ListenAddr string
	DBPath     string
	LogLevel   slog.Level

	BackendURL   string
	BackendToken string

	// Tokens are the bearer tokens accepted by the API before any login.
	Tokens []string

	PollInterval     time.Duration
	PollMaxAttempts  int
	PollMaxDuration  time.Duration
	ModelPolicy      string
	ExecutionTimeout time.Duration

	RedisAddr        string
	PipelineCacheTTL time.Duration
	PipelineDir      string
}

// Load reads configuration from environment variables with sensible defaults.
// Malformed numeric or duration values are reported together.
func Load() (Config, error) {
	cfg := Config{
		ListenAddr:       defaultListenAddr,
		DBPath:           defaultDBPath,
		LogLevel:         slog.LevelInfo,
		PollInterval:     defaultPollInterval,
		ModelPolicy:      defaultModelPolicy,
		PipelineCacheTTL: defaultPipelineTTL,
	}

	if v := os.Getenv(envListenAddr); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(envDBPath); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.LogLevel = ParseLogLevel(v)
	}
	if v := os.Getenv(envModelPolicy); v != "" {
		cfg.ModelPolicy = v
	}
	cfg.BackendURL = os.Getenv(envBackendURL)
	cfg.BackendToken = os.Getenv(envBackendToken)
	cfg.RedisAddr = os.Getenv(envRedisAddr)
	cfg.PipelineDir = os.Getenv(envPipelineDir)
	cfg.Tokens = parseTokens(os.Getenv(envTokens))

	var errs []error
	durations := []struct {
		env string
		dst *time.Duration
	}{
		{envPollInterval, &cfg.PollInterval},
		{envPollMaxDuration, &cfg.PollMaxDuration},
		{envPipelineCacheTTL, &cfg.PipelineCacheTTL},
		{envExecutionTimeout, &cfg.ExecutionTimeout},
	}
	for _, d := range durations {
		v := os.Getenv(d.env)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d.env, err))
			continue
		}
		*d.dst = parsed
	}
	if v := os.Getenv(envPollMaxAttempts); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", envPollMaxAttempts, err))
		} else {
			cfg.PollMaxAttempts = n
		}
	}

	return cfg, errors.Join(errs...)
}

// Validate checks the settings needed to reach the backend and run
// executions.
func (c Config) Validate() error {
	var errs []error
	if c.BackendURL == "" {
		errs = append(errs, fmt.Errorf("%s is required", envBackendURL))
	}
	if c.BackendToken == "" {
		errs = append(errs, fmt.Errorf("%s is required", envBackendToken))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", envPollInterval))
	}
	if c.PollMaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("%s must not be negative", envPollMaxAttempts))
	}
	if c.PollMaxDuration < 0 || c.ExecutionTimeout < 0 || c.PipelineCacheTTL < 0 {
		errs = append(errs, errors.New("durations must not be negative"))
	}
	return errors.Join(errs...)
}

// parseTokens splits a colon-separated token list, dropping blanks.
func parseTokens(s string) []string {
	var tokens []string
	for _, t := range strings.Split(s, tokenSeparator) {
		if t = strings.TrimSpace(t); t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

// ParseLogLevel maps a level name to a slog level, defaulting to info.
func ParseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
