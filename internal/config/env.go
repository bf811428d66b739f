package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnv overlays environment variables on cfg. Unparseable values are
// ignored.
func ApplyEnv(cfg *LocalConfig) {
	cfg.Daemon.Port = getEnvInt("EXDOC_PORT", cfg.Daemon.Port)
	cfg.Daemon.Bind = getEnv("EXDOC_BIND", cfg.Daemon.Bind)
	cfg.Daemon.LogLevel = getEnv("EXDOC_LOG_LEVEL", cfg.Daemon.LogLevel)
	if origins := getEnv("EXDOC_ALLOWED_ORIGINS", ""); origins != "" {
		cfg.Daemon.AllowedOrigins = splitList(origins)
	}

	cfg.LLM.DefaultProvider = getEnv("LLM_PROVIDER", cfg.LLM.DefaultProvider)
	for name, env := range map[string]string{
		"claude": "ANTHROPIC_API_KEY",
		"openai": "OPENAI_API_KEY",
	} {
		if p, ok := cfg.LLM.Providers[name]; ok {
			p.APIKey = getEnv(env, p.APIKey)
		}
	}
	if p, ok := cfg.LLM.Providers["ollama"]; ok {
		p.URL = getEnv("OLLAMA_URL", p.URL)
	}

	cfg.Runner.Executor = getEnv("RUNNER_EXECUTOR", cfg.Runner.Executor)
	cfg.Runner.Python = getEnv("RUNNER_PYTHON", cfg.Runner.Python)
	cfg.Runner.Timeout = getEnvSeconds("RUNNER_TIMEOUT", cfg.Runner.Timeout)
	cfg.Runner.Docker.Image = getEnv("RUNNER_IMAGE", cfg.Runner.Docker.Image)
	cfg.Runner.Docker.MemoryMB = getEnvInt("RUNNER_MEMORY_MB", cfg.Runner.Docker.MemoryMB)
	cfg.Runner.Docker.CPULimit = getEnvFloat("RUNNER_CPU_LIMIT", cfg.Runner.Docker.CPULimit)
	cfg.Runner.Docker.NetworkOff = getEnvBool("RUNNER_NETWORK_OFF", cfg.Runner.Docker.NetworkOff)

	if url := getEnv("DATABASE_URL", ""); url != "" {
		cfg.Storage.Driver = "postgres"
		cfg.Storage.PostgresURL = url
	}
	cfg.Queue.URL = getEnv("RABBITMQ_URL", cfg.Queue.URL)
	cfg.Queue.Workers = getEnvInt("QUEUE_WORKERS", cfg.Queue.Workers)
	cfg.Cache.Addr = getEnv("REDIS_ADDR", cfg.Cache.Addr)
	cfg.Cache.Password = getEnv("REDIS_PASSWORD", cfg.Cache.Password)

	cfg.Auth.JWTSecret = getEnv("JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Auth.DefaultUsername = getEnv("EXDOC_USERNAME", cfg.Auth.DefaultUsername)

	cfg.Client.BaseURL = getEnv("EXDOC_BASE_URL", cfg.Client.BaseURL)
	cfg.Client.Token = getEnv("EXDOC_TOKEN", cfg.Client.Token)
	cfg.Client.Backfill = getEnv("EXDOC_BACKFILL", cfg.Client.Backfill)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvSeconds accepts a plain number of seconds or a Go duration.
func getEnvSeconds(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if n, err := strconv.Atoi(value); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
