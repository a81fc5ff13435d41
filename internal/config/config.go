package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DiscordToken  string          `yaml:"discord_token"`
	DatabasePath  string          `yaml:"database_path"`
	LogLevel      string          `yaml:"log_level"`
	RetentionDays int             `yaml:"retention_days"`
	Health        HealthConfig    `yaml:"health"`
	Detection     DetectionConfig `yaml:"detection"`
	Sweep         SweepConfig     `yaml:"sweep"`
}

type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type DetectionConfig struct {
	HoneypotChannel        string  `yaml:"honeypot_channel"`
	DeltaIntervalSeconds   int     `yaml:"delta_interval_seconds"`
	MinMsgLength           int     `yaml:"min_msg_length"`
	LinkRequired           bool    `yaml:"link_required"`
	SimilarityThreshold    float64 `yaml:"similarity_threshold"`
	CleanupIntervalMinutes int     `yaml:"cleanup_interval_minutes"`
}

type SweepConfig struct {
	PastIntervalSeconds   int `yaml:"past_interval_seconds"`
	FutureIntervalSeconds int `yaml:"future_interval_seconds"`
}

func DefaultConfig() Config {
	return Config{
		DatabasePath:  "/data/honeypot.db",
		LogLevel:      "info",
		RetentionDays: 14,
		Health:        HealthConfig{Enabled: false, Addr: ":8080"},
		Detection: DetectionConfig{
			HoneypotChannel:        "intro",
			DeltaIntervalSeconds:   120,
			MinMsgLength:           40,
			LinkRequired:           true,
			SimilarityThreshold:    0.85,
			CleanupIntervalMinutes: 5,
		},
		Sweep: SweepConfig{
			PastIntervalSeconds:   300,
			FutureIntervalSeconds: 300,
		},
	}
}

func Load() (Config, error) {
	cfg := DefaultConfig()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	if cfg.DiscordToken == "" {
		return Config{}, errors.New("DISCORD_TOKEN is required")
	}
	if cfg.Detection.SimilarityThreshold < 0 || cfg.Detection.SimilarityThreshold > 1 {
		return Config{}, errors.New("similarity_threshold must be in [0,1]")
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.DiscordToken = envString("DISCORD_TOKEN", cfg.DiscordToken)
	cfg.DatabasePath = envString("DATABASE_PATH", cfg.DatabasePath)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.RetentionDays = envInt("RETENTION_DAYS", cfg.RetentionDays)
	cfg.Health.Enabled = envBool("HEALTH_ENABLED", cfg.Health.Enabled)
	cfg.Health.Addr = envString("HEALTH_ADDR", cfg.Health.Addr)
	cfg.Detection.HoneypotChannel = envString("HONEYPOT_CHANNEL", cfg.Detection.HoneypotChannel)
	cfg.Detection.DeltaIntervalSeconds = envInt("DELTA_INTERVAL_SECONDS", cfg.Detection.DeltaIntervalSeconds)
	cfg.Detection.MinMsgLength = envInt("MIN_MSG_LENGTH", cfg.Detection.MinMsgLength)
	cfg.Detection.LinkRequired = envBool("LINK_REQUIRED", cfg.Detection.LinkRequired)
	cfg.Detection.SimilarityThreshold = envFloat("SIMILARITY_THRESHOLD", cfg.Detection.SimilarityThreshold)
	cfg.Detection.CleanupIntervalMinutes = envInt("CLEANUP_INTERVAL_MINUTES", cfg.Detection.CleanupIntervalMinutes)
	cfg.Sweep.PastIntervalSeconds = envInt("PAST_MSG_INTERVAL", cfg.Sweep.PastIntervalSeconds)
	cfg.Sweep.FutureIntervalSeconds = envInt("FUTURE_MSG_INTERVAL", cfg.Sweep.FutureIntervalSeconds)
}

func BuildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	lvl := strings.ToLower(level)
	switch lvl {
	case "debug", "info", "warn", "error":
		cfg.Level = zap.NewAtomicLevelAt(parseLevel(lvl))
	default:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	return cfg.Build()
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "1" || lower == "true" || lower == "yes"
	}
	return fallback
}
