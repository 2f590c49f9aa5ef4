// Package config loads the server configuration from a YAML file with
// environment variable overrides. Environment variables take precedence over
// file values so secrets never need to live in the config file.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the voicelink server.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Auth     AuthConfig     `yaml:"auth"`
	Audio    AudioConfig    `yaml:"audio"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	LLM      ProviderConfig `yaml:"llm"`
	STT      ProviderConfig `yaml:"stt"`
	TTS      ProviderConfig `yaml:"tts"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port        string   `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// AuthConfig holds JWT and allow-list settings.
type AuthConfig struct {
	JWTSecret              string   `yaml:"jwt_secret"`
	AccessTokenExpireHours int      `yaml:"access_token_expire_hours"`
	RefreshTokenExpireDays int      `yaml:"refresh_token_expire_days"`
	Allowlist              []string `yaml:"allowlist"`
}

// AudioConfig holds the expected wire audio format and the buffering window.
type AudioConfig struct {
	SampleRate    int     `yaml:"sample_rate"`
	Channels      int     `yaml:"channels"`
	BitDepth      int     `yaml:"bit_depth"`
	WindowSeconds float64 `yaml:"window_seconds"`
}

// PipelineConfig bounds the AI pipeline.
type PipelineConfig struct {
	StageTimeoutSeconds int `yaml:"stage_timeout_seconds"`
	QueueSize           int `yaml:"queue_size"`
}

// ProviderConfig is the common block for an external AI provider.
type ProviderConfig struct {
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
	Voice    string `yaml:"voice"`
	Language string `yaml:"language"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads and parses the configuration file, applies environment variable
// overrides and defaults, and validates the result. A missing file is not an
// error; the configuration then comes from environment and defaults alone.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// fall through to env + defaults
	default:
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv("AUTH_ALLOWLIST"); v != "" {
		var list []string
		for _, e := range strings.Split(v, ",") {
			if e = strings.TrimSpace(e); e != "" {
				list = append(list, e)
			}
		}
		c.Auth.Allowlist = list
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		c.Server.CORSOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("ELEVEN_LABS_API_KEY"); v != "" {
		c.TTS.APIKey = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Auth.AccessTokenExpireHours == 0 {
		c.Auth.AccessTokenExpireHours = 1
	}
	if c.Auth.RefreshTokenExpireDays == 0 {
		c.Auth.RefreshTokenExpireDays = 30
	}
	if c.Audio.SampleRate == 0 {
		c.Audio.SampleRate = 16000
	}
	if c.Audio.Channels == 0 {
		c.Audio.Channels = 1
	}
	if c.Audio.BitDepth == 0 {
		c.Audio.BitDepth = 16
	}
	if c.Audio.WindowSeconds == 0 {
		c.Audio.WindowSeconds = 5.0
	}
	if c.Pipeline.StageTimeoutSeconds == 0 {
		c.Pipeline.StageTimeoutSeconds = 30
	}
	if c.Pipeline.QueueSize == 0 {
		c.Pipeline.QueueSize = 8
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" || c.Auth.JWTSecret == "CHANGE_ME" {
		return fmt.Errorf("jwt_secret is not configured; set JWT_SECRET or auth.jwt_secret")
	}
	if c.Audio.SampleRate < 8000 || c.Audio.SampleRate > 48000 {
		return fmt.Errorf("audio sample_rate must be between 8000 and 48000, got %d", c.Audio.SampleRate)
	}
	if c.Audio.Channels != 1 {
		return fmt.Errorf("only mono audio is supported, got %d channels", c.Audio.Channels)
	}
	if c.Audio.BitDepth != 16 {
		return fmt.Errorf("only 16-bit PCM is supported, got %d", c.Audio.BitDepth)
	}
	if c.Audio.WindowSeconds <= 0 {
		return fmt.Errorf("audio window_seconds must be positive, got %f", c.Audio.WindowSeconds)
	}
	if c.Pipeline.QueueSize < 1 {
		return fmt.Errorf("pipeline queue_size must be at least 1, got %d", c.Pipeline.QueueSize)
	}
	return nil
}

// StageTimeout returns the per-stage pipeline timeout as a duration.
func (c *Config) StageTimeout() time.Duration {
	return time.Duration(c.Pipeline.StageTimeoutSeconds) * time.Second
}
