// Package config loads the YAML application configuration and sets up
// process-wide logging.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
	"gopkg.in/yaml.v3"
)

// defaultConfigPath is used when no -config flag is given.
const defaultConfigPath = "config.yaml"

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// DatabaseConfig selects the backing database.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// LogConfig controls logrus output and file rotation.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max-size-mb"`
	MaxBackups int    `yaml:"max-backups"`
}

// JWTConfig signs admin session tokens.
type JWTConfig struct {
	Secret        string `yaml:"secret"`
	ExpiryMinutes int    `yaml:"expiry-minutes"`
}

// Expiry returns the token lifetime with a one-day default.
func (j JWTConfig) Expiry() time.Duration {
	if j.ExpiryMinutes <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(j.ExpiryMinutes) * time.Minute
}

// AdminConfig holds the management login credential.
type AdminConfig struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password-hash"`
}

// AppConfig is the root configuration document.
type AppConfig struct {
	Server               ServerConfig   `yaml:"server"`
	Database             DatabaseConfig `yaml:"database"`
	Log                  LogConfig      `yaml:"log"`
	JWT                  JWTConfig      `yaml:"jwt"`
	Admin                AdminConfig    `yaml:"admin"`
	SweepIntervalMinutes int            `yaml:"sweep-interval-minutes"`
}

// SweepInterval returns the credit expiry sweep cadence.
func (c AppConfig) SweepInterval() time.Duration {
	if c.SweepIntervalMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(c.SweepIntervalMinutes) * time.Minute
}

// ResolveConfigPath normalizes a config path, falling back to the default.
func ResolveConfigPath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return defaultConfigPath
	}
	return path
}

// Load reads and validates the YAML configuration file.
func Load(path string) (*AppConfig, error) {
	raw, errRead := os.ReadFile(ResolveConfigPath(path))
	if errRead != nil {
		return nil, fmt.Errorf("read config: %w", errRead)
	}
	var cfg AppConfig
	if errUnmarshal := yaml.Unmarshal(raw, &cfg); errUnmarshal != nil {
		return nil, fmt.Errorf("parse config: %w", errUnmarshal)
	}
	if strings.TrimSpace(cfg.Database.DSN) == "" {
		return nil, fmt.Errorf("config: database.dsn is required")
	}
	if strings.TrimSpace(cfg.JWT.Secret) == "" {
		return nil, fmt.Errorf("config: jwt.secret is required")
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8318"
	}
	return &cfg, nil
}

// SetupLogging configures logrus level and optional rotated file output.
func SetupLogging(cfg LogConfig) {
	level, errParse := log.ParseLevel(strings.TrimSpace(cfg.Level))
	if errParse != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	if file := strings.TrimSpace(cfg.File); file != "" {
		if dir := filepath.Dir(file); dir != "." {
			_ = os.MkdirAll(dir, 0o755)
		}
		maxSize := cfg.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 100
		}
		maxBackups := cfg.MaxBackups
		if maxBackups <= 0 {
			maxBackups = 3
		}
		log.SetOutput(&lumberjack.Logger{
			Filename:   file,
			MaxSize:    maxSize,
			MaxBackups: maxBackups,
			Compress:   true,
		})
	}
}
