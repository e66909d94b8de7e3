package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultBaseURL is the Falcon US-1 cloud.
const DefaultBaseURL = "https://api.crowdstrike.com"

// Config holds all configuration settings
type Config struct {
	API      APIConfig      `yaml:"api"`
	Database DatabaseConfig `yaml:"database"`
	App      AppConfig      `yaml:"app"`
}

// APIConfig holds API-related configuration
type APIConfig struct {
	BaseURL      string        `yaml:"base_url"`
	ClientID     string        `yaml:"client_id"`
	ClientSecret string        `yaml:"client_secret"`
	Timeout      time.Duration `yaml:"timeout"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AppConfig holds application-specific configuration
type AppConfig struct {
	Environment string `yaml:"environment"`
	LogLevel    string `yaml:"log_level"`
	WorkerCount int    `yaml:"worker_count"`
	BatchSize   int    `yaml:"batch_size"`
}

// LoadOptions controls where configuration is read from.
type LoadOptions struct {
	// File is an optional YAML file applied before environment variables.
	File string
	// LocalMode skips credential validation for commands that only read the local store.
	LocalMode bool
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: DefaultBaseURL,
			Timeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Path: filepath.Join("data", "devices.db"),
		},
		App: AppConfig{
			Environment: "production",
			LogLevel:    "info",
			WorkerCount: 5,
			BatchSize:   1000,
		},
	}
}

// Load loads configuration from defaults, an optional YAML file and environment variables, in that order.
func Load(opts LoadOptions) (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		// Only return error if file exists but couldn't be loaded
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("loading .env file: %w", err)
		}
	}

	cfg := Default()

	if opts.File != "" {
		if err := cfg.loadFile(opts.File); err != nil {
			return nil, err
		}
	}

	cfg.API = APIConfig{
		BaseURL:      getEnv("FALCON_BASE_URL", cfg.API.BaseURL),
		ClientID:     getEnv("FALCON_CLIENT_ID", cfg.API.ClientID),
		ClientSecret: getEnv("FALCON_CLIENT_SECRET", cfg.API.ClientSecret),
		Timeout:      getDurationEnv("API_TIMEOUT", cfg.API.Timeout),
	}

	cfg.Database = DatabaseConfig{
		Path: getEnv("DB_PATH", cfg.Database.Path),
	}

	cfg.App = AppConfig{
		Environment: getEnv("APP_ENV", cfg.App.Environment),
		LogLevel:    getEnv("LOG_LEVEL", cfg.App.LogLevel),
		WorkerCount: getIntEnv("WORKER_COUNT", cfg.App.WorkerCount),
		BatchSize:   getIntEnv("BATCH_SIZE", cfg.App.BatchSize),
	}

	if err := cfg.validate(opts.LocalMode); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

// validate performs configuration validation
func (c *Config) validate(localMode bool) error {
	if !localMode {
		if c.API.ClientID == "" {
			return fmt.Errorf("FALCON_CLIENT_ID is required when not in local mode")
		}
		if c.API.ClientSecret == "" {
			return fmt.Errorf("FALCON_CLIENT_SECRET is required when not in local mode")
		}
	}
	if c.API.BaseURL == "" {
		return fmt.Errorf("FALCON_BASE_URL is required")
	}
	if c.API.Timeout < 1*time.Second {
		return fmt.Errorf("API_TIMEOUT must be at least 1 second")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("DB_PATH is required")
	}

	if !isValidEnvironment(c.App.Environment) {
		return fmt.Errorf("invalid APP_ENV: %s", c.App.Environment)
	}
	if !isValidLogLevel(c.App.LogLevel) {
		return fmt.Errorf("invalid LOG_LEVEL: %s", c.App.LogLevel)
	}
	if c.App.WorkerCount < 1 {
		return fmt.Errorf("WORKER_COUNT must be at least 1")
	}
	if c.App.BatchSize < 1 {
		return fmt.Errorf("BATCH_SIZE must be at least 1")
	}

	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func isValidEnvironment(env string) bool {
	validEnvs := map[string]bool{
		"development": true,
		"testing":     true,
		"staging":     true,
		"production":  true,
	}
	return validEnvs[env]
}

func isValidLogLevel(level string) bool {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"fatal": true,
	}
	return validLevels[level]
}
