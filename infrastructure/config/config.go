package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"mindmap-backend/domain/layout"
	"mindmap-backend/domain/versioning"
	"mindmap-backend/infrastructure/ai"
	"mindmap-backend/pkg/utils"
)

// Config holds all application configuration
type Config struct {
	Environment string `yaml:"environment" validate:"oneof=development staging production test"`
	LogLevel    string `yaml:"log_level" validate:"oneof=debug info warn error"`

	Server        ServerConfig        `yaml:"server"`
	Sessions      SessionsConfig      `yaml:"sessions"`
	AI            ai.Config           `yaml:"ai"`
	Observability ObservabilityConfig `yaml:"observability"`
	CORS          CORSConfig          `yaml:"cors"`

	// Dynamic holds the values the watcher may replace at runtime.
	// DynamicConfigPath points at the watched file; empty disables reloads.
	Dynamic           DynamicConfig `yaml:"dynamic"`
	DynamicConfigPath string        `yaml:"dynamic_config_path"`
}

// ServerConfig configures the HTTP server
type ServerConfig struct {
	Address         string        `yaml:"address" validate:"required"`
	ReadTimeout     time.Duration `yaml:"read_timeout" validate:"gte=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" validate:"gte=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gte=0"`
}

// SessionsConfig bounds the in-memory session store
type SessionsConfig struct {
	MaxSessions     int           `yaml:"max_sessions" validate:"gte=1"`
	IdleTTL         time.Duration `yaml:"idle_ttl" validate:"gte=0"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" validate:"gte=0"`
}

// ObservabilityConfig toggles metrics and tracing
type ObservabilityConfig struct {
	ServiceName     string  `yaml:"service_name"`
	EnableMetrics   bool    `yaml:"enable_metrics"`
	EnableTracing   bool    `yaml:"enable_tracing"`
	TracingEndpoint string  `yaml:"tracing_endpoint"`
	SampleRate      float64 `yaml:"sample_rate" validate:"gte=0,lte=1"`
}

// CORSConfig lists the origins allowed to call the API
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DynamicConfig is the runtime-changeable part of the configuration
type DynamicConfig struct {
	Layout  layout.Options `yaml:"layout"`
	History HistoryConfig  `yaml:"history"`
}

// HistoryConfig bounds the undo stack of each session
type HistoryConfig struct {
	Capacity int `yaml:"capacity"`
}

// Default returns the configuration used when nothing overrides it
func Default() *Config {
	return &Config{
		Environment: "development",
		LogLevel:    "info",
		Server: ServerConfig{
			Address:         ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    90 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Sessions: SessionsConfig{
			MaxSessions:     1000,
			IdleTTL:         2 * time.Hour,
			CleanupInterval: 5 * time.Minute,
		},
		AI: ai.DefaultConfig(),
		Observability: ObservabilityConfig{
			ServiceName:   "mindmap-backend",
			EnableMetrics: true,
			SampleRate:    1.0,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Dynamic: DynamicConfig{
			Layout:  layout.DefaultOptions(),
			History: HistoryConfig{Capacity: versioning.DefaultCapacity},
		},
	}
}

// LoadConfig builds the configuration from defaults, the YAML file named by
// CONFIG_FILE (when set) and environment variables, in that order.
func LoadConfig() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config YAML: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Environment = getEnv("ENVIRONMENT", c.Environment)
	c.LogLevel = strings.ToLower(getEnv("LOG_LEVEL", c.LogLevel))

	c.Server.Address = getEnv("SERVER_ADDRESS", c.Server.Address)
	c.Server.ReadTimeout = getEnvDuration("SERVER_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getEnvDuration("SERVER_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.ShutdownTimeout = getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)

	c.Sessions.MaxSessions = getEnvInt("MAX_SESSIONS", c.Sessions.MaxSessions)
	c.Sessions.IdleTTL = getEnvDuration("SESSION_IDLE_TTL", c.Sessions.IdleTTL)

	c.AI.APIKey = getEnv("GEMINI_API_KEY", getEnv("API_KEY", c.AI.APIKey))
	c.AI.FlashModel = getEnv("GEMINI_FLASH_MODEL", c.AI.FlashModel)
	c.AI.ProModel = getEnv("GEMINI_PRO_MODEL", c.AI.ProModel)
	c.AI.Timeout = getEnvDuration("GEMINI_TIMEOUT", c.AI.Timeout)

	c.Observability.EnableMetrics = getEnvBool("ENABLE_METRICS", c.Observability.EnableMetrics)
	c.Observability.EnableTracing = getEnvBool("ENABLE_TRACING", c.Observability.EnableTracing)
	c.Observability.TracingEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", c.Observability.TracingEndpoint)

	if origins := getEnv("CORS_ALLOWED_ORIGINS", ""); origins != "" {
		c.CORS.AllowedOrigins = splitList(origins)
	}

	c.Dynamic.History.Capacity = getEnvInt("HISTORY_CAPACITY", c.Dynamic.History.Capacity)
	c.DynamicConfigPath = getEnv("DYNAMIC_CONFIG_FILE", c.DynamicConfigPath)
}

// Validate checks the configuration for values the server cannot run with
func (c *Config) Validate() error {
	if err := utils.ValidateStruct(c); err != nil {
		return err
	}
	return c.Dynamic.Validate()
}

// Validate checks a dynamic configuration before it is installed
func (d DynamicConfig) Validate() error {
	if d.Layout.LevelSpacing < 0 || d.Layout.NodeSpacing < 0 {
		return fmt.Errorf("layout spacing cannot be negative")
	}
	if d.History.Capacity < 0 {
		return fmt.Errorf("history capacity cannot be negative")
	}
	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
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
