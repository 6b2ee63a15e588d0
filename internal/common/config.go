package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server ServerConfig
	Export ExportConfig
	Data   DataConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	HTTPAddr        string
	BaseURL         string
	ShutdownTimeout time.Duration
	SubmitRPS       float64
	SubmitBurst     int
}

// ExportConfig holds orchestrator configuration
type ExportConfig struct {
	OutputDir         string
	MaxConcurrentJobs int
	MaxPendingJobs    int
	JobTimeout        time.Duration
	RetentionDays     int
	SweepInterval     time.Duration
	ThemesPath        string
}

// DataConfig holds dataset catalog configuration
type DataConfig struct {
	Dir             string
	WatchEnabled    bool
	WatchDebounce   time.Duration
	CacheDSN        string
	WarehouseDSN    string
	SQLCatalogPath  string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	DialTimeout     time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
			BaseURL:         getEnv("BASE_URL", ""),
			ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
			SubmitRPS:       getEnvAsFloat64("SUBMIT_RPS", 5),
			SubmitBurst:     getEnvAsInt("SUBMIT_BURST", 10),
		},
		Export: ExportConfig{
			OutputDir:         getEnv("EXPORT_OUTPUT_DIR", "./exports"),
			MaxConcurrentJobs: getEnvAsInt("EXPORT_MAX_CONCURRENT_JOBS", 3),
			MaxPendingJobs:    getEnvAsInt("EXPORT_MAX_PENDING_JOBS", 64),
			JobTimeout:        getEnvAsDuration("EXPORT_JOB_TIMEOUT", 10*time.Minute),
			RetentionDays:     getEnvAsInt("EXPORT_RETENTION_DAYS", 7),
			SweepInterval:     getEnvAsDuration("EXPORT_SWEEP_INTERVAL", 1*time.Hour),
			ThemesPath:        getEnv("EXPORT_THEMES_PATH", ""),
		},
		Data: DataConfig{
			Dir:             getEnv("DATA_DIR", "./data"),
			WatchEnabled:    getEnvAsBool("DATA_WATCH", true),
			WatchDebounce:   getEnvAsDuration("DATA_WATCH_DEBOUNCE", 500*time.Millisecond),
			CacheDSN:        getEnv("DATA_CACHE_DSN", ""),
			WarehouseDSN:    getEnv("DATA_WAREHOUSE_DSN", ""),
			SQLCatalogPath:  getEnv("DATA_SQL_CATALOG", ""),
			MaxConns:        getEnvAsInt32("DATA_DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt32("DATA_DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DATA_DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime: getEnvAsDuration("DATA_DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:     getEnvAsDuration("DATA_DB_DIAL_TIMEOUT", 3*time.Second),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.Export.OutputDir == "" {
		return NewAppError("CONFIG_ERROR", "EXPORT_OUTPUT_DIR is required", ErrInvalidInput)
	}
	if c.Export.MaxConcurrentJobs <= 0 {
		return NewAppError("CONFIG_ERROR", "EXPORT_MAX_CONCURRENT_JOBS must be positive", ErrInvalidInput)
	}
	if c.Export.MaxPendingJobs <= 0 {
		return NewAppError("CONFIG_ERROR", "EXPORT_MAX_PENDING_JOBS must be positive", ErrInvalidInput)
	}
	// Zero retention disables the sweeper.
	if c.Export.RetentionDays < 0 {
		return NewAppError("CONFIG_ERROR", "EXPORT_RETENTION_DAYS must not be negative", ErrInvalidInput)
	}
	if c.Data.Dir == "" {
		return NewAppError("CONFIG_ERROR", "DATA_DIR is required", ErrInvalidInput)
	}
	return nil
}
