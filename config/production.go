// Package config provides configuration management and environment variable handling for the application
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ProductionConfig holds all configuration for production environment
type ProductionConfig struct {
	Database     DatabaseConfig     `json:"database"`
	Server       ServerConfig       `json:"server"`
	Security     SecurityConfig     `json:"security"`
	Logging      LoggingConfig      `json:"logging"`
	Metrics      MetricsConfig      `json:"metrics"`
	Cache        CacheConfig        `json:"cache"`
	Deployment   DeploymentConfig   `json:"deployment"`
	Twilio       TwilioConfig       `json:"twilio"`
	Scheduler    SchedulerConfig    `json:"scheduler"`
	Transfer     TransferConfig     `json:"transfer"`
	Integrations IntegrationsConfig `json:"integrations"`
	Sentry       SentryConfig       `json:"sentry"`
}

type DatabaseConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Name            string        `json:"name"`
	User            string        `json:"user"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"ssl_mode"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
	SlowQueryLog    bool          `json:"slow_query_log"`
	SlowQueryTime   time.Duration `json:"slow_query_time"`
}

type ServerConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	BodyLimit       int           `json:"body_limit"`
	EnableMetrics   bool          `json:"enable_metrics"`
}

type SecurityConfig struct {
	// CORS
	AllowedOrigins []string `json:"allowed_origins"`
	CORSMaxAge     int      `json:"cors_max_age"`

	// Rate Limiting
	GlobalRateLimit int           `json:"global_rate_limit"` // requests per minute
	RateLimitWindow time.Duration `json:"rate_limit_window"`

	// Key used to seal partner API keys at rest (32 bytes, hex encoded)
	IntegrationSecretKey string `json:"-"`
}

type LoggingConfig struct {
	Level      string `json:"level"`  // debug, info, warn, error
	Format     string `json:"format"` // json, text
	Output     string `json:"output"` // stdout, file, both
	FilePath   string `json:"file_path"`
	MaxSize    int    `json:"max_size"` // MB
	MaxBackups int    `json:"max_backups"`
	MaxAge     int    `json:"max_age"` // days
	Compress   bool   `json:"compress"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type CacheConfig struct {
	Enabled        bool          `json:"enabled"`
	Provider       string        `json:"provider"` // redis, memory
	RedisURL       string        `json:"redis_url"`
	RedisDB        int           `json:"redis_db"`
	RedisPrefix    string        `json:"redis_prefix"`
	HealthInterval time.Duration `json:"health_interval"`
}

type DeploymentConfig struct {
	Environment string `json:"environment"`
	Version     string `json:"version"`
	CommitHash  string `json:"commit_hash"`
	BuildTime   string `json:"build_time"`
}

// TwilioConfig configures the telephony platform account and the public URLs
// the platform calls back into
type TwilioConfig struct {
	Provider   string        `json:"provider"` // twilio, mock
	AccountSID string        `json:"account_sid"`
	AuthToken  string        `json:"-"`
	APIURL     string        `json:"api_url"`     // public base URL of this service
	StorageURL string        `json:"storage_url"` // public base URL of rendered audio
	Timeout    time.Duration `json:"timeout"`
}

type SchedulerConfig struct {
	DispatcherEnabled  bool          `json:"dispatcher_enabled"`
	DispatcherInterval time.Duration `json:"dispatcher_interval"`
	TimeZone           string        `json:"time_zone"`          // zone the cron ticks in
	CampaignTimeZone   string        `json:"campaign_time_zone"` // default zone of campaign windows
	LogFile            string        `json:"log_file"`
}

type TransferConfig struct {
	ReservationEnabled bool          `json:"reservation_enabled"`
	ReservationTTL     time.Duration `json:"reservation_ttl"`
	ProbeTimeout       time.Duration `json:"probe_timeout"`
}

type IntegrationsConfig struct {
	YtelHost        string        `json:"ytel_host"` // %s is replaced with the account name
	DialpadBaseURL  string        `json:"dialpad_base_url"`
	OptimizePingURL string        `json:"optimize_ping_url"`
	RequestTimeout  time.Duration `json:"request_timeout"`
	RatePerSecond   float64       `json:"rate_per_second"`
	Burst           int           `json:"burst"`
}

type SentryConfig struct {
	DSN         string  `json:"-"`
	Environment string  `json:"environment"`
	SampleRate  float64 `json:"sample_rate"`
}

// LoadProductionConfig loads and validates configuration from environment variables
func LoadProductionConfig() (*ProductionConfig, error) {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	cfg := &ProductionConfig{
		Database: DatabaseConfig{
			Host:            getEnvString("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnvString("DB_NAME", "dialflow"),
			User:            getEnvString("DB_USER", "postgres"),
			Password:        getEnvString("DB_PASSWORD", ""),
			SSLMode:         getEnvString("DB_SSL_MODE", "require"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 50),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 15*time.Minute),
			SlowQueryLog:    getEnvBool("DB_SLOW_QUERY_LOG", true),
			SlowQueryTime:   getEnvDuration("DB_SLOW_QUERY_TIME", 1*time.Second),
		},
		Server: ServerConfig{
			Host:            getEnvString("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			BodyLimit:       getEnvInt("SERVER_BODY_LIMIT", 4*1024*1024),
			EnableMetrics:   getEnvBool("SERVER_ENABLE_METRICS", true),
		},
		Security: SecurityConfig{
			AllowedOrigins:       getEnvStringSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			CORSMaxAge:           getEnvInt("CORS_MAX_AGE", 86400),
			GlobalRateLimit:      getEnvInt("GLOBAL_RATE_LIMIT", 2000),
			RateLimitWindow:      getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
			IntegrationSecretKey: getEnvString("INTEGRATION_SECRET_KEY", ""),
		},
		Logging: LoggingConfig{
			Level:      getEnvString("LOG_LEVEL", "info"),
			Format:     getEnvString("LOG_FORMAT", "json"),
			Output:     getEnvString("LOG_OUTPUT", "both"),
			FilePath:   getEnvString("LOG_FILE_PATH", "data/dialflow.log"),
			MaxSize:    getEnvInt("LOG_MAX_SIZE", 100),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 5),
			MaxAge:     getEnvInt("LOG_MAX_AGE", 30),
			Compress:   getEnvBool("LOG_COMPRESS", true),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Path:    getEnvString("METRICS_PATH", "/metrics"),
		},
		Cache: CacheConfig{
			Enabled:        getEnvBool("CACHE_ENABLED", true),
			Provider:       getEnvString("CACHE_PROVIDER", "redis"),
			RedisURL:       getEnvString("CACHE_REDIS_URL", "redis://localhost:6379"),
			RedisDB:        getEnvInt("CACHE_REDIS_DB", 0),
			RedisPrefix:    getEnvString("CACHE_REDIS_PREFIX", "dialflow:"),
			HealthInterval: getEnvDuration("CACHE_HEALTH_INTERVAL", 30*time.Second),
		},
		Deployment: DeploymentConfig{
			Environment: getEnvString("APP_ENV", "production"),
			Version:     getEnvString("VERSION", "1.0.0"),
			CommitHash:  getEnvString("COMMIT_HASH", "unknown"),
			BuildTime:   getEnvString("BUILD_TIME", "unknown"),
		},
		Twilio: TwilioConfig{
			Provider:   getEnvString("TWILIO_PROVIDER", "twilio"),
			AccountSID: getEnvString("TWILIO_ACCOUNT_SID", ""),
			AuthToken:  getEnvString("TWILIO_AUTH_TOKEN", ""),
			APIURL:     strings.TrimRight(getEnvString("API_URL", "http://localhost:8080"), "/"),
			StorageURL: strings.TrimRight(getEnvString("STORAGE_URL", "http://localhost:8080/storage"), "/"),
			Timeout:    getEnvDuration("TWILIO_TIMEOUT", 15*time.Second),
		},
		Scheduler: SchedulerConfig{
			DispatcherEnabled:  getEnvBool("DISPATCHER_ENABLED", true),
			DispatcherInterval: getEnvDuration("DISPATCHER_INTERVAL", time.Minute),
			TimeZone:           getEnvString("SCHEDULER_TIME_ZONE", "America/Los_Angeles"),
			CampaignTimeZone:   getEnvString("TIME_ZONE", "America/Los_Angeles"),
			LogFile:            getEnvString("SCHEDULER_LOG_FILE", "data/dispatcher.log"),
		},
		Transfer: TransferConfig{
			ReservationEnabled: getEnvBool("TRANSFER_RESERVATION_ENABLED", false),
			ReservationTTL:     getEnvDuration("TRANSFER_RESERVATION_TTL", 45*time.Second),
			ProbeTimeout:       getEnvDuration("TRANSFER_PROBE_TIMEOUT", 8*time.Second),
		},
		Integrations: IntegrationsConfig{
			YtelHost:        getEnvString("YTEL_HOST", "http://%s.ytel.com"),
			DialpadBaseURL:  getEnvString("DIALPAD_BASE_URL", "https://dialpad.com/api/v2"),
			OptimizePingURL: getEnvString("OPTIMIZE_PING_URL", ""),
			RequestTimeout:  getEnvDuration("INTEGRATIONS_REQUEST_TIMEOUT", 10*time.Second),
			RatePerSecond:   getEnvFloat("INTEGRATIONS_RATE_PER_SECOND", 5),
			Burst:           getEnvInt("INTEGRATIONS_BURST", 10),
		},
		Sentry: SentryConfig{
			DSN:         getEnvString("SENTRY_DSN", ""),
			Environment: getEnvString("SENTRY_ENVIRONMENT", getEnvString("APP_ENV", "production")),
			SampleRate:  getEnvFloat("SENTRY_SAMPLE_RATE", 1.0),
		},
	}

	// Validate the loaded configuration
	if err := ValidateProductionConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var result []string
		for _, item := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

// ValidateProductionConfig validates the production configuration
func ValidateProductionConfig(cfg *ProductionConfig) error {
	var errors []string

	// Validate database configuration
	if cfg.Database.Host == "" {
		errors = append(errors, "DB_HOST is required")
	}
	if cfg.Database.Port <= 0 || cfg.Database.Port > 65535 {
		errors = append(errors, "DB_PORT must be between 1 and 65535")
	}
	if cfg.Database.Name == "" {
		errors = append(errors, "DB_NAME is required")
	}
	if cfg.Database.User == "" {
		errors = append(errors, "DB_USER is required")
	}

	// Validate server configuration
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errors = append(errors, "SERVER_PORT must be between 1 and 65535")
	}
	if cfg.Server.ReadTimeout <= 0 {
		errors = append(errors, "SERVER_READ_TIMEOUT must be positive")
	}
	if cfg.Server.WriteTimeout <= 0 {
		errors = append(errors, "SERVER_WRITE_TIMEOUT must be positive")
	}

	// Validate telephony configuration
	if cfg.Twilio.Provider != "mock" {
		if cfg.Twilio.AccountSID == "" {
			errors = append(errors, "TWILIO_ACCOUNT_SID is required for twilio provider")
		}
		if cfg.Twilio.AuthToken == "" {
			errors = append(errors, "TWILIO_AUTH_TOKEN is required for twilio provider")
		}
	}
	if cfg.Twilio.APIURL == "" {
		errors = append(errors, "API_URL is required")
	}

	// Validate scheduler configuration
	if cfg.Scheduler.DispatcherInterval < time.Second {
		errors = append(errors, "DISPATCHER_INTERVAL must be at least 1s")
	}
	for key, zone := range map[string]string{
		"SCHEDULER_TIME_ZONE": cfg.Scheduler.TimeZone,
		"TIME_ZONE":           cfg.Scheduler.CampaignTimeZone,
	} {
		if _, err := time.LoadLocation(zone); err != nil {
			errors = append(errors, fmt.Sprintf("%s is not a valid time zone: %v", key, err))
		}
	}

	// Validate security configuration
	if key := cfg.Security.IntegrationSecretKey; key != "" && len(key) != 64 {
		errors = append(errors, "INTEGRATION_SECRET_KEY must be 32 bytes hex encoded")
	}

	// Validate logging configuration
	if cfg.Logging.Level != "" {
		validLevels := []string{"debug", "info", "warn", "error"}
		valid := false
		for _, level := range validLevels {
			if cfg.Logging.Level == level {
				valid = true
				break
			}
		}
		if !valid {
			errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: %v", validLevels))
		}
	}

	// Validate cache configuration if enabled
	if cfg.Cache.Enabled {
		if cfg.Cache.Provider == "redis" && cfg.Cache.RedisURL == "" {
			errors = append(errors, "CACHE_REDIS_URL is required when cache is enabled with redis provider")
		}
	}
	if cfg.Transfer.ReservationEnabled && !cfg.Cache.Enabled {
		errors = append(errors, "TRANSFER_RESERVATION_ENABLED requires CACHE_ENABLED")
	}

	// Return validation errors if any
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}
