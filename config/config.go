package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Identity      IdentityConfig
	Database      DatabaseConfig
	Access        AccessConfig
	Users         UsersConfig
	CORS          CORSConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration
}

// IdentityConfig holds the identity provider (Supabase Auth) settings.
// URL and ServiceKey are mandatory: the gateway cannot verify tokens or manage accounts without them.
type IdentityConfig struct {
	URL        string
	ServiceKey string
	JWTSecret  string // Optional: enables local HS256 pre-verification of bearer tokens
	JWKSURL    string // Optional: enables local JWKS pre-verification of bearer tokens
	Timeout    time.Duration
}

// DatabaseConfig holds PostgreSQL settings for the role store.
// When ConnectionString is empty the role store is reached through the provider's REST interface.
type DatabaseConfig struct {
	ConnectionString string // From DATABASE_URL
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
	RunMigrations    bool
}

// AccessConfig tunes role resolution for sessions
type AccessConfig struct {
	RoleCacheSize     int
	RoleCacheTTL      time.Duration
	RoleLookupTimeout time.Duration
}

// UsersConfig tunes the account management flows
type UsersConfig struct {
	PageSize     int
	OnlineWindow time.Duration
}

// CORSConfig holds the raw origin allow-list (comma separated)
type CORSConfig struct {
	AllowedOrigins string
}

// ObservabilityConfig holds monitoring and logging configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string // json or console
	MetricsEnabled bool
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			RequestTimeout:  getEnvAsDuration("REQUEST_TIMEOUT", 30*time.Second),
		},
		Identity: IdentityConfig{
			URL:        strings.TrimRight(getEnvFirst("", "SUPABASE_URL", "VITE_SUPABASE_URL"), "/"),
			ServiceKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),
			JWTSecret:  getEnv("SUPABASE_JWT_SECRET", ""),
			JWKSURL:    getEnv("SUPABASE_JWKS_URL", ""),
			Timeout:    getEnvAsDuration("IDENTITY_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			ConnectionString: getEnv("DATABASE_URL", ""),
			MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			RunMigrations:    getEnvAsBool("DB_RUN_MIGRATIONS", false),
		},
		Access: AccessConfig{
			RoleCacheSize:     getEnvAsInt("ROLE_CACHE_SIZE", 1024),
			RoleCacheTTL:      getEnvAsDuration("ROLE_CACHE_TTL", 10*time.Second),
			RoleLookupTimeout: getEnvAsDuration("ROLE_LOOKUP_TIMEOUT", 5*time.Second),
		},
		Users: UsersConfig{
			PageSize:     getEnvAsInt("USERS_PAGE_SIZE", 200),
			OnlineWindow: getEnvAsDuration("ONLINE_WINDOW", 15*time.Minute),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnv("CORS_ORIGIN", "*"),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	if c.Identity.URL == "" {
		return fmt.Errorf("identity provider URL is required: set SUPABASE_URL or VITE_SUPABASE_URL")
	}
	if u, err := url.Parse(c.Identity.URL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("identity provider URL is invalid: %q", c.Identity.URL)
	}
	if c.Identity.ServiceKey == "" {
		return fmt.Errorf("identity provider service key is required: set SUPABASE_SERVICE_ROLE_KEY")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port out of range: %d", c.Server.Port)
	}

	if c.Users.PageSize <= 0 {
		return fmt.Errorf("users page size must be positive")
	}
	if c.Users.OnlineWindow <= 0 {
		return fmt.Errorf("online window must be positive")
	}

	if c.Access.RoleCacheSize <= 0 {
		return fmt.Errorf("role cache size must be positive")
	}

	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// UsesPostgres reports whether the role store is a direct PostgreSQL connection
func (c *Config) UsesPostgres() bool {
	return c.Database.ConnectionString != ""
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return c.ConnectionString
}

// LogString returns a safe string for logging (no password)
func (c *DatabaseConfig) LogString() string {
	u, err := url.Parse(c.ConnectionString)
	if err != nil || u.Host == "" {
		return "host=<from DATABASE_URL>"
	}
	port := u.Port()
	if port == "" {
		port = "5432"
	}
	db := strings.TrimPrefix(u.Path, "/")
	return fmt.Sprintf("host=%s port=%s database=%s", u.Hostname(), port, db)
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8787)
func getPort() int {
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	if value := os.Getenv("SERVER_PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	return 8787
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvFirst returns the first non-empty value among keys
func getEnvFirst(defaultValue string, keys ...string) string {
	for _, key := range keys {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			return value
		}
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
