package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// EnvProduction enables production-only behaviour such as secure cookies.
	EnvProduction = "production"

	// StoreMemory keeps user records in process memory.
	StoreMemory = "memory"
	// StorePostgres persists user records in PostgreSQL.
	StorePostgres = "postgres"
)

// Config aggregates runtime configuration for the MemoryLane API and client.
type Config struct {
	Env      string
	Server   ServerConfig
	Store    string
	Postgres PostgresConfig
	Auth     AuthConfig
	CORS     CORSConfig
	Metrics  MetricsConfig
	Client   ClientConfig
}

// Production reports whether the process runs in production mode.
func (c Config) Production() bool {
	return c.Env == EnvProduction
}

// ServerConfig parameterizes the HTTP server.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Address returns the listen address in host:port form.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// PostgresConfig contains PostgreSQL connection details.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int32
}

// DSN returns the PostgreSQL DSN string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Database, p.SSLMode)
}

// AuthConfig groups authentication-related settings.
type AuthConfig struct {
	AccessTokenSecret   string
	RefreshTokenSecret  string
	AccessTokenTTL      time.Duration
	RefreshTokenTTL     time.Duration
	BcryptCost          int
	RegisterAutoLogin   bool
	SecureCookies       bool
	DefaultAuthProvider string
}

// CORSConfig lists the browser origins allowed to call the API with credentials.
type CORSConfig struct {
	AllowedOrigins []string
}

// MetricsConfig groups observability settings.
type MetricsConfig struct {
	PrometheusPath string
}

// ClientConfig parameterizes the interactive session client.
type ClientConfig struct {
	BaseURL    string
	MirrorPath string
	Timeout    time.Duration
	IdP        IdentityProviderConfig
}

// IdentityProviderConfig describes the hosted identity provider used for
// federated logout. An empty Domain disables the provider redirect.
type IdentityProviderConfig struct {
	Domain   string
	ClientID string
	ReturnTo string
}

// Load reads configuration values from environment variables, applying defaults.
func Load() (Config, error) {
	env := strings.ToLower(getString("MEMORYLANE_ENV", "development"))

	cfg := Config{
		Env: env,
		Server: ServerConfig{
			Host:         getString("MEMORYLANE_API_HOST", "0.0.0.0"),
			Port:         getInt("MEMORYLANE_API_PORT", 8000),
			ReadTimeout:  getDuration("MEMORYLANE_API_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getDuration("MEMORYLANE_API_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:  getDuration("MEMORYLANE_API_IDLE_TIMEOUT", 60*time.Second),
		},
		Store: strings.ToLower(getString("MEMORYLANE_STORE", StorePostgres)),
		Postgres: PostgresConfig{
			Host:     getString("POSTGRES_HOST", "localhost"),
			Port:     getInt("POSTGRES_PORT", 5432),
			User:     getString("POSTGRES_USER", "memorylane_app"),
			Password: getString("POSTGRES_PASSWORD", "change-me"),
			Database: getString("POSTGRES_DB", "memorylane"),
			SSLMode:  strings.ToLower(getString("POSTGRES_SSL_MODE", "disable")),
			MaxConns: int32(getInt("POSTGRES_MAX_CONNS", 10)),
		},
		CORS: CORSConfig{
			AllowedOrigins: getList("MEMORYLANE_CORS_ORIGINS", []string{"http://localhost:5173", "http://localhost:5174"}),
		},
		Metrics: MetricsConfig{
			PrometheusPath: getString("MEMORYLANE_METRICS_PATH", "/metrics"),
		},
		Client: ClientConfig{
			BaseURL:    strings.TrimRight(getString("MEMORYLANE_CLIENT_BASE_URL", "http://localhost:8000/api"), "/"),
			MirrorPath: getString("MEMORYLANE_CLIENT_MIRROR_PATH", "memorylane.db"),
			Timeout:    getDuration("MEMORYLANE_CLIENT_TIMEOUT", 10*time.Second),
			IdP: IdentityProviderConfig{
				Domain:   getString("MEMORYLANE_IDP_DOMAIN", ""),
				ClientID: getString("MEMORYLANE_IDP_CLIENT_ID", ""),
				ReturnTo: getString("MEMORYLANE_IDP_RETURN_TO", "http://localhost:5173/signin"),
			},
		},
	}
	cfg.Auth = loadAuthConfig(cfg.Production())

	switch cfg.Store {
	case StoreMemory, StorePostgres:
	default:
		return Config{}, fmt.Errorf("unknown MEMORYLANE_STORE %q", cfg.Store)
	}

	if cfg.Production() && (cfg.Auth.AccessTokenSecret == defaultAccessSecret || cfg.Auth.RefreshTokenSecret == defaultRefreshSecret) {
		return Config{}, fmt.Errorf("token signing secrets must be set in production")
	}

	return cfg, nil
}

const (
	defaultAccessSecret  = "change-me-to-a-32-byte-secret"
	defaultRefreshSecret = "change-me-to-a-64-byte-secret"
)

func getString(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.ToLower(strings.TrimSpace(val))
		switch val {
		case "1", "true", "t", "yes", "y":
			return true
		case "0", "false", "f", "no", "n":
			return false
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getList(key string, fallback []string) []string {
	val, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func loadAuthConfig(production bool) AuthConfig {
	cost := getInt("MEMORYLANE_AUTH_BCRYPT_COST", 12)
	if cost < 4 || cost > 31 {
		cost = 12
	}

	return AuthConfig{
		AccessTokenSecret:   getString("MEMORYLANE_JWT_SECRET", defaultAccessSecret),
		RefreshTokenSecret:  getString("MEMORYLANE_JWT_REFRESH_SECRET", defaultRefreshSecret),
		AccessTokenTTL:      getDuration("MEMORYLANE_AUTH_ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL:     getDuration("MEMORYLANE_AUTH_REFRESH_TOKEN_TTL", 240*time.Hour),
		BcryptCost:          cost,
		RegisterAutoLogin:   getBool("MEMORYLANE_AUTH_REGISTER_AUTO_LOGIN", false),
		SecureCookies:       production,
		DefaultAuthProvider: getString("MEMORYLANE_OAUTH_DEFAULT_PROVIDER", "google"),
	}
}
