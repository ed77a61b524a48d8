package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the whole service configuration, loaded from the environment.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	KV       KVConfig
	Auth     AuthConfig
	Pairing  PairingConfig
}

type ServerConfig struct {
	Port        string
	CORSOrigins string
	Version     string
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DSN renders the lib/pq connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (r RedisConfig) Address() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// KVConfig selects the ephemeral key-value backend: "redis" or "memory".
type KVConfig struct {
	Mode string
	// Prefix namespaces every key in a shared Redis.
	Prefix        string
	SweepInterval time.Duration
}

type AuthConfig struct {
	JWT        JWTConfig
	BcryptCost int
}

type JWTConfig struct {
	SecretKey       string
	Issuer          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// PairingConfig drives the rotating registration tokens.
type PairingConfig struct {
	TokenLength      int
	RotationInterval time.Duration
	// TokenTTL is the safety expiry on both store keys. Zero means three intervals.
	TokenTTL time.Duration
	AppKey   string
}

// EffectiveTokenTTL resolves the zero default.
func (p PairingConfig) EffectiveTokenTTL() time.Duration {
	if p.TokenTTL > 0 {
		return p.TokenTTL
	}
	return 3 * p.RotationInterval
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			CORSOrigins: getEnv("CORS_ORIGINS", "*"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			Name:            getEnv("DB_NAME", "identity"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		KV: KVConfig{
			Mode:          strings.ToLower(getEnv("KV_MODE", "redis")),
			Prefix:        getEnv("KV_PREFIX", "identity:"),
			SweepInterval: getEnvDuration("KV_SWEEP_INTERVAL", time.Minute),
		},
		Auth: AuthConfig{
			JWT: JWTConfig{
				SecretKey:       getEnv("JWT_SECRET", ""),
				Issuer:          getEnv("JWT_ISSUER", "identity"),
				AccessTokenTTL:  getEnvDuration("ACCESS_TOKEN_TTL", 60*time.Minute),
				RefreshTokenTTL: getEnvDuration("REFRESH_TOKEN_TTL", 15*time.Minute),
			},
			BcryptCost: getEnvInt("BCRYPT_COST", 10),
		},
		Pairing: PairingConfig{
			TokenLength:      getEnvInt("REGISTRATION_TOKEN_LENGTH", 12),
			RotationInterval: getEnvDuration("REGISTRATION_TOKEN_INTERVAL", time.Minute),
			TokenTTL:         getEnvDuration("REGISTRATION_TOKEN_TTL", 0),
			AppKey:           getEnv("APP_KEY", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values Load cannot default safely.
func (c *Config) Validate() error {
	if c.Auth.JWT.SecretKey == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.KV.Mode != "redis" && c.KV.Mode != "memory" {
		return fmt.Errorf("unknown KV_MODE %q (use 'redis' or 'memory')", c.KV.Mode)
	}
	if c.Pairing.TokenLength < 8 {
		return fmt.Errorf("REGISTRATION_TOKEN_LENGTH must be at least 8, got %d", c.Pairing.TokenLength)
	}
	if c.Pairing.RotationInterval <= 0 {
		return fmt.Errorf("REGISTRATION_TOKEN_INTERVAL must be positive")
	}
	if c.Auth.JWT.AccessTokenTTL <= 0 || c.Auth.JWT.RefreshTokenTTL <= 0 {
		return fmt.Errorf("token lifetimes must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvDuration accepts Go durations ("90s") or a bare number of minutes.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if m, err := strconv.Atoi(value); err == nil {
		return time.Duration(m) * time.Minute
	}
	return fallback
}
