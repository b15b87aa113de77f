package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Auth     AuthConfig
	Email    EmailConfig
	Redis    RedisConfig
}

type DatabaseConfig struct {
	Host              string        `env:"DB_HOST" envDefault:"localhost"`
	Port              int           `env:"DB_PORT" envDefault:"5432"`
	User              string        `env:"DB_USER" envDefault:"postgres"`
	Password          string        `env:"DB_PASSWORD"`
	Name              string        `env:"DB_NAME" envDefault:"projectgrid"`
	SSLMode           string        `env:"DB_SSLMODE" envDefault:"disable"`
	MaxConns          int32         `env:"DB_MAX_CONNS" envDefault:"25"`
	MinConns          int32         `env:"DB_MIN_CONNS" envDefault:"5"`
	MaxConnLifetime   time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"5m"`
	MaxConnIdleTime   time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"1m"`
	HealthCheckPeriod time.Duration `env:"DB_HEALTH_CHECK_PERIOD" envDefault:"1m"`
	AutoMigrate       bool          `env:"DB_AUTO_MIGRATE" envDefault:"true"`
}

type ServerConfig struct {
	Port                 string        `env:"PORT" envDefault:"8080"`
	Env                  string        `env:"ENV" envDefault:"development"`
	LogLevel             string        `env:"LOG_LEVEL" envDefault:"info"`
	AllowedOrigins       []string      `env:"ALLOWED_ORIGINS" envSeparator:","`
	TrustedProxies       []string      `env:"TRUSTED_PROXIES" envSeparator:","`
	ReadTimeout          time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout         time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"15s"`
	IdleTimeout          time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout      time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	AuthRateLimit        int           `env:"AUTH_RATE_LIMIT" envDefault:"10"`
	BotProtectionEnabled bool          `env:"BOT_PROTECTION_ENABLED" envDefault:"true"`
}

type AuthConfig struct {
	JWTSecret                 string        `env:"JWT_SECRET"`
	EmailVerificationSecret   string        `env:"JWT_EMAIL_VERIFICATION_SECRET"`
	PasswordResetSecret       string        `env:"JWT_PASSWORD_RESET_SECRET"`
	LoginSecret               string        `env:"JWT_LOGIN_SECRET"`
	EmailVerificationTokenTTL time.Duration `env:"EMAIL_VERIFICATION_TOKEN_TTL" envDefault:"1h"`
	PasswordResetTokenTTL     time.Duration `env:"PASSWORD_RESET_TOKEN_TTL" envDefault:"10m"`
	LoginTokenTTL             time.Duration `env:"LOGIN_TOKEN_TTL" envDefault:"168h"`
	BcryptCost                int           `env:"BCRYPT_COST" envDefault:"12"`
	CleanupInterval           time.Duration `env:"TOKEN_CLEANUP_INTERVAL" envDefault:"1h"`
	TimingDelayBase           time.Duration `env:"AUTH_TIMING_DELAY_BASE" envDefault:"500ms"`
	TimingDelayJitter         time.Duration `env:"AUTH_TIMING_DELAY_JITTER" envDefault:"100ms"`
}

type EmailConfig struct {
	Provider     string        `env:"EMAIL_PROVIDER" envDefault:"log"`
	From         string        `env:"EMAIL_FROM" envDefault:"no-reply@projectgrid.local"`
	FromName     string        `env:"EMAIL_FROM_NAME" envDefault:"ProjectGrid"`
	AppBaseURL   string        `env:"APP_BASE_URL" envDefault:"http://localhost:5173"`
	SendTimeout  time.Duration `env:"EMAIL_SEND_TIMEOUT" envDefault:"10s"`
	ResendLimit  int           `env:"EMAIL_RESEND_LIMIT" envDefault:"5"`
	ResendWindow time.Duration `env:"EMAIL_RESEND_WINDOW" envDefault:"1h"`
	AWSRegion    string        `env:"AWS_REGION" envDefault:"us-east-1"`
	SMTPHost     string        `env:"SMTP_HOST"`
	SMTPPort     int           `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string        `env:"SMTP_USER"`
	SMTPPass     string        `env:"SMTP_PASS"`
	SMTPUseTLS   bool          `env:"SMTP_USE_TLS" envDefault:"false"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

// Enabled reports whether a Redis address was configured
func (c RedisConfig) Enabled() bool {
	return strings.TrimSpace(c.Addr) != ""
}

// Load reads .env (when present) and the process environment
func Load() (*Config, error) {
	_ = godotenv.Load()
	return Parse(env.Options{})
}

// Parse builds a Config from the environment described by opts and validates it
func Parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if len(cfg.Server.AllowedOrigins) == 0 && cfg.Server.Env != "production" {
		cfg.Server.AllowedOrigins = developmentOrigins()
	}
	cfg.Server.AllowedOrigins = trimAll(cfg.Server.AllowedOrigins)
	cfg.Server.TrustedProxies = trimAll(cfg.Server.TrustedProxies)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required values and bounds
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if err := validateJWTSecret(c.Auth.JWTSecret, c.Server.Env); err != nil {
		return err
	}
	for name, s := range map[string]string{
		"JWT_EMAIL_VERIFICATION_SECRET": c.Auth.EmailVerificationSecret,
		"JWT_PASSWORD_RESET_SECRET":     c.Auth.PasswordResetSecret,
		"JWT_LOGIN_SECRET":              c.Auth.LoginSecret,
	} {
		if s == "" {
			continue
		}
		if err := validateJWTSecret(s, c.Server.Env); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	if c.Database.Password == "" {
		return errors.New("DB_PASSWORD is required")
	}

	if c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}

	for name, ttl := range map[string]time.Duration{
		"EMAIL_VERIFICATION_TOKEN_TTL": c.Auth.EmailVerificationTokenTTL,
		"PASSWORD_RESET_TOKEN_TTL":     c.Auth.PasswordResetTokenTTL,
		"LOGIN_TOKEN_TTL":              c.Auth.LoginTokenTTL,
	} {
		if ttl <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}

	switch c.Email.Provider {
	case "ses", "log":
	case "smtp":
		if c.Email.SMTPHost == "" {
			return errors.New("SMTP_HOST is required when EMAIL_PROVIDER=smtp")
		}
	default:
		return fmt.Errorf("EMAIL_PROVIDER must be one of ses, smtp, log (got %q)", c.Email.Provider)
	}
	if c.Email.From == "" {
		return errors.New("EMAIL_FROM is required")
	}

	return nil
}

// validateJWTSecret enforces minimum security standards for JWT secret
func validateJWTSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return errors.New("JWT_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func developmentOrigins() []string {
	return []string{
		"http://localhost:3000",
		"http://localhost:5173", // Vite default
		"http://127.0.0.1:3000",
		"http://127.0.0.1:5173",
	}
}
