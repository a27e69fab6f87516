package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env     string
	Port    int
	DBURL   string
	BaseURL string

	// Secrets
	JWTSecret   string
	TokenSecret string

	SessionTTL time.Duration

	AdminEmail     string
	AdminPassword  string
	AdminFirstName string
	AdminLastName  string

	Mail  MailConfig
	Redis RedisConfig

	RateLimit       int
	RateLimitWindow time.Duration
	MaxBodyBytes    int64
	AllowedOrigins  []string

	OTLPEndpoint string
}

type MailConfig struct {
	Host        string
	Port        int
	Username    string
	Password    string
	Sender      string
	CompanyName string
	Timeout     time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Load reads an optional .env file and then the process environment.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Env:     getEnv("APP_ENV", "dev"),
		Port:    getEnvInt("PORT", 8080),
		DBURL:   buildDBURL(),
		BaseURL: strings.TrimRight(getEnv("APP_BASE_URL", "http://localhost:8080/api/v1"), "/"),

		JWTSecret:   getEnv("JWT_SECRET", ""),
		TokenSecret: getEnv("TOKEN_SECRET", ""),
		SessionTTL:  time.Duration(getEnvInt("JWT_TTL_DAYS", 30)) * 24 * time.Hour,

		AdminEmail:     getEnv("ADMIN_EMAIL", ""),
		AdminPassword:  getEnv("ADMIN_PASSWORD", ""),
		AdminFirstName: getEnv("ADMIN_FIRST_NAME", "Site"),
		AdminLastName:  getEnv("ADMIN_LAST_NAME", "Admin"),

		Mail: MailConfig{
			Host:        getEnv("SMTP_HOST", ""),
			Port:        getEnvInt("SMTP_PORT", 587),
			Username:    getEnv("SMTP_USERNAME", ""),
			Password:    getEnv("SMTP_PASSWORD", ""),
			Sender:      getEnv("EMAIL_SENDER", "no-reply@propertypro.local"),
			CompanyName: getEnv("COMPANY_NAME", "PropertyPro"),
			Timeout:     time.Duration(getEnvInt("MAIL_TIMEOUT_SECONDS", 5)) * time.Second,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},

		RateLimit:       getEnvInt("RATE_LIMIT", 100),
		RateLimitWindow: time.Duration(getEnvInt("RATE_LIMIT_WINDOW_MINUTES", 60)) * time.Minute,
		MaxBodyBytes:    int64(getEnvInt("MAX_BODY_BYTES", 10*1024)),
		AllowedOrigins:  splitList(getEnv("CORS_ALLOWED_ORIGINS", "")),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}
}

// Validate rejects configurations that would run with guessable secrets.
func (c Config) Validate() error {
	var errs []error

	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.TokenSecret == "" {
		errs = append(errs, errors.New("TOKEN_SECRET is required"))
	}
	if c.JWTSecret != "" && c.JWTSecret == c.TokenSecret {
		errs = append(errs, errors.New("JWT_SECRET and TOKEN_SECRET must differ"))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("JWT_TTL_DAYS must be positive"))
	}
	if c.IsProd() && c.Mail.Host == "" {
		errs = append(errs, errors.New("SMTP_HOST is required in prod"))
	}

	return errors.Join(errs...)
}

func (c Config) IsDev() bool {
	return c.Env == "dev"
}

func (c Config) IsProd() bool {
	return c.Env == "prod"
}

func buildDBURL() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}

	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "propertypro")
	pass := getEnv("DB_PASSWORD", "propertypro")
	name := getEnv("DB_NAME", "propertypro")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)

		if err != nil {
			fmt.Fprintf(os.Stderr, "config: %s=%q is not an integer, using %d\n", key, v, fallback)
			return fallback
		}

		return num
	}
	return fallback
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))

	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
