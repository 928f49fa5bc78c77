package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	AWS         AWSConfig
	WhatsApp    WhatsAppConfig
	Certificate CertificateConfig
	Email       EmailConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
	BaseURL            string // public deployment URL, used in QR codes and message links
	WorkerMetricsPort  string // worker-only /metrics listener
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds JWT validation settings.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// AWSConfig holds AWS credentials and the certificate bucket.
type AWSConfig struct {
	Region             string
	AccessKeyID        string
	SecretAccessKey    string
	CertificatesBucket string
	Endpoint           string // optional S3-compatible endpoint (path-style addressing)
	PublicBaseURL      string // optional; overrides the https://<bucket>.s3.<region>.amazonaws.com form
}

// WhatsAppConfig holds the messaging channel endpoint, credentials and rate-limit shape.
type WhatsAppConfig struct {
	APIURL      string
	InstanceID  string
	AccessToken string
	CountryCode string
	BatchSize   int
	BatchDelay  time.Duration
	Timeout     time.Duration
}

// CertificateConfig holds renderer and sweep settings.
type CertificateConfig struct {
	FontRegularPath string // optional UTF-8 TTF; enables the localized title and non-Latin names
	FontBoldPath    string
	DateLayout      string
	Timezone        string
	SweepSchedule   string // cron spec for the orphaned-blob sweep; empty disables it
	SweepGrace      time.Duration
}

// EmailConfig selects the certificate-ready email provider.
type EmailConfig struct {
	Provider    string // "ses" or "noop"
	FromAddress string
	FromName    string
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 60),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
			BaseURL:            strings.TrimRight(getEnv("APP_BASE_URL", "http://localhost:3000"), "/"),
			WorkerMetricsPort:  getEnv("WORKER_METRICS_PORT", "9091"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "workshops"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 24),
		},
		AWS: AWSConfig{
			Region:             getEnv("AWS_REGION", "me-south-1"),
			AccessKeyID:        getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:    getEnv("AWS_SECRET_ACCESS_KEY", ""),
			CertificatesBucket: getEnv("AWS_S3_CERTIFICATES_BUCKET", "certificates"),
			Endpoint:           getEnv("AWS_S3_ENDPOINT", ""),
			PublicBaseURL:      strings.TrimRight(getEnv("AWS_S3_PUBLIC_BASE_URL", ""), "/"),
		},
		WhatsApp: WhatsAppConfig{
			APIURL:      getEnv("WHATSAPP_API_URL", ""),
			InstanceID:  getEnv("WHATSAPP_INSTANCE_ID", ""),
			AccessToken: getEnv("WHATSAPP_ACCESS_TOKEN", ""),
			CountryCode: getEnv("WHATSAPP_COUNTRY_CODE", "966"),
			BatchSize:   getEnvInt("WHATSAPP_BATCH_SIZE", 3),
			BatchDelay:  time.Duration(getEnvInt("WHATSAPP_BATCH_DELAY_MS", 2000)) * time.Millisecond,
			Timeout:     time.Duration(getEnvInt("WHATSAPP_TIMEOUT_SEC", 15)) * time.Second,
		},
		Certificate: CertificateConfig{
			FontRegularPath: getEnv("CERT_FONT_REGULAR_PATH", ""),
			FontBoldPath:    getEnv("CERT_FONT_BOLD_PATH", ""),
			DateLayout:      getEnv("CERT_DATE_LAYOUT", "02/01/2006"),
			Timezone:        getEnv("CERT_TIMEZONE", "Asia/Riyadh"),
			SweepSchedule:   getEnv("CERT_SWEEP_SCHEDULE", "0 3 * * *"),
			SweepGrace:      time.Duration(getEnvInt("CERT_SWEEP_GRACE_HOURS", 24)) * time.Hour,
		},
		Email: EmailConfig{
			Provider:    getEnv("EMAIL_PROVIDER", "noop"),
			FromAddress: getEnv("EMAIL_FROM_ADDRESS", "noreply@example.com"),
			FromName:    getEnv("EMAIL_FROM_NAME", "Workshops"),
		},
	}
	if cfg.WhatsApp.BatchSize <= 0 {
		return nil, fmt.Errorf("WHATSAPP_BATCH_SIZE must be positive, got %d", cfg.WhatsApp.BatchSize)
	}
	if _, err := time.LoadLocation(cfg.Certificate.Timezone); err != nil {
		return nil, fmt.Errorf("CERT_TIMEZONE: %w", err)
	}
	return cfg, nil
}

// Location returns the time zone certificate dates are formatted in.
func (c CertificateConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
