package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Hospital  HospitalConfig
	Database  DatabaseConfig
	Content   ContentConfig
	Server    ServerConfig
	Auth      AuthConfig
	Mail      MailConfig
	Notify    NotifyConfig
	RateLimit RateLimitConfig
	Sentry    SentryConfig
}

// HospitalConfig names the hospital in emails and fixes the time zone that
// decides what "today" means for bookings.
type HospitalConfig struct {
	Name     string
	Timezone string
	Location *time.Location
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	AutoMigrate       bool
}

// ContentConfig points contacts and reviews at a separate dataset.
// An empty URL keeps them in the core database.
type ContentConfig struct {
	URL string
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
}

type AuthConfig struct {
	JWTSecret         string
	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTIssuer         string
	TokenExpiry       time.Duration

	LockoutThreshold int
	LockoutDuration  time.Duration

	PasswordHash string
	BcryptCost   int

	TimingDelayBaseMs    int
	TimingDelayRandomMs  int
	TimingDelayOnSuccess bool

	MFAIssuer        string
	MFAEncryptionKey string
	ResetURLBase     string
	ResetTokenExpiry time.Duration
	CleanupInterval  time.Duration
}

type MailConfig struct {
	Provider         string
	FromAddress      string
	FromName         string
	HospitalEmail    string
	AWSRegion        string
	MailerSendAPIKey string
	SMTPHost         string
	SMTPPort         int
	SMTPUser         string
	SMTPPass         string
	SMTPUseTLS       bool
}

type NotifyConfig struct {
	Transport    string
	NATSURL      string
	Subject      string
	Workers      int
	QueueSize    int
	MaxRetries   int
	RetryBackoff time.Duration
	SendTimeout  time.Duration
}

type RateLimitConfig struct {
	RedisURL          string
	LoginMax          int
	LoginWindow       time.Duration
	AppointmentMax    int
	AppointmentWindow time.Duration
	FormMax           int
	FormWindow        time.Duration
	GeneralMax        int
	GeneralWindow     time.Duration
}

type SentryConfig struct {
	DSN string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	env := getEnv("ENV", "development")

	cfg := &Config{
		Hospital: HospitalConfig{
			Name:     getEnv("HOSPITAL_NAME", "Carepoint Hospital"),
			Timezone: getEnv("HOSPITAL_TIMEZONE", "UTC"),
		},
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "carepoint"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
			AutoMigrate:       getEnvAsBool("DB_AUTO_MIGRATE", false),
		},
		Content: ContentConfig{
			URL: getEnv("CONTENT_DB_URL", ""),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			AllowedOrigins: parseAllowedOrigins(env),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:    getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			RequestTimeout: getEnvAsDuration("SERVER_REQUEST_TIMEOUT", 60*time.Second),
		},
		Auth: AuthConfig{
			JWTSecret:            getEnv("JWT_SECRET", ""),
			JWTPrivateKeyPath:    getEnv("JWT_PRIVATE_KEY_PATH", ""),
			JWTPublicKeyPath:     getEnv("JWT_PUBLIC_KEY_PATH", ""),
			JWTIssuer:            getEnv("JWT_ISSUER", "carepoint"),
			TokenExpiry:          getEnvAsDuration("JWT_EXPIRES_IN", 24*time.Hour),
			LockoutThreshold:     getEnvAsInt("LOCKOUT_THRESHOLD", 5),
			LockoutDuration:      getEnvAsDuration("LOCKOUT_DURATION", 2*time.Hour),
			PasswordHash:         strings.ToLower(getEnv("PASSWORD_HASH", "bcrypt")),
			BcryptCost:           getEnvAsInt("BCRYPT_COST", 12),
			TimingDelayBaseMs:    getEnvAsInt("TIMING_DELAY_BASE_MS", 500),
			TimingDelayRandomMs:  getEnvAsInt("TIMING_DELAY_RANDOM_MS", 500),
			TimingDelayOnSuccess: getEnvAsBool("TIMING_DELAY_ON_SUCCESS", false),
			MFAIssuer:            getEnv("MFA_ISSUER", "Carepoint Hospital"),
			MFAEncryptionKey:     getEnv("MFA_ENCRYPTION_KEY", ""),
			ResetURLBase:         getEnv("RESET_URL_BASE", "http://localhost:3000/admin/reset-password"),
			ResetTokenExpiry:     getEnvAsDuration("RESET_TOKEN_EXPIRY", 10*time.Minute),
			CleanupInterval:      getEnvAsDuration("CLEANUP_INTERVAL", 1*time.Hour),
		},
		Mail: MailConfig{
			Provider:         strings.ToLower(getEnv("MAIL_PROVIDER", "log")),
			FromAddress:      getEnv("MAIL_FROM", "noreply@carepoint.local"),
			FromName:         getEnv("MAIL_FROM_NAME", "Carepoint Hospital"),
			HospitalEmail:    getEnv("HOSPITAL_EMAIL", "frontdesk@carepoint.local"),
			AWSRegion:        getEnv("AWS_REGION", "us-east-1"),
			MailerSendAPIKey: getEnv("MAILERSEND_API_KEY", ""),
			SMTPHost:         getEnv("SMTP_HOST", "localhost"),
			SMTPPort:         getEnvAsInt("SMTP_PORT", 1025),
			SMTPUser:         getEnv("SMTP_USER", ""),
			SMTPPass:         getEnv("SMTP_PASS", ""),
			SMTPUseTLS:       getEnvAsBool("SMTP_USE_TLS", false),
		},
		Notify: NotifyConfig{
			Transport:    strings.ToLower(getEnv("NOTIFY_TRANSPORT", "memory")),
			NATSURL:      getEnv("NATS_URL", "nats://localhost:4222"),
			Subject:      getEnv("NOTIFY_SUBJECT", "notify.send"),
			Workers:      getEnvAsInt("NOTIFY_WORKERS", 2),
			QueueSize:    getEnvAsInt("NOTIFY_QUEUE_SIZE", 256),
			MaxRetries:   getEnvAsInt("NOTIFY_MAX_RETRIES", 3),
			RetryBackoff: getEnvAsDuration("NOTIFY_RETRY_BACKOFF", 500*time.Millisecond),
			SendTimeout:  getEnvAsDuration("NOTIFY_SEND_TIMEOUT", 15*time.Second),
		},
		RateLimit: RateLimitConfig{
			RedisURL:          getEnv("REDIS_URL", ""),
			LoginMax:          getEnvAsInt("RATE_LIMIT_LOGIN_MAX", 5),
			LoginWindow:       getEnvAsDuration("RATE_LIMIT_LOGIN_WINDOW", 15*time.Minute),
			AppointmentMax:    getEnvAsInt("RATE_LIMIT_APPOINTMENT_MAX", 3),
			AppointmentWindow: getEnvAsDuration("RATE_LIMIT_APPOINTMENT_WINDOW", time.Hour),
			FormMax:           getEnvAsInt("RATE_LIMIT_FORM_MAX", 10),
			FormWindow:        getEnvAsDuration("RATE_LIMIT_FORM_WINDOW", time.Hour),
			GeneralMax:        getEnvAsInt("RATE_LIMIT_GENERAL_MAX", 100),
			GeneralWindow:     getEnvAsDuration("RATE_LIMIT_GENERAL_WINDOW", 15*time.Minute),
		},
		Sentry: SentryConfig{
			DSN: getEnv("SENTRY_DSN", ""),
		},
	}

	loc, err := time.LoadLocation(cfg.Hospital.Timezone)
	if err != nil {
		return nil, fmt.Errorf("HOSPITAL_TIMEZONE is not a valid IANA zone: %w", err)
	}
	cfg.Hospital.Location = loc

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if err := cfg.Auth.validateSigning(env); err != nil {
		return nil, err
	}

	switch cfg.Auth.PasswordHash {
	case "bcrypt", "argon2id":
	default:
		return nil, fmt.Errorf("PASSWORD_HASH must be bcrypt or argon2id (got %q)", cfg.Auth.PasswordHash)
	}

	switch cfg.Mail.Provider {
	case "log", "ses", "mailersend", "smtp":
	default:
		return nil, fmt.Errorf("MAIL_PROVIDER must be one of log, ses, mailersend, smtp (got %q)", cfg.Mail.Provider)
	}

	switch cfg.Notify.Transport {
	case "memory", "nats":
	default:
		return nil, fmt.Errorf("NOTIFY_TRANSPORT must be memory or nats (got %q)", cfg.Notify.Transport)
	}

	if cfg.Auth.LockoutThreshold < 1 {
		return nil, fmt.Errorf("LOCKOUT_THRESHOLD must be positive")
	}

	return cfg, nil
}

// UsesRSA reports whether tokens are signed with an RSA key pair instead of the shared secret.
func (a *AuthConfig) UsesRSA() bool {
	return a.JWTPrivateKeyPath != "" && a.JWTPublicKeyPath != ""
}

func (a *AuthConfig) validateSigning(env string) error {
	if a.UsesRSA() {
		return nil
	}
	if a.JWTPrivateKeyPath != "" || a.JWTPublicKeyPath != "" {
		return fmt.Errorf("JWT_PRIVATE_KEY_PATH and JWT_PUBLIC_KEY_PATH must be set together")
	}
	if a.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	return validateJWTSecret(a.JWTSecret, env)
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
			return fmt.Errorf("JWT_SECRET cannot be a common weak value")
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

// IsProduction reports whether the server runs with production error handling.
func (s *ServerConfig) IsProduction() bool {
	return s.Env == "production"
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func parseAllowedOrigins(env string) []string {
	originsStr := getEnv("ALLOWED_ORIGINS", "")
	if originsStr != "" {
		origins := strings.Split(originsStr, ",")
		for i, origin := range origins {
			origins[i] = strings.TrimSpace(origin)
		}
		return origins
	}

	if env == "production" {
		return []string{}
	}

	// Development: allow localhost variants
	return []string{
		"http://localhost:3000",
		"http://localhost:5173", // Vite default
		"http://127.0.0.1:3000",
		"http://127.0.0.1:5173",
	}
}
