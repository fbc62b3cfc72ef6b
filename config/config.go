package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort  int
	LogLevel    string
	LogDev      bool
	CORSOrigins []string
	Database    DatabaseConfig
	Auth        AuthConfig
	Moderation  ModerationConfig
	Events      EventsConfig
	Audit       AuditConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	UseSSL   bool
}

// AuthConfig holds the token key and password hashing limits.
type AuthConfig struct {
	// TokenKey is the 32-byte symmetric key, raw or base64 encoded.
	TokenKey      string
	TokenTTL      time.Duration
	MaxConcurrent int
}

// ModerationConfig configures the bad words provider client.
type ModerationConfig struct {
	BaseURL           string
	APIKey            string
	CensorCharacter   string
	Timeout           time.Duration
	AttemptTimeout    time.Duration
	MaxRetries        int
	BaseDelay         time.Duration
	BackoffMultiplier float64
	MaxDelay          time.Duration
}

type EventsConfig struct {
	// Backend is one of "", "rabbitmq" or "pubsub". Empty disables events.
	Backend  string
	Channel  string
	RabbitMQ RabbitMQConfig
	PubSub   PubSubConfig
}

type RabbitMQConfig struct {
	URL             string
	PrefetchCount   int
	QueueDurable    bool
	QueueAutoDelete bool
}

type PubSubConfig struct {
	ProjectID          string
	CredentialsFile    string
	SubscriptionSuffix string
}

type AuditConfig struct {
	// Backend is one of "", "minio" or "gcs". Empty disables the archive.
	Backend string
	Minio   MinioConfig
	GCS     GCSConfig
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type GCSConfig struct {
	Bucket          string
	ProjectID       string
	CredentialsFile string
}

func LoadConfig() Config {
	if os.Getenv("ENV") == "dev" {
		godotenv.Load()
	}

	dbConfig := DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnvInt("DB_PORT", 5432),
		User:     getEnv("DB_USER", "qna"),
		Password: getEnv("DB_PASSWORD", "password"),
		DBName:   getEnv("DB_NAME", "qna_db"),
		UseSSL:   getEnvBool("DB_SSL", false),
	}

	authConfig := AuthConfig{
		TokenKey:      strings.TrimSpace(getEnv("TOKEN_KEY", "")),
		TokenTTL:      getEnvDuration("TOKEN_TTL", 24*time.Hour),
		MaxConcurrent: getEnvInt("HASH_MAX_CONCURRENT", 4),
	}

	moderationConfig := ModerationConfig{
		BaseURL:           strings.TrimSpace(getEnv("BADWORDS_API_URL", "https://api.apilayer.com/bad_words")),
		APIKey:            strings.TrimSpace(getEnv("BADWORDS_API_KEY", "")),
		CensorCharacter:   getEnv("BADWORDS_CENSOR_CHARACTER", "*"),
		Timeout:           getEnvDuration("BADWORDS_TIMEOUT", 10*time.Second),
		AttemptTimeout:    getEnvDuration("BADWORDS_ATTEMPT_TIMEOUT", 3*time.Second),
		MaxRetries:        getEnvInt("BADWORDS_MAX_RETRIES", 3),
		BaseDelay:         getEnvDuration("BADWORDS_BASE_DELAY", 100*time.Millisecond),
		BackoffMultiplier: getEnvFloat("BADWORDS_BACKOFF_MULTIPLIER", 2),
		MaxDelay:          getEnvDuration("BADWORDS_MAX_DELAY", 2*time.Second),
	}

	eventsConfig := EventsConfig{
		Backend: strings.ToLower(strings.TrimSpace(getEnv("EVENTS_BACKEND", ""))),
		Channel: getEnv("EVENTS_CHANNEL", "qna.content"),
		RabbitMQ: RabbitMQConfig{
			URL:             getEnv("RABBITMQ_URL", ""),
			PrefetchCount:   getEnvInt("RABBITMQ_PREFETCH", 10),
			QueueDurable:    getEnvBool("RABBITMQ_DURABLE", true),
			QueueAutoDelete: getEnvBool("RABBITMQ_AUTO_DELETE", false),
		},
		PubSub: PubSubConfig{
			ProjectID:          getEnv("PUBSUB_PROJECT_ID", ""),
			CredentialsFile:    getEnv("PUBSUB_CREDENTIALS_FILE", ""),
			SubscriptionSuffix: getEnv("PUBSUB_SUBSCRIPTION_SUFFIX", "-sub"),
		},
	}

	auditConfig := AuditConfig{
		Backend: strings.ToLower(strings.TrimSpace(getEnv("AUDIT_BACKEND", ""))),
		Minio: MinioConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", "qna-moderation"),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		GCS: GCSConfig{
			Bucket:          getEnv("GCS_BUCKET", ""),
			ProjectID:       getEnv("GCS_PROJECT_ID", ""),
			CredentialsFile: getEnv("GCS_CREDENTIALS_FILE", ""),
		},
	}

	return Config{
		ServerPort:  getEnvInt("SERVER_PORT", 8080),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogDev:      getEnvBool("LOG_DEV", false),
		CORSOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		Database:    dbConfig,
		Auth:        authConfig,
		Moderation:  moderationConfig,
		Events:      eventsConfig,
		Audit:       auditConfig,
	}
}

// Validate reports the settings the server cannot start without.
func (c Config) Validate() error {
	var errs []error
	if c.Auth.TokenKey == "" {
		errs = append(errs, errors.New("TOKEN_KEY is required"))
	}
	if c.Moderation.APIKey == "" {
		errs = append(errs, errors.New("BADWORDS_API_KEY is required"))
	}
	if c.Moderation.BaseURL == "" {
		errs = append(errs, errors.New("BADWORDS_API_URL is required"))
	}
	switch c.Events.Backend {
	case "", "rabbitmq", "pubsub":
	default:
		errs = append(errs, fmt.Errorf("unknown EVENTS_BACKEND %q", c.Events.Backend))
	}
	switch c.Audit.Backend {
	case "", "minio", "gcs":
	default:
		errs = append(errs, fmt.Errorf("unknown AUDIT_BACKEND %q", c.Audit.Backend))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		var value int
		fmt.Sscanf(valueStr, "%d", &value)
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(key); exists {
		value, err := strconv.ParseBool(strings.TrimSpace(valueStr))
		if err != nil {
			return defaultValue
		}
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if valueStr, exists := os.LookupEnv(key); exists {
		value, err := strconv.ParseFloat(strings.TrimSpace(valueStr), 64)
		if err != nil {
			return defaultValue
		}
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if valueStr, exists := os.LookupEnv(key); exists {
		value, err := time.ParseDuration(strings.TrimSpace(valueStr))
		if err != nil {
			return defaultValue
		}
		return value
	}
	return defaultValue
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		if item := strings.TrimSpace(part); item != "" {
			items = append(items, item)
		}
	}
	return items
}
