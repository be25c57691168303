package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	PubSub   PubSubConfig
	Storage  StorageConfig
	Secrets  SecretsConfig
	Adapters AdaptersConfig
	Notifier NotifierConfig
	Pipeline PipelineConfig
	Logger   LoggerConfig
}

// ServerConfig holds the metrics/health HTTP server configuration
type ServerConfig struct {
	Host        string
	MetricsPort int
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

// PubSubConfig holds the job transport configuration
type PubSubConfig struct {
	ProjectID          string
	JobTopic           string
	JobSubscription    string
	CredentialsJSON    string // optional; ADC when empty
	MaxOutstanding     int    // concurrent jobs per worker process
	AckDeadlineSeconds int
}

// StorageConfig holds the evidence blob store configuration
type StorageConfig struct {
	Bucket          string
	KeyPrefix       string
	CredentialsJSON string // optional; ADC when empty
}

// SecretsConfig selects the secrets backend for adapter credentials
type SecretsConfig struct {
	Backend      string // aws, vault, local
	AWSRegion    string
	VaultAddress string
	VaultToken   string
	VaultMount   string
	LocalPath    string // base directory for the local backend
}

// AdaptersConfig holds upstream property-management system endpoints.
// Credentials are fetched from the secrets backend, never from env.
type AdaptersConfig struct {
	CloudPMSBaseURL string
}

// NotifierConfig holds the review tooling webhook. An empty URL falls back
// to log-based notifications.
type NotifierConfig struct {
	WebhookURL string
}

// PipelineConfig holds reconciliation pipeline tuning
type PipelineConfig struct {
	AdapterTimeout     time.Duration // per adapter call
	AdapterRetries     int           // network errors only
	AmountTolerance    float64       // minimum absolute tolerance for amount agreement
	FraudFlagThreshold int           // chargebacks before a guest profile is flagged
	BackfillInterval   time.Duration // evidence backfill sweep cadence
	BackfillBatchSize  int           // cases re-enqueued per sweep
}

// LoggerConfig holds logging configuration
type LoggerConfig struct {
	Level       string // debug, info, warn, error
	Development bool
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:        getEnv("SERVER_HOST", "0.0.0.0"),
			MetricsPort: getEnvAsInt("METRICS_PORT", 9090),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "chargeback_service"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
			MaxConns: int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns: int32(getEnvAsInt("DB_MIN_CONNS", 5)),
		},
		PubSub: PubSubConfig{
			ProjectID:          getEnv("PUBSUB_PROJECT_ID", ""),
			JobTopic:           getEnv("PUBSUB_JOB_TOPIC", "reconciliation-jobs"),
			JobSubscription:    getEnv("PUBSUB_JOB_SUBSCRIPTION", "reconciliation-jobs-worker"),
			CredentialsJSON:    getEnv("PUBSUB_CREDENTIALS_JSON", ""),
			MaxOutstanding:     getEnvAsInt("PUBSUB_MAX_OUTSTANDING", 16),
			AckDeadlineSeconds: getEnvAsInt("PUBSUB_ACK_DEADLINE_SECONDS", 60),
		},
		Storage: StorageConfig{
			Bucket:          getEnv("EVIDENCE_BUCKET", ""),
			KeyPrefix:       getEnv("EVIDENCE_KEY_PREFIX", "evidence"),
			CredentialsJSON: getEnv("STORAGE_CREDENTIALS_JSON", ""),
		},
		Secrets: SecretsConfig{
			Backend:      getEnv("SECRETS_BACKEND", "local"),
			AWSRegion:    getEnv("AWS_REGION", "us-east-1"),
			VaultAddress: getEnv("VAULT_ADDR", ""),
			VaultToken:   getEnv("VAULT_TOKEN", ""),
			VaultMount:   getEnv("VAULT_MOUNT", "secret"),
			LocalPath:    getEnv("SECRETS_LOCAL_PATH", "./secrets"),
		},
		Adapters: AdaptersConfig{
			CloudPMSBaseURL: getEnv("CLOUDPMS_BASE_URL", ""),
		},
		Notifier: NotifierConfig{
			WebhookURL: getEnv("REVIEW_WEBHOOK_URL", ""),
		},
		Pipeline: PipelineConfig{
			AdapterTimeout:     getEnvAsDuration("ADAPTER_TIMEOUT", 15*time.Second),
			AdapterRetries:     getEnvAsInt("ADAPTER_RETRIES", 2),
			AmountTolerance:    getEnvAsFloat("AMOUNT_TOLERANCE", 1.00),
			FraudFlagThreshold: getEnvAsInt("FRAUD_FLAG_THRESHOLD", 3),
			BackfillInterval:   getEnvAsDuration("EVIDENCE_BACKFILL_INTERVAL", 15*time.Minute),
			BackfillBatchSize:  getEnvAsInt("EVIDENCE_BACKFILL_BATCH", 50),
		},
		Logger: LoggerConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: getEnvAsBool("LOG_DEVELOPMENT", false),
		},
	}

	// Validate required fields
	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}
	if cfg.PubSub.ProjectID == "" {
		return nil, fmt.Errorf("PUBSUB_PROJECT_ID is required")
	}
	if cfg.Storage.Bucket == "" {
		return nil, fmt.Errorf("EVIDENCE_BUCKET is required")
	}

	return cfg, nil
}

// ConnectionString returns PostgreSQL connection string
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
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
