package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(NewConfig),
)

// Config holds all application configuration
type Config struct {
	ServerPort    int    `env:"SERVER_PORT" envDefault:"8080"`
	ServerAddress string `env:"SERVER_ADDRESS" envDefault:"0.0.0.0"`
	Environment   string `env:"ENVIRONMENT" envDefault:"local"`
	Debug         bool   `env:"DEBUG" envDefault:"false"`

	Database      DatabaseConfig
	AWS           AWSConfig
	Storage       StorageConfig
	Queue         QueueConfig
	Notifications NotificationsConfig
	Otel          OtelConfig

	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"60s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"120s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host         string        `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port         int           `env:"POSTGRES_PORT" envDefault:"5432"`
	User         string        `env:"POSTGRES_USER" envDefault:"jobmanager"`
	Password     string        `env:"POSTGRES_PASSWORD" envDefault:""`
	Database     string        `env:"POSTGRES_DB" envDefault:"jobmanager"`
	SSLMode      string        `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	MaxOpenConns int           `env:"DB_MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns int           `env:"DB_MAX_IDLE_CONNS" envDefault:"2"`
	MaxIdleTime  time.Duration `env:"DB_MAX_IDLE_TIME" envDefault:"5m"`
	QueryDebug   bool          `env:"DB_QUERY_DEBUG" envDefault:"false"`
}

// DSN returns the PostgreSQL connection string
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, d.SSLMode,
	)
}

// AWSConfig is shared by the blob store and queue clients.
// When AccessKeyID is empty the default credential chain is used.
type AWSConfig struct {
	Region          string `env:"AWS_REGION" envDefault:"us-east-2"`
	Endpoint        string `env:"AWS_ENDPOINT_URL"`
	AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	SessionToken    string `env:"AWS_SESSION_TOKEN"`
}

// UsesStaticCredentials reports whether explicit keys were supplied
func (a AWSConfig) UsesStaticCredentials() bool {
	return a.AccessKeyID != "" && a.SecretAccessKey != ""
}

// StorageConfig configures the CV bucket. An empty Bucket is reported on
// first use, not at startup.
type StorageConfig struct {
	Bucket        string `env:"CV_BUCKET"`
	UsePathStyle  bool   `env:"STORAGE_USE_PATH_STYLE" envDefault:"false"`
	MaxUploadSize int64  `env:"CV_MAX_UPLOAD_BYTES" envDefault:"10485760"`
}

// QueueConfig configures the notification queue and its consumer
type QueueConfig struct {
	Name              string        `env:"NOTIFICATION_QUEUE_NAME" envDefault:"formacao-aws-alex-fs-dev"`
	WaitTime          time.Duration `env:"NOTIFICATION_QUEUE_WAIT_TIME" envDefault:"20s"`
	MaxMessages       int32         `env:"NOTIFICATION_QUEUE_BATCH_SIZE" envDefault:"10"`
	VisibilityTimeout time.Duration `env:"NOTIFICATION_QUEUE_VISIBILITY_TIMEOUT" envDefault:"30s"`
	ReceiveBackoff    time.Duration `env:"NOTIFICATION_QUEUE_RECEIVE_BACKOFF" envDefault:"1s"`
}

// NotificationsConfig configures the notification worker and its sender
type NotificationsConfig struct {
	WorkerEnabled bool          `env:"NOTIFICATION_WORKER_ENABLED" envDefault:"true"`
	DepthInterval time.Duration `env:"NOTIFICATION_DEPTH_INTERVAL" envDefault:"30s"`

	MailgunDomain string `env:"MAILGUN_DOMAIN" envDefault:""`
	MailgunAPIKey string `env:"MAILGUN_API_KEY" envDefault:""`
	FromEmail     string `env:"EMAIL_FROM_ADDRESS" envDefault:"noreply@example.com"`
	FromName      string `env:"EMAIL_FROM_NAME" envDefault:"Job Manager"`
	// Recipient receives one email per application; empty means log only
	Recipient string `env:"NOTIFICATION_RECIPIENT" envDefault:""`
	// PublicBaseURL prefixes API links in notification emails
	PublicBaseURL string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`
}

// MailgunConfigured returns true when mail can be delivered through Mailgun
func (n *NotificationsConfig) MailgunConfigured() bool {
	return n.MailgunDomain != "" && n.MailgunAPIKey != "" && n.Recipient != ""
}

// Load parses the environment into a Config
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// NewConfig loads configuration for fx
func NewConfig(log *slog.Logger) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	log.Info("configuration loaded",
		slog.Int("port", cfg.ServerPort),
		slog.String("environment", cfg.Environment),
		slog.String("db_host", cfg.Database.Host),
		slog.String("aws_region", cfg.AWS.Region),
		slog.Bool("cv_bucket_set", cfg.Storage.Bucket != ""),
		slog.String("queue", cfg.Queue.Name),
		slog.Bool("worker_enabled", cfg.Notifications.WorkerEnabled),
	)

	return cfg, nil
}
