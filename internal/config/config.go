package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/flexprice/mealsub/internal/types"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Configuration struct {
	Deployment    DeploymentConfig    `validate:"required"`
	Server        ServerConfig        `validate:"required"`
	Auth          AuthConfig          `mapstructure:"auth"`
	Logging       LoggingConfig       `validate:"required"`
	Postgres      PostgresConfig      `validate:"required"`
	Kafka         KafkaConfig         `validate:"required"`
	Redis         RedisConfig         `mapstructure:"redis"`
	RabbitMQ      RabbitMQConfig      `mapstructure:"rabbitmq"`
	Stripe        StripeConfig        `mapstructure:"stripe"`
	Postmark      PostmarkConfig      `mapstructure:"postmark"`
	Temporal      TemporalConfig      `mapstructure:"temporal"`
	Scheduler     SchedulerConfig     `validate:"required"`
	Jobs          JobsConfig          `validate:"required"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Sentry        SentryConfig        `mapstructure:"sentry"`
	Cache         CacheConfig         `mapstructure:"cache"`
}

type DeploymentConfig struct {
	Mode types.RunMode `validate:"required"`
}

type ServerConfig struct {
	Address string `validate:"required"`
}

// AuthConfig describes how callers are identified. Authentication itself
// happens upstream; the gateway forwards the caller id in UserHeader.
type AuthConfig struct {
	UserHeader  string `mapstructure:"user_header"`
	AdminAPIKey string `mapstructure:"admin_api_key"`
}

type LoggingConfig struct {
	Level types.LogLevel `validate:"required"`
}

type PostgresConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type KafkaConfig struct {
	Brokers       []string
	ConsumerGroup string `mapstructure:"consumer_group"`
	ClientID      string `mapstructure:"client_id"`
}

type RedisConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	URL     string        `mapstructure:"url"`
	LockTTL time.Duration `mapstructure:"lock_ttl"`
}

type RabbitMQConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

type StripeConfig struct {
	SecretKey string `mapstructure:"secret_key"`
	// ChargeTimeout bounds every card gateway call on the request path
	ChargeTimeout time.Duration `mapstructure:"charge_timeout" validate:"required"`
	// VerifyAttempts is how many times an ambiguous charge is re-submitted
	// with the same idempotency key before giving up
	VerifyAttempts uint64 `mapstructure:"verify_attempts"`
}

type PostmarkConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	ServerToken  string `mapstructure:"server_token"`
	AccountToken string `mapstructure:"account_token"`
	FromAddress  string `mapstructure:"from_address"`
}

type TemporalConfig struct {
	Address   string `mapstructure:"address"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
	APIKey    string `mapstructure:"api_key"`
	TLS       bool   `mapstructure:"tls"`
}

type SchedulerConfig struct {
	Driver types.SchedulerDriver `validate:"required"`
	// DailySpec is a standard five field cron expression
	DailySpec string `mapstructure:"daily_spec" validate:"required"`
}

type JobsConfig struct {
	Queue         types.QueueDriver `validate:"required"`
	TopicPrefix   string            `mapstructure:"topic_prefix"`
	MaxRetries    int               `mapstructure:"max_retries"`
	RetryInterval time.Duration     `mapstructure:"retry_interval"`
	BatchSize     int               `mapstructure:"batch_size"`
}

type NotificationsConfig struct {
	RatePerSecond float64 `mapstructure:"rate_per_second"`
	Concurrency   int     `mapstructure:"concurrency"`
}

type SentryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	DSN         string  `mapstructure:"dsn"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

type CacheConfig struct {
	SettingsTTL time.Duration `mapstructure:"settings_ttl"`
}

func NewConfig() (*Configuration, error) {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/mealsub")

	v.SetEnvPrefix("MEALSUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(
		".", "_",
		"-", "_",
	))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("Error reading config file: %v\n", err)
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, err
		}
	} else {
		fmt.Printf("Using config file: %s\n", v.ConfigFileUsed())
	}

	var config Configuration
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c Configuration) Validate() error {
	validate := validator.New()
	return validate.Struct(c)
}

// GetDefaultConfig returns a default configuration for local development
// This is useful for running scripts, tests or other non-web applications
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Deployment: DeploymentConfig{Mode: types.ModeLocal},
		Server:     ServerConfig{Address: ":8080"},
		Auth:       AuthConfig{UserHeader: types.HeaderUserID},
		Logging:    LoggingConfig{Level: types.LogLevelDebug},
		Stripe: StripeConfig{
			ChargeTimeout:  10 * time.Second,
			VerifyAttempts: 3,
		},
		Scheduler: SchedulerConfig{
			Driver:    types.SchedulerDriverCron,
			DailySpec: "5 0 * * *",
		},
		Jobs: JobsConfig{
			Queue:         types.QueueDriverMemory,
			TopicPrefix:   "mealsub.jobs",
			MaxRetries:    3,
			RetryInterval: time.Second,
			BatchSize:     500,
		},
		Redis: RedisConfig{LockTTL: 10 * time.Minute},
		Notifications: NotificationsConfig{
			RatePerSecond: 50,
			Concurrency:   8,
		},
		Cache: CacheConfig{SettingsTTL: time.Minute},
	}
}

func (c PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"user=%s password=%s dbname=%s host=%s port=%d sslmode=%s",
		c.User,
		c.Password,
		c.DBName,
		c.Host,
		c.Port,
		c.SSLMode,
	)
}

// Topic returns the queue topic a job is published on
func (c JobsConfig) Topic(job types.JobName) string {
	if c.TopicPrefix == "" {
		return string(job)
	}
	return c.TopicPrefix + "." + string(job)
}

// PoisonTopic receives job messages that exhausted their retries
func (c JobsConfig) PoisonTopic() string {
	if c.TopicPrefix == "" {
		return "dlq"
	}
	return c.TopicPrefix + ".dlq"
}
