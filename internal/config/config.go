package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Payments PaymentsConfig `yaml:"payments"`
	Queue    QueueConfig    `yaml:"queue"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int32  `yaml:"max_conns"`
	// Migrate applies the embedded schema on startup.
	Migrate bool `yaml:"migrate"`
}

// DSN renders the connection string accepted by pgxpool.
func (c DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.Database,
		RawQuery: "sslmode=" + c.SSLMode,
	}
	return u.String()
}

type RabbitMQConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	VHost    string `yaml:"vhost"`
	Exchange string `yaml:"exchange"`
	Prefetch int    `yaml:"prefetch"`
}

func (c RabbitMQConfig) URL() string {
	u := url.URL{
		Scheme: "amqp",
		User:   url.UserPassword(c.User, c.Password),
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   "/" + strings.TrimPrefix(c.VHost, "/"),
	}
	return u.String()
}

type KafkaConfig struct {
	Enabled    bool     `yaml:"enabled"`
	Brokers    []string `yaml:"brokers"`
	AuditTopic string   `yaml:"audit_topic"`
}

type PaymentsConfig struct {
	MobileMoneyDelay      time.Duration `yaml:"mobile_money_delay"`
	VerifyDelay           time.Duration `yaml:"verify_delay"`
	ProviderTimeout       time.Duration `yaml:"provider_timeout"`
	CancelOnMobileFailure bool          `yaml:"cancel_on_mobile_failure"`
}

type QueueConfig struct {
	ReapInterval time.Duration `yaml:"reap_interval"`
	ReadyTimeout time.Duration `yaml:"ready_timeout"`
	DefaultLimit int           `yaml:"default_limit"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used for anything the file and environment leave unset.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            3000,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    45 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "canteen",
			Password: "canteen",
			Database: "canteen",
			SSLMode:  "disable",
			MaxConns: 10,
			Migrate:  true,
		},
		RabbitMQ: RabbitMQConfig{
			Host:     "localhost",
			Port:     5672,
			User:     "guest",
			Password: "guest",
			VHost:    "/",
			Exchange: "canteen_events",
			Prefetch: 20,
		},
		Kafka: KafkaConfig{
			Brokers:    []string{"localhost:9092"},
			AuditTopic: "canteen.audit",
		},
		Payments: PaymentsConfig{
			MobileMoneyDelay: 2 * time.Second,
			VerifyDelay:      time.Second,
			ProviderTimeout:  30 * time.Second,
		},
		Queue: QueueConfig{
			ReapInterval: time.Minute,
			ReadyTimeout: 30 * time.Minute,
			DefaultLimit: 50,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads path over the defaults, then applies CANTEEN_* environment overrides.
// An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type lookupFunc func(key string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	flag := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	num("CANTEEN_PORT", &c.Server.Port)

	str("CANTEEN_DB_HOST", &c.Database.Host)
	num("CANTEEN_DB_PORT", &c.Database.Port)
	str("CANTEEN_DB_USER", &c.Database.User)
	str("CANTEEN_DB_PASSWORD", &c.Database.Password)
	str("CANTEEN_DB_NAME", &c.Database.Database)
	str("CANTEEN_DB_SSLMODE", &c.Database.SSLMode)
	flag("CANTEEN_DB_MIGRATE", &c.Database.Migrate)

	str("CANTEEN_RABBITMQ_HOST", &c.RabbitMQ.Host)
	num("CANTEEN_RABBITMQ_PORT", &c.RabbitMQ.Port)
	str("CANTEEN_RABBITMQ_USER", &c.RabbitMQ.User)
	str("CANTEEN_RABBITMQ_PASSWORD", &c.RabbitMQ.Password)
	str("CANTEEN_RABBITMQ_VHOST", &c.RabbitMQ.VHost)

	flag("CANTEEN_KAFKA_ENABLED", &c.Kafka.Enabled)
	if v, ok := lookup("CANTEEN_KAFKA_BROKERS"); ok && v != "" {
		c.Kafka.Brokers = splitList(v)
	}

	dur("CANTEEN_MOBILE_MONEY_DELAY", &c.Payments.MobileMoneyDelay)
	flag("CANTEEN_CANCEL_ON_MOBILE_FAILURE", &c.Payments.CancelOnMobileFailure)
	dur("CANTEEN_REAP_INTERVAL", &c.Queue.ReapInterval)
	dur("CANTEEN_READY_TIMEOUT", &c.Queue.ReadyTimeout)

	str("CANTEEN_LOG_LEVEL", &c.Log.Level)

	return errors.Join(errs...)
}

func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Database.MaxConns <= 0 {
		errs = append(errs, errors.New("database.max_conns must be positive"))
	}
	if c.RabbitMQ.Exchange == "" {
		errs = append(errs, errors.New("rabbitmq.exchange is required"))
	}
	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.AuditTopic == "") {
		errs = append(errs, errors.New("kafka.brokers and kafka.audit_topic are required when kafka is enabled"))
	}
	if c.Payments.ProviderTimeout <= c.Payments.MobileMoneyDelay {
		errs = append(errs, errors.New("payments.provider_timeout must exceed payments.mobile_money_delay"))
	}
	if c.Queue.ReapInterval <= 0 || c.Queue.ReadyTimeout <= 0 {
		errs = append(errs, errors.New("queue.reap_interval and queue.ready_timeout must be positive"))
	}
	if c.Queue.DefaultLimit <= 0 {
		errs = append(errs, errors.New("queue.default_limit must be positive"))
	}
	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
