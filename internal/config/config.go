package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	NATS     NATSConfig     `yaml:"nats"`
	Redis    RedisConfig    `yaml:"redis"`
	Feed     FeedConfig     `yaml:"feed"`
	Viewer   ViewerConfig   `yaml:"viewer"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Alerts   AlertsConfig   `yaml:"alerts"`
	HTTP     HTTPConfig     `yaml:"http"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	// Channel is the LISTEN/NOTIFY channel the orders trigger writes to.
	Channel string `yaml:"channel"`
}

type RabbitMQConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

func (c RabbitMQConfig) URL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/", c.User, c.Password, c.Host, c.Port)
}

type NATSConfig struct {
	URL           string `yaml:"url"`
	ChangeSubject string `yaml:"change_subject"`
	AlertSubject  string `yaml:"alert_subject"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Enabled  bool          `yaml:"enabled"`
	Key      string        `yaml:"key"`
	TTL      time.Duration `yaml:"ttl"`
}

// FeedConfig selects the change feed transport and its recovery timings.
type FeedConfig struct {
	Source       string        `yaml:"source"`
	PollInterval time.Duration `yaml:"poll_interval"`
	BackoffMin   time.Duration `yaml:"backoff_min"`
	BackoffMax   time.Duration `yaml:"backoff_max"`
	// RelayTargets lists the brokers feed-relay republishes to.
	RelayTargets []string `yaml:"relay_targets"`
}

type ViewerConfig struct {
	TickInterval     time.Duration `yaml:"tick_interval"`
	LateThreshold    time.Duration `yaml:"late_threshold"`
	FireGrace        time.Duration `yaml:"fire_grace"`
	RetiredTTL       time.Duration `yaml:"retired_ttl"`
	CommandTimeout   time.Duration `yaml:"command_timeout"`
	ReconcileTimeout time.Duration `yaml:"reconcile_timeout"`
}

type CatalogConfig struct {
	RefreshInterval    time.Duration `yaml:"refresh_interval"`
	DefaultPrepMinutes int           `yaml:"default_prep_minutes"`
}

type AlertsConfig struct {
	Sink      string `yaml:"sink"`
	QueueSize int    `yaml:"queue_size"`
}

type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Default returns the configuration used when neither the file nor the
// environment set a value.
func Default() Config {
	return Config{
		Database: DatabaseConfig{Host: "localhost", Port: 5432, User: "kitchen", Database: "kitchen", Channel: "orders_changes"},
		RabbitMQ: RabbitMQConfig{Host: "localhost", Port: 5672, User: "guest", Password: "guest"},
		NATS:     NATSConfig{URL: "nats://localhost:4222", ChangeSubject: "orders.changes", AlertSubject: "kitchen.alerts"},
		Redis:    RedisConfig{Addr: "localhost:6379", Key: "kds:prep_times", TTL: 5 * time.Minute},
		Feed: FeedConfig{
			Source:       "postgres",
			PollInterval: 5 * time.Second,
			BackoffMin:   time.Second,
			BackoffMax:   30 * time.Second,
			RelayTargets: []string{"rabbitmq"},
		},
		Viewer: ViewerConfig{
			TickInterval:     time.Second,
			LateThreshold:    3 * time.Minute,
			RetiredTTL:       10 * time.Minute,
			CommandTimeout:   10 * time.Second,
			ReconcileTimeout: 10 * time.Second,
		},
		Catalog: CatalogConfig{RefreshInterval: time.Minute, DefaultPrepMinutes: 5},
		Alerts:  AlertsConfig{Sink: "log", QueueSize: 64},
		HTTP:    HTTPConfig{Port: 3000},
	}
}

// Load reads the YAML file at path over the defaults, then applies .env and
// KDS_* environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse yaml: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Feed.Source {
	case "postgres", "rabbitmq", "nats":
	default:
		return fmt.Errorf("feed.source must be one of postgres, rabbitmq, nats: got %q", c.Feed.Source)
	}
	switch c.Alerts.Sink {
	case "log", "rabbitmq", "nats":
	default:
		return fmt.Errorf("alerts.sink must be one of log, rabbitmq, nats: got %q", c.Alerts.Sink)
	}
	if c.Viewer.TickInterval <= 0 {
		return errors.New("viewer.tick_interval must be positive")
	}
	if c.Feed.PollInterval <= 0 {
		return errors.New("feed.poll_interval must be positive")
	}
	if c.Feed.BackoffMin <= 0 || c.Feed.BackoffMax < c.Feed.BackoffMin {
		return errors.New("feed backoff must satisfy 0 < backoff_min <= backoff_max")
	}
	if c.Catalog.RefreshInterval <= 0 {
		return errors.New("catalog.refresh_interval must be positive")
	}
	if c.Catalog.DefaultPrepMinutes <= 0 {
		return errors.New("catalog.default_prep_minutes must be positive")
	}
	return nil
}

func applyEnv(cfg *Config) error {
	strs := map[string]*string{
		"KDS_DB_HOST":        &cfg.Database.Host,
		"KDS_DB_USER":        &cfg.Database.User,
		"KDS_DB_PASSWORD":    &cfg.Database.Password,
		"KDS_DB_NAME":        &cfg.Database.Database,
		"KDS_RABBITMQ_HOST":  &cfg.RabbitMQ.Host,
		"KDS_RABBITMQ_USER":  &cfg.RabbitMQ.User,
		"KDS_RABBITMQ_PASS":  &cfg.RabbitMQ.Password,
		"KDS_NATS_URL":       &cfg.NATS.URL,
		"KDS_REDIS_ADDR":     &cfg.Redis.Addr,
		"KDS_REDIS_PASSWORD": &cfg.Redis.Password,
		"KDS_FEED_SOURCE":    &cfg.Feed.Source,
		"KDS_ALERTS_SINK":    &cfg.Alerts.Sink,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"KDS_DB_PORT":       &cfg.Database.Port,
		"KDS_RABBITMQ_PORT": &cfg.RabbitMQ.Port,
		"KDS_HTTP_PORT":     &cfg.HTTP.Port,
	}
	for key, dst := range ints {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", key, err)
			}
			*dst = n
		}
	}

	durs := map[string]*time.Duration{
		"KDS_TICK_INTERVAL":  &cfg.Viewer.TickInterval,
		"KDS_POLL_INTERVAL":  &cfg.Feed.PollInterval,
		"KDS_LATE_THRESHOLD": &cfg.Viewer.LateThreshold,
	}
	for key, dst := range durs {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", key, err)
			}
			*dst = d
		}
	}

	if v, ok := os.LookupEnv("KDS_REDIS_ENABLED"); ok {
		cfg.Redis.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v, ok := os.LookupEnv("KDS_RELAY_TARGETS"); ok && v != "" {
		cfg.Feed.RelayTargets = strings.Split(v, ",")
	}

	return nil
}
