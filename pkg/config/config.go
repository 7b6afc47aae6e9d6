package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Server      struct {
		Port            int           `yaml:"port" default:"8000"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"15s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		CORS            struct {
			AllowOrigins     []string `yaml:"allow_origins" default:"[\"*\"]"`
			AllowCredentials bool     `yaml:"allow_credentials" default:"true"`
		} `yaml:"cors"`
	} `yaml:"server"`
	Log struct {
		Level            string        `yaml:"level" default:"info"`
		Format           string        `yaml:"format" default:"json"`
		Output           string        `yaml:"output" default:"stdout"`
		CollectTopic     string        `yaml:"collect_topic"`
		CollectInterval  time.Duration `yaml:"collect_interval" default:"30s"`
		CollectThreshold int           `yaml:"collect_threshold" default:"100"`
	} `yaml:"log"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Pricing struct {
		CustodyRate float64 `yaml:"custody_rate" default:"0.001"`
		Rounding    string  `yaml:"rounding" default:"nearest"`
	} `yaml:"pricing"`
	Events struct {
		Backend      string        `yaml:"backend" default:"none"`
		RetryMax     int           `yaml:"retry_max" default:"3"`
		RetryBackoff time.Duration `yaml:"retry_backoff" default:"400ms"`
		CSVLimit     int           `yaml:"csv_limit" default:"5000"`
	} `yaml:"events"`
	RateLimit struct {
		Enabled  bool    `yaml:"enabled" default:"true"`
		Capacity float64 `yaml:"capacity" default:"30"`
		PerSec   float64 `yaml:"refill_per_sec" default:"5"`
	} `yaml:"ratelimit"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic" default:"pricer.events"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"snappy"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"5"`
			Linger       time.Duration `yaml:"linger" default:"10ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"pricer-events-writer"`
			Workers    int           `yaml:"workers" default:"4"`
			BufferSize int           `yaml:"buffer_size" default:"256"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic   string        `yaml:"dlq_topic" default:"pricer.events.dlq"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"pricer"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
	} `yaml:"clickhouse"`
	Cache struct {
		StatsTTL      time.Duration `yaml:"stats_ttl" default:"30s"`
		MemoryEntries int           `yaml:"memory_entries" default:"512"`
		Redis         struct {
			Enabled  bool   `yaml:"enabled"`
			Addr     string `yaml:"addr" default:"localhost:6379"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix" default:"pricer:"`
		} `yaml:"redis"`
	} `yaml:"cache"`
}

// Load reads a YAML configuration file on top of the defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse applies defaults, then the YAML document, then validates.
// Defaults go first so explicit false/zero values in the file are kept.
func Parse(b []byte) (*Config, error) {
	c, err := Defaults()
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Defaults returns a config with every default applied.
func Defaults() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := c.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// ApplyEnv overrides fields from the environment. getenv is injectable for tests.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		c.Server.Port = p
	}
	if v := getenv("EVENTS_BACKEND"); v != "" {
		c.Events.Backend = v
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	if v := getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Cache.Redis.Addr = v
		c.Cache.Redis.Enabled = true
	}
	if v := getenv("CORS_ORIGINS"); v != "" {
		c.Server.CORS.AllowOrigins = splitList(v)
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	switch c.Events.Backend {
	case "none", "clickhouse":
	case "kafka":
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers cannot be empty when events.backend is 'kafka'")
		}
		if c.Kafka.Topic == "" {
			return fmt.Errorf("kafka.topic is required when events.backend is 'kafka'")
		}
	default:
		return fmt.Errorf("events.backend must be 'none', 'clickhouse' or 'kafka', got '%s'", c.Events.Backend)
	}
	if c.Events.RetryMax < 1 {
		return fmt.Errorf("events.retry_max must be >= 1")
	}
	if c.Events.CSVLimit < 1 {
		return fmt.Errorf("events.csv_limit must be >= 1")
	}
	if c.Pricing.CustodyRate < 0 || c.Pricing.CustodyRate >= 1 {
		return fmt.Errorf("pricing.custody_rate must be in [0,1), got %v", c.Pricing.CustodyRate)
	}
	if c.Cache.StatsTTL < 0 {
		return fmt.Errorf("cache.stats_ttl cannot be negative")
	}
	return nil
}

// UsesClickHouse reports whether a ClickHouse connection is needed.
// The kafka backend persists through the consumer, so it needs one too.
func (c *Config) UsesClickHouse() bool {
	return c.Events.Backend == "clickhouse" || c.Events.Backend == "kafka"
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
