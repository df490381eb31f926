package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Config represents the complete service configuration
type Config struct {
	App       AppConfig       `yaml:"app"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Recording RecordingConfig `yaml:"recording"`
	Database  DatabaseConfig  `yaml:"database"`
	RabbitMQ  RabbitMQConfig  `yaml:"rabbitmq"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// MaxBodyBytes caps uploaded pixel buffers
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableSource bool   `yaml:"enable_source"`
}

// PipelineConfig holds still-image pipeline tuning
type PipelineConfig struct {
	// WorkerCount of 0 means one worker per logical CPU, capped at 8
	WorkerCount      int  `yaml:"worker_count"`
	CompressionLevel int  `yaml:"compression_level"`
	AutoInit         bool `yaml:"auto_init"`
}

// RecordingConfig holds video recording settings
type RecordingConfig struct {
	Encoder            string `yaml:"encoder"`
	Preset             int    `yaml:"preset"`
	FFmpegPath         string `yaml:"ffmpeg_path"`
	FrameOverheadBytes int    `yaml:"frame_overhead_bytes"`
	WriteSidecar       bool   `yaml:"write_sidecar"`
}

// DatabaseConfig holds history store configuration
type DatabaseConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Driver          string        `yaml:"driver"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	Path            string        `yaml:"path"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// RabbitMQConfig holds broker configuration for event publishing and remote submission
type RabbitMQConfig struct {
	Enabled    bool             `yaml:"enabled"`
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	User       string           `yaml:"user"`
	Password   string           `yaml:"password"`
	VHost      string           `yaml:"vhost"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Intake     IntakeConfig     `yaml:"intake"`
	Events     EventsConfig     `yaml:"events"`
	Connection ConnectionConfig `yaml:"connection"`
	Publish    PublishConfig    `yaml:"publish"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`
	Durable bool   `yaml:"durable"`
}

// IntakeConfig holds the submission queue settings
type IntakeConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Queue         string `yaml:"queue"`
	BindingKey    string `yaml:"binding_key"`
	PrefetchCount int    `yaml:"prefetch_count"`
}

// EventsConfig holds event publishing settings
type EventsConfig struct {
	Enabled          bool   `yaml:"enabled"`
	RoutingKeyPrefix string `yaml:"routing_key_prefix"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryInterval time.Duration `yaml:"retry_interval"`
	Heartbeat     time.Duration `yaml:"heartbeat"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
}

// MetricsConfig holds Prometheus settings
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
	Path      string `yaml:"path"`
}

// Default returns the configuration used for fields the file leaves unset
func Default() Config {
	return Config{
		App: AppConfig{Name: "niceshot", Environment: "development"},
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxBodyBytes:    256 << 20,
		},
		Logging:  LoggingConfig{Level: "info", Format: "console", Output: "stdout"},
		Pipeline: PipelineConfig{CompressionLevel: 6, AutoInit: true},
		Recording: RecordingConfig{
			Encoder:            "y4m",
			Preset:             1,
			FFmpegPath:         "ffmpeg",
			FrameOverheadBytes: 64,
			WriteSidecar:       true,
		},
		Database: DatabaseConfig{Driver: "sqlite3", Path: "niceshot.db", SSLMode: "disable", MaxOpenConns: 10, MaxIdleConns: 5},
		RabbitMQ: RabbitMQConfig{
			Port:       5672,
			VHost:      "/",
			Exchange:   ExchangeConfig{Name: "niceshot", Type: "topic", Durable: true},
			Intake:     IntakeConfig{Queue: "niceshot.submit", BindingKey: "niceshot.submit", PrefetchCount: 8},
			Events:     EventsConfig{RoutingKeyPrefix: "niceshot"},
			Connection: ConnectionConfig{RetryAttempts: 5, RetryInterval: 2 * time.Second, Heartbeat: 10 * time.Second},
			Publish:    PublishConfig{RetryAttempts: 3, RetryInterval: 100 * time.Millisecond, BackoffMultiplier: 2},
		},
		Metrics: MetricsConfig{Enabled: true, Namespace: "niceshot", Path: "/metrics"},
	}
}

// Load reads and parses the configuration file on top of the defaults
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	if err := c.ValidatePipeline(); err != nil {
		return err
	}

	if c.Database.Enabled {
		if err := c.validateDatabase(); err != nil {
			return err
		}
	}

	if c.RabbitMQ.Enabled {
		if err := c.validateRabbitMQ(); err != nil {
			return err
		}
	}

	return nil
}

// ValidatePipeline checks tuning and recording settings
func (c *Config) ValidatePipeline() error {
	var errs []error

	if c.Pipeline.WorkerCount < 0 || c.Pipeline.WorkerCount > 8 {
		errs = append(errs, fmt.Errorf("invalid worker_count: %d (must be 0 for auto or between 1 and 8)", c.Pipeline.WorkerCount))
	}
	if c.Pipeline.CompressionLevel < 0 || c.Pipeline.CompressionLevel > 9 {
		errs = append(errs, fmt.Errorf("invalid compression_level: %d (must be between 0 and 9)", c.Pipeline.CompressionLevel))
	}
	if c.Recording.Preset < 0 || c.Recording.Preset > 4 {
		errs = append(errs, fmt.Errorf("invalid recording preset: %d (must be between 0 and 4)", c.Recording.Preset))
	}
	switch c.Recording.Encoder {
	case "y4m", "ffmpeg":
	default:
		errs = append(errs, fmt.Errorf("invalid recording encoder: %q (must be y4m or ffmpeg)", c.Recording.Encoder))
	}
	if c.Recording.FrameOverheadBytes < 0 {
		errs = append(errs, fmt.Errorf("frame_overhead_bytes must not be negative"))
	}

	return errors.Join(errs...)
}

func (c *Config) validateDatabase() error {
	switch c.Database.Driver {
	case "sqlite3":
		if c.Database.Path == "" {
			return fmt.Errorf("database path is required for sqlite3")
		}
	case "postgres":
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.Port < MinPort || c.Database.Port > MaxPort {
			return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
	default:
		return fmt.Errorf("unsupported database driver: %q", c.Database.Driver)
	}
	return nil
}

func (c *Config) validateRabbitMQ() error {
	if c.RabbitMQ.Host == "" {
		return fmt.Errorf("rabbitmq host is required")
	}
	if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
		return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
	}
	if c.RabbitMQ.Exchange.Name == "" {
		return fmt.Errorf("rabbitmq exchange name is required")
	}
	if c.RabbitMQ.Intake.Enabled && c.RabbitMQ.Intake.Queue == "" {
		return fmt.Errorf("rabbitmq intake queue is required")
	}
	return nil
}

// ApplyEnv overrides secrets and the listen port from the environment
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("NICESHOT_DB_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv("NICESHOT_RABBITMQ_PASSWORD"); v != "" {
		c.RabbitMQ.Password = v
	}
	if v := os.Getenv("NICESHOT_SERVER_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid NICESHOT_SERVER_PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}
	return nil
}
