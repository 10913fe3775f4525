package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Bridge   BridgeConfig   `yaml:"bridge"`
	Server   ServerConfig   `yaml:"server"`
	Pool     PoolConfig     `yaml:"pool"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	Backfill BackfillConfig `yaml:"backfill"`
	Poll     PollConfig     `yaml:"poll"`
	LogLevel string         `yaml:"log_level"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

type RabbitMQConfig struct {
	URL        string `yaml:"url"`
	Exchange   string `yaml:"exchange"`
	RoutingKey string `yaml:"routing_key"`
	QueueName  string `yaml:"queue_name"`
}

type BridgeConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type ServerConfig struct {
	Addr      string        `yaml:"addr"`
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type PoolConfig struct {
	IdleTimeout   time.Duration `yaml:"idle_timeout"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

type GatewayConfig struct {
	CacheTTL      time.Duration `yaml:"cache_ttl"`
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryDelay    time.Duration `yaml:"retry_delay"`
}

type BackfillConfig struct {
	GapThreshold      time.Duration `yaml:"gap_threshold"`
	PageSize          int           `yaml:"page_size"`
	MaxMessagesPerGap int           `yaml:"max_messages_per_gap"`
	PageDelay         time.Duration `yaml:"page_delay"`
	InitialWindow     time.Duration `yaml:"initial_window"`
}

type PollConfig struct {
	Interval        time.Duration `yaml:"interval"`
	RescanInterval  time.Duration `yaml:"rescan_interval"`
	UserConcurrency int           `yaml:"user_concurrency"`
	ChannelDelay    time.Duration `yaml:"channel_delay"`
	PageSize        int           `yaml:"page_size"`
	TickTimeout     time.Duration `yaml:"tick_timeout"`
}

func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.setDefaults()

	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.RabbitMQ.Exchange == "" {
		c.RabbitMQ.Exchange = "channel_pulse"
	}
	if c.RabbitMQ.RoutingKey == "" {
		c.RabbitMQ.RoutingKey = "messages"
	}
	if c.RabbitMQ.QueueName == "" {
		c.RabbitMQ.QueueName = "ingested_messages"
	}
	if c.Bridge.BaseURL == "" {
		c.Bridge.BaseURL = "http://localhost:8552"
	}
	if c.Bridge.Timeout == 0 {
		c.Bridge.Timeout = 30 * time.Second
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.TokenTTL == 0 {
		c.Server.TokenTTL = 24 * time.Hour
	}
	if c.Pool.IdleTimeout == 0 {
		c.Pool.IdleTimeout = 30 * time.Minute
	}
	if c.Pool.SweepInterval == 0 {
		c.Pool.SweepInterval = 5 * time.Minute
	}
	if c.Gateway.CacheTTL == 0 {
		c.Gateway.CacheTTL = 10 * time.Minute
	}
	if c.Gateway.RetryAttempts == 0 {
		c.Gateway.RetryAttempts = 3
	}
	if c.Gateway.RetryDelay == 0 {
		c.Gateway.RetryDelay = 1 * time.Second
	}
	if c.Backfill.GapThreshold == 0 {
		c.Backfill.GapThreshold = 1 * time.Hour
	}
	if c.Backfill.PageSize == 0 {
		c.Backfill.PageSize = 100
	}
	if c.Backfill.MaxMessagesPerGap == 0 {
		c.Backfill.MaxMessagesPerGap = 1000
	}
	if c.Backfill.PageDelay == 0 {
		c.Backfill.PageDelay = 2 * time.Second
	}
	if c.Backfill.InitialWindow == 0 {
		c.Backfill.InitialWindow = 24 * time.Hour
	}
	if c.Poll.Interval == 0 {
		c.Poll.Interval = 60 * time.Minute
	}
	if c.Poll.RescanInterval == 0 {
		c.Poll.RescanInterval = 30 * time.Minute
	}
	if c.Poll.UserConcurrency == 0 {
		c.Poll.UserConcurrency = 5
	}
	if c.Poll.ChannelDelay == 0 {
		c.Poll.ChannelDelay = 2 * time.Second
	}
	if c.Poll.PageSize == 0 {
		c.Poll.PageSize = 100
	}
	if c.Poll.TickTimeout == 0 {
		c.Poll.TickTimeout = 30 * time.Minute
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}
