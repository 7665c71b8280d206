package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Netflix/go-env"
)

const (
	EventTransportChannel  = "channel"
	EventTransportRabbitMQ = "rabbitmq"

	LiveFanoutLocal = "local"
	LiveFanoutRedis = "redis"
)

type Config struct {
	DatabaseDSN           string `env:"DATABASE_DSN,required=true"`
	RedisURL              string `env:"REDIS_URL,required=true"`
	RabbitMQURL           string `env:"RABBITMQ_URL"`
	APIPort               int    `env:"API_PORT,default=8080"`
	LogLevel              string `env:"LOG_LEVEL,default=info"`
	EventTransport        string `env:"EVENT_TRANSPORT,default=channel"`
	EventWorkers          int    `env:"EVENT_WORKERS,default=4"`
	EventBuffer           int    `env:"EVENT_BUFFER,default=256"`
	LiveFanout            string `env:"LIVE_FANOUT,default=local"`
	SSEKeepAliveSeconds   int    `env:"SSE_KEEPALIVE_SECONDS,default=15"`
	SSEBuffer             int    `env:"SSE_BUFFER,default=16"`
	PinAttemptsPerMinute  int    `env:"PIN_ATTEMPTS_PER_MINUTE,default=5"`
	RetentionSweepMinutes int    `env:"RETENTION_SWEEP_MINUTES,default=60"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	cfg.EventTransport = strings.ToLower(strings.TrimSpace(cfg.EventTransport))
	cfg.LiveFanout = strings.ToLower(strings.TrimSpace(cfg.LiveFanout))

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) SSEKeepAlive() time.Duration {
	return time.Duration(c.SSEKeepAliveSeconds) * time.Second
}

func (c *Config) RetentionSweepInterval() time.Duration {
	return time.Duration(c.RetentionSweepMinutes) * time.Minute
}

func (c *Config) validate() error {
	switch c.EventTransport {
	case EventTransportChannel:
	case EventTransportRabbitMQ:
		if strings.TrimSpace(c.RabbitMQURL) == "" {
			return fmt.Errorf("RABBITMQ_URL is required when EVENT_TRANSPORT=%s", EventTransportRabbitMQ)
		}
	default:
		return fmt.Errorf("EVENT_TRANSPORT must be %q or %q, got %q", EventTransportChannel, EventTransportRabbitMQ, c.EventTransport)
	}

	switch c.LiveFanout {
	case LiveFanoutLocal, LiveFanoutRedis:
	default:
		return fmt.Errorf("LIVE_FANOUT must be %q or %q, got %q", LiveFanoutLocal, LiveFanoutRedis, c.LiveFanout)
	}

	if c.EventWorkers < 1 {
		return fmt.Errorf("EVENT_WORKERS must be positive, got %d", c.EventWorkers)
	}
	if c.EventBuffer < 1 {
		return fmt.Errorf("EVENT_BUFFER must be positive, got %d", c.EventBuffer)
	}
	if c.SSEKeepAliveSeconds < 1 {
		return fmt.Errorf("SSE_KEEPALIVE_SECONDS must be positive, got %d", c.SSEKeepAliveSeconds)
	}
	if c.SSEBuffer < 1 {
		return fmt.Errorf("SSE_BUFFER must be positive, got %d", c.SSEBuffer)
	}
	if c.PinAttemptsPerMinute < 1 {
		return fmt.Errorf("PIN_ATTEMPTS_PER_MINUTE must be positive, got %d", c.PinAttemptsPerMinute)
	}
	if c.RetentionSweepMinutes < 1 {
		return fmt.Errorf("RETENTION_SWEEP_MINUTES must be positive, got %d", c.RetentionSweepMinutes)
	}
	return nil
}
