// Package config читает конфигурацию процесса из переменных окружения.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config — конфигурация движка.
type Config struct {
	Database Database
	Redis    Redis
	MQ       MQ
	Platform Platform
	Engine   Engine
}

// Database — подключение к Postgres.
type Database struct {
	URL      string `env:"DATABASE_URL,required,notEmpty"`
	MaxConns int32  `env:"DATABASE_MAX_CONNS" envDefault:"10"`
}

// Redis — кеш снапшотов посещаемости.
// Пустой Addr — движок работает без кеша, напрямую из Postgres.
type Redis struct {
	Addr     string        `env:"REDIS_ADDR"`
	Password string        `env:"REDIS_PASSWORD"`
	CacheTTL time.Duration `env:"REDIS_CACHE_TTL" envDefault:"1m"`
}

// MQ — подключение к RabbitMQ.
// Пустой URL — движок живёт на одном polling, без событий от веб-части.
type MQ struct {
	URL string `env:"RABBITMQ_URL"`
}

// Platform — шлюз чат-платформы.
type Platform struct {
	BaseURL string `env:"PLATFORM_BASE_URL" envDefault:"http://localhost:8090"`
	Token   string `env:"PLATFORM_BOT_TOKEN"`
}

// Engine — параметры самого движка.
type Engine struct {
	TickInterval time.Duration `env:"ENGINE_TICK_INTERVAL" envDefault:"1m"`
	BatchSize    int           `env:"ENGINE_BATCH_SIZE" envDefault:"100"`
	Port         int           `env:"ENGINE_PORT" envDefault:"8080"`
}

// Load читает и валидирует конфигурацию из окружения.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// CacheEnabled — настроен ли Redis.
func (c Config) CacheEnabled() bool { return c.Redis.Addr != "" }

// MQEnabled — настроен ли RabbitMQ.
func (c Config) MQEnabled() bool { return c.MQ.URL != "" }

// Addr — адрес HTTP-сервера движка.
func (c Engine) Addr() string { return fmt.Sprintf(":%d", c.Port) }
