// config описывает конфигурацию сервиса и её загрузку из YAML/ENV.
package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config: корневая конфигурация сервиса.
// Приоритет источников:
//  1. явный путь, переданный в MustLoad/Load;
//  2. переменная окружения CONFIG_PATH;
//  3. файл ./local.yaml из рабочей директории;
//  4. переменные окружения.
type Config struct {
	Env     string        `yaml:"env" env:"ENV" env-default:"local"`
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Gateway GatewayConfig `yaml:"gateway"`
	Cache   CacheConfig   `yaml:"cache"`
	List    ListConfig    `yaml:"list"`
	Log     LogConfig     `yaml:"log"`
}

// ServerConfig: настройки HTTP-сервера.
type ServerConfig struct {
	Host            string        `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port            string        `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"10s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

// Addr возвращает адрес в формате host:port.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, s.Port)
}

// StorageConfig: выбор и настройка хранилища.
type StorageConfig struct {
	// memory или postgres.
	Type        string `yaml:"type" env:"STORAGE_TYPE" env-default:"memory"`
	PostgresDSN string `yaml:"postgres_dsn" env:"DATABASE_URL"`
	// Количество сгенерированных постов, если не задан SeedFile.
	SeedCount int    `yaml:"seed_count" env:"SEED_COUNT" env-default:"100"`
	SeedFile  string `yaml:"seed_file" env:"SEED_FILE"`
}

// GatewayConfig: имитация сетевой задержки и ошибок, либо удалённый шлюз.
type GatewayConfig struct {
	MinDelay    time.Duration `yaml:"min_delay" env:"GATEWAY_MIN_DELAY" env-default:"100ms"`
	MaxDelay    time.Duration `yaml:"max_delay" env:"GATEWAY_MAX_DELAY" env-default:"1200ms"`
	FailureRate float64       `yaml:"failure_rate" env:"GATEWAY_FAILURE_RATE" env-default:"0"`
	// Если задан, сессии ходят в удалённый REST API вместо локального хранилища.
	RemoteURL  string        `yaml:"remote_url" env:"GATEWAY_REMOTE_URL"`
	MaxRetries uint64        `yaml:"max_retries" env:"GATEWAY_MAX_RETRIES" env-default:"3"`
	Timeout    time.Duration `yaml:"timeout" env:"GATEWAY_TIMEOUT" env-default:"5s"`
}

// CacheConfig: кэш страниц списка в Redis. Пустой RedisURL отключает кэш.
type CacheConfig struct {
	RedisURL string        `yaml:"redis_url" env:"REDIS_URL"`
	TTL      time.Duration `yaml:"ttl" env:"CACHE_TTL" env-default:"1m"`
	Prefix   string        `yaml:"prefix" env:"CACHE_PREFIX" env-default:"postadmin:"`
}

// ListConfig: параметры списка по умолчанию.
type ListConfig struct {
	DefaultPageSize int `yaml:"default_page_size" env:"LIST_DEFAULT_PAGE_SIZE" env-default:"20"`
}

type LogConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
}

// MustLoad: обёртка над Load с panic при ошибке.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load загружает конфигурацию по приоритету:
// 1) явный путь; 2) CONFIG_PATH; 3) ./local.yaml; 4) ENV.
func Load(path string) (*Config, error) {
	var cfg Config

	read := func(p string) (*Config, error) {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("config file does not exist: %s", p)
		}
		if err := cleanenv.ReadConfig(p, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := cfg.validate(); err != nil {
			return nil, err
		}
		return &cfg, nil
	}

	if path != "" {
		return read(path)
	}
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		return read(envPath)
	}
	if _, err := os.Stat("local.yaml"); err == nil {
		return read("local.yaml")
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate: базовая валидация значений.
func (c *Config) validate() error {
	switch c.Storage.Type {
	case "memory":
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("storage.postgres_dsn is required for postgres storage")
		}
	default:
		return fmt.Errorf("unknown storage.type %q", c.Storage.Type)
	}
	if c.Storage.SeedCount < 0 {
		return fmt.Errorf("storage.seed_count must be >= 0")
	}
	if c.Gateway.MinDelay < 0 || c.Gateway.MaxDelay < c.Gateway.MinDelay {
		return fmt.Errorf("gateway delays must satisfy 0 <= min_delay <= max_delay")
	}
	if c.Gateway.FailureRate < 0 || c.Gateway.FailureRate > 1 {
		return fmt.Errorf("gateway.failure_rate must be within [0, 1]")
	}
	if c.List.DefaultPageSize <= 0 {
		return fmt.Errorf("list.default_page_size must be > 0")
	}
	return nil
}
