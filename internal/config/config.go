// config описывает конфигурацию агрегатора и загрузку из YAML/ENV.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Ключи провайдеров. Порядок определяет порядок обхода при sweep.
const (
	ProviderNewsAPI  = "news_api"
	ProviderGuardian = "guardian_news"
	ProviderNYT      = "nyt_news"
)

// Драйверы хранилища статей.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMongo    = "mongo"
)

// Config хранит всю конфигурацию приложения.
// Приоритет источников: явный путь, CONFIG_PATH, ./config.yaml, затем только ENV.
type Config struct {
	Env       string          `yaml:"env"       env:"ENV"       env-default:"local"`
	LogLevel  string          `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	HTTP      HTTPConfig      `yaml:"http"`
	Storage   StorageConfig   `yaml:"storage"`
	Redis     RedisConfig     `yaml:"redis"`
	RabbitMQ  RabbitMQConfig  `yaml:"rabbitmq"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Providers ProvidersConfig `yaml:"providers"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Search    SearchConfig    `yaml:"search"`
}

type HTTPConfig struct {
	Host         string        `yaml:"host"          env:"HTTP_HOST"          env-default:"0.0.0.0"`
	Port         string        `yaml:"port"          env:"HTTP_PORT"          env-default:"8080"`
	ReadTimeout  time.Duration `yaml:"read_timeout"  env:"HTTP_READ_TIMEOUT"  env-default:"10s"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"30s"`
}

// Addr возвращает адрес в формате host:port.
func (h HTTPConfig) Addr() string {
	return net.JoinHostPort(h.Host, h.Port)
}

type StorageConfig struct {
	Driver        string `yaml:"driver"         env:"STORAGE_DRIVER" env-default:"postgres"`
	PostgresURL   string `yaml:"postgres_url"   env:"DATABASE_URL"`
	SQLitePath    string `yaml:"sqlite_path"    env:"SQLITE_PATH"    env-default:"articles.db"`
	MongoURI      string `yaml:"mongo_uri"      env:"MONGO_URI"`
	MongoDatabase string `yaml:"mongo_database" env:"MONGO_DATABASE"`
}

// RedisConfig включает распределённую блокировку sweep и хранение маркера в Redis.
// Пустой URL означает работу в одном экземпляре.
type RedisConfig struct {
	URL     string        `yaml:"url"      env:"REDIS_URL"`
	LockTTL time.Duration `yaml:"lock_ttl" env:"REDIS_LOCK_TTL" env-default:"10m"`
}

type RabbitMQConfig struct {
	URL          string `yaml:"url"           env:"RABBITMQ_URL"`
	TriggerQueue string `yaml:"trigger_queue" env:"RABBITMQ_TRIGGER_QUEUE" env-default:"ingestion.trigger"`
	EventsQueue  string `yaml:"events_queue"  env:"RABBITMQ_EVENTS_QUEUE"  env-default:"ingestion.events"`
	Workers      int    `yaml:"workers"       env:"RABBITMQ_WORKERS"       env-default:"1"`
}

// ArchiveConfig задаёт S3/MinIO-бакет для сырых ответов провайдеров.
type ArchiveConfig struct {
	Enabled   bool   `yaml:"enabled"    env:"ARCHIVE_ENABLED"`
	Endpoint  string `yaml:"endpoint"   env:"ARCHIVE_ENDPOINT"`
	AccessKey string `yaml:"access_key" env:"ARCHIVE_ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" env:"ARCHIVE_SECRET_KEY"`
	Bucket    string `yaml:"bucket"     env:"ARCHIVE_BUCKET" env-default:"news-raw"`
}

// ProviderConfig описывает один внешний источник: endpoint, ключ и доп. параметры запроса.
type ProviderConfig struct {
	Endpoint string            `yaml:"endpoint" env:"ENDPOINT"`
	APIKey   string            `yaml:"api_key"  env:"KEY"`
	Params   map[string]string `yaml:"params"`
}

type ProvidersConfig struct {
	Enabled    []string       `yaml:"enabled"     env:"PROVIDERS" env-separator:","`
	Timeout    time.Duration  `yaml:"timeout"     env:"PROVIDER_TIMEOUT"     env-default:"15s"`
	Retries    int            `yaml:"retries"     env:"PROVIDER_RETRIES"     env-default:"0"`
	RetryDelay time.Duration  `yaml:"retry_delay" env:"PROVIDER_RETRY_DELAY" env-default:"2s"`
	NewsAPI    ProviderConfig `yaml:"news_api"      env-prefix:"NEWS_API_"`
	Guardian   ProviderConfig `yaml:"guardian_news" env-prefix:"GUARDIAN_NEWS_API_"`
	NYT        ProviderConfig `yaml:"nyt_news"      env-prefix:"NYT_NEWS_API_"`
}

// For возвращает настройки провайдера по ключу.
func (p ProvidersConfig) For(key string) (ProviderConfig, bool) {
	switch key {
	case ProviderNewsAPI:
		return p.NewsAPI, true
	case ProviderGuardian:
		return p.Guardian, true
	case ProviderNYT:
		return p.NYT, true
	}
	return ProviderConfig{}, false
}

type SchedulerConfig struct {
	// Interval минимальный промежуток между двумя sweep.
	Interval    time.Duration `yaml:"interval"    env:"SWEEP_INTERVAL"    env-default:"1h"`
	Tick        time.Duration `yaml:"tick"        env:"SWEEP_TICK"        env-default:"5m"`
	Concurrency int           `yaml:"concurrency" env:"SWEEP_CONCURRENCY" env-default:"1"`
}

type SearchConfig struct {
	PageSize int `yaml:"page_size" env:"PAGINATION_LIMIT" env-default:"50"`
}

// MustLoad обёртка над Load с panic при ошибке.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load загружает конфигурацию по приоритету:
// 1) явный путь; 2) CONFIG_PATH; 3) ./config.yaml; 4) ENV.
func Load(path string) (*Config, error) {
	var cfg Config

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file does not exist: %s", path)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config not found: provide --config, CONFIG_PATH, config.yaml or env vars: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults заполняет значения, которые нельзя выразить тегами:
// у трёх провайдеров общий тип, но разные endpoint и параметры.
func (c *Config) applyDefaults() {
	if len(c.Providers.Enabled) == 0 {
		c.Providers.Enabled = []string{ProviderNewsAPI, ProviderGuardian, ProviderNYT}
	}

	setDefaults(&c.Providers.NewsAPI, "https://newsapi.org/v2/top-headlines", map[string]string{
		"country": "us",
	})
	setDefaults(&c.Providers.Guardian, "https://content.guardianapis.com/search", map[string]string{
		"show-fields": "body,byline,trailText,thumbnail",
	})
	setDefaults(&c.Providers.NYT, "https://api.nytimes.com/svc/search/v2/articlesearch.json", map[string]string{
		"sort": "newest",
	})
}

func setDefaults(p *ProviderConfig, endpoint string, params map[string]string) {
	if p.Endpoint == "" {
		p.Endpoint = endpoint
	}
	if p.Params == nil {
		p.Params = make(map[string]string, len(params))
	}
	for k, v := range params {
		if _, ok := p.Params[k]; !ok {
			p.Params[k] = v
		}
	}
}

// Validate проверяет согласованность значений.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverPostgres:
		if c.Storage.PostgresURL == "" {
			return errors.New("storage.postgres_url is required for postgres driver")
		}
	case DriverSQLite:
		if c.Storage.SQLitePath == "" {
			return errors.New("storage.sqlite_path is required for sqlite driver")
		}
	case DriverMongo:
		if c.Storage.MongoURI == "" {
			return errors.New("storage.mongo_uri is required for mongo driver")
		}
	default:
		return fmt.Errorf("unknown storage driver: %q", c.Storage.Driver)
	}

	seen := make(map[string]bool, len(c.Providers.Enabled))
	for _, key := range c.Providers.Enabled {
		p, ok := c.Providers.For(key)
		if !ok {
			return fmt.Errorf("unknown provider: %q", key)
		}
		if seen[key] {
			return fmt.Errorf("provider listed twice: %q", key)
		}
		seen[key] = true
		if _, err := url.ParseRequestURI(p.Endpoint); err != nil {
			return fmt.Errorf("invalid endpoint for %s: %s", key, p.Endpoint)
		}
	}

	if c.Providers.Timeout <= 0 {
		return errors.New("providers.timeout must be > 0")
	}
	if c.Providers.Retries < 0 {
		return errors.New("providers.retries must be >= 0")
	}
	if c.Scheduler.Interval <= 0 {
		return errors.New("scheduler.interval must be > 0")
	}
	if c.Scheduler.Tick <= 0 {
		return errors.New("scheduler.tick must be > 0")
	}
	if c.Scheduler.Concurrency < 1 {
		return errors.New("scheduler.concurrency must be >= 1")
	}
	if c.Search.PageSize < 1 {
		return errors.New("search.page_size must be >= 1")
	}
	if c.Redis.URL != "" && c.Redis.LockTTL <= 0 {
		return errors.New("redis.lock_ttl must be > 0")
	}
	if c.RabbitMQ.URL != "" && c.RabbitMQ.Workers < 1 {
		return errors.New("rabbitmq.workers must be >= 1")
	}
	if c.Archive.Enabled && (c.Archive.Endpoint == "" || c.Archive.Bucket == "") {
		return errors.New("archive.endpoint and archive.bucket are required when archive is enabled")
	}
	return nil
}
