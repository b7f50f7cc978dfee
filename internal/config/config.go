package config

import (
	"io/ioutil"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации приложения.

type Config struct {
	Server        ServerConfig        `yaml:"server"`
	World         WorldConfig         `yaml:"world"`
	EventBus      EventBusConfig      `yaml:"eventbus"`
	Storage       StorageConfig       `yaml:"storage"`
	Auth          AuthConfig          `yaml:"auth"`
	Observability ObservabilityConfig `yaml:"observability"`
	Logging       LoggingConfig       `yaml:"logging"`
}

type ServerConfig struct {
	RESTPort    int `yaml:"rest_port"`
	FeedPort    int `yaml:"feed_port"`
	MetricsPort int `yaml:"metrics_port"`
}

type WorldConfig struct {
	Width           int `yaml:"width"`
	Height          int `yaml:"height"`
	TickMs          int `yaml:"tick_ms"`
	AutosaveSeconds int `yaml:"autosave_seconds"`
}

type EventBusConfig struct {
	URL       string `yaml:"url"`    // Пусто — in-memory шина
	Stream    string `yaml:"stream"` // Имя JetStream-стрима
	Retention int    `yaml:"retention_hours"`
	Buffer    int    `yaml:"buffer"` // Ёмкость in-memory буфера
}

type StorageConfig struct {
	SnapshotStore string `yaml:"snapshot_store"` // badger | file
	Path          string `yaml:"path"`           // Каталог BadgerDB
	SnapshotDir   string `yaml:"snapshot_dir"`   // Каталог файловых снапшотов
	CatalogPath   string `yaml:"catalog_path"`   // Файл SQLite-каталога снапшотов
	PositionRepo  string `yaml:"position_repo"`  // memory | redis | maria
	RedisAddr     string `yaml:"redis_addr"`
	MariaDSN      string `yaml:"maria_dsn"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"` // Base64, минимум 32 байта
	Repo      string `yaml:"repo"`       // memory | mongo | maria
	MongoURI  string `yaml:"mongo_uri"`
	MariaDSN  string `yaml:"maria_dsn"`
}

type ObservabilityConfig struct {
	Enabled      bool   `yaml:"enabled"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

type LoggingConfig struct {
	ConsoleLevel string `yaml:"console_level"`
}

// GetRESTPort возвращает REST API порт с поддержкой fallback значений
func (s *ServerConfig) GetRESTPort() int {
	return getPortWithEnvFallback(s.RESTPort, "WORLDSIM_REST_PORT", 8088)
}

// GetFeedPort возвращает порт KCP-фида с поддержкой fallback значений
func (s *ServerConfig) GetFeedPort() int {
	return getPortWithEnvFallback(s.FeedPort, "WORLDSIM_FEED_PORT", 7777)
}

// GetMetricsPort возвращает Prometheus метрики порт с поддержкой fallback значений
func (s *ServerConfig) GetMetricsPort() int {
	return getPortWithEnvFallback(s.MetricsPort, "WORLDSIM_METRICS_PORT", 2112)
}

// GetWidth возвращает ширину мира в тайлах
func (w *WorldConfig) GetWidth() int {
	if w.Width > 0 {
		return w.Width
	}
	return 256
}

// GetHeight возвращает высоту мира в тайлах
func (w *WorldConfig) GetHeight() int {
	if w.Height > 0 {
		return w.Height
	}
	return 256
}

// GetTickInterval возвращает период тика симуляции
func (w *WorldConfig) GetTickInterval() time.Duration {
	if w.TickMs > 0 {
		return time.Duration(w.TickMs) * time.Millisecond
	}
	return 100 * time.Millisecond
}

// GetAutosaveInterval возвращает период автосохранения.
// Отрицательное значение в конфиге выключает автосохранение.
func (w *WorldConfig) GetAutosaveInterval() time.Duration {
	if w.AutosaveSeconds < 0 {
		return 0
	}
	if w.AutosaveSeconds == 0 {
		return 60 * time.Second
	}
	return time.Duration(w.AutosaveSeconds) * time.Second
}

// GetBuffer возвращает ёмкость буфера in-memory шины
func (e *EventBusConfig) GetBuffer() int {
	if e.Buffer > 0 {
		return e.Buffer
	}
	return 1024
}

// GetPath возвращает каталог BadgerDB
func (s *StorageConfig) GetPath() string {
	if s.Path != "" {
		return s.Path
	}
	return "./data/world"
}

// GetSnapshotDir возвращает каталог файловых снапшотов
func (s *StorageConfig) GetSnapshotDir() string {
	if s.SnapshotDir != "" {
		return s.SnapshotDir
	}
	return "./data/snapshots"
}

// GetCatalogPath возвращает путь SQLite-каталога
func (s *StorageConfig) GetCatalogPath() string {
	if s.CatalogPath != "" {
		return s.CatalogPath
	}
	return "./data/catalog.db"
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	// Если порт задан в конфиге и больше 0, используем его
	if configPort > 0 {
		return configPort
	}

	// Пробуем прочитать из environment variable
	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	// Используем дефолтное значение
	return defaultPort
}

// Load читает YAML файл конфигурации.
// Если path == "", пытается прочитать из ENV WORLDSIM_CONFIG или возвращает nil, nil.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("WORLDSIM_CONFIG")
		if path == "" {
			return nil, nil // конфиг не задан — использовать дефолты
		}
	}

	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
