package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Env        string
	Server     ServerConfig
	Logging    LoggingConfig
	Database   DatabaseConfig
	Mongo      MongoConfig
	Redis      RedisConfig
	Weather    WeatherConfig
	Dataset    DatasetConfig
	Refresh    RefreshConfig
	Upload     UploadConfig
	Classifier ClassifierConfig
	CORS       CORSConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host             string
	Port             int
	PriceServicePort int
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	ShutdownTimeout  time.Duration
}

// LoggingConfig holds logger configuration
type LoggingConfig struct {
	Level string
}

// DatabaseConfig holds PostgreSQL configuration. An empty URL disables the database.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// MongoConfig holds the daily snapshot store configuration
type MongoConfig struct {
	Enabled        bool
	URI            string
	Database       string
	Collection     string
	ConnectTimeout time.Duration
}

// RedisConfig holds the weather cache configuration. An empty Addr keeps the cache in memory.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// WeatherConfig holds forecast API configuration
type WeatherConfig struct {
	BaseURL       string
	Timeout       time.Duration
	RatePerSecond float64
}

// DatasetConfig controls where the generated dataset is written
type DatasetConfig struct {
	Dir  string
	File string
}

// RefreshConfig controls dataset regeneration
type RefreshConfig struct {
	Interval   time.Duration
	OnRead     bool
	Cron       string
	JobTimeout time.Duration
}

// UploadConfig holds image upload configuration
type UploadConfig struct {
	Dir         string
	MaxBodySize int64
}

// ClassifierConfig points at the external image classifier. Empty URL disables it.
type ClassifierConfig struct {
	URL     string
	Timeout time.Duration
}

// CORSConfig lists origins allowed to call the API
type CORSConfig struct {
	Origins []string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")

	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("PORT", 5000)
	v.SetDefault("PRICE_SERVICE_PORT", 5002)
	v.SetDefault("SERVER_READ_TIMEOUT", "15s")
	v.SetDefault("SERVER_WRITE_TIMEOUT", "60s")
	v.SetDefault("SERVER_IDLE_TIMEOUT", "60s")
	v.SetDefault("SERVER_SHUTDOWN_TIMEOUT", "30s")

	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "5m")
	v.SetDefault("DB_CONN_MAX_IDLE_TIME", "1m")

	v.SetDefault("MONGO_ENABLED", true)
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017/")
	v.SetDefault("MONGO_DATABASE", "farmfresh")
	v.SetDefault("MONGO_COLLECTION", "weather_snapshots")
	v.SetDefault("MONGO_CONNECT_TIMEOUT", "5s")

	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_TTL", "24h")

	v.SetDefault("WEATHER_BASE_URL", "https://api.open-meteo.com")
	v.SetDefault("WEATHER_TIMEOUT", "6s")
	v.SetDefault("WEATHER_RATE_PER_SECOND", 0)

	v.SetDefault("DATASET_DIR", "generated")
	v.SetDefault("DATASET_FILE", "market_dataset.csv")

	v.SetDefault("REFRESH_INTERVAL", "24h")
	v.SetDefault("REFRESH_ON_READ", true)
	v.SetDefault("REFRESH_CRON", "0 0 0 * * *")
	v.SetDefault("REFRESH_JOB_TIMEOUT", "2m")

	v.SetDefault("UPLOAD_DIR", "uploads")
	v.SetDefault("UPLOAD_MAX_BYTES", 10<<20)

	v.SetDefault("CLASSIFIER_URL", "")
	v.SetDefault("CLASSIFIER_TIMEOUT", "30s")

	v.SetDefault("CORS_ORIGINS", "*")
}

// LoadConfig reads configuration from the environment.
// Outside production a .env file in the working directory is loaded first.
func LoadConfig() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if !strings.EqualFold(v.GetString("APP_ENV"), "production") {
		// A missing .env is normal
		_ = godotenv.Load()
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Env: v.GetString("APP_ENV"),
		Server: ServerConfig{
			Host:             v.GetString("SERVER_HOST"),
			Port:             v.GetInt("PORT"),
			PriceServicePort: v.GetInt("PRICE_SERVICE_PORT"),
			ReadTimeout:      v.GetDuration("SERVER_READ_TIMEOUT"),
			WriteTimeout:     v.GetDuration("SERVER_WRITE_TIMEOUT"),
			IdleTimeout:      v.GetDuration("SERVER_IDLE_TIMEOUT"),
			ShutdownTimeout:  v.GetDuration("SERVER_SHUTDOWN_TIMEOUT"),
		},
		Logging: LoggingConfig{
			Level: v.GetString("LOG_LEVEL"),
		},
		Database: DatabaseConfig{
			URL:             v.GetString("DATABASE_URL"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
			ConnMaxIdleTime: v.GetDuration("DB_CONN_MAX_IDLE_TIME"),
		},
		Mongo: MongoConfig{
			Enabled:        v.GetBool("MONGO_ENABLED"),
			URI:            v.GetString("MONGO_URI"),
			Database:       v.GetString("MONGO_DATABASE"),
			Collection:     v.GetString("MONGO_COLLECTION"),
			ConnectTimeout: v.GetDuration("MONGO_CONNECT_TIMEOUT"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
			TTL:      v.GetDuration("REDIS_TTL"),
		},
		Weather: WeatherConfig{
			BaseURL:       v.GetString("WEATHER_BASE_URL"),
			Timeout:       v.GetDuration("WEATHER_TIMEOUT"),
			RatePerSecond: v.GetFloat64("WEATHER_RATE_PER_SECOND"),
		},
		Dataset: DatasetConfig{
			Dir:  v.GetString("DATASET_DIR"),
			File: v.GetString("DATASET_FILE"),
		},
		Refresh: RefreshConfig{
			Interval:   v.GetDuration("REFRESH_INTERVAL"),
			OnRead:     v.GetBool("REFRESH_ON_READ"),
			Cron:       v.GetString("REFRESH_CRON"),
			JobTimeout: v.GetDuration("REFRESH_JOB_TIMEOUT"),
		},
		Upload: UploadConfig{
			Dir:         v.GetString("UPLOAD_DIR"),
			MaxBodySize: v.GetInt64("UPLOAD_MAX_BYTES"),
		},
		Classifier: ClassifierConfig{
			URL:     v.GetString("CLASSIFIER_URL"),
			Timeout: v.GetDuration("CLASSIFIER_TIMEOUT"),
		},
		CORS: CORSConfig{
			Origins: splitList(v.GetString("CORS_ORIGINS")),
		},
	}
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

// DatasetPath returns the full path of the generated CSV
func (c *Config) DatasetPath() string {
	return filepath.Join(c.Dataset.Dir, c.Dataset.File)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.PriceServicePort <= 0 || c.Server.PriceServicePort > 65535 {
		return fmt.Errorf("invalid price service port: %d", c.Server.PriceServicePort)
	}
	if c.Refresh.Interval <= 0 {
		return errors.New("refresh interval must be positive")
	}
	if c.Weather.Timeout <= 0 {
		return errors.New("weather timeout must be positive")
	}
	if c.Weather.RatePerSecond < 0 {
		return errors.New("weather rate limit cannot be negative")
	}
	if c.Refresh.JobTimeout <= 0 {
		return errors.New("refresh job timeout must be positive")
	}
	if c.Dataset.Dir == "" || c.Dataset.File == "" {
		return errors.New("dataset directory and file name are required")
	}
	if c.Mongo.Enabled && (c.Mongo.URI == "" || c.Mongo.Database == "" || c.Mongo.Collection == "") {
		return errors.New("mongo uri, database and collection are required when mongo is enabled")
	}
	return nil
}
