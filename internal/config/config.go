package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LogConfig drives the global slog logger.
type LogConfig struct {
	Level     string
	Format    string
	Component string
	Source    bool
}

type Config struct {
	App struct {
		Name string
		ENV  string
	}

	Log LogConfig

	DB struct {
		Driver   string // mysql | postgres | sqlite
		DSN      string
		Host     string
		Port     string
		User     string
		Password string
		Name     string
	}

	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	GRPC struct {
		Host string
		Port string
	}

	HTTP struct {
		Host           string
		Port           string
		AllowedOrigins []string
		UploadPerMin   int
	}

	Auth struct {
		JWTSecret string
		TokenTTL  time.Duration
	}

	Storage struct {
		Dir            string
		PublicBaseURL  string
		MaxUploadBytes int64
	}

	Events struct {
		Backend       string // local | redis | kafka
		RedisChannel  string
		KafkaBrokers  []string
		KafkaTopic    string
		KafkaGroupID  string
		RelayInterval time.Duration
		RelayBatch    int
		Retention     time.Duration

		SubscriberBuffer int
	}
}

// New builds the configuration from the environment. A .env file in the
// working directory is loaded first when present; real env vars win.
func New() *Config {
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.App.Name = getEnvDefault("APP_NAME", "heartline")
	cfg.App.ENV = getEnvDefault("APP_ENV", "development")

	// Logger
	cfg.Log.Level = getEnvDefault("LOG_LEVEL", "info")
	cfg.Log.Format = getEnvDefault("LOG_FORMAT", "text")
	cfg.Log.Component = getEnvDefault("LOG_COMPONENT", "heartline")
	cfg.Log.Source = isTruthy(os.Getenv("LOG_SOURCE"))

	// Database
	cfg.DB.Driver = strings.ToLower(getEnvDefault("DB_DRIVER", "mysql"))
	cfg.DB.DSN = os.Getenv("DB_DSN")
	if cfg.DB.DSN == "" {
		cfg.DB.DSN = os.Getenv("MYSQL_DSN")
	}
	if cfg.DB.DSN == "" {
		cfg.DB.Host = getEnvDefault("DB_HOST", "localhost")
		cfg.DB.User = getEnvDefault("DB_USER", "root")
		cfg.DB.Password = getEnvDefault("DB_PASSWORD", "root")
		cfg.DB.Name = getEnvDefault("DB_NAME", "heartline")

		switch cfg.DB.Driver {
		case "postgres":
			cfg.DB.Port = getEnvDefault("DB_PORT", "5432")
			cfg.DB.DSN = fmt.Sprintf(
				"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
				cfg.DB.Host, cfg.DB.User, cfg.DB.Password, cfg.DB.Name, cfg.DB.Port,
			)
		case "sqlite":
			cfg.DB.DSN = getEnvDefault("DB_PATH", "heartline.db")
		default:
			cfg.DB.Port = getEnvDefault("DB_PORT", "3306")
			cfg.DB.DSN = fmt.Sprintf(
				"%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
				cfg.DB.User, cfg.DB.Password, cfg.DB.Host, cfg.DB.Port, cfg.DB.Name,
			)
		}
	}

	// Redis
	cfg.Redis.Addr = getEnvDefault("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnvDefault("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	// gRPC
	cfg.GRPC.Host = getEnvDefault("GRPC_HOST", "127.0.0.1")
	cfg.GRPC.Port = getEnvDefault("GRPC_PORT", "50051")

	// HTTP
	cfg.HTTP.Host = getEnvDefault("HTTP_HOST", "127.0.0.1")
	cfg.HTTP.Port = getEnvDefault("HTTP_PORT", "8080")
	cfg.HTTP.AllowedOrigins = splitList(getEnvDefault("HTTP_ALLOWED_ORIGINS", "*"))
	cfg.HTTP.UploadPerMin = getEnvInt("HTTP_UPLOAD_PER_MIN", 30)

	// Auth
	cfg.Auth.JWTSecret = getEnvDefault("JWT_SECRET", "change-me")
	cfg.Auth.TokenTTL = getEnvDuration("JWT_TTL", 24*time.Hour)

	// Photo bucket
	cfg.Storage.Dir = getEnvDefault("STORAGE_DIR", "./data/photos")
	cfg.Storage.PublicBaseURL = getEnvDefault("STORAGE_PUBLIC_URL", "http://localhost:8080/photos")
	cfg.Storage.MaxUploadBytes = int64(getEnvInt("STORAGE_MAX_UPLOAD_BYTES", 10<<20))

	// Change events
	cfg.Events.Backend = strings.ToLower(getEnvDefault("EVENTS_BACKEND", "redis"))
	cfg.Events.RedisChannel = getEnvDefault("EVENTS_REDIS_CHANNEL", "heartline:changes")
	cfg.Events.KafkaBrokers = splitList(getEnvDefault("KAFKA_BROKERS", "localhost:9092"))
	cfg.Events.KafkaTopic = getEnvDefault("KAFKA_TOPIC", "heartline.changes")
	cfg.Events.KafkaGroupID = getEnvDefault("KAFKA_GROUP_ID", "")
	cfg.Events.RelayInterval = getEnvDuration("EVENTS_RELAY_INTERVAL", time.Second)
	cfg.Events.RelayBatch = getEnvInt("EVENTS_RELAY_BATCH", 100)
	cfg.Events.Retention = getEnvDuration("EVENTS_RETENTION", 24*time.Hour)
	cfg.Events.SubscriberBuffer = getEnvInt("EVENTS_SUBSCRIBER_BUFFER", 64)

	return cfg
}

func getEnvDefault(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getEnvInt(k string, def int) int {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// getEnvDuration accepts Go duration strings ("30s") or plain seconds.
func getEnvDuration(k string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return def
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}
