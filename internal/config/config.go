package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Telegram TelegramConfig
	Worker   WorkerConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host           string
	Port           string
	User           string
	Password       string
	DBName         string
	SSLMode        string
	MigrationsPath string
}

// RedisConfig holds the series history store configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
}

// KafkaConfig holds Kafka configuration
type KafkaConfig struct {
	Brokers       []string
	CandleTopic   string
	UITopic       string
	ConsumerGroup string
	Shards        int
}

// TelegramConfig holds the Telegram channel configuration
type TelegramConfig struct {
	APIBaseURL string
	BotToken   string
	ChatID     string
	Timeout    time.Duration
}

// WorkerConfig holds delivery worker configuration
type WorkerConfig struct {
	PoolSize       int
	PollInterval   time.Duration
	AttemptTimeout time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnv("DB_PORT", "5432"),
			User:           getEnv("DB_USER", "postgres"),
			Password:       getEnv("DB_PASSWORD", "postgres"),
			DBName:         getEnv("DB_NAME", "alertengine"),
			SSLMode:        getEnv("DB_SSLMODE", "disable"),
			MigrationsPath: getEnv("DB_MIGRATIONS_PATH", "db/migrations"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
		},
		Kafka: KafkaConfig{
			Brokers:       []string{getEnv("KAFKA_BROKERS", "localhost:9092")},
			CandleTopic:   getEnv("KAFKA_CANDLE_TOPIC", "candle-events"),
			UITopic:       getEnv("KAFKA_UI_TOPIC", "ui-notifications"),
			ConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "alert-engine"),
			Shards:        getEnvInt("KAFKA_SHARDS", 4),
		},
		Telegram: TelegramConfig{
			APIBaseURL: getEnv("TELEGRAM_API_URL", "https://api.telegram.org"),
			BotToken:   getEnv("TELEGRAM_BOT_TOKEN", ""),
			ChatID:     getEnv("TELEGRAM_CHAT_ID", ""),
			Timeout:    getEnvDuration("TELEGRAM_TIMEOUT", 10*time.Second),
		},
		Worker: WorkerConfig{
			PoolSize:       getEnvInt("WORKER_POOL_SIZE", 4),
			PollInterval:   getEnvDuration("WORKER_POLL_INTERVAL", 5*time.Second),
			AttemptTimeout: getEnvDuration("WORKER_ATTEMPT_TIMEOUT", 30*time.Second),
		},
	}
}

// ConnectionString returns the PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.DBName + "?sslmode=" + d.SSLMode
}

// Addr returns the Redis host:port address
func (r *RedisConfig) Addr() string {
	return r.Host + ":" + r.Port
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
