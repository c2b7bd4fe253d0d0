package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	Server   ServerConfig
	Redis    RedisConfig
	Postgres PostgresConfig
	Kafka    KafkaConfig
	Stage    StageConfig
	Snapshot SnapshotConfig
	JWT      JWTConfig
	Log      LogConfig
}

type ServerConfig struct {
	HTTPPort      int
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	IdleTimeout   time.Duration
	TimeSyncEvery time.Duration
}

type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	MaxRetries   int
	PoolSize     int
	MinIdleConns int
}

type PostgresConfig struct {
	DSN         string
	AutoMigrate bool
}

type KafkaConfig struct {
	Brokers              []string
	ProducerRetryMax     int
	ProducerRequiredAcks int
	Enabled              bool
	ConsumerGroupID      string
}

// StageConfig holds the duration of each game stage, in seconds.
type StageConfig struct {
	BanSec  int
	PickSec int
	ShopSec int
	PlaySec int
}

type SnapshotConfig struct {
	Workers         int
	RetryAttempts   int
	RetryDelay      time.Duration
	PersistInterval time.Duration
	ShutdownTimeout time.Duration
}

type JWTConfig struct {
	Secret string
}

type LogConfig struct {
	Level    string
	Mode     string
	Encoding string
}

func Load() (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	cfg := &Config{
		Env: getEnv("ENV", "development"),
		Server: ServerConfig{
			HTTPPort:      getEnvAsInt("SERVER_HTTP_PORT", 8087),
			ReadTimeout:   getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:  getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:   getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			TimeSyncEvery: getEnvAsDuration("SERVER_TIME_SYNC_EVERY", 10*time.Second),
		},
		Redis: RedisConfig{
			Addr:         getEnv("REDIS_ADDR", "localhost:6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvAsInt("REDIS_DB", 0),
			MaxRetries:   getEnvAsInt("REDIS_MAX_RETRIES", 3),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvAsInt("REDIS_MIN_IDLE_CONNS", 5),
		},
		Postgres: PostgresConfig{
			DSN:         getEnv("POSTGRES_DSN", "host=localhost user=arena password=arena dbname=arena port=5432 sslmode=disable"),
			AutoMigrate: getEnvAsBool("POSTGRES_AUTO_MIGRATE", true),
		},
		Kafka: KafkaConfig{
			Brokers:              getEnvAsSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			ProducerRetryMax:     getEnvAsInt("KAFKA_PRODUCER_RETRY_MAX", 3),
			ProducerRequiredAcks: getEnvAsInt("KAFKA_PRODUCER_REQUIRED_ACKS", 1),
			Enabled:              getEnvAsBool("KAFKA_ENABLED", true),
			ConsumerGroupID:      getEnv("KAFKA_CONSUMER_GROUP_ID", "arena-live-session"),
		},
		Stage: StageConfig{
			BanSec:  getEnvAsInt("STAGE_BAN_SEC", 30),
			PickSec: getEnvAsInt("STAGE_PICK_SEC", 30),
			ShopSec: getEnvAsInt("STAGE_SHOP_SEC", 60),
			PlaySec: getEnvAsInt("STAGE_PLAY_SEC", 900),
		},
		Snapshot: SnapshotConfig{
			Workers:         getEnvAsInt("SNAPSHOT_WORKERS", 4),
			RetryAttempts:   getEnvAsInt("SNAPSHOT_RETRY_ATTEMPTS", 3),
			RetryDelay:      getEnvAsDuration("SNAPSHOT_RETRY_DELAY", time.Second),
			PersistInterval: getEnvAsDuration("SNAPSHOT_PERSIST_INTERVAL", 30*time.Second),
			ShutdownTimeout: getEnvAsDuration("SNAPSHOT_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", "jwt-secret"),
		},
		Log: LogConfig{
			Level:    getEnv("LOG_LEVEL", "info"),
			Mode:     getEnv("LOG_MODE", "development"),
			Encoding: getEnv("LOG_ENCODING", "console"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.HTTPPort)
	}

	if c.Redis.Addr == "" {
		return fmt.Errorf("redis address is required")
	}

	if c.Postgres.DSN == "" {
		return fmt.Errorf("postgres DSN is required")
	}

	if c.Stage.BanSec <= 0 || c.Stage.PickSec <= 0 || c.Stage.ShopSec <= 0 || c.Stage.PlaySec <= 0 {
		return fmt.Errorf("stage durations must be positive")
	}

	if c.JWT.Secret == "" || c.JWT.Secret == "jwt-secret" {
		if c.Env == "production" {
			return fmt.Errorf("JWT secret must be set in production")
		}
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	// Split by comma
	var result []string
	for _, v := range strings.Split(valueStr, ",") {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	if len(result) == 0 {
		return defaultValue
	}

	return result
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}
