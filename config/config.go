package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"stocks-simulator/database"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Config struct {
	Addr string

	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	DBTimeZone string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret  string
	SessionTTL time.Duration

	QuoteProvider   string
	AlphaVantageKey string
	QuoteTimeout    time.Duration
	QuoteCacheTTL   time.Duration

	StartingCash decimal.Decimal

	LoginRatePerMinute int
	LogLevel           string
}

// Load reads configuration from the environment, after loading a .env file
// when one is present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	startingCash, err := getEnvAsDecimal("STARTING_CASH", decimal.NewFromInt(10000))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Addr:               getEnv("ADDR", ":8080"),
		DBHost:             getEnv("DB_HOST", "localhost"),
		DBUser:             os.Getenv("DB_USER"),
		DBPassword:         os.Getenv("DB_PASSWORD"),
		DBName:             getEnv("DB_NAME", "finance"),
		DBPort:             getEnv("DB_PORT", "5432"),
		DBTimeZone:         getEnv("DB_TIMEZONE", "UTC"),
		RedisAddr:          getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		RedisDB:            getEnvAsInt("REDIS_DB", 0),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		SessionTTL:         getEnvAsDuration("SESSION_TTL", 24*time.Hour),
		QuoteProvider:      getEnv("QUOTE_PROVIDER", "alphavantage"),
		AlphaVantageKey:    os.Getenv("ALPHA_VANTAGE_API_KEY"),
		QuoteTimeout:       getEnvAsDuration("QUOTE_TIMEOUT", 10*time.Second),
		QuoteCacheTTL:      getEnvAsDuration("QUOTE_CACHE_TTL", 5*time.Minute),
		StartingCash:       startingCash,
		LoginRatePerMinute: getEnvAsInt("LOGIN_RATE_PER_MINUTE", 10),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET not set")
	}
	if c.QuoteProvider == "alphavantage" && c.AlphaVantageKey == "" {
		return fmt.Errorf("ALPHA_VANTAGE_API_KEY not set")
	}
	if c.StartingCash.IsNegative() {
		return fmt.Errorf("STARTING_CASH must not be negative")
	}
	return nil
}

// DSN is the Postgres connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=%s",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBTimeZone)
}

func InitDB(c *Config) (*gorm.DB, error) {
	level := logger.Warn
	if c.LogLevel == "debug" {
		level = logger.Info
	}
	db, err := database.Open(postgres.Open(c.DSN()), level)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to the database: %w", err)
	}
	return db, nil
}

// InitRedis connects to Redis and verifies the connection.
func InitRedis(ctx context.Context, c *Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     c.RedisAddr,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return rdb, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsDecimal(key string, defaultValue decimal.Decimal) (decimal.Decimal, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
