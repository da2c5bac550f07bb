package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"finance_tracker/internal/config/connections/mongo"
	"finance_tracker/internal/config/connections/postgres"
	"finance_tracker/internal/config/connections/redis"
	"finance_tracker/internal/config/connections/s3"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const defaultTokenableType = "App\\Models\\User"

// Domain holds the tunables of the payments core.
type Domain struct {
	TaxRate            decimal.Decimal
	ReminderDays       int
	UpcomingWindowDays int
	StatsCacheTTL      time.Duration
	TokenableType      string
}

type Config struct {
	Port     string
	S3       *s3.S3
	Mongo    *mongo.Mongo
	Postgres *postgres.Postgres
	Redis    *redis.Redis
	Domain   Domain
	Logger   *logrus.Logger
}

func Init(ctx context.Context) *Config {
	_ = godotenv.Load()
	logger := NewLogger(getenv("LOG_LEVEL", "info"), getenv("LOG_FORMAT", "text"))
	port := getenv("SERVER_PORT", "8070")

	s3c, err := s3.NewConnection(s3.ConnectionInfo{
		Endpoint:  getenv("AWS_ENDPOINT", "localhost:9000"),
		AccessKey: getenv("AWS_ACCESS_KEY_ID", "minioadmin"),
		SecretKey: getenv("AWS_SECRET_ACCESS_KEY", "minioadmin"),
		Region:    getenv("AWS_DEFAULT_REGION", "us-east-1"),
		Bucket:    getenv("AWS_BUCKET", "finance"),
		UseSSL:    getenv("AWS_USE_SSL", "false") == "true",
	})
	if err != nil {
		logger.Fatal("S3 connect error: ", err)
	}

	mg, err := mongo.NewConnection(ctx, mongo.ConnectionInfo{
		Scheme:     getenv("MONGO_SCHEME", "mongodb"),
		User:       getenv("MONGO_USER", "root"),
		Password:   getenv("MONGO_PASSWORD", "secret"),
		Host:       getenv("MONGO_HOST", "127.0.0.1"),
		Port:       getenv("MONGO_PORT", "27017"),
		DB:         getenv("MONGO_DB", "finance"),
		AuthSource: getenv("MONGO_AUTH_SOURCE", "admin"),
	})
	if err != nil {
		logger.Fatal("Mongo connect error: ", err)
	}

	pg, err := postgres.NewConnection(ctx, postgres.ConnectionInfo{
		Host:     getenv("PG_HOST", "127.0.0.1"),
		Port:     getenv("PG_PORT", "5432"),
		User:     getenv("PG_USER", "root"),
		Password: getenv("PG_PASSWORD", "hello-world"),
		DB:       getenv("PG_DB", "finance"),
		SSLMode:  getenv("PG_SSLMODE", "disable"),
		MaxConns: int32(getenvInt("PG_MAX_CONNS", 10)),
	})
	if err != nil {
		logger.Fatal("Postgres connect error: ", err)
	}

	var rd *redis.Redis
	if addr := getenv("REDIS_ADDR", ""); addr == "" {
		logger.Warn("[CONFIG] REDIS_ADDR not set, stats cache disabled")
	} else {
		rd, err = redis.NewConnection(ctx, redis.ConnectionInfo{
			Addr:     addr,
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getenvInt("REDIS_DB", 0),
		})
		if err != nil {
			logger.Warnf("[CONFIG] redis unavailable, stats cache disabled: %v", err)
			rd = nil
		}
	}

	return &Config{
		S3:       s3c,
		Mongo:    mg,
		Postgres: pg,
		Redis:    rd,
		Port:     port,
		Domain:   LoadDomain(),
		Logger:   logger,
	}
}

func LoadDomain() Domain {
	rate, err := decimal.NewFromString(getenv("TAX_RATE", "0.18"))
	if err != nil || rate.IsNegative() {
		rate = decimal.RequireFromString("0.18")
	}
	ttl, err := time.ParseDuration(getenv("STATS_CACHE_TTL", "60s"))
	if err != nil || ttl <= 0 {
		ttl = time.Minute
	}
	return Domain{
		TaxRate:            rate,
		ReminderDays:       getenvInt("REMINDER_DAYS", 3),
		UpcomingWindowDays: getenvInt("UPCOMING_WINDOW_DAYS", 7),
		StatsCacheTTL:      ttl,
		TokenableType:      getenv("TOKENABLE_TYPE", defaultTokenableType),
	}
}

func NewLogger(level, format string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	if format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}

func (c *Config) CheckConnections(ctx context.Context) error {
	var errs []error

	if c.Postgres == nil || c.Postgres.Pool == nil {
		errs = append(errs, errors.New("postgres not initialized"))
	} else if err := c.Postgres.Pool.Ping(ctx); err != nil {
		errs = append(errs, fmt.Errorf("postgres ping failed: %w", err))
	}

	if c.Mongo == nil || c.Mongo.Client == nil {
		errs = append(errs, errors.New("mongo not initialized"))
	} else if err := c.Mongo.Client.Ping(ctx, nil); err != nil {
		errs = append(errs, fmt.Errorf("mongo ping failed: %w", err))
	}

	if c.S3 == nil || c.S3.Client == nil {
		errs = append(errs, errors.New("s3 not initialized"))
	} else if err := c.S3.EnsureBucket(ctx); err != nil {
		errs = append(errs, fmt.Errorf("s3 bucket check failed: %w", err))
	}

	// redis is optional; only a configured client is checked
	if c.Redis != nil && c.Redis.Client != nil {
		if err := c.Redis.Client.Ping(ctx).Err(); err != nil {
			errs = append(errs, fmt.Errorf("redis ping failed: %w", err))
		}
	}

	return errors.Join(errs...)
}

// Close releases every backend connection.
func (c *Config) Close(ctx context.Context) {
	if c.Mongo != nil {
		if err := c.Mongo.Close(ctx); err != nil {
			c.Logger.Printf("[CONFIG][ERR] mongo close: %v", err)
		}
	}
	if c.Postgres != nil {
		c.Postgres.Close()
	}
	if err := c.Redis.Close(); err != nil {
		c.Logger.Printf("[CONFIG][ERR] redis close: %v", err)
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvInt(k string, def int) int {
	v, err := strconv.Atoi(getenv(k, ""))
	if err != nil {
		return def
	}
	return v
}
