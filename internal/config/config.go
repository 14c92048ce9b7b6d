package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Scrape   ScrapeConfig
}

type AppConfig struct {
	AppName     string
	Environment string
}

type DatabaseConfig struct {
	DBHost     string
	DBPort     string
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string

	ConnectTimeout time.Duration
	PoolMaxConns   int32
	PoolMinConns   int32
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type ScrapeConfig struct {
	Workers     int
	ListWorkers int
	Limit       int
	Table       string
}

var errMissingRequiredEnv = errors.New("missing required environment variables")

func Load() (Config, error) {
	cfg := Config{}

	opt := func(key string) string {
		return strings.TrimSpace(os.Getenv(key))
	}
	optInt := func(key string, def int) int {
		v := opt(key)
		if v == "" {
			return def
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return def
		}
		return n
	}

	cfg.App = AppConfig{
		AppName:     opt("APP_NAME"),
		Environment: opt("APP_ENV"),
	}

	cfg.Database = DatabaseConfig{
		DBHost:         opt("DB_HOST"),
		DBPort:         opt("DB_PORT"),
		DBName:         opt("DB_NAME"),
		DBUser:         opt("DB_USER"),
		DBPassword:     opt("DB_PASSWORD"),
		DBSSLMode:      opt("DB_SSL_MODE"),
		ConnectTimeout: time.Duration(optInt("DB_CONNECT_TIMEOUT_SECONDS", 0)) * time.Second,
		PoolMaxConns:   int32(optInt("DB_POOL_MAX_CONNS", 0)),
		PoolMinConns:   int32(optInt("DB_POOL_MIN_CONNS", 0)),
	}

	cfg.Redis = RedisConfig{
		Host:     opt("REDIS_HOST"),
		Port:     opt("REDIS_PORT"),
		Password: opt("REDIS_PASSWORD"),
		DB:       optInt("REDIS_DB", 0),
	}

	cfg.Scrape = ScrapeConfig{
		Workers:     optInt("SCRAPE_WORKERS", 6),
		ListWorkers: optInt("SCRAPE_LIST_WORKERS", 4),
		Limit:       optInt("SCRAPE_LIMIT", 0),
		Table:       opt("SCRAPE_TABLE"),
	}
	if cfg.Scrape.Table == "" {
		cfg.Scrape.Table = "job_postings"
	}

	return cfg, nil
}

// RequireDatabase checks the env fields a live store connection needs. Kept
// out of Load so dry runs work without a database configured.
func (c Config) RequireDatabase() error {
	var missing []string
	req := func(key, val string) {
		if strings.TrimSpace(val) == "" {
			missing = append(missing, key)
		}
	}
	req("DB_HOST", c.Database.DBHost)
	req("DB_PORT", c.Database.DBPort)
	req("DB_NAME", c.Database.DBName)
	req("DB_USER", c.Database.DBUser)
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", errMissingRequiredEnv, strings.Join(missing, ", "))
	}
	return nil
}
