package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort       string
	AppMode       string
	DBHost        string
	DBUser        string
	DBPassword    string
	DBName        string
	DBPort        string
	RedisHost     string
	RedisPort     string
	RedisPassword string

	// Hiive delivery
	HiiveBaseURL   string
	SiteURL        string
	RelayVersion   string
	SyncTimeout    time.Duration
	BatchTimeout   time.Duration
	BatchSize      int
	AttemptsLimit  int
	FlushInterval  time.Duration
	LeaseTTL       time.Duration
	DeferredKeys   []string
	IngestJWTKey   string
}

func LoadConfig() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		AppPort:       getEnv("APP_PORT", "8080"),
		AppMode:       getEnv("APP_MODE", "development"),
		DBHost:        getEnv("DB_HOST", "localhost"),
		DBUser:        getEnv("DB_USER", "postgres"),
		DBPassword:    getEnv("DB_PASSWORD", "postgres"),
		DBName:        getEnv("DB_NAME", "hiive_relay"),
		DBPort:        getEnv("DB_PORT", "5432"),
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		HiiveBaseURL:  getEnv("HIIVE_BASE_URL", "https://hiive.cloud/api"),
		SiteURL:       getEnv("SITE_URL", "http://localhost"),
		RelayVersion:  getEnv("RELAY_VERSION", "dev"),
		SyncTimeout:   getEnvAsDuration("HIIVE_SYNC_TIMEOUT", 750*time.Millisecond),
		BatchTimeout:  getEnvAsDuration("HIIVE_BATCH_TIMEOUT", 10*time.Second),
		BatchSize:     getEnvAsInt("HIIVE_BATCH_SIZE", 50),
		AttemptsLimit: getEnvAsInt("HIIVE_ATTEMPTS_LIMIT", 3),
		FlushInterval: getEnvAsDuration("HIIVE_FLUSH_INTERVAL", time.Minute),
		LeaseTTL:      getEnvAsDuration("HIIVE_LEASE_TTL", 5*time.Minute),
		DeferredKeys:  getEnvAsList("HIIVE_DEFERRED_KEYS", []string{"pageview"}),
		IngestJWTKey:  getEnv("INGEST_JWT_KEY", "change-me"),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsList(key string, fallback []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
