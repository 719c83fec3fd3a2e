package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the runtime configuration of the respondent server
type Config struct {
	Port     string
	AppName  string
	LogLevel string
	LogDev   bool

	MongoURI string
	MongoDB  string
	RedisURI string

	// CollectorURL is the telemetry collector endpoint; empty logs events instead of sending them
	CollectorURL string
	SendTimeout  time.Duration

	SessionTTL        time.Duration
	CompiledCacheSize int

	CORSAllowedOrigins string
}

// Load reads .env when present, then the process environment
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:               strings.TrimPrefix(getEnv("PORT", "8080"), ":"),
		AppName:            getEnv("APP_NAME", "respondent"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogDev:             getBool("LOG_DEV", false),
		MongoURI:           getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:            getEnv("MONGO_DB", "research"),
		RedisURI:           getEnv("REDIS_URI", "localhost:6379"),
		CollectorURL:       getEnv("COLLECTOR_URL", ""),
		SendTimeout:        getDuration("SEND_TIMEOUT", 10*time.Second),
		SessionTTL:         getDuration("SESSION_TTL", 24*time.Hour),
		CompiledCacheSize:  getInt("COMPILED_CACHE_SIZE", 1024),
		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
	}
}

func getEnv(key, defaultValue string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil || v <= 0 {
		return defaultValue
	}
	return v
}

func getBool(key string, defaultValue bool) bool {
	v, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return v
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	v, err := time.ParseDuration(getEnv(key, ""))
	if err != nil || v <= 0 {
		return defaultValue
	}
	return v
}
