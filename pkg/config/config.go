package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Host      string
	Port      string
	APISecret string
	LogLevel  string

	// Push gateway credentials
	APNSKeyPath    string
	APNSKeyID      string
	APNSTeamID     string
	APNSTopic      string
	APNSProduction bool

	// Content generation endpoint
	GeneratorURL     string
	GeneratorTimeout time.Duration

	// Registry storage
	DBPath string

	// Fixed outreach triggers (cron specs, local time)
	MorningCron string
	EveningCron string
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		Host:      getEnv("HOST", "0.0.0.0"),
		Port:      getEnv("PORT", "8080"),
		APISecret: getEnv("API_SECRET", ""),
		LogLevel:  getEnv("LOG_LEVEL", "info"),

		APNSKeyPath:    getEnv("APNS_KEY_PATH", "AuthKey.p8"),
		APNSKeyID:      getEnv("APNS_KEY_ID", ""),
		APNSTeamID:     getEnv("APNS_TEAM_ID", ""),
		APNSTopic:      getEnv("APNS_TOPIC", ""),
		APNSProduction: getEnvAsBool("APNS_PRODUCTION", false),

		GeneratorURL:     getEnv("GENERATOR_URL", "http://localhost:11434/api/generate"),
		GeneratorTimeout: getEnvAsDuration("GENERATOR_TIMEOUT", 15*time.Second),

		DBPath: getEnv("DB_PATH", "outreach.db"),

		MorningCron: getEnv("MORNING_CRON", "0 9 * * *"),
		EveningCron: getEnv("EVENING_CRON", "0 21 * * *"),
	}
}

func (c *Config) Addr() string {
	return c.Host + ":" + c.Port
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
