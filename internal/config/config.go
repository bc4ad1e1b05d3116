package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                       string
	DatabaseURL                string
	OTLPEndpoint               string
	RateLimitPerMinute         int
	RateLimitBurst             int
	BusinessRateLimitPerMinute int
	BusinessRateLimitBurst     int
}

func Load() Config {
	_ = godotenv.Load()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	return Config{
		Port:                       port,
		DatabaseURL:                os.Getenv("DB_DSN"),
		OTLPEndpoint:               os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		RateLimitPerMinute:         readInt("RATE_LIMIT_PER_MIN", 120),
		RateLimitBurst:             readInt("RATE_LIMIT_BURST", 30),
		BusinessRateLimitPerMinute: readInt("BUSINESS_RATE_LIMIT_PER_MIN", 600),
		BusinessRateLimitBurst:     readInt("BUSINESS_RATE_LIMIT_BURST", 120),
	}
}

func readInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
