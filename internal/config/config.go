package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	Port                    string
	DatabaseURL             string
	RedisURL                string
	APITokens               map[string]string
	DeliveryTimeout         time.Duration
	MaxConcurrentDeliveries int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	port := getEnv("PORT", "8080")
	dbURL := getEnv("DATABASE_URL", "")
	redisURL := getEnv("REDIS_URL", "")
	timeoutSecs := getEnvInt("DELIVERY_TIMEOUT_SECONDS", 10)
	maxConcurrent := getEnvInt("MAX_CONCURRENT_DELIVERIES", 25)

	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	tokens, err := parseTokens(getEnv("API_TOKENS", ""))
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("API_TOKENS is required")
	}

	return &Config{
		Port:                    port,
		DatabaseURL:             dbURL,
		RedisURL:                redisURL,
		APITokens:               tokens,
		DeliveryTimeout:         time.Duration(timeoutSecs) * time.Second,
		MaxConcurrentDeliveries: maxConcurrent,
	}, nil
}

// parseTokens reads "token=ownerID" pairs separated by commas.
func parseTokens(raw string) (map[string]string, error) {
	tokens := map[string]string{}
	if raw == "" {
		return tokens, nil
	}

	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		token, owner, ok := strings.Cut(pair, "=")
		if !ok || token == "" || owner == "" {
			return nil, fmt.Errorf("API_TOKENS: malformed pair %q", pair)
		}
		tokens[token] = owner
	}

	return tokens, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}
