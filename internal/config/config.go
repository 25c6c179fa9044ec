package config

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPPort       string
	BackendBaseURL string
	RequestTimeout time.Duration

	// RedisAddr enables the cart snapshot cache when set.
	RedisAddr     string
	RedisPassword string

	// KafkaBrokers enables the Kafka notification publisher when set.
	KafkaBrokers []string
	NotifyTopic  string
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func Load() Config {
	_ = godotenv.Load() // load .env if it exists
	cfg := Config{
		HTTPPort:       getenv("HTTP_PORT", "8080"),
		BackendBaseURL: getenv("BACKEND_BASE_URL", "http://localhost:3000/api"),
		RequestTimeout: 30 * time.Second,
		RedisAddr:      getenv("REDIS_ADDR", ""),
		RedisPassword:  getenv("REDIS_PASSWORD", ""),
		NotifyTopic:    getenv("NOTIFY_TOPIC", "storefront-notifications"),
	}
	if brokers := getenv("KAFKA_BROKERS", ""); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	log.Printf("[config] HTTP_PORT=%s", cfg.HTTPPort)
	log.Printf("[config] BACKEND_BASE_URL=%s", cfg.BackendBaseURL)
	return cfg
}
