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
	ServiceName string
	ServerPort  int
	LogLevel    string

	DBDriver    string
	DatabaseURL string

	CatalogURL     string
	CatalogTimeout time.Duration

	SessionSecret []byte
	SessionTTL    time.Duration
	SessionSecure bool

	CartTTL           time.Duration
	CartIdleTTL       time.Duration
	CartSweepInterval time.Duration

	KafkaBrokers   []string
	KafkaCartTopic string

	ESURL      string
	ESUser     string
	ESPassword string
	ESIndex    string
}

// Load reads .env when present, then the environment.
func Load() Config {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("notice: .env file not found: %v. Using system environment variables", err)
	}

	return Config{
		ServiceName: EnvDefault("SERVICE_NAME", "storefront"),
		ServerPort:  EnvIntDefault("SERVER_PORT", 8080),
		LogLevel:    EnvDefault("LOG_LEVEL", "info"),

		DBDriver:    EnvDefault("DB_DRIVER", "postgres"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		CatalogURL:     os.Getenv("CATALOG_URL"),
		CatalogTimeout: EnvDurationDefault("CATALOG_TIMEOUT", 5*time.Second),

		SessionSecret: []byte(os.Getenv("SESSION_SECRET")),
		SessionTTL:    EnvDurationDefault("SESSION_TTL", 30*24*time.Hour),
		SessionSecure: EnvDefault("SESSION_COOKIE_SECURE", "true") != "false",

		CartTTL:           EnvDurationDefault("CART_TTL", 7*24*time.Hour),
		CartIdleTTL:       EnvDurationDefault("CART_IDLE_TTL", 30*time.Minute),
		CartSweepInterval: EnvDurationDefault("CART_SWEEP_INTERVAL", 5*time.Minute),

		KafkaBrokers:   CSV(os.Getenv("KAFKA_BROKERS")),
		KafkaCartTopic: EnvDefault("KAFKA_CART_TOPIC", "cart_events"),

		ESURL:      os.Getenv("ES_URL"),
		ESUser:     os.Getenv("ES_USER"),
		ESPassword: os.Getenv("ES_PASSWORD"),
		ESIndex:    EnvDefault("ES_INDEX", "products"),
	}
}

func CSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func EnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func EnvIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// EnvDurationDefault accepts Go durations ("90s", "12h") and plain seconds.
func EnvDurationDefault(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return def
}

func MustNonEmpty(value, envName string) {
	if value == "" {
		log.Fatalf("missing required env %s", envName)
	}
}

func MustNonEmptyBytes(value []byte, envName string) {
	if len(value) == 0 {
		log.Fatalf("missing required env %s", envName)
	}
}
