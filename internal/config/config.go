package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var ErrMissingAPIURL = errors.New("API_URL is required")

type Config struct {
	APIURL         string
	UserCUIT       string
	RequestTimeout time.Duration
	SubmitTimeout  time.Duration

	SyncWorkers   int
	SyncQueueSize int

	RedisAddr     string
	RedisPassword string

	KafkaBrokers []string
	KafkaTopic   string

	HTTPPort        string
	ShutdownTimeout time.Duration

	LogLevel string
	LogDev   bool
}

// Load reads an optional .env file and then the process environment. A
// missing .env is not an error; values already set in the environment win.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, err
	}
	return FromEnv(), nil
}

func FromEnv() Config {
	return Config{
		APIURL:          strings.TrimRight(getEnv("API_URL", ""), "/"),
		UserCUIT:        getEnv("USER_CUIT", ""),
		RequestTimeout:  getDurationEnv("REQUEST_TIMEOUT", 15, time.Second),
		SubmitTimeout:   getDurationEnv("SUBMIT_TIMEOUT", 30, time.Second),
		SyncWorkers:     getIntEnv("SYNC_WORKERS", 2),
		SyncQueueSize:   getIntEnv("SYNC_QUEUE_SIZE", 64),
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		KafkaBrokers:    getListEnv("KAFKA_BROKERS"),
		KafkaTopic:      getEnv("KAFKA_TOPIC", "orders-confirmed"),
		HTTPPort:        getEnv("HTTP_PORT", "8090"),
		ShutdownTimeout: getDurationEnv("SHUTDOWN_TIMEOUT", 10, time.Second),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogDev:          getBoolEnv("LOG_DEV", false),
	}
}

// Validate checks what the checkout runner cannot work without.
func (c Config) Validate() error {
	if c.APIURL == "" {
		return ErrMissingAPIURL
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue int, unit time.Duration) time.Duration {
	return time.Duration(getIntEnv(key, defaultValue)) * unit
}

// getIntEnv accepts positive integers only.
func getIntEnv(key string, defaultValue int) int {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getListEnv(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
