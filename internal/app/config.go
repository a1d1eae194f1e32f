package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/order-service/internal/messaging/kafka"
)

// Config описывает настройки запуска приложения.
type Config struct {
	// Адреса HTTP API и сервера метрик.
	HTTPAddr    string
	MetricsAddr string

	// Сервис пользователей: базовый URL и таймаут одного запроса.
	UserAPIBaseURL string
	UserAPITimeout time.Duration

	// Circuit breaker вокруг сервиса пользователей.
	BreakerErrorThreshold float64
	BreakerCooldown       time.Duration
	BreakerCallTimeout    time.Duration

	// DSN Postgres; пустая строка переключает на in-memory хранилище.
	DatabaseURL string

	// Kafka: пустой список брокеров отключает публикацию событий.
	KafkaBrokers []string
	KafkaTopic   string
}

// DefaultConfig возвращает настройки по умолчанию для локального запуска.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:              ":3000",
		MetricsAddr:           ":9090",
		UserAPIBaseURL:        "http://localhost:3001",
		UserAPITimeout:        2000 * time.Millisecond,
		BreakerErrorThreshold: 50,
		BreakerCooldown:       10000 * time.Millisecond,
		BreakerCallTimeout:    3000 * time.Millisecond,
		KafkaTopic:            kafka.TopicOrderEvents,
	}
}

// LoadConfig читает настройки из переменных окружения поверх значений
// по умолчанию.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.HTTPAddr = ":" + v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := os.Getenv("API_BASE_URL"); v != "" {
		cfg.UserAPIBaseURL = v
	}

	var err error
	if cfg.UserAPITimeout, err = envDurationMs("API_TIMEOUT", cfg.UserAPITimeout); err != nil {
		return Config{}, err
	}
	if cfg.BreakerCooldown, err = envDurationMs("BREAKER_RESET_TIMEOUT_MS", cfg.BreakerCooldown); err != nil {
		return Config{}, err
	}
	if cfg.BreakerCallTimeout, err = envDurationMs("BREAKER_CALL_TIMEOUT_MS", cfg.BreakerCallTimeout); err != nil {
		return Config{}, err
	}
	if v := os.Getenv("BREAKER_ERROR_THRESHOLD"); v != "" {
		threshold, parseErr := strconv.ParseFloat(v, 64)
		if parseErr != nil || threshold <= 0 || threshold > 100 {
			return Config{}, fmt.Errorf("invalid BREAKER_ERROR_THRESHOLD %q", v)
		}
		cfg.BreakerErrorThreshold = threshold
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		for _, broker := range strings.Split(v, ",") {
			if broker = strings.TrimSpace(broker); broker != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, broker)
			}
		}
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		cfg.KafkaTopic = v
	}

	return cfg, nil
}

// envDurationMs читает целочисленное значение переменной в миллисекундах.
func envDurationMs(name string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(name)
	if v == "" {
		return fallback, nil
	}
	ms, err := strconv.Atoi(v)
	if err != nil || ms <= 0 {
		return 0, fmt.Errorf("invalid %s %q: expected positive milliseconds", name, v)
	}
	return time.Duration(ms) * time.Millisecond, nil
}
