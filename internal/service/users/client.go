package users

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/order-service/internal/domain"
)

// RetryConfig конфигурация повторных попыток обращения к user-service.
type RetryConfig struct {
	// MaxAttempts — общее число попыток, включая первую.
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig возвращает конфигурацию по умолчанию: до 5 попыток
// с экспоненциальной задержкой.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   5,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
	}
}

const defaultRequestTimeout = 2 * time.Second

// Client — HTTP-клиент user-service c ограниченным таймаутом запроса и
// повторными попытками при временных сбоях. Однозначный ответ "пользователя нет"
// терминален и не повторяется.
type Client struct {
	baseURL string
	httpc   *http.Client
	retry   RetryConfig
	logger  *log.Entry
}

// NewClient создаёт клиент user-service. timeout ограничивает каждый
// отдельный HTTP-запрос; нулевое значение заменяется на 2 секунды.
func NewClient(baseURL string, timeout time.Duration, retry RetryConfig, logger *log.Entry) *Client {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	if retry.MaxAttempts <= 0 {
		retry = DefaultRetryConfig()
	}
	if logger == nil {
		logger = log.New().WithField("component", "users-client")
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: timeout},
		retry:   retry,
		logger:  logger,
	}
}

// userPayload — тело успешного ответа user-service.
type userPayload struct {
	ID string `json:"id"`
}

// errorPayload — структурированный ответ об ошибке.
type errorPayload struct {
	Error string `json:"error"`
}

// Validate проверяет существование пользователя. Временные сбои (сеть, таймаут,
// 5xx) повторяются до исчерпания бюджета попыток; итогом становится
// domain.ErrUserUnavailable. Ответ "User not found" возвращается сразу
// как domain.ErrUserNotFound.
func (c *Client) Validate(ctx context.Context, userID string) error {
	var lastErr error
	delay := c.retry.InitialDelay

	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		err := c.fetchUser(ctx, userID)
		if err == nil {
			if attempt > 1 {
				c.logger.WithFields(log.Fields{
					"user_id": userID,
					"attempt": attempt,
				}).Info("user validation succeeded after retry")
			}
			return nil
		}

		if errors.Is(err, domain.ErrUserNotFound) {
			// Однозначный отказ сервиса — повторять бессмысленно.
			return err
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %w", domain.ErrUserUnavailable, ctx.Err())
		}

		lastErr = err

		if attempt < c.retry.MaxAttempts {
			c.logger.WithFields(log.Fields{
				"user_id": userID,
				"attempt": attempt,
				"delay":   delay,
				"error":   err,
			}).Warn("user validation failed, retrying")

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return fmt.Errorf("%w: %w", domain.ErrUserUnavailable, ctx.Err())
			}

			// Экспоненциальная задержка с ограничением сверху.
			delay = time.Duration(float64(delay) * c.retry.BackoffFactor)
			if delay > c.retry.MaxDelay {
				delay = c.retry.MaxDelay
			}
		}
	}

	c.logger.WithFields(log.Fields{
		"user_id":      userID,
		"max_attempts": c.retry.MaxAttempts,
		"error":        lastErr,
	}).Error("user validation failed after all retry attempts")

	return fmt.Errorf("%w: %w", domain.ErrUserUnavailable, lastErr)
}

// fetchUser выполняет один GET-запрос и классифицирует результат.
func (c *Client) fetchUser(ctx context.Context, userID string) error {
	endpoint := c.baseURL + "/api/users/" + url.PathEscape(userID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build user request: %w", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("call user service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read user response: %w", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var user userPayload
		if err := json.Unmarshal(body, &user); err != nil || user.ID == "" {
			// Ответ без идентификатора трактуем как отсутствие пользователя.
			return domain.ErrUserNotFound
		}
		return nil
	case resp.StatusCode == http.StatusNotFound:
		var payload errorPayload
		if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
			return fmt.Errorf("%w: %s", domain.ErrUserNotFound, payload.Error)
		}
		return domain.ErrUserNotFound
	default:
		// Таймауты, обрывы соединения и 5xx считаются временными сбоями.
		return fmt.Errorf("user service returned status %d", resp.StatusCode)
	}
}

var _ domain.UserValidator = (*Client)(nil)
