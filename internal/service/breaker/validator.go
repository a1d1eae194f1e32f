package breaker

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/order-service/internal/domain"
)

// UserCallSuccessful классифицирует исход обращения к user-service для
// статистики breaker: однозначный ответ "пользователя нет" — это успешный
// вызов зависимости, а не её сбой.
func UserCallSuccessful(err error) bool {
	return err == nil || errors.Is(err, domain.ErrUserNotFound)
}

// UserValidator — декоратор domain.UserValidator поверх breaker.
// В открытом состоянии возвращает domain.ErrUserUnavailable как fallback,
// не обращаясь к обёрнутому клиенту.
type UserValidator struct {
	next   domain.UserValidator
	b      *Breaker
	logger *log.Entry
}

// NewUserValidator оборачивает клиент user-service в breaker.
func NewUserValidator(next domain.UserValidator, b *Breaker, logger *log.Entry) *UserValidator {
	if logger == nil {
		logger = log.New().WithField("component", "breaker-validator")
	}
	return &UserValidator{next: next, b: b, logger: logger}
}

// Validate проверяет пользователя через breaker.
func (v *UserValidator) Validate(ctx context.Context, userID string) error {
	err := v.b.Do(ctx, func(ctx context.Context) error {
		return v.next.Validate(ctx, userID)
	})

	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrUserNotFound):
		return err
	case errors.Is(err, ErrOpen):
		v.logger.WithField("user_id", userID).Warn("user validation short-circuited, breaker open")
		return fmt.Errorf("%w: %w", domain.ErrUserUnavailable, err)
	case errors.Is(err, domain.ErrUserUnavailable):
		return err
	default:
		return fmt.Errorf("%w: %w", domain.ErrUserUnavailable, err)
	}
}

var _ domain.UserValidator = (*UserValidator)(nil)
