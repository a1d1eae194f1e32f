package breaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// State — режим работы circuit breaker.
type State string

const (
	// StateClosed — вызовы проходят к обёрнутому клиенту.
	StateClosed State = "closed"
	// StateOpen — вызовы немедленно отклоняются без сетевой попытки.
	StateOpen State = "open"
	// StateHalfOpen — разрешён единственный пробный вызов.
	StateHalfOpen State = "half_open"
)

// ErrOpen возвращается вместо вызова, пока breaker открыт.
var ErrOpen = errors.New("circuit breaker is open")

const bucketCount = 10

// Settings задаёт пороги и таймауты breaker.
type Settings struct {
	// ErrorThreshold — процент ошибок в скользящем окне, при превышении
	// которого breaker открывается.
	ErrorThreshold float64
	// MinRequests — минимальное число наблюдений в окне, прежде чем
	// процент ошибок становится значимым.
	MinRequests int
	// Window — длительность скользящего окна статистики.
	Window time.Duration
	// Cooldown — пауза в открытом состоянии до пробного вызова.
	Cooldown time.Duration
	// CallTimeout ограничивает каждый вызов через breaker; превышение
	// засчитывается как ошибка, даже если вызов ещё выполняется.
	CallTimeout time.Duration
	// IsSuccessful классифицирует результат вызова для статистики.
	// nil означает "успех = отсутствие ошибки".
	IsSuccessful func(error) bool
	// OnStateChange вызывается под блокировкой при каждом переходе состояния.
	OnStateChange func(from, to State)
}

// DefaultSettings возвращает пороги по умолчанию: 50% ошибок, окно 10 секунд,
// cooldown 10 секунд, лимит вызова 3 секунды.
func DefaultSettings() Settings {
	return Settings{
		ErrorThreshold: 50,
		MinRequests:    10,
		Window:         10 * time.Second,
		Cooldown:       10 * time.Second,
		CallTimeout:    3 * time.Second,
	}
}

type bucket struct {
	success int64
	failure int64
}

// Breaker защищает внешнюю зависимость от каскадных сбоев. Экземпляр создаётся
// composition root-ом и разделяется всеми конкурентными запросами; всё состояние
// охраняется mutex-ом, переходы выводятся из консистентного снимка окна.
type Breaker struct {
	settings Settings
	logger   *log.Entry

	mu            sync.Mutex
	state         State
	openedAt      time.Time
	probeInFlight bool
	buckets       [bucketCount]bucket
	cur           int
	lastRotate    time.Time
}

// New создаёт breaker в закрытом состоянии.
func New(settings Settings, logger *log.Entry) *Breaker {
	def := DefaultSettings()
	if settings.ErrorThreshold <= 0 {
		settings.ErrorThreshold = def.ErrorThreshold
	}
	if settings.MinRequests <= 0 {
		settings.MinRequests = def.MinRequests
	}
	if settings.Window <= 0 {
		settings.Window = def.Window
	}
	if settings.Cooldown <= 0 {
		settings.Cooldown = def.Cooldown
	}
	if settings.CallTimeout <= 0 {
		settings.CallTimeout = def.CallTimeout
	}
	if settings.IsSuccessful == nil {
		settings.IsSuccessful = func(err error) bool { return err == nil }
	}
	if logger == nil {
		logger = log.New().WithField("component", "circuit-breaker")
	}

	return &Breaker{
		settings:   settings,
		logger:     logger,
		state:      StateClosed,
		lastRotate: time.Now(),
	}
}

// State возвращает текущий режим breaker.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Do выполняет fn через breaker. В открытом состоянии возвращает ErrOpen,
// не вызывая fn. Вызов ограничен CallTimeout; просроченный вызов учитывается
// как ошибка немедленно, не дожидаясь фактического завершения fn.
// Отмена контекста вызывающего — не сигнал о здоровье зависимости:
// такой вызов в статистику окна не попадает.
func (b *Breaker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	isProbe, err := b.admit()
	if err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, b.settings.CallTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- fn(callCtx)
	}()

	select {
	case err = <-done:
		if ctx.Err() != nil && errors.Is(err, context.Canceled) {
			b.abandon(isProbe)
			return err
		}
	case <-callCtx.Done():
		if ctx.Err() != nil {
			b.abandon(isProbe)
			return ctx.Err()
		}
		err = fmt.Errorf("call exceeded %s bound: %w", b.settings.CallTimeout, callCtx.Err())
	}

	b.record(b.settings.IsSuccessful(err), isProbe)
	return err
}

// admit решает, пропускать ли вызов, и выполняет ленивые переходы
// OPEN → HALF_OPEN по истечении cooldown. Пробный вызов помечается явно:
// record не должен угадывать его по текущему состоянию, иначе отставший
// обычный вызов, завершившийся в HALF_OPEN, был бы принят за пробу.
func (b *Breaker) admit() (isProbe bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return false, nil
	case StateOpen:
		if time.Since(b.openedAt) < b.settings.Cooldown {
			return false, ErrOpen
		}
		b.transition(StateHalfOpen)
		b.probeInFlight = true
		return true, nil
	case StateHalfOpen:
		if b.probeInFlight {
			return false, ErrOpen
		}
		b.probeInFlight = true
		return true, nil
	default:
		return false, ErrOpen
	}
}

// abandon снимает вызов с учёта после отмены со стороны вызывающего;
// брошенная проба освобождает слот, не меняя состояние.
func (b *Breaker) abandon(isProbe bool) {
	if !isProbe {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probeInFlight = false
}

// record учитывает исход вызова и выводит переход из консистентного снимка окна.
func (b *Breaker) record(success, isProbe bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if isProbe {
		b.probeInFlight = false
		if success {
			b.reset()
			b.transition(StateClosed)
		} else {
			b.openedAt = time.Now()
			b.transition(StateOpen)
		}
		return
	}

	b.rotate()
	if success {
		b.buckets[b.cur].success++
	} else {
		b.buckets[b.cur].failure++
	}

	if b.state != StateClosed {
		return
	}

	successes, failures := b.totals()
	total := successes + failures
	if total < int64(b.settings.MinRequests) {
		return
	}
	rate := float64(failures) / float64(total) * 100
	if rate > b.settings.ErrorThreshold {
		b.openedAt = time.Now()
		b.transition(StateOpen)
	}
}

// rotate сдвигает скользящее окно, обнуляя устаревшие корзины.
func (b *Breaker) rotate() {
	bucketDur := b.settings.Window / bucketCount
	elapsed := time.Since(b.lastRotate)
	if elapsed < bucketDur {
		return
	}

	steps := int(elapsed / bucketDur)
	if steps >= bucketCount {
		b.reset()
		return
	}
	for i := 0; i < steps; i++ {
		b.cur = (b.cur + 1) % bucketCount
		b.buckets[b.cur] = bucket{}
	}
	b.lastRotate = b.lastRotate.Add(time.Duration(steps) * bucketDur)
}

func (b *Breaker) reset() {
	b.buckets = [bucketCount]bucket{}
	b.cur = 0
	b.lastRotate = time.Now()
}

func (b *Breaker) totals() (successes, failures int64) {
	for _, bk := range b.buckets {
		successes += bk.success
		failures += bk.failure
	}
	return successes, failures
}

// transition выполняет переход состояния; вызывается только под mutex-ом.
func (b *Breaker) transition(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to

	switch to {
	case StateOpen:
		b.logger.WithField("from", string(from)).Warn("circuit breaker opened")
	case StateHalfOpen:
		b.logger.Info("circuit breaker half-open")
	case StateClosed:
		b.logger.Info("circuit breaker closed")
	}

	if b.settings.OnStateChange != nil {
		b.settings.OnStateChange(from, to)
	}
}
