package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Причины отказа CreateOrder для orders_rejected_total.
const (
	ReasonValidation  = "validation"
	ReasonUserMissing = "user_not_found"
	ReasonUnavailable = "dependency_unavailable"
	ReasonPersistence = "persistence_failed"
)

// OrderMetrics содержит метрики конвейера создания заказов.
type OrderMetrics struct {
	// Счётчики исходов
	ordersCreated   prometheus.Counter
	ordersDuplicate prometheus.Counter
	ordersRejected  *prometheus.CounterVec

	// Публикация событий best-effort: фиксируем только сбои.
	publishFailures prometheus.Counter

	// Гистограмма времени CreateOrder
	createDuration prometheus.Histogram

	// Состояние circuit breaker: 0=closed, 1=open, 2=half_open.
	breakerState       prometheus.Gauge
	breakerTransitions *prometheus.CounterVec
}

// NewOrderMetrics создаёт метрики в default-регистри.
func NewOrderMetrics() *OrderMetrics {
	return newOrderMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newOrderMetricsWithRegisterer(registerer prometheus.Registerer) *OrderMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &OrderMetrics{
		ordersCreated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Total number of orders persisted",
		}),
		ordersDuplicate: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orders_duplicate_total",
			Help: "Total number of create requests resolved to an existing order by idempotency key",
		}),
		ordersRejected: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "orders_rejected_total",
			Help: "Total number of rejected create requests by reason",
		}, []string{"reason"}),
		publishFailures: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orders_publish_failures_total",
			Help: "Total number of failed order event publications",
		}),
		createDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "orders_create_duration_seconds",
			Help:    "Duration of CreateOrder calls in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		breakerState: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "orders_breaker_state",
			Help: "Circuit breaker state of the user service dependency (0=closed, 1=open, 2=half_open)",
		}),
		breakerTransitions: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "orders_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions by target state",
		}, []string{"to"}),
	}
}

// RecordCreated фиксирует успешно сохранённый заказ.
func (m *OrderMetrics) RecordCreated() {
	m.ordersCreated.Inc()
}

// RecordDuplicate фиксирует запрос, разрешившийся в уже существующий заказ.
func (m *OrderMetrics) RecordDuplicate() {
	m.ordersDuplicate.Inc()
}

// RecordRejected фиксирует отказ с указанием причины.
func (m *OrderMetrics) RecordRejected(reason string) {
	m.ordersRejected.WithLabelValues(reason).Inc()
}

// RecordPublishFailure фиксирует неудачную публикацию события.
func (m *OrderMetrics) RecordPublishFailure() {
	m.publishFailures.Inc()
}

// RecordCreateDuration фиксирует длительность CreateOrder.
func (m *OrderMetrics) RecordCreateDuration(d time.Duration) {
	m.createDuration.Observe(d.Seconds())
}

// SetBreakerState обновляет gauge состояния breaker и счётчик переходов.
func (m *OrderMetrics) SetBreakerState(state string) {
	var v float64
	switch state {
	case "open":
		v = 1
	case "half_open":
		v = 2
	default:
		v = 0
	}
	m.breakerState.Set(v)
	m.breakerTransitions.WithLabelValues(state).Inc()
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}
