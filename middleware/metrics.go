package middleware

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goliatone/go-conduit"
	"github.com/goliatone/go-conduit/pipeline"
	"github.com/prometheus/client_golang/prometheus"
)

// Collectors holds the Prometheus collectors shared by every Metrics
// middleware, whatever its message type.
type Collectors struct {
	mu         sync.Mutex
	registerer prometheus.Registerer
	registered bool

	executions *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	inFlight   *prometheus.GaugeVec
}

var pipelineLabels = []string{"message_type", "transport", "role"}

// NewCollectors creates the collectors. A nil registerer means
// prometheus.DefaultRegisterer.
func NewCollectors(registerer prometheus.Registerer) *Collectors {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	return &Collectors{
		registerer: registerer,
		executions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "conduit",
				Subsystem: "pipeline",
				Name:      "executions_total",
				Help:      "Total number of pipeline executions by outcome",
			},
			append(append([]string{}, pipelineLabels...), "outcome"),
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "conduit",
				Subsystem: "pipeline",
				Name:      "duration_seconds",
				Help:      "Duration of the pipeline after the metrics middleware",
				Buckets:   prometheus.DefBuckets,
			},
			pipelineLabels,
		),
		inFlight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "conduit",
				Subsystem: "pipeline",
				Name:      "in_flight",
				Help:      "Pipeline executions currently running",
			},
			pipelineLabels,
		),
	}
}

// Register registers the collectors. Safe to call multiple times. When
// equivalent collectors are already registered, for instance by another
// Collectors on the same registerer, those are adopted so every Collectors
// records into what the registry gathers.
func (c *Collectors) Register() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.registered {
		return nil
	}

	executions, err := register(c.registerer, c.executions)
	if err != nil {
		return err
	}
	duration, err := register(c.registerer, c.duration)
	if err != nil {
		return err
	}
	inFlight, err := register(c.registerer, c.inFlight)
	if err != nil {
		return err
	}

	c.executions, c.duration, c.inFlight = executions, duration, inFlight
	c.registered = true
	return nil
}

func register[C prometheus.Collector](registerer prometheus.Registerer, col C) (C, error) {
	err := registerer.Register(col)
	if err == nil {
		return col, nil
	}

	var are prometheus.AlreadyRegisteredError
	if !errors.As(err, &are) {
		return col, err
	}
	existing, ok := are.ExistingCollector.(C)
	if !ok {
		return col, fmt.Errorf("metrics: collector already registered with type %T", are.ExistingCollector)
	}
	return existing, nil
}

// MetricsConfig customises the labels of one pipeline.
type MetricsConfig struct {
	// MessageType overrides the message_type label.
	MessageType string
}

// Metrics counts executions and measures their duration.
type Metrics[M, R any] struct {
	collectors *Collectors
}

func NewMetrics[M, R any](collectors *Collectors) *Metrics[M, R] {
	return &Metrics[M, R]{collectors: collectors}
}

func (m *Metrics[M, R]) Execute(ctx context.Context, call *pipeline.Call[M, R], cfg MetricsConfig) (R, error) {
	messageType := cfg.MessageType
	if messageType == "" {
		messageType = conduit.GetMessageType(call.Message)
	}
	labels := prometheus.Labels{
		"message_type": messageType,
		"transport":    call.Transport.Name(),
		"role":         call.Transport.Role().String(),
	}

	inFlight := m.collectors.inFlight.With(labels)
	inFlight.Inc()
	defer inFlight.Dec()

	start := time.Now()
	res, err := call.Next(ctx, call.Message)
	m.collectors.duration.With(labels).Observe(time.Since(start).Seconds())

	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.collectors.executions.WithLabelValues(messageType, call.Transport.Name(), call.Transport.Role().String(), outcome).Inc()
	return res, err
}
