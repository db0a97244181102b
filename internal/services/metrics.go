package services

import (
	"context"
	"log"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"alfredoptarigan/interview-evaluator/internal/models"
)

const (
	meterName = "interview-evaluator/orchestrator"

	metricStarted        = "evaluations.started"
	metricCompleted      = "evaluations.completed"
	metricFailed         = "evaluations.failed"
	metricBusy           = "evaluations.busy"
	metricShortCircuited = "evaluations.short_circuited"

	attrProvider  = attribute.Key("provider")
	attrErrorKind = attribute.Key("error_kind")
)

// Metrics records orchestrator outcomes as OpenTelemetry counters. The manual
// reader keeps cumulative totals so GET /metrics can render them as JSON.
type Metrics struct {
	reader   *sdkmetric.ManualReader
	provider *sdkmetric.MeterProvider

	started        metric.Int64Counter
	completed      metric.Int64Counter
	failed         metric.Int64Counter
	busy           metric.Int64Counter
	shortCircuited metric.Int64Counter
}

type MetricsSnapshot struct {
	Started        int64                     `json:"started"`
	Completed      int64                     `json:"completed"`
	Failed         int64                     `json:"failed"`
	Busy           int64                     `json:"busy"`
	ShortCircuited int64                     `json:"short_circuited"`
	ByProvider     map[models.Provider]int64 `json:"by_provider"`
	FailuresByKind map[ErrorKind]int64       `json:"failures_by_kind"`
}

// NewMetrics builds a meter provider with a manual reader. Extra readers,
// such as an OTLP periodic reader, receive the same counters.
func NewMetrics(readers ...sdkmetric.Reader) *Metrics {
	reader := sdkmetric.NewManualReader()
	opts := []sdkmetric.Option{sdkmetric.WithReader(reader)}
	for _, r := range readers {
		opts = append(opts, sdkmetric.WithReader(r))
	}
	provider := sdkmetric.NewMeterProvider(opts...)
	meter := provider.Meter(meterName)

	return &Metrics{
		reader:         reader,
		provider:       provider,
		started:        newCounter(meter, metricStarted, "Evaluations that moved an answer to processing"),
		completed:      newCounter(meter, metricCompleted, "Evaluations persisted as completed, by provider"),
		failed:         newCounter(meter, metricFailed, "Evaluation requests that ended in failure, by error kind"),
		busy:           newCounter(meter, metricBusy, "Requests rejected because the answer was already processing"),
		shortCircuited: newCounter(meter, metricShortCircuited, "Requests answered from an existing completed evaluation"),
	}
}

func newCounter(meter metric.Meter, name, description string) metric.Int64Counter {
	counter, err := meter.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		log.Printf("⚠️  Failed to create counter %s, recording disabled: %v\n", name, err)
		counter, _ = noop.NewMeterProvider().Meter(meterName).Int64Counter(name)
	}
	return counter
}

// Shutdown flushes and stops every reader attached to the provider.
func (m *Metrics) Shutdown(ctx context.Context) error {
	return m.provider.Shutdown(ctx)
}

func (m *Metrics) recordStarted(ctx context.Context) {
	m.started.Add(ctx, 1)
}

func (m *Metrics) recordBusy(ctx context.Context) {
	m.busy.Add(ctx, 1)
}

func (m *Metrics) recordShortCircuited(ctx context.Context) {
	m.shortCircuited.Add(ctx, 1)
}

func (m *Metrics) recordCompleted(ctx context.Context, provider models.Provider) {
	m.completed.Add(ctx, 1, metric.WithAttributes(attrProvider.String(string(provider))))
}

func (m *Metrics) recordFailed(ctx context.Context, kind ErrorKind) {
	m.failed.Add(ctx, 1, metric.WithAttributes(attrErrorKind.String(string(kind))))
}

// Snapshot collects the current cumulative counter values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		ByProvider:     make(map[models.Provider]int64),
		FailuresByKind: make(map[ErrorKind]int64),
	}

	var rm metricdata.ResourceMetrics
	if err := m.reader.Collect(context.Background(), &rm); err != nil {
		log.Printf("⚠️  Failed to collect metrics: %v\n", err)
		return snap
	}

	for _, scope := range rm.ScopeMetrics {
		for _, data := range scope.Metrics {
			sum, ok := data.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, point := range sum.DataPoints {
				switch data.Name {
				case metricStarted:
					snap.Started += point.Value
				case metricBusy:
					snap.Busy += point.Value
				case metricShortCircuited:
					snap.ShortCircuited += point.Value
				case metricCompleted:
					snap.Completed += point.Value
					if v, ok := point.Attributes.Value(attrProvider); ok {
						snap.ByProvider[models.Provider(v.AsString())] += point.Value
					}
				case metricFailed:
					snap.Failed += point.Value
					if v, ok := point.Attributes.Value(attrErrorKind); ok {
						snap.FailuresByKind[ErrorKind(v.AsString())] += point.Value
					}
				}
			}
		}
	}
	return snap
}
