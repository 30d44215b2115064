// Package observe records voice lifecycle metrics through the OpenTelemetry
// Metrics API and exposes them to Prometheus.
//
// Tests should use [NewMetrics] with their own [metric.MeterProvider]; the
// CLI uses [DefaultMetrics] on the global provider installed by
// [InitProvider].
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"voicebus.click/internal/engine"
)

// meterName is the instrumentation scope name used for all voicebus metrics.
const meterName = "voicebus.click"

// Metrics holds the instruments for voice lifecycle events. Every
// instrument carries a "slot" attribute (bus or channel).
type Metrics struct {
	// VoicesStarted counts voices installed after a successful load.
	VoicesStarted metric.Int64Counter

	// VoicesEvicted counts bus voices stopped to make room.
	VoicesEvicted metric.Int64Counter

	// VoicesCompleted counts voices that reached the end of their clip.
	VoicesCompleted metric.Int64Counter

	// VoicesStopped counts voices stopped early. Use with attribute
	// "reason": "stop" or "fade".
	VoicesStopped metric.Int64Counter

	// VoicesSuperseded counts channel loads discarded because a newer
	// play was requested first.
	VoicesSuperseded metric.Int64Counter

	// LoadFailures counts requests whose candidates all failed.
	LoadFailures metric.Int64Counter

	// LoadDuration tracks request resolution time, fetch plus decode.
	LoadDuration metric.Float64Histogram

	// ActiveVoices tracks voices currently owned by the bus or channel.
	ActiveVoices metric.Int64UpDownCounter
}

// loadBuckets are histogram boundaries in seconds for file loads.
var loadBuckets = []float64{
	0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1,
}

// NewMetrics creates all instruments on the given provider
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.VoicesStarted, err = m.Int64Counter("voicebus.voices.started",
		metric.WithDescription("Voices installed after a successful load."),
	); err != nil {
		return nil, err
	}
	if met.VoicesEvicted, err = m.Int64Counter("voicebus.voices.evicted",
		metric.WithDescription("Bus voices stopped to stay within capacity."),
	); err != nil {
		return nil, err
	}
	if met.VoicesCompleted, err = m.Int64Counter("voicebus.voices.completed",
		metric.WithDescription("Voices that played to the end of their clip."),
	); err != nil {
		return nil, err
	}
	if met.VoicesStopped, err = m.Int64Counter("voicebus.voices.stopped",
		metric.WithDescription("Voices stopped early by reason."),
	); err != nil {
		return nil, err
	}
	if met.VoicesSuperseded, err = m.Int64Counter("voicebus.voices.superseded",
		metric.WithDescription("Channel loads discarded after a newer play."),
	); err != nil {
		return nil, err
	}
	if met.LoadFailures, err = m.Int64Counter("voicebus.load.failures",
		metric.WithDescription("Requests whose candidate files all failed to load."),
	); err != nil {
		return nil, err
	}
	if met.LoadDuration, err = m.Float64Histogram("voicebus.load.duration",
		metric.WithDescription("Time from request to decoded clip."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(loadBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ActiveVoices, err = m.Int64UpDownCounter("voicebus.voices.active",
		metric.WithDescription("Voices currently owned by the bus or the channel."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider].
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Record updates the instruments for one lifecycle event
func (m *Metrics) Record(ctx context.Context, ev engine.Event) {
	slot := metric.WithAttributes(attribute.String("slot", string(ev.Slot)))

	switch ev.Kind {
	case engine.EventStarted:
		m.VoicesStarted.Add(ctx, 1, slot)
		m.ActiveVoices.Add(ctx, 1, slot)
		m.LoadDuration.Record(ctx, ev.LoadTime.Seconds(), slot)
	case engine.EventEvicted:
		m.VoicesEvicted.Add(ctx, 1, slot)
		m.ActiveVoices.Add(ctx, -1, slot)
	case engine.EventCompleted:
		m.VoicesCompleted.Add(ctx, 1, slot)
		m.ActiveVoices.Add(ctx, -1, slot)
	case engine.EventStopped:
		m.VoicesStopped.Add(ctx, 1, metric.WithAttributes(
			attribute.String("slot", string(ev.Slot)),
			attribute.String("reason", "stop"),
		))
		m.ActiveVoices.Add(ctx, -1, slot)
	case engine.EventFaded:
		m.VoicesStopped.Add(ctx, 1, metric.WithAttributes(
			attribute.String("slot", string(ev.Slot)),
			attribute.String("reason", "fade"),
		))
		m.ActiveVoices.Add(ctx, -1, slot)
	case engine.EventSuperseded:
		m.VoicesSuperseded.Add(ctx, 1, slot)
		m.LoadDuration.Record(ctx, ev.LoadTime.Seconds(), slot)
	case engine.EventFailed:
		m.LoadFailures.Add(ctx, 1, slot)
		m.LoadDuration.Record(ctx, ev.LoadTime.Seconds(), slot)
	}
}

// Observer returns an engine observer that records into m
func (m *Metrics) Observer() engine.Observer {
	return func(ev engine.Event) {
		m.Record(context.Background(), ev)
	}
}
