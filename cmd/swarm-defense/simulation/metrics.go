package simulation

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/picogrid/swarm-defense/simulation"

// engineMetrics are the engine's OTel instruments. They record to the global
// meter provider, which is a no-op unless one is installed.
type engineMetrics struct {
	strategy string
	attrs    metric.MeasurementOption
	ticks    metric.Int64Counter
	shots    metric.Int64Counter
	hits     metric.Int64Counter
	kills    metric.Int64Counter
	siege    metric.Float64Counter
	tickTime metric.Float64Histogram
}

func newEngineMetrics(m metric.Meter, strategy string) (*engineMetrics, error) {
	if m == nil {
		m = otel.Meter(instrumentationName)
	}
	em := &engineMetrics{
		strategy: strategy,
		attrs:    metric.WithAttributes(attribute.String("strategy", strategy)),
	}

	var err error
	em.ticks, err = m.Int64Counter(
		"swarm.engine.ticks",
		metric.WithDescription("Simulation ticks executed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating ticks counter: %w", err)
	}

	em.shots, err = m.Int64Counter(
		"swarm.combat.shots",
		metric.WithDescription("Shots fired by either force"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating shots counter: %w", err)
	}

	em.hits, err = m.Int64Counter(
		"swarm.combat.hits",
		metric.WithDescription("Shots that hit"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating hits counter: %w", err)
	}

	em.kills, err = m.Int64Counter(
		"swarm.combat.kills",
		metric.WithDescription("Agents destroyed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating kills counter: %w", err)
	}

	em.siege, err = m.Float64Counter(
		"swarm.assets.siege_damage",
		metric.WithDescription("Damage dealt to assets by ground attackers"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating siege counter: %w", err)
	}

	em.tickTime, err = m.Float64Histogram(
		"swarm.engine.tick_duration",
		metric.WithDescription("Wall-clock time spent per tick"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating tick duration histogram: %w", err)
	}

	return em, nil
}

func (em *engineMetrics) recordTick(ctx context.Context, millis float64) {
	em.ticks.Add(ctx, 1, em.attrs)
	em.tickTime.Record(ctx, millis, em.attrs)
}

func (em *engineMetrics) recordShot(ctx context.Context, side string, hit, kill bool) {
	attrs := metric.WithAttributes(
		attribute.String("strategy", em.strategy),
		attribute.String("side", side),
	)
	em.shots.Add(ctx, 1, attrs)
	if hit {
		em.hits.Add(ctx, 1, attrs)
	}
	if kill {
		em.kills.Add(ctx, 1, attrs)
	}
}

func (em *engineMetrics) recordSiege(ctx context.Context, damage float64) {
	em.siege.Add(ctx, damage, em.attrs)
}
