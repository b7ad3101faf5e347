package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/metric"

	"github.com/coachpo/spawnpool/internal/registry"
)

const meterName = "spawnpool.registry"

// StatusSource reports per-pool counts. *registry.Registry satisfies it.
type StatusSource interface {
	Status() []registry.PoolStatus
}

// ObservePoolMetrics registers observable gauges that report the total, in-use
// and free clone counts of every pool in source.
func ObservePoolMetrics(meter metric.Meter, source StatusSource) error {
	if meter == nil || source == nil {
		return nil
	}
	gauges := []struct {
		name        string
		description string
		value       func(registry.PoolStatus) int
	}{
		{"spawnpool_pool_objects_total", "Clones owned by the pool (free + in use)", func(s registry.PoolStatus) int { return s.Total }},
		{"spawnpool_pool_objects_in_use", "Clones currently checked out", func(s registry.PoolStatus) int { return s.InUse }},
		{"spawnpool_pool_objects_free", "Clones waiting in the pool", func(s registry.PoolStatus) int { return s.Free }},
	}
	for _, g := range gauges {
		value := g.value
		if _, err := meter.Int64ObservableGauge(g.name,
			metric.WithDescription(g.description),
			metric.WithUnit("{object}"),
			metric.WithInt64Callback(func(_ context.Context, observer metric.Int64Observer) error {
				env := Environment()
				for _, st := range source.Status() {
					observer.Observe(int64(value(st)), metric.WithAttributes(PoolAttributes(env, st.Pool, st.Template)...))
				}
				return nil
			}),
		); err != nil {
			return fmt.Errorf("register %s: %w", g.name, err)
		}
	}
	return nil
}

// Instruments counts registry activity. It implements registry.Observer.
type Instruments struct {
	spawns    metric.Int64Counter
	releases  metric.Int64Counter
	untracked metric.Int64Counter
}

var _ registry.Observer = (*Instruments)(nil)

// NewInstruments creates the registry activity counters on meter.
func NewInstruments(meter metric.Meter) (*Instruments, error) {
	spawns, err := meter.Int64Counter("spawnpool_spawns_total",
		metric.WithDescription("Clones handed out by Spawn"),
		metric.WithUnit("{object}"))
	if err != nil {
		return nil, fmt.Errorf("create spawns counter: %w", err)
	}
	releases, err := meter.Int64Counter("spawnpool_releases_total",
		metric.WithDescription("Clones returned by Release"),
		metric.WithUnit("{object}"))
	if err != nil {
		return nil, fmt.Errorf("create releases counter: %w", err)
	}
	untracked, err := meter.Int64Counter("spawnpool_untracked_releases_total",
		metric.WithDescription("Release calls for objects no pool was tracking"),
		metric.WithUnit("{object}"))
	if err != nil {
		return nil, fmt.Errorf("create untracked releases counter: %w", err)
	}
	return &Instruments{spawns: spawns, releases: releases, untracked: untracked}, nil
}

// ObserveSpawn implements registry.Observer.
func (i *Instruments) ObserveSpawn(pool string) {
	i.spawns.Add(context.Background(), 1, metric.WithAttributes(AttrEnvironment.String(Environment()), AttrPoolName.String(pool)))
}

// ObserveRelease implements registry.Observer.
func (i *Instruments) ObserveRelease(pool string) {
	i.releases.Add(context.Background(), 1, metric.WithAttributes(AttrEnvironment.String(Environment()), AttrPoolName.String(pool)))
}

// ObserveUntrackedRelease implements registry.Observer.
func (i *Instruments) ObserveUntrackedRelease(object string) {
	i.untracked.Add(context.Background(), 1, metric.WithAttributes(ObjectAttributes(Environment(), object)...))
}
