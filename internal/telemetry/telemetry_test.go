package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/coachpo/spawnpool/internal/registry"
)

type staticSource []registry.PoolStatus

func (s staticSource) Status() []registry.PoolStatus { return s }

func newTestProvider(t *testing.T) (*Provider, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := NewProviderWithReader(Config{Enabled: true, Environment: "Test"}, reader)
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return provider, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Aggregation)
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func poolOf(t *testing.T, attrs attribute.Set) string {
	t.Helper()
	v, ok := attrs.Value(AttrPoolName)
	require.True(t, ok)
	return v.AsString()
}

func TestDisabledProviderFallsBackToGlobalMeter(t *testing.T) {
	provider, err := NewProvider(context.Background(), Config{Enabled: false, Environment: "Staging"})
	require.NoError(t, err)
	require.False(t, provider.Enabled())
	require.NotNil(t, provider.Meter("test"))
	require.NoError(t, provider.Shutdown(context.Background()))
	require.Equal(t, "staging", Environment())
}

func TestStripScheme(t *testing.T) {
	require.Equal(t, "collector:4318", stripScheme("http://collector:4318"))
	require.Equal(t, "collector:4318", stripScheme("https://collector:4318"))
	require.Equal(t, "collector:4318", stripScheme("collector:4318"))
}

func TestObservePoolMetricsReportsEveryPool(t *testing.T) {
	provider, reader := newTestProvider(t)
	source := staticSource{
		{Pool: "Bullet", Template: "Bullet", InUse: 2, Free: 3, Total: 5},
		{Pool: "Coin", Template: "Coin", InUse: 0, Free: 1, Total: 1},
	}
	require.NoError(t, ObservePoolMetrics(provider.Meter(meterName), source))

	data := collect(t, reader)
	totals, ok := data["spawnpool_pool_objects_total"].(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, totals.DataPoints, 2)

	got := make(map[string]int64)
	for _, dp := range totals.DataPoints {
		got[poolOf(t, dp.Attributes)] = dp.Value
		env, ok := dp.Attributes.Value(AttrEnvironment)
		require.True(t, ok)
		require.Equal(t, "test", env.AsString())
	}
	require.Equal(t, map[string]int64{"Bullet": 5, "Coin": 1}, got)

	inUse, ok := data["spawnpool_pool_objects_in_use"].(metricdata.Gauge[int64])
	require.True(t, ok)
	for _, dp := range inUse.DataPoints {
		if poolOf(t, dp.Attributes) == "Bullet" {
			require.EqualValues(t, 2, dp.Value)
		}
	}
	_, ok = data["spawnpool_pool_objects_free"].(metricdata.Gauge[int64])
	require.True(t, ok)
}

func TestObservePoolMetricsSeparatesSameNamedTemplates(t *testing.T) {
	provider, reader := newTestProvider(t)
	reg := registry.New()
	t.Cleanup(func() { _ = reg.Close() })
	require.NoError(t, reg.Warm(context.Background(), newTemplate("Bullet"), 1))
	require.NoError(t, reg.Warm(context.Background(), newTemplate("Bullet"), 3))
	require.NoError(t, ObservePoolMetrics(provider.Meter(meterName), reg))

	totals, ok := collect(t, reader)["spawnpool_pool_objects_total"].(metricdata.Gauge[int64])
	require.True(t, ok)
	got := make(map[string]int64)
	for _, dp := range totals.DataPoints {
		got[poolOf(t, dp.Attributes)] = dp.Value
		template, ok := dp.Attributes.Value(AttrTemplate)
		require.True(t, ok)
		require.Equal(t, "Bullet", template.AsString())
	}
	require.Equal(t, map[string]int64{"Bullet": 1, "Bullet#2": 3}, got)
}

func TestInstrumentsCountRegistryActivity(t *testing.T) {
	provider, reader := newTestProvider(t)
	instruments, err := NewInstruments(provider.Meter(meterName))
	require.NoError(t, err)

	reg := registry.New(registry.WithObserver(instruments))
	t.Cleanup(func() { _ = reg.Close() })

	template := newTemplate("Bullet")
	clone, err := reg.Spawn(context.Background(), template)
	require.NoError(t, err)
	_, err = reg.Spawn(context.Background(), template)
	require.NoError(t, err)
	require.True(t, reg.Release(clone))
	require.False(t, reg.Release(clone))

	data := collect(t, reader)
	spawns, ok := data["spawnpool_spawns_total"].(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, spawns.DataPoints, 1)
	require.EqualValues(t, 2, spawns.DataPoints[0].Value)
	require.Equal(t, "Bullet", poolOf(t, spawns.DataPoints[0].Attributes))

	releases, ok := data["spawnpool_releases_total"].(metricdata.Sum[int64])
	require.True(t, ok)
	require.EqualValues(t, 1, releases.DataPoints[0].Value)

	untracked, ok := data["spawnpool_untracked_releases_total"].(metricdata.Sum[int64])
	require.True(t, ok)
	require.EqualValues(t, 1, untracked.DataPoints[0].Value)
	object, ok := untracked.DataPoints[0].Attributes.Value(AttrObjectName)
	require.True(t, ok)
	require.Equal(t, "Bullet(Clone)", object.AsString())
}
