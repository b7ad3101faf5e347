package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/coachpo/spawnpool/errs"
	"github.com/coachpo/spawnpool/internal/config"
	"github.com/coachpo/spawnpool/internal/registry"
	"github.com/coachpo/spawnpool/internal/scene"
	"github.com/coachpo/spawnpool/internal/telemetry"
)

func TestBuildTemplateByKind(t *testing.T) {
	prefab, err := buildTemplate(config.PoolEntry{Name: "Bullet", Kind: config.KindPrefab})
	require.NoError(t, err)
	require.IsType(t, &scene.Prefab{}, prefab)

	asset, err := buildTemplate(config.PoolEntry{Name: "Spark", Kind: config.KindAsset, Components: map[string]any{"color": "red"}})
	require.NoError(t, err)
	require.IsType(t, &scene.AssetTemplate{}, asset)

	_, err = buildTemplate(config.PoolEntry{Name: "Ghost", Kind: "sprite"})
	require.ErrorContains(t, err, "unknown kind")
}

func TestWarmManifestWarmsEveryEntry(t *testing.T) {
	reg := registry.New()
	t.Cleanup(func() { _ = reg.Close() })

	templates, err := warmManifest(context.Background(), reg, []config.PoolEntry{
		{Name: "Bullet", Size: 3, Kind: config.KindPrefab},
		{Name: "Spark", Size: 2, Kind: config.KindAsset},
	})
	require.NoError(t, err)
	require.Len(t, templates, 2)

	status := reg.Status()
	require.Equal(t, []registry.PoolStatus{
		{Pool: "Bullet", Template: "Bullet", InUse: 0, Free: 3, Total: 3},
		{Pool: "Spark", Template: "Spark", InUse: 0, Free: 2, Total: 2},
	}, status)
}

func TestDuplicateManifestEntries(t *testing.T) {
	reg := registry.New()
	t.Cleanup(func() { _ = reg.Close() })
	template, err := buildTemplate(config.PoolEntry{Name: "Bullet", Kind: config.KindPrefab})
	require.NoError(t, err)
	require.NoError(t, reg.Warm(context.Background(), template, 1))
	require.Error(t, reg.Warm(context.Background(), template, 1))

	// Manifest entries build fresh templates, so same-named entries get their
	// own pools; duplicates are rejected by config validation instead.
	_, err = config.Parse(context.Background(), []byte("pools: [{name: Bullet}, {name: Bullet}]"))
	require.ErrorContains(t, err, "duplicate pool")
}

func TestStatusHandler(t *testing.T) {
	reg := registry.New()
	t.Cleanup(func() { _ = reg.Close() })
	templates, err := warmManifest(context.Background(), reg, []config.PoolEntry{{Name: "Crate", Size: 2, Kind: config.KindPrefab}})
	require.NoError(t, err)
	_, err = reg.Spawn(context.Background(), templates[0])
	require.NoError(t, err)

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(telemetry.NewCollector(metricsNamespace, reg))
	server := httptest.NewServer(newStatusHandler(reg, promRegistry))
	t.Cleanup(server.Close)

	resp, err := http.Get(server.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	var status []registry.PoolStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	require.Equal(t, []registry.PoolStatus{{Pool: "Crate", Template: "Crate", InUse: 1, Free: 1, Total: 2}}, status)

	health, err := http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	defer health.Body.Close()
	body, err := io.ReadAll(health.Body)
	require.NoError(t, err)
	require.Equal(t, "ok", string(body))

	metrics, err := http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	defer metrics.Body.Close()
	body, err = io.ReadAll(metrics.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `spawnpool_pool_objects_in_use{environment=`)
	require.Contains(t, string(body), `pool="Crate",template="Crate"} 1`)

	post, err := http.Post(server.URL+"/status", "application/json", nil)
	require.NoError(t, err)
	defer post.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, post.StatusCode)
}

func TestWorkloadCyclesClones(t *testing.T) {
	reg := registry.New()
	t.Cleanup(func() { _ = reg.Close() })
	templates, err := warmManifest(context.Background(), reg, []config.PoolEntry{
		{Name: "Bullet", Size: 2, Kind: config.KindPrefab},
		{Name: "Spark", Size: 1, Kind: config.KindAsset},
	})
	require.NoError(t, err)

	w := newWorkload(reg, templates, 3)
	require.NoError(t, w.step(context.Background()))
	require.Equal(t, 3, reg.Outstanding())
	first := append([]registry.Object(nil), w.live...)

	node, ok := first[0].(*scene.Node)
	require.True(t, ok)
	require.Equal(t, scene.Vector3{X: 0, Y: 0, Z: 1}, node.Transform().Position)

	require.NoError(t, w.step(context.Background()))
	require.Equal(t, 3, reg.Outstanding())
	for _, clone := range first {
		if !containsObject(w.live, clone) {
			require.False(t, reg.Tracked(clone))
		}
	}

	w.drain()
	require.Zero(t, reg.Outstanding())
	for _, st := range reg.Status() {
		require.Zero(t, st.InUse)
	}
}

func TestGracefulShutdownReportsOutstandingClones(t *testing.T) {
	reg := registry.New()
	registry.InitDefault(reg)
	t.Cleanup(func() { _ = registry.ShutdownDefault() })

	templates, err := warmManifest(context.Background(), reg, []config.PoolEntry{{Name: "Bullet", Size: 1, Kind: config.KindPrefab}})
	require.NoError(t, err)
	_, err = registry.SpawnObject(context.Background(), templates[0])
	require.NoError(t, err)

	var out bytes.Buffer
	server := &fakeServer{}
	cancelled := false
	err = performGracefulShutdown(context.Background(), log.New(&out, "", 0), gracefulShutdownConfig{
		server:        server,
		mainCancel:    func() { cancelled = true },
		closeRegistry: true,
	})
	require.Error(t, err)
	require.ErrorContains(t, err, "closing pool registry")
	require.True(t, server.called)
	require.True(t, cancelled)
	require.Contains(t, out.String(), "shutdown: stopping status server completed")
	require.Contains(t, out.String(), "shutdown: closing pool registry failed")
}

func TestGracefulShutdownCollectsServerError(t *testing.T) {
	var out bytes.Buffer
	serverErr := errors.New("listener stuck")
	err := performGracefulShutdown(context.Background(), log.New(&out, "", 0), gracefulShutdownConfig{
		server: &fakeServer{err: serverErr},
	})
	require.ErrorIs(t, err, serverErr)
}

func TestConfigCommandPrintsEffectiveConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.yaml")
	require.NoError(t, os.WriteFile(path, []byte("environment: staging\npools: [{name: Bullet, size: 4}]\n"), 0o600))

	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"config", "--config", path})
	require.NoError(t, cmd.Execute())

	printed := out.String()
	require.Contains(t, printed, "environment: staging")
	require.Contains(t, printed, "name: Bullet")
	require.True(t, strings.Contains(printed, "kind: prefab"))
}

func TestConfigCommandRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.yaml")
	require.NoError(t, os.WriteFile(path, []byte("environment: moon\n"), 0o600))

	cmd := newRootCommand()
	cmd.SetOut(io.Discard)
	cmd.SetArgs([]string{"config", "--config", path})
	err := cmd.Execute()
	require.ErrorContains(t, err, "invalid environment")
}

func TestResolveConfigPath(t *testing.T) {
	require.Equal(t, "custom.yaml", resolveConfigPath("custom.yaml"))
	require.Equal(t, filepath.Clean(defaultConfigPath), resolveConfigPath(""))
}

func TestWarmFailureLeavesNoPool(t *testing.T) {
	reg := registry.New(registry.WithPoolLimit(1))
	t.Cleanup(func() { _ = reg.Close() })
	_, err := warmManifest(context.Background(), reg, []config.PoolEntry{{Name: "Bullet", Size: 2, Kind: config.KindPrefab}})
	require.True(t, errs.HasCode(err, errs.CodePoolExhausted))
	require.Empty(t, reg.Status())
}

func TestBootstrapRegistryFailureShutsDownTelemetry(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := telemetry.NewProviderWithReader(telemetry.Config{Enabled: true, Environment: "dev"}, reader)

	cfg := config.Default()
	cfg.Registry.PoolLimit = 1
	cfg.Pools = []config.PoolEntry{{Name: "Bullet", Size: 2, Kind: config.KindPrefab}}

	_, _, err := bootstrapRegistry(context.Background(), provider, cfg, nil)
	require.True(t, errs.HasCode(err, errs.CodePoolExhausted))

	var rm metricdata.ResourceMetrics
	require.ErrorIs(t, reader.Collect(context.Background(), &rm), sdkmetric.ErrReaderShutdown)
	require.Panics(t, func() { registry.Default() })
}

func TestBootstrapRegistryInstallsDefault(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := telemetry.NewProviderWithReader(telemetry.Config{Enabled: true, Environment: "dev"}, reader)
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	t.Cleanup(func() { _ = registry.ShutdownDefault() })

	cfg := config.Default()
	cfg.Pools = []config.PoolEntry{{Name: "Bullet", Size: 2, Kind: config.KindPrefab}}

	reg, templates, err := bootstrapRegistry(context.Background(), provider, cfg, nil)
	require.NoError(t, err)
	require.Len(t, templates, 1)
	require.Same(t, reg, registry.Default())
}

type fakeServer struct {
	called bool
	err    error
}

func (s *fakeServer) Shutdown(context.Context) error {
	s.called = true
	return s.err
}

func containsObject(objects []registry.Object, target registry.Object) bool {
	for _, obj := range objects {
		if obj == target {
			return true
		}
	}
	return false
}
