package main

import (
	"context"
	"time"

	"github.com/coachpo/spawnpool/internal/observability"
	"github.com/coachpo/spawnpool/internal/registry"
	"github.com/coachpo/spawnpool/internal/scene"
)

// workload cycles clones through the registry: each step releases what the
// previous step spawned and spawns a fresh burst, round-robin over templates.
type workload struct {
	reg       *registry.Registry
	templates []registry.Template
	burst     int
	next      int
	steps     int
	live      []registry.Object
}

func newWorkload(reg *registry.Registry, templates []registry.Template, burst int) *workload {
	if burst <= 0 {
		burst = 1
	}
	return &workload{reg: reg, templates: templates, burst: burst}
}

func (w *workload) run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer w.drain()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.step(ctx); err != nil {
				observability.Log().Warn("workload step", observability.F("error", err))
			}
		}
	}
}

func (w *workload) step(ctx context.Context) error {
	w.drain()
	w.steps++
	for i := 0; i < w.burst; i++ {
		template := w.templates[w.next%len(w.templates)]
		w.next++
		position := scene.Vector3{X: float64(i), Y: 0, Z: float64(w.steps)}
		clone, err := w.reg.Spawn(ctx, template, w.placement(template, position)...)
		if err != nil {
			return err
		}
		w.live = append(w.live, clone)
	}
	return nil
}

// placement only positions prefab clones; assets have no transform.
func (w *workload) placement(template registry.Template, position scene.Vector3) []registry.SpawnOption {
	if _, ok := template.(*scene.Prefab); !ok {
		return nil
	}
	return []registry.SpawnOption{registry.At(position, scene.QuaternionIdentity)}
}

func (w *workload) drain() {
	for _, clone := range w.live {
		w.reg.Release(clone)
	}
	w.live = w.live[:0]
}
