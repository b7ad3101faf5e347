package registry

import (
	"context"
	"sync/atomic"

	"github.com/coachpo/spawnpool/internal/scene"
)

var defaultInstance atomic.Pointer[Registry]

// InitDefault installs r as the process-wide registry used by the forwarding
// functions below. It replaces any previous instance.
func InitDefault(r *Registry) {
	defaultInstance.Store(r)
}

// Default returns the process-wide registry.
func Default() *Registry {
	instance := defaultInstance.Load()
	if instance == nil {
		panic("registry: default instance not initialized")
	}
	return instance
}

// ShutdownDefault closes and uninstalls the process-wide registry.
func ShutdownDefault() error {
	instance := defaultInstance.Swap(nil)
	if instance == nil {
		return nil
	}
	return instance.Close()
}

// WarmPool forwards to Default().Warm.
func WarmPool(ctx context.Context, template Template, size int) error {
	return Default().Warm(ctx, template, size)
}

// SpawnObject forwards to Default().Spawn.
func SpawnObject(ctx context.Context, template Template) (Object, error) {
	return Default().Spawn(ctx, template)
}

// SpawnObjectAt forwards to Default().SpawnAt.
func SpawnObjectAt(ctx context.Context, template Template, position scene.Vector3, rotation scene.Quaternion) (Object, error) {
	return Default().SpawnAt(ctx, template, position, rotation)
}

// ReleaseObject forwards to Default().Release.
func ReleaseObject(clone Object) bool {
	return Default().Release(clone)
}
