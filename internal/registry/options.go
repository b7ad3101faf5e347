package registry

import (
	"time"

	"github.com/coachpo/spawnpool/internal/observability"
	"github.com/coachpo/spawnpool/internal/scene"
)

// Observer receives registry activity, typically to feed metrics. Spawns and
// releases are reported with the unique pool id.
type Observer interface {
	ObserveSpawn(pool string)
	ObserveRelease(pool string)
	ObserveUntrackedRelease(object string)
}

type noopObserver struct{}

func (noopObserver) ObserveSpawn(string)            {}
func (noopObserver) ObserveRelease(string)          {}
func (noopObserver) ObserveUntrackedRelease(string) {}

// Option configures a Registry.
type Option func(*settings)

type settings struct {
	logStatus     bool
	autoWarm      bool
	root          scene.Container
	logger        observability.Logger
	observer      Observer
	poolLimit     int
	concurrency   int
	retries       uint
	retryInterval time.Duration
}

func defaultSettings() settings {
	return settings{
		logStatus:   false,
		autoWarm:    true,
		root:        nil,
		logger:      nil,
		observer:    noopObserver{},
		poolLimit:   0,
		concurrency: 1,
		retries:     1,
	}
}

// WithLogStatus enables pool status reports on FlushDiagnostics.
func WithLogStatus(enabled bool) Option {
	return func(s *settings) { s.logStatus = enabled }
}

// WithAutoWarm controls whether Spawn creates a one-item pool for unknown
// templates. When disabled Spawn fails with pool_not_found.
func WithAutoWarm(enabled bool) Option {
	return func(s *settings) { s.autoWarm = enabled }
}

// WithRoot sets the container new clones are attached to. Without it clones
// are attached to the registry's own container.
func WithRoot(root scene.Container) Option {
	return func(s *settings) { s.root = root }
}

// WithLogger overrides the logger. The global logger is used otherwise.
func WithLogger(logger observability.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// WithObserver registers an activity observer.
func WithObserver(observer Observer) Option {
	return func(s *settings) {
		if observer != nil {
			s.observer = observer
		}
	}
}

// WithPoolLimit caps every pool at limit clones. Zero means pools always grow.
func WithPoolLimit(limit int) Option {
	return func(s *settings) {
		if limit >= 0 {
			s.poolLimit = limit
		}
	}
}

// WithWarmConcurrency lets Warm build up to workers clones at once. Templates
// must then be safe for concurrent Instantiate calls.
func WithWarmConcurrency(workers int) Option {
	return func(s *settings) {
		if workers > 0 {
			s.concurrency = workers
		}
	}
}

// WithInstantiateRetries retries failing Instantiate calls, tries including
// the first attempt.
func WithInstantiateRetries(tries uint, initial time.Duration) Option {
	return func(s *settings) {
		if tries > 0 {
			s.retries = tries
		}
		s.retryInterval = initial
	}
}

// SpawnOption adjusts a single Spawn call.
type SpawnOption func(*spawnSettings)

type spawnSettings struct {
	placed   bool
	position scene.Vector3
	rotation scene.Quaternion
}

// At places the clone at position with rotation. The clone must be Placeable.
func At(position scene.Vector3, rotation scene.Quaternion) SpawnOption {
	return func(s *spawnSettings) {
		s.placed = true
		s.position = position
		s.rotation = rotation
	}
}
