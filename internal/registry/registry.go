// Package registry keeps one object pool per template and routes spawned
// clones back to the pool that produced them.
package registry

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/coachpo/spawnpool/errs"
	"github.com/coachpo/spawnpool/internal/observability"
	"github.com/coachpo/spawnpool/internal/pool"
	"github.com/coachpo/spawnpool/internal/scene"
)

const selfContainerName = "PoolRegistry"

// Object is a clone handed out by the registry.
type Object = scene.Object

// Template is the reference-identified source of clones.
type Template = scene.Template

type objectPool = pool.ObjectPool[Object]

// Registry maps templates to their pools and checked out clones to the pool
// they came from. A clone is tracked from Spawn until its Release.
type Registry struct {
	mu        sync.Mutex
	settings  settings
	self      *scene.Node
	prefabs   map[Template]*objectPool
	instances map[Object]*objectPool
	poolIDs   map[string]struct{}
	dirty     bool
	closed    bool
}

// New constructs an empty registry.
func New(opts ...Option) *Registry {
	cfg := defaultSettings()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &Registry{
		settings:  cfg,
		self:      scene.NewNode(selfContainerName),
		prefabs:   make(map[Template]*objectPool),
		instances: make(map[Object]*objectPool),
		poolIDs:   make(map[string]struct{}),
	}
}

// Root returns the container new clones are attached to.
func (r *Registry) Root() scene.Container {
	if r.settings.root != nil {
		return r.settings.root
	}
	return r.self
}

// SetLogStatus toggles status reporting on FlushDiagnostics.
func (r *Registry) SetLogStatus(enabled bool) {
	r.mu.Lock()
	r.settings.logStatus = enabled
	r.mu.Unlock()
}

// Warm creates a pool for template holding size pre-built clones. It fails
// with duplicate_pool when the template already has a pool.
func (r *Registry) Warm(ctx context.Context, template Template, size int) error {
	if err := validateRef("", "template", template); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkOpen(template.Name()); err != nil {
		return err
	}
	_, err := r.warmLocked(ctx, template, size)
	return err
}

// Spawn hands out a clone of template. Unknown templates get a one-clone pool
// unless auto-warm is disabled. Placeable clones are placed at the origin
// unless At is given; Activatable clones are activated.
func (r *Registry) Spawn(ctx context.Context, template Template, opts ...SpawnOption) (Object, error) {
	if err := validateRef("", "template", template); err != nil {
		return nil, err
	}
	var spawn spawnSettings
	for _, opt := range opts {
		if opt != nil {
			opt(&spawn)
		}
	}
	name := template.Name()

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkOpen(name); err != nil {
		return nil, err
	}

	p, existed := r.prefabs[template]
	if !existed {
		if !r.settings.autoWarm {
			return nil, errs.New(name, errs.CodePoolNotFound,
				errs.WithMessage("no pool for template"),
				errs.WithRemediation("warm the template before spawning"))
		}
		var err error
		p, err = r.warmLocked(ctx, template, 1)
		if err != nil {
			return nil, err
		}
	}

	clone, err := p.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("spawn %s: %w", name, err)
	}

	if placeable, ok := clone.(scene.Placeable); ok {
		position, rotation := scene.Vector3{}, scene.QuaternionIdentity
		if spawn.placed {
			position, rotation = spawn.position, spawn.rotation
		}
		placeable.Place(position, rotation)
	} else if spawn.placed {
		if putErr := p.Put(clone); putErr != nil {
			r.log().Error("return unplaceable clone", observability.F("pool", p.Name()), observability.F("error", putErr))
		}
		if !existed {
			r.dropPoolLocked(template, p)
		}
		return nil, errs.New(name, errs.CodeInvalid,
			errs.WithMessage(fmt.Sprintf("clone %T cannot be placed", clone)))
	}
	if activatable, ok := clone.(scene.Activatable); ok {
		activatable.SetActive(true)
	}

	r.instances[clone] = p
	r.dirty = true
	r.settings.observer.ObserveSpawn(p.Name())
	return clone, nil
}

// SpawnAt spawns a clone of template placed at position with rotation. The
// clone must be Placeable; otherwise it goes back to its pool, a pool created
// by this call is dropped again, and invalid_request is returned.
func (r *Registry) SpawnAt(ctx context.Context, template Template, position scene.Vector3, rotation scene.Quaternion) (Object, error) {
	return r.Spawn(ctx, template, At(position, rotation))
}

// Release hides clone and returns it to its pool. Clones the registry is not
// tracking are left untouched and only produce a warning. It reports whether
// the clone was returned.
func (r *Registry) Release(clone Object) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	var p *objectPool
	if validateRef("", "clone", clone) == nil {
		p = r.instances[clone]
	}
	if p == nil {
		name := objectName(clone)
		r.log().Warn("No pool contains the object: "+name,
			observability.F("object", name),
			observability.F("code", string(errs.CodeUntrackedRelease)))
		r.settings.observer.ObserveUntrackedRelease(name)
		return false
	}

	if activatable, ok := clone.(scene.Activatable); ok {
		activatable.SetActive(false)
	}
	if err := p.Put(clone); err != nil {
		r.log().Error("return clone to pool", observability.F("pool", p.Name()), observability.F("error", err))
	}
	delete(r.instances, clone)
	r.dirty = true
	r.settings.observer.ObserveRelease(p.Name())
	return true
}

// HasPool reports whether template has a pool.
func (r *Registry) HasPool(template Template) bool {
	if validateRef("", "template", template) != nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.prefabs[template]
	return ok
}

// Tracked reports whether clone is currently checked out.
func (r *Registry) Tracked(clone Object) bool {
	if validateRef("", "clone", clone) != nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.instances[clone]
	return ok
}

// Outstanding returns the number of checked out clones.
func (r *Registry) Outstanding() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.instances)
}

// PrintStatus logs one line per pool with its in-use and total counts.
func (r *Registry) PrintStatus() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.printStatusLocked()
}

// FlushDiagnostics prints the pool status if status logging is enabled and
// the registry changed since the last flush. It reports whether it printed.
func (r *Registry) FlushDiagnostics() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.settings.logStatus || !r.dirty {
		return false
	}
	r.printStatusLocked()
	r.dirty = false
	return true
}

// Close drops every pool. Clones are not destroyed. It returns an error when
// clones are still checked out; later calls are no-ops.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	outstanding := len(r.instances)
	if outstanding > 0 {
		r.logOutstanding(outstanding)
	}
	r.prefabs = make(map[Template]*objectPool)
	r.instances = make(map[Object]*objectPool)
	r.poolIDs = make(map[string]struct{})
	r.dirty = false
	if outstanding > 0 {
		return fmt.Errorf("registry close: %d clones still checked out", outstanding)
	}
	return nil
}

func (r *Registry) warmLocked(ctx context.Context, template Template, size int) (*objectPool, error) {
	name := template.Name()
	if _, exists := r.prefabs[template]; exists {
		return nil, errs.New(name, errs.CodeDuplicatePool,
			errs.WithMessage("Pool for prefab "+name+" has already been created"))
	}
	if size < 0 {
		return nil, errs.New(name, errs.CodeInvalid, errs.WithMessage(fmt.Sprintf("size must be >= 0, got %d", size)))
	}

	opts := []pool.Option{
		pool.WithLimit(r.settings.poolLimit),
		pool.WithConcurrency(r.settings.concurrency),
		pool.WithRetry(r.settings.retries, r.settings.retryInterval),
	}
	id := r.nextPoolIDLocked(name)
	p, err := pool.New(id, r.instantiator(template), opts...)
	if err != nil {
		return nil, err
	}
	if err := p.Warm(ctx, size); err != nil {
		return nil, err
	}
	r.prefabs[template] = p
	r.poolIDs[id] = struct{}{}
	r.dirty = true
	return p, nil
}

// nextPoolIDLocked returns name for the first pool of that name and name#2,
// name#3, ... for distinct templates sharing it.
func (r *Registry) nextPoolIDLocked(name string) string {
	if _, taken := r.poolIDs[name]; !taken {
		return name
	}
	for n := 2; ; n++ {
		id := fmt.Sprintf("%s#%d", name, n)
		if _, taken := r.poolIDs[id]; !taken {
			return id
		}
	}
}

func (r *Registry) dropPoolLocked(template Template, p *objectPool) {
	delete(r.prefabs, template)
	delete(r.poolIDs, p.Name())
}

// instantiator builds the pool factory for template. New clones are attached
// to the root and start hidden until spawned.
func (r *Registry) instantiator(template Template) pool.Factory[Object] {
	root := r.Root()
	name := template.Name()
	return func(ctx context.Context) (Object, error) {
		clone, err := template.Instantiate(ctx)
		if err != nil {
			return nil, err
		}
		if err := validateRef(name, "clone", clone); err != nil {
			return nil, err
		}
		if parentable, ok := clone.(scene.Parentable); ok {
			parentable.SetParent(root)
		}
		if activatable, ok := clone.(scene.Activatable); ok {
			activatable.SetActive(false)
		}
		return clone, nil
	}
}

func (r *Registry) printStatusLocked() {
	logger := r.log()
	for _, st := range r.statusLocked() {
		logger.Info(fmt.Sprintf("Object Pool for Prefab: %s In Use: %d Total %d", st.Pool, st.InUse, st.Total),
			observability.F("pool", st.Pool),
			observability.F("template", st.Template),
			observability.F("in_use", st.InUse),
			observability.F("total", st.Total))
	}
}

func (r *Registry) logOutstanding(outstanding int) {
	logger := r.log()
	logger.Warn("registry closed with clones in flight", observability.F("outstanding", outstanding))
	pools := make([]*objectPool, 0, len(r.prefabs))
	for _, p := range r.prefabs {
		pools = append(pools, p)
	}
	sort.Slice(pools, func(i, j int) bool { return pools[i].Name() < pools[j].Name() })
	for _, p := range pools {
		for _, stack := range p.ActiveStacks() {
			logger.Warn("leak candidate", observability.F("pool", p.Name()), observability.F("stack", stack))
		}
	}
}

func (r *Registry) checkOpen(name string) error {
	if r.closed {
		return errs.New(name, errs.CodeClosed, errs.WithMessage("registry closed"))
	}
	return nil
}

func (r *Registry) log() observability.Logger {
	if r.settings.logger != nil {
		return r.settings.logger
	}
	return observability.Log()
}

// validateRef fails fast on nil values and values that are not pointers,
// since both maps key on reference identity.
func validateRef(poolName, role string, v any) error {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return errs.New(poolName, errs.CodeInvalid, errs.WithMessage(role+" must not be nil"))
	}
	if rv.Kind() != reflect.Pointer {
		return errs.New(poolName, errs.CodeInvalid, errs.WithMessage(fmt.Sprintf("%s must be a pointer, got %T", role, v)))
	}
	if rv.IsNil() {
		return errs.New(poolName, errs.CodeInvalid, errs.WithMessage(role+" must not be nil"))
	}
	return nil
}

func objectName(obj Object) string {
	if validateRef("", "clone", obj) != nil {
		return fmt.Sprintf("%T", obj)
	}
	return obj.Name()
}
