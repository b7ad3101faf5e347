// Package pool contains the generic object pool backing the pool registry.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	concpool "github.com/sourcegraph/conc/pool"

	"github.com/coachpo/spawnpool/errs"
)

const (
	defaultRetryInterval = 50 * time.Millisecond
	maxRetryInterval     = 2 * time.Second
)

// ObjectPool owns every item its factory produced. Items are handed out LIFO
// from the free list and the pool grows on demand when the free list is empty,
// unless a limit has been configured.
type ObjectPool[T comparable] struct {
	name    string
	factory Factory[T]

	limit         int
	concurrency   int
	tries         uint
	retryInterval time.Duration

	mu       sync.Mutex
	free     []T
	items    map[T]bool // item -> checked out
	building int
	debug    *debugState
}

// Option configures an ObjectPool.
type Option func(*options)

type options struct {
	limit         int
	concurrency   int
	tries         uint
	retryInterval time.Duration
}

// WithLimit caps the number of items the pool may own. Zero means unbounded.
func WithLimit(limit int) Option {
	return func(o *options) {
		if limit >= 0 {
			o.limit = limit
		}
	}
}

// WithConcurrency sets how many factory calls Warm may run at once.
func WithConcurrency(workers int) Option {
	return func(o *options) {
		if workers > 0 {
			o.concurrency = workers
		}
	}
}

// WithRetry retries failing factory calls with exponential backoff starting at
// initial. tries counts the first attempt.
func WithRetry(tries uint, initial time.Duration) Option {
	return func(o *options) {
		if tries > 0 {
			o.tries = tries
		}
		if initial > 0 {
			o.retryInterval = initial
		}
	}
}

// New constructs an empty pool. The factory must not be nil.
func New[T comparable](name string, factory Factory[T], opts ...Option) (*ObjectPool[T], error) {
	if factory == nil {
		return nil, errs.New(name, errs.CodeInvalid, errs.WithMessage("factory required"))
	}
	cfg := options{
		limit:         0,
		concurrency:   1,
		tries:         1,
		retryInterval: defaultRetryInterval,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &ObjectPool[T]{
		name:          name,
		factory:       factory,
		limit:         cfg.limit,
		concurrency:   cfg.concurrency,
		tries:         cfg.tries,
		retryInterval: cfg.retryInterval,
		items:         make(map[T]bool),
		debug:         newDebugState(name),
	}, nil
}

// Name returns the pool name.
func (p *ObjectPool[T]) Name() string { return p.name }

// Limit returns the configured item cap, zero when unbounded.
func (p *ObjectPool[T]) Limit() int { return p.limit }

// Warm builds n free items up front.
func (p *ObjectPool[T]) Warm(ctx context.Context, n int) error {
	if n < 0 {
		return errs.New(p.name, errs.CodeInvalid, errs.WithMessage(fmt.Sprintf("warm size must be >= 0, got %d", n)))
	}
	if n == 0 {
		return nil
	}
	if err := p.reserve(n); err != nil {
		return err
	}

	workers := concpool.New().
		WithContext(ctx).
		WithMaxGoroutines(p.concurrency).
		WithCancelOnError()
	for i := 0; i < n; i++ {
		workers.Go(func(ctx context.Context) error {
			item, err := p.construct(ctx)
			p.mu.Lock()
			p.building--
			if err == nil {
				p.items[item] = false
				p.free = append(p.free, item)
			}
			p.mu.Unlock()
			return err
		})
	}
	if err := workers.Wait(); err != nil {
		return fmt.Errorf("warm %s: %w", p.name, err)
	}
	return nil
}

// Get hands out a free item, constructing a new one when none is free.
func (p *ObjectPool[T]) Get(ctx context.Context) (T, error) {
	p.mu.Lock()
	if n := len(p.free); n > 0 {
		item := p.free[n-1]
		var zero T
		p.free[n-1] = zero
		p.free = p.free[:n-1]
		p.items[item] = true
		p.mu.Unlock()
		p.debug.recordAcquire(item)
		return item, nil
	}
	p.mu.Unlock()

	if err := p.reserve(1); err != nil {
		var zero T
		return zero, err
	}
	item, err := p.construct(ctx)
	p.mu.Lock()
	p.building--
	if err == nil {
		p.items[item] = true
	}
	p.mu.Unlock()
	if err != nil {
		var zero T
		return zero, err
	}
	p.debug.recordAcquire(item)
	return item, nil
}

// Put returns an item to the free list. Items this pool did not create and
// items that are already free are rejected.
func (p *ObjectPool[T]) Put(item T) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	inUse, known := p.items[item]
	if err := ensureReturnable(p.name, inUse, known, item); err != nil {
		return err
	}
	resetItem(item)
	p.items[item] = false
	p.free = append(p.free, item)
	p.debug.recordRelease(item)
	return nil
}

// Contains reports whether the item was created by this pool.
func (p *ObjectPool[T]) Contains(item T) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.items[item]
	return ok
}

// Len returns the number of items the pool owns.
func (p *ObjectPool[T]) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.items)
}

// InUse returns the number of checked out items.
func (p *ObjectPool[T]) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.items) - len(p.free)
}

// Free returns the number of items ready to be handed out.
func (p *ObjectPool[T]) Free() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}

// ActiveStacks returns acquisition stacks of checked out items. It is only
// populated in builds tagged debug.
func (p *ObjectPool[T]) ActiveStacks() []string {
	return p.debug.activeStacks()
}

func (p *ObjectPool[T]) reserve(n int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.limit > 0 && len(p.items)+p.building+n > p.limit {
		return errs.New(p.name, errs.CodePoolExhausted,
			errs.WithMessage(fmt.Sprintf("limit %d reached (%d owned)", p.limit, len(p.items))))
	}
	p.building += n
	return nil
}

func (p *ObjectPool[T]) construct(ctx context.Context) (T, error) {
	op := func() (T, error) {
		item, err := p.factory(ctx)
		if err != nil {
			if errs.HasCode(err, errs.CodeInvalid) {
				return item, backoff.Permanent(err)
			}
			return item, err
		}
		var zero T
		if item == zero {
			return item, backoff.Permanent(errs.New(p.name, errs.CodeInvalid,
				errs.WithMessage("factory returned nil object")))
		}
		return item, nil
	}

	var (
		item T
		err  error
	)
	if p.tries <= 1 {
		item, err = op()
	} else {
		policy := backoff.NewExponentialBackOff()
		policy.InitialInterval = p.retryInterval
		policy.MaxInterval = maxRetryInterval
		item, err = backoff.Retry(ctx, op,
			backoff.WithBackOff(policy),
			backoff.WithMaxTries(p.tries),
		)
	}
	if err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Unwrap()
		}
		if errs.HasCode(err, errs.CodeInvalid) {
			return item, err
		}
		return item, errs.New(p.name, errs.CodeInstantiate, errs.WithCause(err))
	}
	return item, nil
}
