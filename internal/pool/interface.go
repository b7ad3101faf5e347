package pool

import "context"

// Factory constructs a new pooled item.
type Factory[T comparable] func(ctx context.Context) (T, error)

// Resetter is implemented by pooled items that clear their state when returned.
type Resetter interface {
	Reset()
}
