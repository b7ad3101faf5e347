package scene

import "context"

// Object is anything a pool can hand out. Implementations must be pointers so
// that identity is by reference.
type Object interface {
	Name() string
}

// Template produces clones of itself. Templates are keyed by reference.
type Template interface {
	Name() string
	Instantiate(ctx context.Context) (Object, error)
}

// Activatable objects can be shown and hidden.
type Activatable interface {
	SetActive(active bool)
	Active() bool
}

// Placeable objects can be positioned in world space.
type Placeable interface {
	Place(position Vector3, rotation Quaternion)
}

// Parentable objects can be attached under a container.
type Parentable interface {
	SetParent(parent Container)
}
