// Package scene models the objects a pool registry hands out: spatial nodes
// built from prefabs and plain data assets.
package scene

import (
	"sync"

	"github.com/google/uuid"
)

// Container is anything nodes can be attached to.
type Container interface {
	Name() string
	Attach(child *Node)
	Detach(child *Node)
}

// Node is a spatial scene object. It can be shown or hidden, moved, and
// attached under a container.
type Node struct {
	id         uuid.UUID
	name       string
	mu         sync.RWMutex
	transform  Transform
	active     bool
	parent     Container
	children   []*Node
	components map[string]any
}

// NewNode builds an active node at the origin.
func NewNode(name string) *Node {
	return &Node{
		id:         uuid.New(),
		name:       name,
		transform:  IdentityTransform(),
		active:     true,
		components: make(map[string]any),
	}
}

// ID returns the node's instance id.
func (n *Node) ID() uuid.UUID { return n.id }

// Name returns the node name.
func (n *Node) Name() string { return n.name }

// SetActive shows or hides the node.
func (n *Node) SetActive(active bool) {
	n.mu.Lock()
	n.active = active
	n.mu.Unlock()
}

// Active reports whether the node is visible.
func (n *Node) Active() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.active
}

// Place moves the node.
func (n *Node) Place(position Vector3, rotation Quaternion) {
	n.mu.Lock()
	n.transform = Transform{Position: position, Rotation: rotation}
	n.mu.Unlock()
}

// Transform returns the node's current transform.
func (n *Node) Transform() Transform {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.transform
}

// SetParent moves the node under parent, detaching it from its previous one.
func (n *Node) SetParent(parent Container) {
	n.mu.Lock()
	previous := n.parent
	n.parent = parent
	n.mu.Unlock()

	if previous != nil {
		previous.Detach(n)
	}
	if parent != nil {
		parent.Attach(n)
	}
}

// Parent returns the container the node is attached to.
func (n *Node) Parent() Container {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.parent
}

// Attach adds child to the node's children.
func (n *Node) Attach(child *Node) {
	if child == nil || child == n {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, c := range n.children {
		if c == child {
			return
		}
	}
	n.children = append(n.children, child)
}

// Detach removes child from the node's children.
func (n *Node) Detach(child *Node) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, c := range n.children {
		if c == child {
			n.children = append(n.children[:i], n.children[i+1:]...)
			return
		}
	}
}

// Children returns a copy of the attached children.
func (n *Node) Children() []*Node {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return append([]*Node(nil), n.children...)
}

// SetComponent stores a named component value on the node.
func (n *Node) SetComponent(key string, value any) {
	n.mu.Lock()
	n.components[key] = value
	n.mu.Unlock()
}

// Component returns a named component value.
func (n *Node) Component(key string) (any, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	v, ok := n.components[key]
	return v, ok
}
