package scene

import (
	"context"
	"fmt"

	"github.com/mitchellh/copystructure"
)

const cloneSuffix = "(Clone)"

// Prefab is a node template. Instantiate deep-copies its components onto a
// fresh node named after the prefab.
type Prefab struct {
	name       string
	transform  Transform
	components map[string]any
}

// NewPrefab creates a prefab with the given components.
func NewPrefab(name string, components map[string]any) *Prefab {
	copied := make(map[string]any, len(components))
	for k, v := range components {
		copied[k] = v
	}
	return &Prefab{
		name:       name,
		transform:  IdentityTransform(),
		components: copied,
	}
}

// Name returns the prefab name.
func (p *Prefab) Name() string { return p.name }

// Instantiate builds a new node from the prefab.
func (p *Prefab) Instantiate(ctx context.Context) (Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	node := NewNode(p.name + cloneSuffix)
	node.Place(p.transform.Position, p.transform.Rotation)
	for key, value := range p.components {
		copied, err := copystructure.Copy(value)
		if err != nil {
			return nil, fmt.Errorf("prefab %s: copy component %s: %w", p.name, key, err)
		}
		node.SetComponent(key, copied)
	}
	return node, nil
}
