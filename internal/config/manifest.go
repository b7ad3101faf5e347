package config

import (
	"fmt"
)

// PoolEntry declares a pool to warm at startup. Empty fields take their
// values from the poolDefaults section.
type PoolEntry struct {
	Name       string         `yaml:"name,omitempty"`
	Size       int            `yaml:"size,omitempty"`
	Kind       PoolKind       `yaml:"kind,omitempty"`
	Components map[string]any `yaml:"components,omitempty"`
}

func (e PoolEntry) validate(limit int) error {
	if e.Size < 0 {
		return fmt.Errorf("pool %s: size must be >=0", e.Name)
	}
	if limit > 0 && e.Size > limit {
		return fmt.Errorf("pool %s: size %d exceeds poolLimit %d", e.Name, e.Size, limit)
	}
	switch e.Kind {
	case KindPrefab, KindAsset:
	default:
		return fmt.Errorf("pool %s: unknown kind %q", e.Name, e.Kind)
	}
	return nil
}
