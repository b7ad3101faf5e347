//go:build debug

package pool

import (
	"runtime/debug"
	"sync"
)

type debugState struct {
	name   string
	mu     sync.Mutex
	stacks map[any]string
}

func newDebugState(name string) *debugState {
	return &debugState{
		name:   name,
		stacks: make(map[any]string),
	}
}

func (d *debugState) recordAcquire(item any) {
	if d == nil || item == nil {
		return
	}
	stack := string(debug.Stack())
	d.mu.Lock()
	d.stacks[item] = stack
	d.mu.Unlock()
}

func (d *debugState) recordRelease(item any) {
	if d == nil || item == nil {
		return
	}
	d.mu.Lock()
	delete(d.stacks, item)
	d.mu.Unlock()
}

func (d *debugState) activeStacks() []string {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.stacks) == 0 {
		return nil
	}
	out := make([]string, 0, len(d.stacks))
	for _, stack := range d.stacks {
		out = append(out, stack)
	}
	return out
}
