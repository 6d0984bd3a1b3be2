package wgpudev

import (
	"fmt"
	"sync"

	"github.com/gekko3d/wgrender/gpu"
)

type pendingMap struct {
	label string
	done  func([]byte, error)
}

// mapTracker holds the MapRead callbacks still waiting on the queue. Each
// one completes exactly once, either from its MapAsync callback or, after
// device loss, from failAll.
type mapTracker struct {
	mu      sync.Mutex
	pending map[*pendingMap]struct{}
}

func (t *mapTracker) add(label string, done func([]byte, error)) *pendingMap {
	p := &pendingMap{label: label, done: done}
	t.mu.Lock()
	if t.pending == nil {
		t.pending = map[*pendingMap]struct{}{}
	}
	t.pending[p] = struct{}{}
	t.mu.Unlock()
	return p
}

// take removes p and reports whether it was still pending.
func (t *mapTracker) take(p *pendingMap) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.pending[p]; !ok {
		return false
	}
	delete(t.pending, p)
	return true
}

func (t *mapTracker) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// failAll completes every pending map with gpu.ErrDeviceLost.
func (t *mapTracker) failAll() {
	t.mu.Lock()
	pending := t.pending
	t.pending = nil
	t.mu.Unlock()
	for p := range pending {
		p.done(nil, fmt.Errorf("wgpudev: map %q: %w", p.label, gpu.ErrDeviceLost))
	}
}
