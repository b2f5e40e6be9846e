// Package hub holds the live connection registries: key (room id or booking
// id) -> set of open connections.
package hub

import (
	"sync"

	"github.com/samber/lo"
)

// Conn is one open socket as seen by the registry and the services fanning
// out to it. Payloads are pre-serialized so a broadcast encodes once.
type Conn interface {
	ID() string
	Send(payload []byte) error
	Close(code int, reason string) error
	Open() bool
}

// Registry is safe for concurrent use. The top-level map is a sync.Map and
// every key owns its own lock, so traffic in one room never waits on another.
type Registry struct {
	keys sync.Map // string -> *bucket
}

type bucket struct {
	mu    sync.Mutex
	conns map[Conn]struct{}
	dead  bool // unlinked from keys; writers must retry with a fresh bucket
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) Register(key string, c Conn) {
	for {
		v, ok := r.keys.Load(key)
		if !ok {
			v, _ = r.keys.LoadOrStore(key, &bucket{conns: make(map[Conn]struct{})})
		}
		b := v.(*bucket)

		b.mu.Lock()
		if b.dead {
			b.mu.Unlock()
			continue
		}
		b.conns[c] = struct{}{}
		b.mu.Unlock()
		return
	}
}

// Remove reports whether c was registered under key. Removing the last
// connection drops the key.
func (r *Registry) Remove(key string, c Conn) bool {
	v, ok := r.keys.Load(key)
	if !ok {
		return false
	}
	b := v.(*bucket)

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.conns[c]; !ok {
		return false
	}
	delete(b.conns, c)
	if len(b.conns) == 0 {
		b.dead = true
		r.keys.CompareAndDelete(key, b)
	}
	return true
}

// Snapshot returns a point-in-time copy; callers may iterate it while other
// goroutines register or remove.
func (r *Registry) Snapshot(key string) []Conn {
	v, ok := r.keys.Load(key)
	if !ok {
		return nil
	}
	b := v.(*bucket)

	b.mu.Lock()
	defer b.mu.Unlock()
	return lo.Keys(b.conns)
}

func (r *Registry) Count(key string) int {
	v, ok := r.keys.Load(key)
	if !ok {
		return 0
	}
	b := v.(*bucket)

	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.conns)
}

func (r *Registry) Keys() []string {
	var out []string
	r.keys.Range(func(k, _ any) bool {
		out = append(out, k.(string))
		return true
	})
	return out
}

// Total is the number of connections across all keys.
func (r *Registry) Total() int {
	return lo.SumBy(r.Keys(), r.Count)
}

// CloseAll closes and unregisters every connection. Close errors are
// ignored; the socket is dropped either way.
func (r *Registry) CloseAll(code int, reason string) int {
	closed := 0
	for _, key := range r.Keys() {
		for _, c := range r.Snapshot(key) {
			_ = c.Close(code, reason)
			if r.Remove(key, c) {
				closed++
			}
		}
	}
	return closed
}
