package views

import "sync"

// Gate tracks in-flight form submissions so a visitor cannot have two
// network calls pending for the same form
type Gate struct {
	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewGate creates an empty gate
func NewGate() *Gate {
	return &Gate{inflight: make(map[string]struct{})}
}

// Acquire marks key as in flight. It returns false if key is already held.
// The returned release func must be called exactly once when ok is true.
func (g *Gate) Acquire(key string) (release func(), ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.inflight[key]; busy {
		return nil, false
	}
	g.inflight[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.inflight, key)
			g.mu.Unlock()
		})
	}, true
}

// Pending returns the number of submissions currently in flight
func (g *Gate) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.inflight)
}
