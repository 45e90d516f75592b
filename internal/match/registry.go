package match

import (
	"sync"

	"absorbchess/internal/clock"
)

// Registry owns every live Match, keyed by lobby code. It is the thing
// internal/clock.Scanner polls and internal/session looks up incoming
// messages against.
type Registry struct {
	mu      sync.Mutex
	matches map[string]*Match
}

func NewRegistry() *Registry {
	return &Registry{matches: make(map[string]*Match)}
}

func (r *Registry) Put(m *Match) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.matches[m.Code] = m
}

func (r *Registry) Get(code string) (*Match, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[code]
	return m, ok
}

func (r *Registry) Remove(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.matches, code)
}

// RunningMatches returns a snapshot map keyed by code, satisfying
// clock.Registry.
func (r *Registry) RunningMatches() map[string]clock.Match {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]clock.Match, len(r.matches))
	for code, m := range r.matches {
		if m.IsRunning() {
			out[code] = m
		}
	}
	return out
}
