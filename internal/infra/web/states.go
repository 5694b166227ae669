package web

import (
	"context"
	"sync"
	"time"

	"maizey-chat/internal/usecase"
)

// StateRegistry holds the chat state of every browser, created on first use.
// Idle states are dropped by Sweep; their persisted history is unaffected.
type StateRegistry struct {
	mu     sync.Mutex
	states map[string]*stateEntry
	idle   time.Duration
	now    func() time.Time
}

type stateEntry struct {
	st   *usecase.SessionState
	seen time.Time
}

func NewStateRegistry(idle time.Duration) *StateRegistry {
	if idle <= 0 {
		idle = 24 * time.Hour
	}
	return &StateRegistry{states: map[string]*stateEntry{}, idle: idle, now: time.Now}
}

func (r *StateRegistry) Get(browserID string) *usecase.SessionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.states[browserID]
	if !ok {
		e = &stateEntry{st: usecase.NewSessionState()}
		r.states[browserID] = e
	}
	e.seen = r.now()
	return e.st
}

func (r *StateRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}

// Sweep drops states idle longer than the configured window.
func (r *StateRegistry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.now().Add(-r.idle)
	n := 0
	for id, e := range r.states {
		if e.seen.Before(cutoff) {
			delete(r.states, id)
			n++
		}
	}
	return n
}

// Run sweeps every interval until ctx is done.
func (r *StateRegistry) Run(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = time.Hour
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.Sweep()
		}
	}
}
