package board

import (
	"sync"
	"time"

	"github.com/starford/cardboard/internal/models"
)

// DefaultTransition is the duration of the card enter and exit animations.
const DefaultTransition = 500 * time.Millisecond

// Phase is the animation state of a rendered card.
type Phase string

// Phases.
const (
	PhaseEnter Phase = "enter"
	PhaseIdle  Phase = "idle"
	PhaseExit  Phase = "exit"
)

// Transition is the handle kept for one card while it animates.
type Transition struct {
	Card    models.Card
	Phase   Phase
	Started time.Time
	// PrevID is the id of the live card that preceded an exiting card, or ""
	// when it was first. Only set for PhaseExit.
	PrevID string
}

// Refs tracks transition handles keyed by card id. Positions shift on
// deletion, so nothing here is indexed by slice offset.
type Refs struct {
	mu      sync.Mutex
	timeout time.Duration
	now     func() time.Time
	entries map[string]*Transition
}

// NewRefs creates an empty registry whose handles settle after timeout.
func NewRefs(timeout time.Duration) *Refs {
	if timeout <= 0 {
		timeout = DefaultTransition
	}
	return &Refs{
		timeout: timeout,
		now:     time.Now,
		entries: make(map[string]*Transition),
	}
}

// Timeout returns the transition duration.
func (r *Refs) Timeout() time.Duration {
	return r.timeout
}

// Enter starts the enter animation for card.
func (r *Refs) Enter(card models.Card) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[card.ID] = &Transition{Card: card, Phase: PhaseEnter, Started: r.now()}
}

// Exit starts the exit animation for a card that left the live sequence.
func (r *Refs) Exit(card models.Card, prevID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[card.ID] = &Transition{Card: card, Phase: PhaseExit, Started: r.now(), PrevID: prevID}
}

// Get returns a copy of the handle for id.
func (r *Refs) Get(id string) (Transition, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.entries[id]
	if !ok {
		return Transition{}, false
	}
	return *t, true
}

// Phase returns the current phase for id; unknown ids are idle.
func (r *Refs) Phase(id string) Phase {
	if t, ok := r.Get(id); ok {
		return t.Phase
	}
	return PhaseIdle
}

// Exiting returns copies of all exit handles.
func (r *Refs) Exiting() []Transition {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Transition
	for _, t := range r.entries {
		if t.Phase == PhaseExit {
			out = append(out, *t)
		}
	}
	return out
}

// Reset drops every handle.
func (r *Refs) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.entries)
}

// Sweep finishes transitions older than the timeout. Enter handles are
// released (the card is idle), exit handles are removed together with the
// card copy they held. It reports whether anything changed.
func (r *Refs) Sweep() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	changed := false
	for id, t := range r.entries {
		if now.Sub(t.Started) >= r.timeout {
			delete(r.entries, id)
			changed = true
		}
	}
	return changed
}

// NextDeadline returns when the oldest tracked transition finishes.
func (r *Refs) NextDeadline() (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var next time.Time
	for _, t := range r.entries {
		if end := t.Started.Add(r.timeout); next.IsZero() || end.Before(next) {
			next = end
		}
	}
	return next, !next.IsZero()
}
