// Package suspend keeps the host awake while file transfers are running.
//
// Every transfer acquires its own Token and releases it exactly once. The Registry
// holds a single OS-level inhibition for as long as at least one token is active.
package suspend

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	mapset "github.com/deckarep/golang-set/v2"
)

var (
	ErrUnknownToken = errors.New("suspend: unknown or already released token")
)

// Token is an opaque handle for one suspend-prevention request.
type Token uint64

// Blocker hands out suspend-prevention tokens.
type Blocker interface {
	Acquire(reason string) (Token, error)
	Release(token Token) error
}

// Inhibitor is the OS side of suspend prevention. Inhibit is only called when no
// inhibition is held and Uninhibit only when one is.
type Inhibitor interface {
	Inhibit(reason string) error
	Uninhibit() error
}

// Registry is a Blocker that reference-counts tokens over one Inhibitor.
type Registry struct {
	mu         sync.Mutex
	next       atomic.Uint64
	active     mapset.Set[Token]
	inhibitor  Inhibitor
	inhibiting bool
	warnOnce   sync.Once
}

func NewRegistry(inhibitor Inhibitor) *Registry {
	return &Registry{
		active:    mapset.NewThreadUnsafeSet[Token](),
		inhibitor: inhibitor,
	}
}

// NewSystemRegistry returns a Registry backed by the platform's inhibitor.
func NewSystemRegistry() *Registry {
	return NewRegistry(newSystemInhibitor())
}

// Acquire never fails because of the OS backend. If the host refuses to inhibit
// suspension the token is still issued and a warning is logged once.
func (r *Registry) Acquire(reason string) (Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	token := Token(r.next.Add(1))
	r.active.Add(token)

	if !r.inhibiting && r.inhibitor != nil {
		if err := r.inhibitor.Inhibit(reason); err != nil {
			r.warnOnce.Do(func() {
				slog.Warn("suspend prevention unavailable", "error", err)
			})
		} else {
			r.inhibiting = true
		}
	}

	return token, nil
}

func (r *Registry) Release(token Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.active.Contains(token) {
		return ErrUnknownToken
	}
	r.active.Remove(token)

	if r.active.Cardinality() == 0 && r.inhibiting {
		r.inhibiting = false
		if err := r.inhibitor.Uninhibit(); err != nil {
			slog.Warn("suspend prevention release failed", "error", err)
		}
	}

	return nil
}

// Active returns the number of tokens not yet released.
func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active.Cardinality()
}

// Inhibiting reports whether the OS inhibition is currently held.
func (r *Registry) Inhibiting() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inhibiting
}

var _ Blocker = (*Registry)(nil)

// Nop issues tokens without touching the host.
type Nop struct {
	next atomic.Uint64
}

func (n *Nop) Acquire(string) (Token, error) { return Token(n.next.Add(1)), nil }
func (n *Nop) Release(Token) error           { return nil }

var _ Blocker = (*Nop)(nil)
