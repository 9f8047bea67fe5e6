// Package ledger records per-path conflict resolutions for one reconciliation.
package ledger

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/samber/lo"
)

var (
	// ErrInvalidPath is returned when a decision targets a path outside the
	// declared conflict set.
	ErrInvalidPath = errors.New("invalid path")
	ErrEmptyHash   = errors.New("empty resolution hash")
)

// Ledger maps conflicted paths to their resolved content hash.
// It is safe for concurrent use.
type Ledger struct {
	mu        sync.Mutex
	domain    map[string]struct{}
	decisions map[string]string
}

func New(conflicts []string) *Ledger {
	domain := make(map[string]struct{}, len(conflicts))
	for _, p := range conflicts {
		domain[p] = struct{}{}
	}
	return &Ledger{
		domain:    domain,
		decisions: make(map[string]string, len(conflicts)),
	}
}

// Record inserts or overwrites the resolution for path. A rejected call
// leaves the ledger unchanged.
func (l *Ledger) Record(path, hash string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.domain[path]; !ok {
		return fmt.Errorf("%w: %q is not a declared conflict", ErrInvalidPath, path)
	}
	if hash == "" {
		return fmt.Errorf("%w for %q", ErrEmptyHash, path)
	}

	l.decisions[path] = hash
	return nil
}

func (l *Ledger) Resolution(path string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	hash, ok := l.decisions[path]
	return hash, ok
}

// IsComplete reports whether every path in conflicts has a recorded resolution.
func (l *Ledger) IsComplete(conflicts []string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, p := range conflicts {
		if _, ok := l.decisions[p]; !ok {
			return false
		}
	}
	return true
}

// NextUnresolved returns the first unresolved path after `after` in order,
// wrapping around to the start. An empty or unknown `after` starts from the
// beginning. It returns false once every path is resolved.
func (l *Ledger) NextUnresolved(order []string, after string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	start := 0
	if idx := lo.IndexOf(order, after); idx >= 0 {
		start = idx + 1
	}

	for i := 0; i < len(order); i++ {
		p := order[(start+i)%len(order)]
		if _, ok := l.decisions[p]; !ok {
			return p, true
		}
	}
	return "", false
}

// Unresolved returns the paths of order that have no resolution yet.
func (l *Ledger) Unresolved(order []string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	return lo.Filter(order, func(p string, _ int) bool {
		_, ok := l.decisions[p]
		return !ok
	})
}

func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.decisions)
}

// Snapshot returns a copy of the recorded decisions.
func (l *Ledger) Snapshot() map[string]string {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[string]string, len(l.decisions))
	for p, h := range l.decisions {
		out[p] = h
	}
	return out
}

// Retain builds the ledger for a new conflict set, carrying over decisions
// whose paths still conflict. The dropped paths are returned sorted.
func (l *Ledger) Retain(conflicts []string) (*Ledger, []string) {
	next := New(conflicts)

	l.mu.Lock()
	defer l.mu.Unlock()

	var dropped []string
	for p, h := range l.decisions {
		if _, ok := next.domain[p]; ok {
			next.decisions[p] = h
		} else {
			dropped = append(dropped, p)
		}
	}
	sort.Strings(dropped)
	return next, dropped
}
