// Package idgen generates sortable, collision-free identifiers for
// aggregates whose callers do not supply one.
package idgen

import (
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Generator allocates identifiers. Implementations must be safe for
// concurrent use; ids are stable once returned, so callers may retry a
// command with the same id.
type Generator interface {
	Next() (string, error)
}

// Sortable generates monotonic ULIDs: ids are lexicographically ordered
// by allocation time, which keeps index pages append-friendly.
type Sortable struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewSortable creates a monotonic ULID generator.
func NewSortable() *Sortable {
	source := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &Sortable{entropy: ulid.Monotonic(source, 0)}
}

// Next returns the next identifier.
func (g *Sortable) Next() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id, err := ulid.New(ulid.Timestamp(time.Now()), g.entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// MustGenerateSortableID returns a single sortable id or panics. Intended
// for wiring and tests, not the command path.
func MustGenerateSortableID() string {
	id, err := NewSortable().Next()
	if err != nil {
		panic(err)
	}
	return id
}
