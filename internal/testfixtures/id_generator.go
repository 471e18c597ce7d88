package testfixtures

import (
	"fmt"
	"sync"
)

// IDGenerator hands out sequential prefix-N identifiers, replacing the
// UUID generator so test assertions can name exact IDs.
type IDGenerator struct {
	mu      sync.Mutex
	prefix  string
	counter uint64
}

// NewIDGenerator returns a generator yielding prefix-1, prefix-2, and so
// on. An empty prefix defaults to "id".
func NewIDGenerator(prefix string) *IDGenerator {
	if prefix == "" {
		prefix = "id"
	}
	return &IDGenerator{prefix: prefix}
}

// Next returns the next identifier in the sequence.
func (g *IDGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counter++
	return fmt.Sprintf("%s-%d", g.prefix, g.counter)
}

// NextFunc adapts the generator to the `func() string` shape the ledger
// and services take as a dependency.
func (g *IDGenerator) NextFunc() func() string {
	if g == nil {
		return func() string { return "" }
	}
	return g.Next
}

// SetPrefix changes the prefix for subsequently issued identifiers.
func (g *IDGenerator) SetPrefix(prefix string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prefix = prefix
}

// SetCounter rewinds or forwards the sequence.
func (g *IDGenerator) SetCounter(counter uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counter = counter
}
