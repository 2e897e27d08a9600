package testutil

import (
	"fmt"
	"sync"
)

// FixedSessionGenerator returns the same session ID every time.
//
// Golden traces and journals embed the session ID, so a fixed ID makes
// repeated runs byte-identical. If id is empty, Generate returns
// "test-session-default".
type FixedSessionGenerator struct {
	id string
}

// NewFixedSessionGenerator creates a generator for id.
func NewFixedSessionGenerator(id string) *FixedSessionGenerator {
	if id == "" {
		id = "test-session-default"
	}
	return &FixedSessionGenerator{id: id}
}

// Generate returns the fixed ID.
func (g *FixedSessionGenerator) Generate() (string, error) {
	return g.id, nil
}

// SequentialSessionGenerator returns prefix-1, prefix-2, ...
type SequentialSessionGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialSessionGenerator creates a generator numbering from 1.
func NewSequentialSessionGenerator(prefix string) *SequentialSessionGenerator {
	return &SequentialSessionGenerator{prefix: prefix}
}

// Generate returns the next ID.
func (g *SequentialSessionGenerator) Generate() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n), nil
}
