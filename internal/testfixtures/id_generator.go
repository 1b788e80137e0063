package testfixtures

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/google/uuid"
)

// fixtureNamespace seeds deterministic UUIDs handed out by IDGenerator.UUID.
var fixtureNamespace = uuid.MustParse("6f1c2b9e-3a57-4f0e-9d8b-2c4e5a7b9d10")

// IDGenerator produces deterministic identifiers for tests.
type IDGenerator struct {
	mu      sync.Mutex
	prefix  string
	counter uint64
}

// NewIDGenerator constructs a generator that yields identifiers with the given
// prefix. When prefix is empty, "id" is used.
func NewIDGenerator(prefix string) *IDGenerator {
	if prefix == "" {
		prefix = "id"
	}
	return &IDGenerator{prefix: prefix}
}

// Next returns the next identifier in the sequence, e.g. "id-1".
func (g *IDGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counter++
	return fmt.Sprintf("%s-%d", g.prefix, g.counter)
}

// UUID returns the next identifier as a name-based UUID, matching the shape
// of production paper IDs while staying reproducible.
func (g *IDGenerator) UUID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counter++
	return uuid.NewSHA1(fixtureNamespace, []byte(g.prefix+"-"+strconv.FormatUint(g.counter, 10))).String()
}

// NextFunc exposes Next as a function suitable for dependency injection.
func (g *IDGenerator) NextFunc() func() string {
	if g == nil {
		return func() string { return "" }
	}
	return g.Next
}

// UUIDFunc exposes UUID as a function suitable for dependency injection.
func (g *IDGenerator) UUIDFunc() func() string {
	if g == nil {
		return uuid.NewString
	}
	return g.UUID
}

// SetPrefix updates the generator prefix.
func (g *IDGenerator) SetPrefix(prefix string) {
	g.mu.Lock()
	g.prefix = prefix
	g.mu.Unlock()
}

// SetCounter overrides the internal counter, enabling deterministic resets.
func (g *IDGenerator) SetCounter(counter uint64) {
	g.mu.Lock()
	g.counter = counter
	g.mu.Unlock()
}
