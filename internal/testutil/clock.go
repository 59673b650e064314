package testutil

import (
	"fmt"
	"sync"
	"time"
)

// StubClock reports a settable time. When Step is non-zero every call to
// Now moves the clock forward by Step after reading it, so consecutive
// timestamps of a run differ.
type StubClock struct {
	mu   sync.Mutex
	now  time.Time
	Step time.Duration
}

func NewStubClock(t time.Time) *StubClock {
	return &StubClock{now: t}
}

// FixedClock is a StubClock at 2024-06-01 09:00:00 UTC that never moves on
// its own.
func FixedClock() *StubClock {
	return NewStubClock(time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC))
}

func (c *StubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.Step)
	return t
}

func (c *StubClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func (c *StubClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// StubIDGenerator hands out "<prefix>-1", "<prefix>-2", ... The prefix
// defaults to "id".
type StubIDGenerator struct {
	mu     sync.Mutex
	prefix string
	issued []string
}

func NewStubIDGenerator() *StubIDGenerator {
	return &StubIDGenerator{prefix: "id"}
}

// NewPrefixedIDGenerator is a StubIDGenerator with a custom prefix, for
// tests that need to tell run ids from store ids.
func NewPrefixedIDGenerator(prefix string) *StubIDGenerator {
	return &StubIDGenerator{prefix: prefix}
}

func (g *StubIDGenerator) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := fmt.Sprintf("%s-%d", g.prefix, len(g.issued)+1)
	g.issued = append(g.issued, id)
	return id
}

// Issued returns every id handed out so far.
func (g *StubIDGenerator) Issued() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.issued...)
}
