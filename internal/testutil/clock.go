package testutil

import (
	"fmt"
	"sync"
	"time"
)

// StubClock is a manually driven tt.Clock. Safe for concurrent use.
// With a non-zero step every Now call moves the clock forward, so records
// created in sequence get strictly increasing timestamps.
type StubClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

// NewStubClock creates a StubClock set to the given time.
func NewStubClock(t time.Time) *StubClock {
	return &StubClock{now: t}
}

// NewTickingClock creates a StubClock starting at t that advances by step
// after every reading.
func NewTickingClock(t time.Time, step time.Duration) *StubClock {
	return &StubClock{now: t, step: step}
}

// FixedClock returns a StubClock set to 2024-01-15 10:30:00 UTC.
func FixedClock() *StubClock {
	return NewStubClock(time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC))
}

func (c *StubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now
	c.now = c.now.Add(c.step)
	return now
}

// Advance moves the clock forward by d.
func (c *StubClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// StubIDGenerator returns sequential IDs: "id-1", "id-2", etc.
type StubIDGenerator struct {
	mu      sync.Mutex
	counter int
}

func NewStubIDGenerator() *StubIDGenerator {
	return &StubIDGenerator{}
}

func (g *StubIDGenerator) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counter++
	return fmt.Sprintf("id-%d", g.counter)
}
