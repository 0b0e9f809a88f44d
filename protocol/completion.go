package protocol

import (
	"sort"
	"sync"
)

// Completion records which workers have acknowledged.  Membership is
// keyed by worker identity, never a bare counter: each worker can
// contribute at most one membership event, so duplicate or stray
// messages on the ack channel are never miscounted as progress.
type Completion struct {
	mu       sync.Mutex
	expected map[string]bool
	acked    map[string]bool
}

// NewCompletion for the given expected worker identities.
func NewCompletion(workers []string) *Completion {
	expected := make(map[string]bool, len(workers))
	for _, w := range workers {
		expected[w] = true
	}
	return &Completion{
		expected: expected,
		acked:    make(map[string]bool, len(workers)),
	}
}

// Add a worker's ack.  Returns true only on the first ack from a
// known worker; duplicates and unknown senders return false and leave
// the set unchanged.
func (c *Completion) Add(worker string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.expected[worker] || c.acked[worker] {
		return false
	}
	c.acked[worker] = true
	return true
}

// Has reports whether the worker already acked.
func (c *Completion) Has(worker string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.acked[worker]
}

// Size of the completion set.  Grows monotonically.
func (c *Completion) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.acked)
}

// Done when every expected worker has acked.
func (c *Completion) Done() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.acked) == len(c.expected)
}

// Members that have acked, sorted for stable reporting.
func (c *Completion) Members() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.acked))
	for w := range c.acked {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

// Laggards that never acked, sorted.
func (c *Completion) Laggards() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.expected)-len(c.acked))
	for w := range c.expected {
		if !c.acked[w] {
			out = append(out, w)
		}
	}
	sort.Strings(out)
	return out
}
