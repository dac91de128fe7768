// Package ratelimit caps how many paid API calls a single run may make.
package ratelimit

import (
	"fmt"
	"sync"
)

// ErrBudgetExceeded is returned once a named budget is spent.
type ErrBudgetExceeded struct {
	Name  string
	Limit int
}

func (e *ErrBudgetExceeded) Error() string {
	return fmt.Sprintf("%s budget exceeded (limit %d)", e.Name, e.Limit)
}

// Budget counts calls against per-name limits. A limit of zero means
// unlimited.
type Budget struct {
	mu     sync.Mutex
	limits map[string]int
	used   map[string]int
}

func NewBudget(limits map[string]int) *Budget {
	return &Budget{
		limits: limits,
		used:   make(map[string]int),
	}
}

// Take consumes one call from a named budget.
func (b *Budget) Take(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	limit := b.limits[name]
	if limit > 0 && b.used[name] >= limit {
		return &ErrBudgetExceeded{Name: name, Limit: limit}
	}
	b.used[name]++
	return nil
}

// Used reports how many calls a budget has consumed.
func (b *Budget) Used(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.used[name]
}

// Reset clears all counters, typically at the start of a run.
func (b *Budget) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.used = make(map[string]int)
}
