package ratelimit

import (
	"errors"
	"testing"
)

func TestBudgetEnforcesLimit(t *testing.T) {
	b := NewBudget(map[string]int{"gemini": 2})

	if err := b.Take("gemini"); err != nil {
		t.Fatal(err)
	}
	if err := b.Take("gemini"); err != nil {
		t.Fatal(err)
	}

	err := b.Take("gemini")
	if err == nil {
		t.Fatal("third call should exceed the budget")
	}
	var exceeded *ErrBudgetExceeded
	if !errors.As(err, &exceeded) {
		t.Fatalf("err = %T, want *ErrBudgetExceeded", err)
	}
	if exceeded.Name != "gemini" || exceeded.Limit != 2 {
		t.Errorf("exceeded = %+v", exceeded)
	}
}

func TestBudgetZeroMeansUnlimited(t *testing.T) {
	b := NewBudget(map[string]int{})

	for i := 0; i < 100; i++ {
		if err := b.Take("search"); err != nil {
			t.Fatalf("unlimited budget rejected call %d: %v", i, err)
		}
	}
	if got := b.Used("search"); got != 100 {
		t.Errorf("Used = %d, want 100", got)
	}
}

func TestBudgetReset(t *testing.T) {
	b := NewBudget(map[string]int{"gemini": 1})

	if err := b.Take("gemini"); err != nil {
		t.Fatal(err)
	}
	if err := b.Take("gemini"); err == nil {
		t.Fatal("expected budget exhaustion")
	}

	b.Reset()
	if err := b.Take("gemini"); err != nil {
		t.Errorf("Take after Reset failed: %v", err)
	}
}
