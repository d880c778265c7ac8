// ABOUTME: Tests for backoff, jittered ranges and context-aware sleep
// ABOUTME: Validates bounds, jitter and prompt cancellation
package util

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCalculateBackoff_NonPositiveAttempt(t *testing.T) {
	for _, attempt := range []int{0, -1, -100} {
		if got := CalculateBackoff(time.Second, attempt); got != 0 {
			t.Errorf("CalculateBackoff(1s, %d) = %v, want 0", attempt, got)
		}
	}
}

func TestCalculateBackoff_ExponentialGrowth(t *testing.T) {
	baseDelay := 100 * time.Millisecond

	for attempt := 1; attempt <= 5; attempt++ {
		expectedBase := baseDelay * time.Duration(1<<uint(attempt))
		minExpected := expectedBase * 3 / 4
		maxExpected := expectedBase * 5 / 4

		result := CalculateBackoff(baseDelay, attempt)
		if result < minExpected || result > maxExpected {
			t.Errorf("attempt %d: expected backoff between %v and %v, got %v",
				attempt, minExpected, maxExpected, result)
		}
	}
}

func TestCalculateBackoff_Capped(t *testing.T) {
	maxAllowed := 37500 * time.Millisecond

	for _, attempt := range []int{10, 100} {
		result := CalculateBackoff(time.Second, attempt)
		if result > maxAllowed || result < 0 {
			t.Errorf("attempt %d: backoff %v outside [0, %v]", attempt, result, maxAllowed)
		}
	}
}

func TestBetween(t *testing.T) {
	lo, hi := 30*time.Second, 90*time.Second
	for i := 0; i < 200; i++ {
		got := Between(lo, hi)
		if got < lo || got > hi {
			t.Fatalf("Between(%v, %v) = %v, out of range", lo, hi, got)
		}
	}

	if got := Between(5*time.Second, 5*time.Second); got != 5*time.Second {
		t.Errorf("Between(5s, 5s) = %v, want 5s", got)
	}
	if got := Between(10*time.Second, time.Second); got != 10*time.Second {
		t.Errorf("inverted range = %v, want lower bound", got)
	}
}

func TestSleep_Elapses(t *testing.T) {
	if err := Sleep(context.Background(), time.Millisecond); err != nil {
		t.Errorf("Sleep() error = %v, want nil", err)
	}
}

func TestSleep_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := Sleep(ctx, time.Hour)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Sleep() error = %v, want context.Canceled", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Sleep took %v after cancel", elapsed)
	}
}
