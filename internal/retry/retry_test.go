package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

// recordingSleep captures requested delays without waiting.
func recordingSleep(delays *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
}

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	var calls int
	p := Policy{MaxAttempts: 3, BaseDelay: time.Second, Multiplier: 2}
	p.Sleep = func(context.Context, time.Duration) error {
		t.Fatal("sleep should not be called on first-attempt success")
		return nil
	}

	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Do() = %v, want nil", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestDo_ExponentialBackoffDoubles(t *testing.T) {
	var delays []time.Duration
	var calls int
	p := Policy{MaxAttempts: 4, BaseDelay: 2 * time.Second, Multiplier: 2, Sleep: recordingSleep(&delays)}

	boom := errors.New("rate limited")
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return boom
	})

	if !errors.Is(err, ErrAttemptsExhausted) {
		t.Fatalf("Do() = %v, want ErrAttemptsExhausted", err)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("Do() = %v, want wrapped cause", err)
	}
	if calls != 4 {
		t.Fatalf("calls = %d, want 4", calls)
	}

	want := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}
	if len(delays) != len(want) {
		t.Fatalf("delays = %v, want %v", delays, want)
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Errorf("delay[%d] = %v, want %v", i, delays[i], want[i])
		}
	}
}

func TestDo_NonRetryableAbortsImmediately(t *testing.T) {
	var calls int
	fatal := errors.New("invalid request")
	p := Policy{
		MaxAttempts: 3,
		Retryable:   func(err error) bool { return !errors.Is(err, fatal) },
	}

	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return fatal
	})
	if !errors.Is(err, fatal) {
		t.Fatalf("Do() = %v, want fatal error", err)
	}
	if errors.Is(err, ErrAttemptsExhausted) {
		t.Fatal("non-retryable error must not be reported as exhaustion")
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestDo_SucceedsAfterRetries(t *testing.T) {
	var delays []time.Duration
	var calls int
	p := Policy{MaxAttempts: 3, BaseDelay: time.Second, Multiplier: 2, Sleep: recordingSleep(&delays)}

	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do() = %v, want nil", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
	if len(delays) != 2 {
		t.Fatalf("slept %d times, want 2", len(delays))
	}
}

func TestDo_ContextCancelledBetweenAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	p := Policy{MaxAttempts: 5, BaseDelay: time.Millisecond}

	err := p.Do(ctx, func(context.Context) error {
		calls++
		cancel()
		return errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Do() = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestDo_RejectsZeroAttempts(t *testing.T) {
	p := Policy{}
	err := p.Do(context.Background(), func(context.Context) error { return nil })
	if err == nil {
		t.Fatal("expected error for zero MaxAttempts")
	}
}
