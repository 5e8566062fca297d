package retry

import (
	"errors"
	"fmt"
	"testing"
	"time"

	vterr "vtrelay/internal/errors"
)

// clock is a manual time source for the breaker.
type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(maxFailures int, transitions *[]string) (*CircuitBreaker, *clock) {
	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	cb := NewCircuitBreaker(&CircuitBreakerConfig{
		MaxFailures:  maxFailures,
		ResetTimeout: 15 * time.Second,
		OnStateChange: func(from, to State) {
			if transitions != nil {
				*transitions = append(*transitions, fmt.Sprintf("%s>%s", from, to))
			}
		},
	})
	cb.now = clk.now
	return cb, clk
}

func failN(cb *CircuitBreaker, n int) {
	for i := 0; i < n; i++ {
		cb.Execute(func() error { return fmt.Errorf("connection refused") }) //nolint:errcheck
	}
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb, _ := newTestBreaker(3, nil)

	failN(cb, 2)
	if cb.state != StateClosed {
		t.Fatalf("state after 2 failures = %s, want closed", cb.state)
	}
	failN(cb, 1)
	if cb.state != StateOpen {
		t.Fatalf("state after 3 failures = %s, want open", cb.state)
	}
}

func TestCircuitBreaker_RejectsWhenOpen(t *testing.T) {
	cb, _ := newTestBreaker(1, nil)
	failN(cb, 1)

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	if !errors.Is(err, vterr.ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
	if called {
		t.Error("fn ran while the circuit was open")
	}
}

func TestCircuitBreaker_TrialAfterCooldown(t *testing.T) {
	var transitions []string
	cb, clk := newTestBreaker(1, &transitions)
	failN(cb, 1)

	clk.advance(14 * time.Second)
	if err := cb.Allow(); err == nil {
		t.Fatal("allowed before the cooldown elapsed")
	}

	clk.advance(2 * time.Second)
	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatalf("trial: %v", err)
	}
	if cb.state != StateClosed {
		t.Errorf("state after successful trial = %s, want closed", cb.state)
	}

	want := []string{"closed>open", "open>half-open", "half-open>closed"}
	if fmt.Sprint(transitions) != fmt.Sprint(want) {
		t.Errorf("transitions = %v, want %v", transitions, want)
	}
}

func TestCircuitBreaker_FailedTrialReopens(t *testing.T) {
	cb, clk := newTestBreaker(3, nil)
	failN(cb, 3)

	clk.advance(16 * time.Second)
	failN(cb, 1)
	if cb.state != StateOpen {
		t.Fatalf("state after failed trial = %s, want open", cb.state)
	}
	if err := cb.Allow(); !errors.Is(err, vterr.ErrCircuitOpen) {
		t.Errorf("Allow after failed trial = %v, want ErrCircuitOpen", err)
	}
}

// After the gateway recovers, one later failure must not reopen the
// circuit: the threshold applies again from zero.
func TestCircuitBreaker_RecoveryRestoresThreshold(t *testing.T) {
	cb, clk := newTestBreaker(3, nil)
	failN(cb, 3)
	clk.advance(16 * time.Second)

	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatalf("trial: %v", err)
	}
	for i := 0; i < 5; i++ {
		cb.Success()
	}

	failN(cb, 1)
	if cb.state != StateClosed {
		t.Fatalf("state after one failure post-recovery = %s, want closed", cb.state)
	}
	if err := cb.Allow(); err != nil {
		t.Errorf("Allow = %v, want nil", err)
	}
	failN(cb, 2)
	if cb.state != StateOpen {
		t.Errorf("state after 3 fresh failures = %s, want open", cb.state)
	}
}

func TestCircuitBreaker_SuccessClearsFailures(t *testing.T) {
	cb, _ := newTestBreaker(3, nil)

	failN(cb, 2)
	cb.Success()
	failN(cb, 2)
	if cb.state != StateClosed {
		t.Errorf("state = %s, want closed (count restarts after success)", cb.state)
	}
}

func TestCircuitBreaker_StateChangeOutsideLock(t *testing.T) {
	var cb *CircuitBreaker
	var seen []State
	cb = NewCircuitBreaker(&CircuitBreakerConfig{
		MaxFailures: 1,
		OnStateChange: func(_, to State) {
			// Would deadlock if the callback ran under mu.
			cb.mu.Lock()
			seen = append(seen, cb.state)
			cb.mu.Unlock()
		},
	})
	failN(cb, 1)
	if len(seen) != 1 || seen[0] != StateOpen {
		t.Errorf("seen = %v, want [open]", seen)
	}
}

func TestCircuitBreaker_Defaults(t *testing.T) {
	tests := []struct {
		name string
		cfg  *CircuitBreakerConfig
	}{
		{"nil", nil},
		{"zero", &CircuitBreakerConfig{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb := NewCircuitBreaker(tt.cfg)
			if cb.maxFailures != 3 || cb.resetTimeout != 15*time.Second {
				t.Errorf("maxFailures=%d resetTimeout=%v", cb.maxFailures, cb.resetTimeout)
			}
		})
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half-open"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
