package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("connection refused")

func fastPolicy(attempts int) Policy {
	return Policy{
		MaxAttempts:       attempts,
		BaseDelay:         10 * time.Millisecond,
		MaxDelay:          100 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func TestDefaultPolicy(t *testing.T) {
	policy := DefaultPolicy()

	if policy.MaxAttempts != 3 {
		t.Errorf("Expected MaxAttempts=3, got %d", policy.MaxAttempts)
	}
	if policy.BaseDelay != 500*time.Millisecond {
		t.Errorf("Expected BaseDelay=500ms, got %v", policy.BaseDelay)
	}
	if policy.MaxDelay != 5*time.Second {
		t.Errorf("Expected MaxDelay=5s, got %v", policy.MaxDelay)
	}
	if policy.JitterFraction != 0.25 {
		t.Errorf("Expected JitterFraction=0.25, got %f", policy.JitterFraction)
	}
	require.NoError(t, policy.Validate())
	require.NoError(t, NoRetryPolicy().Validate())
}

func TestPolicyBackoffDelay(t *testing.T) {
	policy := Policy{
		MaxAttempts:       5,
		BaseDelay:         1 * time.Second,
		MaxDelay:          10 * time.Second,
		BackoffMultiplier: 2.0,
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 1 * time.Second},
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 10 * time.Second}, // Capped at MaxDelay
	}

	for _, test := range tests {
		actual := policy.BackoffDelay(test.attempt)
		if actual != test.expected {
			t.Errorf("For attempt %d, expected delay %v, got %v", test.attempt, test.expected, actual)
		}
	}
}

func TestPolicyDelayJitterBounds(t *testing.T) {
	policy := Policy{
		MaxAttempts:       3,
		BaseDelay:         time.Second,
		MaxDelay:          time.Minute,
		BackoffMultiplier: 2.0,
		JitterFraction:    0.25,
	}

	for i := 0; i < 200; i++ {
		delay := policy.Delay(2)
		assert.GreaterOrEqual(t, delay, 1500*time.Millisecond)
		assert.LessOrEqual(t, delay, 2500*time.Millisecond)
	}
}

func TestPolicyValidate(t *testing.T) {
	valid := DefaultPolicy()

	tests := []struct {
		name    string
		mutate  func(p *Policy)
		wantErr bool
	}{
		{"valid policy", func(p *Policy) {}, false},
		{"zero attempts", func(p *Policy) { p.MaxAttempts = 0 }, true},
		{"zero base delay", func(p *Policy) { p.BaseDelay = 0 }, true},
		{"zero max delay", func(p *Policy) { p.MaxDelay = 0 }, true},
		{"multiplier below one", func(p *Policy) { p.BackoffMultiplier = 0.5 }, true},
		{"jitter too large", func(p *Policy) { p.JitterFraction = 1 }, true},
		{"base greater than max", func(p *Policy) { p.BaseDelay = time.Minute }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)
			err := p.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Policy.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDo_SuccessOnFirstAttempt(t *testing.T) {
	r := New(fastPolicy(3))

	result := Do(context.Background(), r, func(ctx context.Context, attempt int) (string, error) {
		return "ok", nil
	})

	require.NoError(t, result.Err)
	assert.Equal(t, "ok", result.Value)
	assert.Equal(t, 1, result.Attempts)
}

func TestDo_SucceedsOnThirdAttemptAfterTwoWaits(t *testing.T) {
	var waits []time.Duration
	r := New(fastPolicy(3), WithHook(func(attempt int, delay time.Duration, err error) {
		waits = append(waits, delay)
	}))

	start := time.Now()
	result := Do(context.Background(), r, func(ctx context.Context, attempt int) (string, error) {
		if attempt < 3 {
			return "", context.DeadlineExceeded
		}
		return "third", nil
	})
	elapsed := time.Since(start)

	require.NoError(t, result.Err)
	assert.Equal(t, "third", result.Value)
	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, waits)
	assert.GreaterOrEqual(t, elapsed, 30*time.Millisecond)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	r := New(fastPolicy(3))

	calls := 0
	result := Do(context.Background(), r, func(ctx context.Context, attempt int) (int, error) {
		calls++
		return 0, errTransient
	})

	assert.ErrorIs(t, result.Err, errTransient)
	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, 3, calls)
}

func TestDo_NonRetryableErrorStopsImmediately(t *testing.T) {
	permanent := errors.New("invalid argument")
	r := New(fastPolicy(5), WithClassifier(func(err error) bool {
		return errors.Is(err, errTransient)
	}))

	calls := 0
	result := Do(context.Background(), r, func(ctx context.Context, attempt int) (int, error) {
		calls++
		return 0, permanent
	})

	assert.ErrorIs(t, result.Err, permanent)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCanceledDuringBackoff(t *testing.T) {
	policy := fastPolicy(5)
	policy.BaseDelay = time.Second
	policy.MaxDelay = time.Second
	r := New(policy)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	result := Do(ctx, r, func(ctx context.Context, attempt int) (int, error) {
		return 0, errTransient
	})

	assert.ErrorIs(t, result.Err, errTransient)
	assert.Equal(t, 1, result.Attempts)
}
