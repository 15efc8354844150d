package batch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicyDecide(t *testing.T) {
	p := Policy{InitialBackoff: 2 * time.Second, MaxBackoff: 10 * time.Second, Multiplier: 2}

	tests := []struct {
		name       string
		attempt    int
		maxRetries int
		want       Decision
	}{
		{"first failure", 1, 3, Decision{Retry: true, Delay: 2 * time.Second}},
		{"second failure", 2, 3, Decision{Retry: true, Delay: 4 * time.Second}},
		{"third failure", 3, 3, Decision{Retry: true, Delay: 8 * time.Second}},
		{"exhausted", 4, 3, Decision{}},
		{"no retries allowed", 1, 0, Decision{}},
		{"below cap", 3, 10, Decision{Retry: true, Delay: 8 * time.Second}},
		{"capped at max", 4, 10, Decision{Retry: true, Delay: 10 * time.Second}},
		{"invalid attempt", 0, 3, Decision{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Decide(tt.attempt, tt.maxRetries))
		})
	}
}

func TestPolicyDecideHugeAttempt(t *testing.T) {
	p := Policy{InitialBackoff: time.Second, Multiplier: 2}
	d := p.Decide(500, 1000)
	assert.True(t, d.Retry)
	assert.Positive(t, d.Delay)
}

func TestPolicyFixedBackoff(t *testing.T) {
	p := Policy{InitialBackoff: time.Second}
	assert.Equal(t, time.Second, p.Decide(1, 5).Delay)
	assert.Equal(t, time.Second, p.Decide(5, 5).Delay)
}

func TestSleepCtxCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := sleepCtx(ctx, time.Hour)
	require.ErrorIs(t, err, context.Canceled)
}
