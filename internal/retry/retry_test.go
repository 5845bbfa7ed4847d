package retry

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fastPolicy keeps test runs quick.
func fastPolicy(attempts int) Policy {
	return Policy{
		Attempts:  attempts,
		BaseDelay: time.Millisecond,
		MaxDelay:  2 * time.Millisecond,
	}
}

func TestDoSucceedsFirstTry(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), fastPolicy(3), "op", func(ctx context.Context) (int, error) {
		calls++
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, got)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesTransient(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), fastPolicy(3), "op", func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", eris.New("rate limit exceeded")
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnPermanentError(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastPolicy(5), "op", func(ctx context.Context) (int, error) {
		calls++
		return 0, eris.New("invalid request")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls, "permanent errors are not retried")
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastPolicy(3), "op", func(ctx context.Context) (int, error) {
		calls++
		return 0, eris.New("503 service unavailable")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "503")
}

func TestDoHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := Do(ctx, fastPolicy(5), "op", func(ctx context.Context) (int, error) {
		calls++
		return 0, eris.New("rate limit")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{eris.New("overloaded_error: try again"), true},
		{eris.New("429 too many requests"), true},
		{eris.New("connection reset by peer"), true},
		{eris.New("invalid api key"), false},
		{eris.New("model not found"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsTransient(tt.err), "%v", tt.err)
	}
}

func TestBackoffGrowsAndCaps(t *testing.T) {
	p := Policy{BaseDelay: 10 * time.Millisecond, MaxDelay: 35 * time.Millisecond}.withDefaults()
	p.Jitter = 0

	assert.Equal(t, 10*time.Millisecond, p.backoff(0))
	assert.Equal(t, 20*time.Millisecond, p.backoff(1))
	assert.Equal(t, 35*time.Millisecond, p.backoff(2), "capped at MaxDelay")
}
