package guard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig() Config {
	return Config{
		Name:            "test",
		MaxFailures:     2,
		OpenTimeout:     time.Minute,
		MaxRetries:      2,
		InitialInterval: time.Millisecond,
	}
}

func TestDoRetriesTransientFailure(t *testing.T) {
	g := New(testConfig(), zap.NewNop(), nil)

	calls := 0
	err := g.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 2 {
			return errors.New("flaky")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestDoDoesNotRetryPermanent(t *testing.T) {
	g := New(testConfig(), zap.NewNop(), nil)

	calls := 0
	err := g.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return Permanent(errors.New("bad request"))
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRetries = 0

	var opened bool
	g := New(cfg, zap.NewNop(), func(name string, open bool) { opened = open })

	for i := 0; i < 2; i++ {
		_ = g.Do(context.Background(), func(ctx context.Context) error { return errors.New("down") })
	}
	require.True(t, g.Open())
	assert.True(t, opened)

	calls := 0
	err := g.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Zero(t, calls)
}

func TestDoAppliesAttemptTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRetries = 0
	cfg.Timeout = 10 * time.Millisecond
	g := New(cfg, zap.NewNop(), nil)

	err := g.Do(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCancelledContextStopsRetries(t *testing.T) {
	g := New(testConfig(), zap.NewNop(), nil)
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := g.Do(ctx, func(ctx context.Context) error {
		calls++
		cancel()
		return context.Canceled
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.False(t, g.Open())
}
