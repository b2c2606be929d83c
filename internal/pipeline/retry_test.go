package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryStopsAfterAttempts(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 3, time.Millisecond, "op", func() error {
		calls++
		return errors.New("boom")
	})

	assert.EqualError(t, err, "boom")
	assert.Equal(t, 3, calls)
}

func TestRetrySucceedsEventually(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 5, time.Millisecond, "op", func() error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryPermanentIsNotRetried(t *testing.T) {
	sentinel := errors.New("missing")
	calls := 0
	err := Retry(context.Background(), 5, time.Millisecond, "op", func() error {
		calls++
		return Permanent(sentinel)
	})

	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, calls)
}

func TestRetryHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Retry(ctx, 10, 50*time.Millisecond, "op", func() error {
		calls++
		cancel()
		return errors.New("boom")
	})

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestLocalLocker(t *testing.T) {
	l := NewLocalLocker()

	unlock, err := l.TryLock(context.Background())
	assert.NoError(t, err)

	_, err = l.TryLock(context.Background())
	assert.ErrorIs(t, err, ErrRunInProgress)

	unlock()
	unlock2, err := l.TryLock(context.Background())
	assert.NoError(t, err)
	unlock2()
}
