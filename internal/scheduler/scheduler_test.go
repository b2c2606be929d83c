package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/restock-forecast/internal/domain"
	"github.com/andresuchdata/restock-forecast/internal/pipeline"
)

type recordingTrigger struct {
	mu   sync.Mutex
	opts []pipeline.Options
	err  error
}

func (r *recordingTrigger) TriggerRun(ctx context.Context, opts pipeline.Options) (*domain.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opts = append(r.opts, opts)
	if r.err != nil {
		return nil, r.err
	}
	return &domain.Run{ID: "r", Status: domain.RunSkipped}, nil
}

func (r *recordingTrigger) calls() []pipeline.Options {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]pipeline.Options(nil), r.opts...)
}

func TestInvalidCronIsRejected(t *testing.T) {
	_, err := New(&recordingTrigger{}, Config{Cron: "every noon"})
	assert.Error(t, err)
}

func TestDefaultCadenceIsTwiceDaily(t *testing.T) {
	s, err := New(&recordingTrigger{}, Config{Cron: "0 0,12 * * *"})
	require.NoError(t, err)

	next := s.Next()
	require.False(t, next.IsZero())
	assert.Zero(t, next.Minute())
	assert.Contains(t, []int{0, 12}, next.Hour())
}

func TestPollerUsesTheGate(t *testing.T) {
	trigger := &recordingTrigger{}
	s, err := New(trigger, Config{PollInterval: 5 * time.Millisecond})
	require.NoError(t, err)
	assert.True(t, s.Next().IsZero())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(trigger.calls()) >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	for _, opts := range trigger.calls() {
		assert.False(t, opts.Force)
		assert.Equal(t, "poll", opts.Trigger)
	}
}

func TestRunInProgressIsTolerated(t *testing.T) {
	trigger := &recordingTrigger{err: pipeline.ErrRunInProgress}
	s, err := New(trigger, Config{})
	require.NoError(t, err)

	s.fire(context.Background(), pipeline.Options{Trigger: "schedule"})
	assert.Len(t, trigger.calls(), 1)
}

func TestStartReturnsOnCancel(t *testing.T) {
	s, err := New(&recordingTrigger{}, Config{Cron: "0 0,12 * * *"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}
