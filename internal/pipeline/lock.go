package pipeline

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Locker guards single-flight execution. TryLock never blocks: it returns
// ErrRunInProgress when the lock is held elsewhere.
type Locker interface {
	TryLock(ctx context.Context) (unlock func(), err error)
}

// LocalLocker is an in-process lock for single-instance deployments.
type LocalLocker struct {
	sem *semaphore.Weighted
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{sem: semaphore.NewWeighted(1)}
}

func (l *LocalLocker) TryLock(ctx context.Context) (func(), error) {
	if !l.sem.TryAcquire(1) {
		return nil, ErrRunInProgress
	}
	return func() { l.sem.Release(1) }, nil
}
