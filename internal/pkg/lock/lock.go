// Package lock provides per-user locking so that seed rotation and balance
// mutation for one user are serialized while different users proceed in
// parallel.
package lock

import (
	"context"
	"sync"
	"time"
)

// UserLock hands out one mutex per user ID. A settlement or seed operation
// acquires the user's mutex for its whole critical section.
type UserLock struct {
	locks sync.Map // map[int64]*sync.Mutex
}

// NewUserLock creates a new UserLock instance.
func NewUserLock() *UserLock {
	return &UserLock{}
}

func (ul *UserLock) getLock(userID int64) *sync.Mutex {
	if v, ok := ul.locks.Load(userID); ok {
		return v.(*sync.Mutex)
	}
	v, _ := ul.locks.LoadOrStore(userID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// Lock acquires the lock for a user.
func (ul *UserLock) Lock(userID int64) {
	ul.getLock(userID).Lock()
}

// Unlock releases the lock for a user.
func (ul *UserLock) Unlock(userID int64) {
	if v, ok := ul.locks.Load(userID); ok {
		v.(*sync.Mutex).Unlock()
	}
}

// TryLock attempts to acquire the lock without blocking.
func (ul *UserLock) TryLock(userID int64) bool {
	return ul.getLock(userID).TryLock()
}

// WithLock executes fn while holding the user's lock.
func (ul *UserLock) WithLock(userID int64, fn func() error) error {
	ul.Lock(userID)
	defer ul.Unlock(userID)
	return fn()
}

// WithLockContext executes fn while holding the user's lock, giving up with
// ErrLockTimeout if the lock cannot be acquired within timeout.
func (ul *UserLock) WithLockContext(ctx context.Context, userID int64, timeout time.Duration, fn func() error) error {
	mu := ul.getLock(userID)

	acquired := make(chan struct{})
	go func() {
		mu.Lock()
		close(acquired)
	}()

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case <-acquired:
		defer mu.Unlock()
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			return fn()
		}
	case <-timeoutCtx.Done():
		// The waiting goroutine will eventually acquire; release right away.
		go func() {
			<-acquired
			mu.Unlock()
		}()
		if err := ctx.Err(); err != nil {
			return err
		}
		return ErrLockTimeout
	}
}
