package service

import (
	"context"
	"sync"
)

// KeyedLocker serializes operations per booking inside one process.
type KeyedLocker struct {
	mu    sync.Mutex
	locks map[int64]*keyedLock
}

type keyedLock struct {
	ch      chan struct{}
	holders int
}

func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{locks: make(map[int64]*keyedLock)}
}

// Lock blocks until the booking is free or ctx is done.
func (l *KeyedLocker) Lock(ctx context.Context, bookingID int64) (func(), error) {
	l.mu.Lock()
	lk, ok := l.locks[bookingID]
	if !ok {
		lk = &keyedLock{ch: make(chan struct{}, 1)}
		l.locks[bookingID] = lk
	}
	lk.holders++
	l.mu.Unlock()

	select {
	case lk.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(bookingID, lk)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-lk.ch
			l.release(bookingID, lk)
		})
	}, nil
}

func (l *KeyedLocker) release(bookingID int64, lk *keyedLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lk.holders--
	if lk.holders == 0 {
		delete(l.locks, bookingID)
	}
}
