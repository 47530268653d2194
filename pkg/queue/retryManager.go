package queue

import (
	"errors"
	"math/rand"
	"time"
)

// ErrPermanent marks a delivery failure that retrying cannot fix
var ErrPermanent = errors.New("permanent delivery failure")

// Permanent wraps err so the retry manager gives up on it at once
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }
func (e *permanentError) Is(target error) bool {
	return target == ErrPermanent
}

// RetryManager decides whether and when a failed delivery is attempted again
type RetryManager struct {
	baseDelay time.Duration
	maxDelay  time.Duration
	jitter    func(n int64) int64
}

func NewRetryManager(baseDelay time.Duration) *RetryManager {
	return &RetryManager{
		baseDelay: baseDelay,
		maxDelay:  baseDelay * 16,
		jitter:    rand.Int63n,
	}
}

// ShouldRetry determines if a task should be retried and returns the delay
func (r *RetryManager) ShouldRetry(task *Task, err error) (bool, time.Duration) {
	if err == nil || errors.Is(err, ErrPermanent) {
		return false, 0
	}
	if task.Attempts >= task.MaxRetries {
		return false, 0
	}
	return true, r.Backoff(task.Attempts)
}

// Backoff is base * 2^(attempt-1) with ±25% jitter, capped at 16x base
func (r *RetryManager) Backoff(attempt int) time.Duration {
	if attempt <= 0 {
		return r.baseDelay
	}
	if attempt > 5 {
		attempt = 5
	}

	backoff := r.baseDelay * time.Duration(1<<(attempt-1))
	if quarter := int64(backoff / 4); quarter > 0 {
		backoff += time.Duration(r.jitter(2*quarter+1) - quarter)
	}
	if backoff > r.maxDelay {
		backoff = r.maxDelay
	}
	return backoff
}
