package queue

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/evently/ticketing/internal/entity"
)

// RetryManager decides whether a failed task gets another attempt and how
// long to wait before it.
type RetryManager struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

func NewRetryManager(maxRetries int, baseDelay time.Duration) *RetryManager {
	return &RetryManager{
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		maxDelay:   baseDelay * 16,
	}
}

// ShouldRetry returns whether the task should run again and the backoff
// delay. Domain outcomes are final: retrying a sold-out booking or a missing
// attendee cannot change the result, only infrastructure failures can heal.
func (r *RetryManager) ShouldRetry(task *Task, err error) (bool, time.Duration) {
	if task.Attempts >= task.MaxRetries {
		return false, 0
	}
	if !isRetryable(err) {
		return false, 0
	}
	return true, r.backoff(task.Attempts)
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, entity.ErrTicketAlreadyIssued) || errors.Is(err, entity.ErrInvalidIntent) {
		return false
	}
	return !entity.IsDomainError(err)
}

// backoff is exponential in the attempt number with up to ±25% jitter,
// capped at 16x the base delay.
func (r *RetryManager) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		return r.baseDelay
	}

	delay := r.baseDelay << uint(attempt-1)
	if delay > r.maxDelay {
		delay = r.maxDelay
	}

	jitter := time.Duration(rand.Int63n(int64(delay)/2+1)) - delay/4
	return delay + jitter
}
