package services

import (
	"errors"
	"log"
	"time"

	"github.com/lib/pq"
)

// Business-rule failures. These are terminal: callers surface them to the
// user and never retry them.
var (
	ErrInsufficientBalance     = errors.New("insufficient points balance")
	ErrInvalidRoleTransition   = errors.New("invalid membership role transition")
	ErrRequestNotFound         = errors.New("advancement request not found")
	ErrRequestAlreadyProcessed = errors.New("advancement request already processed")
	ErrUserNotFound            = errors.New("user not found")
)

const (
	maxTxnAttempts = 3
	retryBackoff   = 50 * time.Millisecond
)

// withRetry re-runs fn when the store reports a serialization failure or
// deadlock. Only those two codes are retried; business errors pass through
// on the first attempt.
func withRetry(op string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= maxTxnAttempts; attempt++ {
		err = fn()
		if err == nil || !isRetryable(err) {
			return err
		}
		log.Printf("%s: retryable store conflict (attempt %d/%d): %v", op, attempt, maxTxnAttempts, err)
		time.Sleep(retryBackoff * time.Duration(attempt))
	}
	return err
}

func isRetryable(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	// 40001 serialization_failure, 40P01 deadlock_detected
	return pqErr.Code == "40001" || pqErr.Code == "40P01"
}
