package resilience

import (
	"time"
)

// State is the lifecycle state of a circuit breaker.
type State string

const (
	// StateClosed lets calls through and counts failures.
	StateClosed State = "closed"
	// StateOpen rejects calls until the reset timeout elapses.
	StateOpen State = "open"
	// StateHalfOpen lets exactly the next call through as a probe.
	StateHalfOpen State = "half_open"
)

// BreakerStatus is a read-only snapshot of one breaker, exposed on the
// performance endpoint for operational visibility. LastFailureTime is nil
// until the breaker has seen its first failure.
type BreakerStatus struct {
	State           State      `json:"state"`
	FailureCount    int        `json:"failure_count"`
	LastFailureTime *time.Time `json:"last_failure_time,omitempty"`
	NextAttemptTime time.Time  `json:"next_attempt_time"`
}

// breaker tracks failures against one resource key. It is not safe for
// concurrent use on its own; Handler guards access with its mutex.
type breaker struct {
	state           State
	failureCount    int
	lastFailureTime time.Time
	nextAttemptTime time.Time

	failureThreshold int
	resetTimeout     time.Duration
}

func newBreaker(threshold int, reset time.Duration) *breaker {
	return &breaker{
		state:            StateClosed,
		failureThreshold: threshold,
		resetTimeout:     reset,
	}
}

// canExecute reports whether a call may proceed now. An OPEN breaker whose
// reset timeout elapsed transitions to HALF_OPEN and admits the call as a
// probe.
func (b *breaker) canExecute(now time.Time) bool {
	switch b.state {
	case StateClosed, StateHalfOpen:
		return true
	case StateOpen:
		if !now.Before(b.nextAttemptTime) {
			b.state = StateHalfOpen
			return true
		}
		return false
	default:
		return false
	}
}

// onSuccess closes the breaker and clears the failure count, in any state.
func (b *breaker) onSuccess() {
	b.failureCount = 0
	b.state = StateClosed
}

// onFailure counts a failure and trips the breaker once the threshold is
// reached. The count keeps accumulating across OPEN episodes until a
// success resets it.
func (b *breaker) onFailure(now time.Time) {
	b.failureCount++
	b.lastFailureTime = now
	if b.failureCount >= b.failureThreshold {
		b.state = StateOpen
		b.nextAttemptTime = now.Add(b.resetTimeout)
	}
}

func (b *breaker) status() BreakerStatus {
	st := BreakerStatus{
		State:           b.state,
		FailureCount:    b.failureCount,
		NextAttemptTime: b.nextAttemptTime,
	}
	if !b.lastFailureTime.IsZero() {
		lf := b.lastFailureTime
		st.LastFailureTime = &lf
	}
	return st
}
