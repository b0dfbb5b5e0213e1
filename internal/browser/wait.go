package browser

import (
	"context"
	"fmt"
	"time"
)

const defaultPollInterval = 250 * time.Millisecond

// ErrWaitTimeout reports that a waited-for condition never held within the bound.
type ErrWaitTimeout struct {
	Condition string
	Timeout   time.Duration
	Err       error
}

func (e ErrWaitTimeout) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("timed out after %s waiting for %s: %v", e.Timeout, e.Condition, e.Err)
	}
	return fmt.Sprintf("timed out after %s waiting for %s", e.Timeout, e.Condition)
}

func (e ErrWaitTimeout) Unwrap() error {
	return e.Err
}

// Waiter polls conditions until they hold or a timeout elapses.
type Waiter struct {
	Timeout time.Duration
	Poll    time.Duration
}

// NewWaiter returns a waiter bounded by timeout, polling every poll.
func NewWaiter(timeout, poll time.Duration) Waiter {
	if poll <= 0 {
		poll = defaultPollInterval
	}
	return Waiter{Timeout: timeout, Poll: poll}
}

// Until blocks until cond reports true. The last error returned by cond is
// attached to the timeout error.
func (w Waiter) Until(ctx context.Context, condition string, cond func() (bool, error)) error {
	poll := w.Poll
	if poll <= 0 {
		poll = defaultPollInterval
	}

	deadline := time.Now().Add(w.Timeout)
	var lastErr error

	for {
		ok, err := cond()
		if err == nil && ok {
			return nil
		}
		lastErr = err

		if !time.Now().Before(deadline) {
			return ErrWaitTimeout{Condition: condition, Timeout: w.Timeout, Err: lastErr}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(poll):
		}
	}
}

// ForAll waits until scope holds at least one element matching selector and
// returns all of them.
func (w Waiter) ForAll(ctx context.Context, scope Finder, selector string) ([]Element, error) {
	var found []Element
	err := w.Until(ctx, selector, func() (bool, error) {
		elements, err := scope.FindAll(selector)
		if err != nil {
			return false, err
		}
		found = elements
		return len(elements) > 0, nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// For waits for the first element matching selector inside scope.
func (w Waiter) For(ctx context.Context, scope Finder, selector string) (Element, error) {
	elements, err := w.ForAll(ctx, scope, selector)
	if err != nil {
		return nil, err
	}
	return elements[0], nil
}
