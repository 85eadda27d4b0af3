// Package generation drives the model to synthesize agents, reactions and
// poll answers. Calls are strictly sequential: one outstanding model call at a
// time, so progress is monotonic and backend load is bounded.
package generation

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Sleeper waits for d or until ctx is done
type Sleeper func(ctx context.Context, d time.Duration) error

// ContextSleep is the production Sleeper
func ContextSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RetryError is raised once an agent has exhausted every attempt. It names
// the agent and cluster and keeps each attempt's error.
type RetryError struct {
	AgentID     string
	AgentName   string
	ClusterID   string
	ClusterName string
	Attempts    int
	Errors      []error
}

func (e *RetryError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = fmt.Sprintf("attempt %d: %v", i+1, err)
	}
	return fmt.Sprintf("agent %q (%s) in cluster %q (%s) failed after %d attempts: %s",
		e.AgentName, e.AgentID, e.ClusterName, e.ClusterID, e.Attempts, strings.Join(msgs, "; "))
}

// Unwrap exposes every attempt error to errors.Is and errors.As
func (e *RetryError) Unwrap() []error {
	return e.Errors
}

// retry runs fn up to attempts times. After each failed attempt it sleeps
// backoff*attempt. It returns the per-attempt errors when every attempt
// failed, or ctx's error as soon as the context ends.
func retry(ctx context.Context, attempts int, backoff time.Duration, sleep Sleeper, fn func(attempt int) error) ([]error, error) {
	var errs []error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return errs, err
		}
		err := fn(attempt)
		if err == nil {
			return nil, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return errs, ctxErr
		}
		errs = append(errs, err)
		if err := sleep(ctx, backoff*time.Duration(attempt)); err != nil {
			return errs, err
		}
	}
	return errs, nil
}
