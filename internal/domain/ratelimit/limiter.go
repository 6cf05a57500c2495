package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrInvalidPolicy = errors.New("invalid rate limit policy")

// Policy scopes one fixed-window quota to an identifier,
// e.g. "message:<user-id>".
type Policy struct {
	Identifier  string
	MaxRequests int
	Window      time.Duration
}

func (p Policy) Validate() error {
	switch {
	case p.Identifier == "":
		return fmt.Errorf("%w: empty identifier", ErrInvalidPolicy)
	case p.MaxRequests <= 0:
		return fmt.Errorf("%w: max requests must be positive, got %d", ErrInvalidPolicy, p.MaxRequests)
	case p.Window <= 0:
		return fmt.Errorf("%w: window must be positive, got %s", ErrInvalidPolicy, p.Window)
	}
	return nil
}

// Decision is the admission outcome of a single check. A denial is a
// regular decision, not an error.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

type Limiter interface {
	Check(ctx context.Context, p Policy) (Decision, error)
}

type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

var SystemClock Clock = ClockFunc(time.Now)

// Key joins an action kind and an actor id into a limiter identifier.
func Key(action, actorID string) string {
	return action + ":" + actorID
}
