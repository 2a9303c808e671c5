package retry

import (
	"context"
	"fmt"
	"time"

	retrygo "github.com/avast/retry-go/v4"
	"github.com/sirupsen/logrus"
)

// Policy is a bounded retry with a fixed delay between attempts.
type Policy struct {
	Attempts int
	Delay    time.Duration
}

func (p Policy) String() string {
	return fmt.Sprintf("%d attempts, %s apart", p.Attempts, p.Delay)
}

// Timer is what the executor waits on between attempts.
type Timer interface {
	After(time.Duration) <-chan time.Time
}

type realTimer struct{}

func (realTimer) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

type Executor struct {
	policy Policy
	timer  Timer
}

func New(p Policy) *Executor {
	return &Executor{
		policy: p,
		timer:  realTimer{},
	}
}

// WithTimer replaces the timer used between attempts.
func (e *Executor) WithTimer(t Timer) *Executor {
	return &Executor{
		policy: e.policy,
		timer:  t,
	}
}

func (e *Executor) Policy() Policy {
	return e.policy
}

// Do runs op until it succeeds or the policy's attempts are used up and
// returns the last error. Only the calling goroutine waits between attempts.
// Errors wrapped with Permanent are returned at once.
func (e *Executor) Do(ctx context.Context, name string, op func(ctx context.Context) error) error {
	attempts := e.policy.Attempts
	if attempts < 1 {
		attempts = 1 // retry-go treats 0 as retry forever
	}

	attempt := 0
	return retrygo.Do(
		func() error {
			attempt++
			return op(ctx)
		},
		retrygo.Context(ctx),
		retrygo.Attempts(uint(attempts)),
		retrygo.Delay(e.policy.Delay),
		retrygo.DelayType(retrygo.FixedDelay),
		retrygo.LastErrorOnly(true),
		retrygo.WithTimer(e.timer),
		retrygo.OnRetry(func(n uint, err error) {
			// also called after the last attempt, when nothing follows
			if attempt >= attempts {
				return
			}
			logrus.WithFields(logrus.Fields{
				"op":      name,
				"attempt": attempt,
				"of":      attempts,
			}).Warnf("retry: %s", err)
		}),
	)
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return retrygo.Unrecoverable(err)
}
