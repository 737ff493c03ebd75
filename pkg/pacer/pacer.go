// Package pacer runs remote calls with exponential backoff on rate limiting.
//
// Every request the reconciliation core sends goes through Call. A call that
// fails with a rate-limit error is retried after waiting
// wait+jitter units, where wait starts at one unit and doubles on each
// consecutive rate-limit failure up to the cap. There is no retry ceiling.
// Any other error is returned immediately.
package pacer

import (
	"context"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/yuya-takeyama/drive-merge/pkg/remote"
)

const (
	defaultUnit        = time.Second
	defaultInitialWait = 1
	defaultMaxWait     = 32
)

// Pacer is safe to share across components; it holds no per-call state.
type Pacer struct {
	unit        time.Duration
	initialWait float64
	maxWait     float64
	limiter     *rate.Limiter
	sleep       func(ctx context.Context, d time.Duration) error
	jitter      func() float64
	log         logrus.FieldLogger
}

// Option configures a Pacer.
type Option func(*Pacer)

// WithUnit sets the duration of one backoff unit.
func WithUnit(d time.Duration) Option {
	return func(p *Pacer) { p.unit = d }
}

// WithMaxWait sets the cap, in units, for the pre-jitter wait.
func WithMaxWait(units float64) Option {
	return func(p *Pacer) { p.maxWait = units }
}

// WithLimiter spaces out call attempts with a token bucket.
func WithLimiter(l *rate.Limiter) Option {
	return func(p *Pacer) { p.limiter = l }
}

// WithSleep replaces the function used to wait between attempts.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(p *Pacer) { p.sleep = fn }
}

// WithJitter replaces the jitter source. fn must return a value in [0,1).
func WithJitter(fn func() float64) Option {
	return func(p *Pacer) { p.jitter = fn }
}

// WithLogger sets the logger used for backoff diagnostics.
func WithLogger(l logrus.FieldLogger) Option {
	return func(p *Pacer) { p.log = l }
}

// New creates a Pacer with one-second units and a 32 unit cap.
func New(opts ...Option) *Pacer {
	p := &Pacer{
		unit:        defaultUnit,
		initialWait: defaultInitialWait,
		maxWait:     defaultMaxWait,
		sleep:       sleepContext,
		jitter:      rand.Float64,
		log:         logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Call invokes fn until it succeeds or fails with an error that is not a
// rate-limit error.
func (p *Pacer) Call(ctx context.Context, fn func() error) error {
	wait := p.initialWait
	for attempt := 1; ; attempt++ {
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		if remote.KindOf(err) != remote.KindRateLimited {
			return err
		}

		delay := time.Duration((wait + p.jitter()) * float64(p.unit))
		p.log.WithFields(logrus.Fields{
			"attempt": attempt,
			"wait":    delay.Round(time.Millisecond),
		}).WithError(err).Warn("Rate limited, backing off")

		if err := p.sleep(ctx, delay); err != nil {
			return err
		}
		wait = nextWait(wait, p.maxWait)
	}
}

// Do is Call for functions that return a value.
func Do[T any](ctx context.Context, p *Pacer, fn func() (T, error)) (T, error) {
	var out T
	err := p.Call(ctx, func() error {
		var err error
		out, err = fn()
		return err
	})
	return out, err
}

func nextWait(wait, maxWait float64) float64 {
	wait *= 2
	if wait > maxWait {
		wait = maxWait
	}
	return wait
}

func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
