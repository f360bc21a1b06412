package signalr

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"
)

// ReconnectionPolicy computes successive reconnect delays. It wraps
// [backoff.BackOff] (grounding: bzero's Connect() using
// backoff.NewExponentialBackOff()+backoff.NewTicker for its own retry
// loop), generalized to the four policies spec §4.6 enumerates.
type ReconnectionPolicy interface {
	// next returns the delay before the next attempt, or false if the
	// policy is exhausted.
	next() (time.Duration, bool)

	// reset clears attempt state, called after a successful reconnect so
	// the next disconnect starts the policy fresh.
	reset()
}

type backoffPolicy struct {
	b backoff.BackOff
}

func (p *backoffPolicy) next() (time.Duration, bool) {
	d := p.b.NextBackOff()
	if d == backoff.Stop {
		return 0, false
	}
	return d, true
}

func (p *backoffPolicy) reset() {
	p.b.Reset()
}

// NoReconnection is the default policy: no retry, the connection moves
// straight to Closed on disconnect.
func NoReconnection() ReconnectionPolicy {
	return &backoffPolicy{b: &backoff.StopBackOff{}}
}

// ConstantReconnection retries every delay, up to maxAttempts times (0
// means unlimited).
func ConstantReconnection(delay time.Duration, maxAttempts uint64) ReconnectionPolicy {
	var b backoff.BackOff = backoff.NewConstantBackOff(delay)
	if maxAttempts > 0 {
		b = backoff.WithMaxRetries(b, maxAttempts)
	}
	return &backoffPolicy{b: b}
}

// LinearReconnection retries with delay = base + step*attempt, up to
// maxAttempts times (0 means unlimited).
func LinearReconnection(base, step time.Duration, maxAttempts uint64) ReconnectionPolicy {
	var b backoff.BackOff = &linearBackOff{base: base, step: step}
	if maxAttempts > 0 {
		b = backoff.WithMaxRetries(b, maxAttempts)
	}
	return &backoffPolicy{b: b}
}

// linearBackOff implements backoff.BackOff with delay = base + step*n.
type linearBackOff struct {
	base    time.Duration
	step    time.Duration
	attempt int
}

func (l *linearBackOff) NextBackOff() time.Duration {
	d := l.base + time.Duration(l.attempt)*l.step
	l.attempt++
	return d
}

func (l *linearBackOff) Reset() {
	l.attempt = 0
}

// ExponentialReconnection retries with delay = min(cap,
// initial*multiplier^n), up to maxAttempts times (0 means unlimited).
func ExponentialReconnection(initial time.Duration, multiplier float64, cap time.Duration, maxAttempts uint64) ReconnectionPolicy {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = initial
	eb.Multiplier = multiplier
	eb.MaxInterval = cap
	eb.MaxElapsedTime = 0 // bound attempts by count, not elapsed time
	eb.RandomizationFactor = 0
	eb.Reset() // restart from the overridden InitialInterval

	var b backoff.BackOff = eb
	if maxAttempts > 0 {
		b = backoff.WithMaxRetries(b, maxAttempts)
	}
	return &backoffPolicy{b: b}
}

// ReconnectionHandler is delivered to the user's disconnection handler in
// manual mode (spec §4.6). The user decides whether and how to retry;
// Retry runs negotiation + handshake once and reports the outcome.
type ReconnectionHandler struct {
	conn *Connection
}

// Retry attempts one reconnect cycle (negotiate + handshake). The caller
// is responsible for looping and for backoff between attempts in manual
// mode.
func (h *ReconnectionHandler) Retry(ctx context.Context) error {
	return h.conn.reconnectOnce(ctx)
}
