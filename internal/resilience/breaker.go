package resilience

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/backend-jasa/internal/obs"
)

// ErrOpen is returned by Do when the breaker refuses a call.
var ErrOpen = errors.New("resilience: circuit breaker open")

// State represents the current breaker state.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Breaker trips after a failure ratio is crossed over at least MinCalls calls
// and stays open for OpenFor before letting a single probe through.
type Breaker struct {
	Target       string
	MinCalls     int
	FailureRatio float64
	OpenFor      time.Duration
	Logger       zerolog.Logger
	Now          func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	calls    int
	openedAt time.Time
}

// NewBreaker returns a breaker with sane floors applied.
func NewBreaker(target string, minCalls int, failureRatio float64, openFor time.Duration) *Breaker {
	if minCalls <= 0 {
		minCalls = 1
	}
	if failureRatio <= 0 || failureRatio > 1 {
		failureRatio = 0.5
	}
	if openFor <= 0 {
		openFor = 30 * time.Second
	}
	return &Breaker{
		Target:       strings.TrimSpace(target),
		MinCalls:     minCalls,
		FailureRatio: failureRatio,
		OpenFor:      openFor,
		Logger:       zerolog.Nop(),
	}
}

// State reports the current state without transitioning.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Do runs fn when the breaker allows it and records the outcome.
// Context cancellation is not counted as a downstream failure.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	if !b.allow(ctx) {
		if obs.BreakerRejectedTotal != nil {
			obs.BreakerRejectedTotal.WithLabelValues(b.label()).Inc()
		}
		return ErrOpen
	}
	err := fn(ctx)
	if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return err
	}
	b.report(ctx, err == nil)
	return err
}

func (b *Breaker) allow(ctx context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case Open:
		if b.now().Sub(b.openedAt) < b.OpenFor {
			return false
		}
		b.transitionLocked(ctx, HalfOpen)
		return true
	case HalfOpen:
		// one probe at a time
		return false
	default:
		return true
	}
}

func (b *Breaker) report(ctx context.Context, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case Open:
		return
	case HalfOpen:
		if success {
			b.transitionLocked(ctx, Closed)
		} else {
			b.transitionLocked(ctx, Open)
		}
		return
	}
	b.calls++
	if !success {
		b.failures++
	}
	if b.calls < b.MinCalls {
		return
	}
	if float64(b.failures)/float64(b.calls) >= b.FailureRatio {
		b.transitionLocked(ctx, Open)
		return
	}
	if b.calls > b.MinCalls*2 {
		b.calls /= 2
		b.failures /= 2
	}
}

func (b *Breaker) transitionLocked(ctx context.Context, next State) {
	prev := b.state
	b.state = next
	b.calls, b.failures = 0, 0
	if next == Open {
		b.openedAt = b.now()
	}
	label := b.label()
	if obs.BreakerState != nil {
		obs.BreakerState.WithLabelValues(label).Set(float64(next))
	}
	if obs.BreakerTransitions != nil {
		obs.BreakerTransitions.WithLabelValues(label, prev.String(), next.String()).Inc()
	}
	evt := b.Logger.Info().Str("target", label).Str("from_state", prev.String()).Str("to_state", next.String())
	if span := trace.SpanContextFromContext(ctx); span.IsValid() {
		evt = evt.Str("trace_id", span.TraceID().String())
	}
	evt.Msg("breaker_transition")
}

func (b *Breaker) label() string {
	if b.Target == "" {
		return "default"
	}
	return b.Target
}

func (b *Breaker) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}
