package events

import (
	"context"

	"github.com/noah-isme/backend-jasa/internal/resilience"
)

// Guarded wraps a notifier with a circuit breaker so a failing downstream
// stops being called for every event until it recovers.
type Guarded struct {
	Notifier Notifier
	Breaker  *resilience.Breaker
}

func (g Guarded) Notify(ctx context.Context, event Event) error {
	if g.Breaker == nil {
		return g.Notifier.Notify(ctx, event)
	}
	return g.Breaker.Do(ctx, func(ctx context.Context) error {
		return g.Notifier.Notify(ctx, event)
	})
}
