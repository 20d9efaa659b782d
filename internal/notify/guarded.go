package notify

import (
	"context"
	"time"

	"github.com/sells-group/newswatch/internal/model"
	"github.com/sells-group/newswatch/internal/resilience"
)

// GuardOptions configures a Guarded sink.
type GuardOptions struct {
	Name    string
	Timeout time.Duration // per attempt; zero means none
	Retry   resilience.RetryConfig
	Breaker resilience.CircuitBreakerConfig
}

// Guarded wraps a sink with per-attempt timeouts, retry of transient
// failures and a circuit breaker. While the circuit is open Create fails
// immediately with resilience.ErrCircuitOpen.
type Guarded struct {
	sink    IssueSink
	opts    GuardOptions
	breaker *resilience.CircuitBreaker
}

// NewGuarded wraps sink.
func NewGuarded(sink IssueSink, opts GuardOptions) *Guarded {
	if opts.Name == "" {
		opts.Name = "sink"
	}
	opts.Retry.OnRetry = resilience.RetryLogger("notify", opts.Name)
	return &Guarded{
		sink:    sink,
		opts:    opts,
		breaker: resilience.NewServiceBreakers(opts.Breaker).Get("sink:" + opts.Name),
	}
}

// Create delivers rec through the wrapped sink.
func (g *Guarded) Create(ctx context.Context, rec model.NewsRecord) (string, error) {
	return resilience.ExecuteVal(ctx, g.breaker, func(ctx context.Context) (string, error) {
		return resilience.DoVal(ctx, g.opts.Retry, func(ctx context.Context) (string, error) {
			if g.opts.Timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, g.opts.Timeout)
				defer cancel()
			}
			return g.sink.Create(ctx, rec)
		})
	})
}

// State reports the circuit state.
func (g *Guarded) State() resilience.CircuitState {
	return g.breaker.State()
}
