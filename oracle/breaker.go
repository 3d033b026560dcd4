package oracle

import (
	"context"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Breaker wraps an Oracle with a circuit breaker so a misbehaving provider
// fails fast instead of queueing every request behind its timeout. The
// wrapped call is drained and replayed, which trades streaming latency for a
// single success/failure observation per call; routing and synthesis calls
// are short, so the buffering is cheap where it matters.
type Breaker struct {
	inner Oracle
	cb    *gobreaker.CircuitBreaker[[]Response]
}

// BreakerOptions tune the trip behavior.
type BreakerOptions struct {
	// Name labels the breaker in state-change logs.
	Name string
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
	// ConsecutiveFailures trips the breaker once reached.
	ConsecutiveFailures uint32
}

// NewBreaker wraps inner with a circuit breaker.
func NewBreaker(inner Oracle, optFns ...func(o *BreakerOptions)) *Breaker {
	opts := BreakerOptions{
		Name:                "oracle",
		OpenTimeout:         30 * time.Second,
		ConsecutiveFailures: 5,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	cb := gobreaker.NewCircuitBreaker[[]Response](gobreaker.Settings{
		Name:    opts.Name,
		Timeout: opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.ConsecutiveFailures
		},
	})
	return &Breaker{inner: inner, cb: cb}
}

// Complete implements Oracle.
func (b *Breaker) Complete(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)

		responses, err := b.cb.Execute(func() ([]Response, error) {
			innerResp, innerErr := b.inner.Complete(ctx, req)
			var buffered []Response
			for innerResp != nil || innerErr != nil {
				select {
				case resp, ok := <-innerResp:
					if !ok {
						innerResp = nil
						continue
					}
					buffered = append(buffered, resp)
				case err, ok := <-innerErr:
					if !ok {
						innerErr = nil
						continue
					}
					if err != nil {
						return nil, err
					}
				}
			}
			return buffered, nil
		})
		if err != nil {
			errCh <- err
			return
		}
		for _, resp := range responses {
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case respCh <- resp:
			}
		}
	}()
	return respCh, errCh
}

// Info implements Oracle.
func (b *Breaker) Info() Info { return b.inner.Info() }

// State exposes the breaker state for introspection endpoints.
func (b *Breaker) State() gobreaker.State { return b.cb.State() }
