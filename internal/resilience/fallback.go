package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when no link of a [Chain] produced a result.
var ErrAllFailed = errors.New("all providers failed")

// FallbackConfig is the breaker template for every link of a [Chain]. Its
// Name is replaced by the link name.
type FallbackConfig struct {
	CircuitBreaker CircuitBreakerConfig
}

type link[T any] struct {
	name    string
	value   T
	breaker *CircuitBreaker
}

// Chain is an ordered list of interchangeable providers, each guarded by its
// own [CircuitBreaker]. Links are appended before the chain is shared; after
// that it is read-only and safe for concurrent use.
type Chain[T any] struct {
	links []link[T]
	cfg   FallbackConfig
}

// NewChain starts a chain with primary as its preferred link.
func NewChain[T any](primaryName string, primary T, cfg FallbackConfig) *Chain[T] {
	c := &Chain[T]{cfg: cfg}
	c.Append(primaryName, primary)
	return c
}

// Append adds a lower-priority link.
func (c *Chain[T]) Append(name string, v T) {
	bc := c.cfg.CircuitBreaker
	bc.Name = name
	c.links = append(c.links, link[T]{name: name, value: v, breaker: NewCircuitBreaker(bc)})
}

// Primary is the first link's value.
func (c *Chain[T]) Primary() T { return c.links[0].value }

// Names lists link names, preferred first.
func (c *Chain[T]) Names() []string {
	out := make([]string, 0, len(c.links))
	for _, l := range c.links {
		out = append(out, l.name)
	}
	return out
}

// States reports each link's breaker state keyed by name.
func (c *Chain[T]) States() map[string]State {
	out := make(map[string]State, len(c.links))
	for _, l := range c.links {
		out[l.name] = l.breaker.State()
	}
	return out
}

// Try calls fn on each link in order and returns the first success. Links
// with an open breaker are skipped. Once ctx is done no further link is
// tried and ctx's error is returned as is.
func Try[T, R any](ctx context.Context, c *Chain[T], fn func(T) (R, error)) (R, error) {
	var (
		zero R
		errs []error
	)
	for _, l := range c.links {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		var out R
		err := l.breaker.Execute(func() error {
			var err error
			out, err = fn(l.value)
			return err
		})
		switch {
		case err == nil:
			return out, nil
		case errors.Is(err, ErrCircuitOpen):
			slog.Debug("fallback: link skipped, breaker open", "provider", l.name)
		default:
			slog.Warn("fallback: link failed", "provider", l.name, "err", err)
		}
		errs = append(errs, fmt.Errorf("%s: %w", l.name, err))
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	return zero, fmt.Errorf("%w: %w", ErrAllFailed, errors.Join(errs...))
}
