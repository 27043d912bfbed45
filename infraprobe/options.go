package infraprobe

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option is a functional option for New().
type Option func(*config) error

// config is the internal configuration of a Harness.
type config struct {
	timeout    time.Duration
	registerer prometheus.Registerer
	logger     *slog.Logger
	resolver   *Resolver
	probers    map[ServiceKind]Prober
}

// WithTimeout sets the per-probe timeout. It must lie in [MinTimeout, MaxTimeout].
func WithTimeout(d time.Duration) Option {
	return func(c *config) error {
		if d < MinTimeout || d > MaxTimeout {
			return fmt.Errorf("timeout %s out of range [%s, %s]", d, MinTimeout, MaxTimeout)
		}
		c.timeout = d
		return nil
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *config) error {
		c.logger = l
		return nil
	}
}

// WithRegisterer enables metrics and registers them with r.
// Without it the Harness records no metrics.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(c *config) error {
		c.registerer = r
		return nil
	}
}

// WithResolver sets the resolver used by Harness.Resolve.
func WithResolver(r *Resolver) Option {
	return func(c *config) error {
		c.resolver = r
		return nil
	}
}

// WithProber overrides the registered prober for p.Kind().
func WithProber(p Prober) Option {
	return func(c *config) error {
		if p == nil {
			return fmt.Errorf("nil prober")
		}
		if !ValidKinds[p.Kind()] {
			return fmt.Errorf("prober for unknown kind %q", p.Kind())
		}
		if c.probers == nil {
			c.probers = make(map[ServiceKind]Prober)
		}
		c.probers[p.Kind()] = p
		return nil
	}
}
