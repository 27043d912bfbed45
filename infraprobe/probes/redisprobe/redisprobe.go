// Package redisprobe provides the Redis prober for infraprobe.
//
// Import this package to register the Redis prober factory:
//
//	import _ "github.com/BigKAA/infraprobe/infraprobe/probes/redisprobe"
package redisprobe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/BigKAA/infraprobe/infraprobe"
)

// Round trip defaults used by the cache scenarios.
const (
	DefaultKey   = "iac_test_key"
	DefaultValue = "infraestructura_como_codigo_funciona"
)

func init() {
	infraprobe.RegisterProberFactory(infraprobe.KindRedis, func() infraprobe.Prober { return New() })
}

// Option configures the Prober.
type Option func(*Prober)

// Prober either sends PING or writes a key and reads it back.
// Supports two modes:
//   - Standalone: creates a new redis client per probe from the target
//   - Pool: uses an existing redis.Cmdable (Client, ClusterClient, etc.)
type Prober struct {
	client    redis.Cmdable // nil = standalone, non-nil = pool mode
	db        int
	roundTrip bool
	key       string
	value     string
}

// WithClient sets an existing Redis client for pool mode.
func WithClient(client redis.Cmdable) Option {
	return func(p *Prober) {
		p.client = client
	}
}

// WithDB sets the database number for standalone mode connections.
func WithDB(db int) Option {
	return func(p *Prober) {
		p.db = db
	}
}

// WithRoundTrip makes the probe SET key to value and GET it back instead
// of sending PING. Empty arguments fall back to DefaultKey and DefaultValue.
func WithRoundTrip(key, value string) Option {
	return func(p *Prober) {
		p.roundTrip = true
		if key != "" {
			p.key = key
		}
		if value != "" {
			p.value = value
		}
	}
}

// New creates a new Redis prober with the given options.
func New(opts ...Option) *Prober {
	p := &Prober{
		key:   DefaultKey,
		value: DefaultValue,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Probe runs PING, or SET+GET in round trip mode.
// Payload is "pong" for PING and "value" for the round trip.
func (p *Prober) Probe(ctx context.Context, target infraprobe.Target) (infraprobe.Result, error) {
	if p.client != nil {
		return p.run(ctx, p.client, "pool")
	}

	opts := clientOptions(ctx, target, p.db)
	client := redis.NewClient(opts)
	defer func() { _ = client.Close() }()

	return p.run(ctx, client, opts.Addr)
}

// clientOptions builds standalone client options. Network timeouts follow
// the ctx deadline so the harness timeout governs the whole probe.
func clientOptions(ctx context.Context, target infraprobe.Target, db int) *redis.Options {
	timeout := infraprobe.DefaultTimeout
	if dl, ok := ctx.Deadline(); ok {
		timeout = max(time.Until(dl), time.Millisecond)
	}
	opts := &redis.Options{
		Addr:                  target.Address(),
		DB:                    db,
		MaxRetries:            -1, // single attempt
		DialTimeout:           timeout,
		ReadTimeout:           timeout,
		WriteTimeout:          timeout,
		ContextTimeoutEnabled: true,
	}
	if c := target.Credentials; c != nil {
		opts.Username = c.User
		opts.Password = c.Password
	}
	return opts
}

func (p *Prober) run(ctx context.Context, c redis.Cmdable, where string) (infraprobe.Result, error) {
	var res infraprobe.Result
	if !p.roundTrip {
		pong, err := c.Ping(ctx).Result()
		if err != nil {
			return res, classifyError(err, where)
		}
		return res.WithPayload("pong", pong), nil
	}

	if err := c.Set(ctx, p.key, p.value, 0).Err(); err != nil {
		return res, classifyError(err, where)
	}
	got, err := c.Get(ctx, p.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return res, &infraprobe.ClassifiedCheckError{
				Category: infraprobe.StatusUnhealthy,
				Detail:   "key_missing",
				Cause:    fmt.Errorf("redis %s: key %q missing after SET: %w", where, p.key, infraprobe.ErrUnhealthy),
			}
		}
		return res, classifyError(err, where)
	}
	return res.WithPayload("value", got), nil
}

// classifyError wraps Redis errors with appropriate classification.
func classifyError(err error, target string) error {
	msg := err.Error()

	if strings.Contains(msg, "NOAUTH") || strings.Contains(msg, "WRONGPASS") {
		return &infraprobe.ClassifiedCheckError{
			Category: infraprobe.StatusAuthError,
			Detail:   "auth_error",
			Cause:    fmt.Errorf("redis %s: %w", target, err),
		}
	}

	// go-redis wraps net.OpError; detect via the error chain.
	var opErr *net.OpError
	if errors.As(err, &opErr) && errors.Is(opErr.Err, syscall.ECONNREFUSED) {
		return &infraprobe.ClassifiedCheckError{
			Category: infraprobe.StatusConnectionError,
			Detail:   "connection_refused",
			Cause:    fmt.Errorf("redis %s: %w", target, err),
		}
	}

	return fmt.Errorf("redis %s: %w", target, err)
}

// Kind returns the service kind for this prober.
func (p *Prober) Kind() infraprobe.ServiceKind {
	return infraprobe.KindRedis
}
