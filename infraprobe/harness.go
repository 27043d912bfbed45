package infraprobe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Harness runs probes one at a time. It resolves targets, picks the prober
// registered for the target kind, applies the timeout, records metrics and
// logs the outcome.
//
// To use the built-in probers import them all at once:
//
//	import _ "github.com/BigKAA/infraprobe/infraprobe/probes"
//
// Or import only the kinds you need:
//
//	import _ "github.com/BigKAA/infraprobe/infraprobe/probes/httpprobe"
type Harness struct {
	timeout  time.Duration
	logger   *slog.Logger
	resolver *Resolver
	probers  map[ServiceKind]Prober
	metrics  *MetricsExporter
	now      func() time.Time
}

// New creates a Harness from functional options.
func New(opts ...Option) (*Harness, error) {
	cfg := config{
		timeout: DefaultTimeout,
	}
	for _, o := range opts {
		if err := o(&cfg); err != nil {
			return nil, fmt.Errorf("infraprobe: %w", err)
		}
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if cfg.resolver == nil {
		cfg.resolver = NewResolver()
	}

	h := &Harness{
		timeout:  cfg.timeout,
		logger:   cfg.logger,
		resolver: cfg.resolver,
		probers:  cfg.probers,
		now:      time.Now,
	}

	if cfg.registerer != nil {
		m, err := NewMetricsExporter(cfg.registerer)
		if err != nil {
			return nil, fmt.Errorf("infraprobe: metrics: %w", err)
		}
		h.metrics = m
	}
	return h, nil
}

// Timeout returns the per-probe timeout.
func (h *Harness) Timeout() time.Duration { return h.timeout }

// Resolver returns the resolver used by Resolve.
func (h *Harness) Resolver() *Resolver { return h.resolver }

// Resolve builds a Target from spec. See Resolver.Resolve.
func (h *Harness) Resolve(spec TargetSpec) (Target, error) {
	return h.resolver.Resolve(spec)
}

// ProberFor returns the prober used for kind: an override passed with
// WithProber, or one built by the registered factory.
func (h *Harness) ProberFor(kind ServiceKind) (Prober, error) {
	if p, ok := h.probers[kind]; ok {
		return p, nil
	}
	factory, ok := lookupProberFactory(kind)
	if !ok {
		return nil, fmt.Errorf("no prober registered for kind %q; import github.com/BigKAA/infraprobe/infraprobe/probes", kind)
	}
	return factory(), nil
}

// Probe runs the prober registered for target.Kind exactly once.
// It never returns an error: every failure is captured in the Result.
func (h *Harness) Probe(ctx context.Context, target Target) Result {
	p, err := h.ProberFor(target.Kind)
	if err != nil {
		res := NewResult(target).Fail(err)
		res.CheckedAt = h.now()
		h.finish(ctx, target, res)
		return res
	}
	return h.ProbeWith(ctx, p, target)
}

// ProbeWith runs p against target exactly once.
func (h *Harness) ProbeWith(ctx context.Context, p Prober, target Target) Result {
	base := NewResult(target)

	if err := target.Validate(); err != nil {
		res := base.Fail(err)
		res.CheckedAt = h.now()
		h.finish(ctx, target, res)
		return res
	}

	probeCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	start := h.now()
	out, probeErr := h.safeProbe(probeCtx, p, target)
	latency := h.now().Sub(start)

	// A prober that ran out of time may surface a driver specific error.
	if probeErr != nil && errors.Is(probeCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		var ce ClassifiedError
		if !errors.As(probeErr, &ce) {
			probeErr = fmt.Errorf("%w after %s: %w", ErrTimeout, h.timeout, probeErr)
		}
	}

	res := base
	res.StatusCode = out.StatusCode
	res.Payload = out.Payload
	if probeErr != nil {
		res = res.Fail(probeErr)
	} else {
		res = res.Succeed()
	}
	res.Latency = latency
	res.CheckedAt = start

	h.finish(ctx, target, res)
	return res
}

// finish records metrics and logs res. Every Result leaves through here.
func (h *Harness) finish(ctx context.Context, target Target, res Result) {
	if h.metrics != nil {
		h.metrics.Record(target, res)
	}
	h.log(ctx, target, res)
}

// Verify probes target and evaluates exps against the result.
func (h *Harness) Verify(ctx context.Context, target Target, exps ...Expectation) (Result, error) {
	res := h.Probe(ctx, target)
	return res, Evaluate(res, exps...)
}

// safeProbe calls p.Probe with panic recovery.
func (h *Harness) safeProbe(ctx context.Context, p Prober, target Target) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{}
			err = fmt.Errorf("panic in prober: %v", r)
			h.logger.Error("infraprobe: panic in prober",
				"target", target.String(),
				"panic", r,
			)
		}
	}()
	return p.Probe(ctx, target)
}

func (h *Harness) log(ctx context.Context, target Target, res Result) {
	attrs := []slog.Attr{
		slog.String("probe", target.Name),
		slog.String("kind", string(target.Kind)),
		slog.String("target", res.Target),
		slog.String("status", string(res.Status)),
		slog.Duration("latency", res.Latency),
	}
	if res.StatusCode != 0 {
		attrs = append(attrs, slog.Int("status_code", res.StatusCode))
	}
	if !res.Succeeded {
		h.logger.LogAttrs(ctx, slog.LevelWarn, "infraprobe: probe failed",
			append(attrs, slog.String("detail", res.Detail), slog.String("error", res.Error))...)
		return
	}
	h.logger.LogAttrs(ctx, slog.LevelDebug, "infraprobe: probe succeeded", attrs...)
}
