package infraprobe

import (
	"context"
	"fmt"
)

// Well-known scenario keys.
const (
	KeyTarget      = "target"
	KeyResult      = "result"
	KeyCredentials = "credentials"
)

// ScenarioContext carries values between the steps of one scenario.
// It is created fresh for every scenario and is not safe for concurrent use.
type ScenarioContext struct {
	values map[string]any
}

// NewScenarioContext returns an empty context.
func NewScenarioContext() *ScenarioContext {
	return &ScenarioContext{values: make(map[string]any)}
}

// Set stores v under key, replacing any earlier value.
func (s *ScenarioContext) Set(key string, v any) {
	s.values[key] = v
}

// Get returns the value stored under key, or an error wrapping
// ErrNotPopulated when no step stored it.
func (s *ScenarioContext) Get(key string) (any, error) {
	v, ok := s.values[key]
	if !ok {
		return nil, fmt.Errorf("%q: %w", key, ErrNotPopulated)
	}
	return v, nil
}

// Has reports whether key was stored.
func (s *ScenarioContext) Has(key string) bool {
	_, ok := s.values[key]
	return ok
}

// Target returns the Target stored under KeyTarget.
func (s *ScenarioContext) Target() (Target, error) {
	return get[Target](s, KeyTarget)
}

// Result returns the Result stored under KeyResult.
func (s *ScenarioContext) Result() (Result, error) {
	return get[Result](s, KeyResult)
}

// Credentials returns the Credentials stored under KeyCredentials.
func (s *ScenarioContext) Credentials() (Credentials, error) {
	return get[Credentials](s, KeyCredentials)
}

func get[T any](s *ScenarioContext, key string) (T, error) {
	var zero T
	v, err := s.Get(key)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("scenario value %q has type %T, want %T", key, v, zero)
	}
	return t, nil
}

type scenarioKey struct{}

// WithScenario returns a copy of ctx carrying s.
func WithScenario(ctx context.Context, s *ScenarioContext) context.Context {
	return context.WithValue(ctx, scenarioKey{}, s)
}

// ScenarioFrom returns the ScenarioContext carried by ctx, or nil.
func ScenarioFrom(ctx context.Context) *ScenarioContext {
	s, _ := ctx.Value(scenarioKey{}).(*ScenarioContext)
	return s
}
