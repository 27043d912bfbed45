package infraprobe

import (
	"context"
	"sync"
)

// Prober performs exactly one probe against a target.
// Each service kind (HTTP, TCP, Postgres, Redis, Vault) implements this interface.
type Prober interface {
	// Probe runs one call against target. The returned Result carries what the
	// service answered (status code, payload); the error, if any, describes
	// why the probe failed and is classified by the Harness.
	// The context carries the timeout deadline.
	Probe(ctx context.Context, target Target) (Result, error)

	// Kind returns the service kind this prober handles.
	Kind() ServiceKind
}

// ProberFactory creates a prober with its default settings.
type ProberFactory func() Prober

var (
	factoriesMu     sync.RWMutex
	proberFactories = map[ServiceKind]ProberFactory{}
)

// RegisterProberFactory registers the prober factory for kind.
// Called from init() of the packages under probes/.
func RegisterProberFactory(kind ServiceKind, factory ProberFactory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	proberFactories[kind] = factory
}

func lookupProberFactory(kind ServiceKind) (ProberFactory, bool) {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	f, ok := proberFactories[kind]
	return f, ok
}

// RegisteredKinds reports which kinds have a prober factory.
func RegisteredKinds() []ServiceKind {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	out := make([]ServiceKind, 0, len(proberFactories))
	for _, k := range []ServiceKind{KindHTTP, KindTCP, KindPostgres, KindRedis, KindVaultHealth, KindVaultAuth} {
		if _, ok := proberFactories[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc struct {
	ServiceKind ServiceKind
	Fn          func(ctx context.Context, target Target) (Result, error)
}

// Probe calls Fn.
func (p ProberFunc) Probe(ctx context.Context, target Target) (Result, error) {
	return p.Fn(ctx, target)
}

// Kind returns ServiceKind.
func (p ProberFunc) Kind() ServiceKind { return p.ServiceKind }
