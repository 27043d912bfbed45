// Package vaultprobe provides the Vault probers for infraprobe: an
// unauthenticated health prober and a token-authenticated prober that
// lists secrets engines and auth methods.
//
// Import this package to register both prober factories:
//
//	import _ "github.com/BigKAA/infraprobe/infraprobe/probes/vaultprobe"
package vaultprobe

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strconv"

	"github.com/BigKAA/infraprobe/infraprobe"
	"github.com/BigKAA/infraprobe/infraprobe/probes/httpprobe"
)

// HealthPath is the Vault health endpoint.
const HealthPath = "/v1/sys/health"

// ValidStatusCodes are the codes a live Vault answers the health endpoint
// with: 200 active, 429 standby, 501 not initialized, 503 sealed.
var ValidStatusCodes = []int{
	http.StatusOK,
	http.StatusTooManyRequests,
	http.StatusNotImplemented,
	http.StatusServiceUnavailable,
}

func init() {
	infraprobe.RegisterProberFactory(infraprobe.KindVaultHealth, func() infraprobe.Prober { return NewHealth() })
	infraprobe.RegisterProberFactory(infraprobe.KindVaultAuth, func() infraprobe.Prober { return NewAuth() })
}

// HealthProber calls GET /v1/sys/health.
// A status code outside ValidStatusCodes makes the result unhealthy even
// though Vault answered.
type HealthProber struct {
	http *httpprobe.Prober
}

// NewHealth creates a Vault health prober. Options apply to the underlying
// HTTP request; bodies are decoded for 200, 429 and 503.
func NewHealth(opts ...httpprobe.Option) *HealthProber {
	opts = append(opts, httpprobe.WithJSONStatuses(http.StatusOK, http.StatusTooManyRequests, http.StatusServiceUnavailable))
	return &HealthProber{http: httpprobe.New(opts...)}
}

// Probe fetches the health endpoint of target.
func (p *HealthProber) Probe(ctx context.Context, target infraprobe.Target) (infraprobe.Result, error) {
	healthTarget := target
	healthTarget.Path = target.Path + HealthPath

	out, err := p.http.Probe(ctx, healthTarget)
	if err != nil {
		return infraprobe.Result{}, err
	}

	res := infraprobe.Result{StatusCode: out.StatusCode}
	switch out.StatusCode {
	case http.StatusOK, http.StatusTooManyRequests, http.StatusServiceUnavailable:
		for _, k := range []string{"initialized", "sealed", "standby", "version"} {
			if v, ok := out.Lookup(k); ok {
				res = res.WithPayload(k, v)
			}
		}
	case http.StatusNotImplemented:
		res = res.WithPayload("initialized", false)
	}

	if !slices.Contains(ValidStatusCodes, res.StatusCode) {
		return res, &infraprobe.ClassifiedCheckError{
			Category: infraprobe.StatusUnhealthy,
			Detail:   "http_" + strconv.Itoa(res.StatusCode),
			Cause:    fmt.Errorf("vault health %s: status %d: %w", healthTarget.URL(), res.StatusCode, infraprobe.ErrUnhealthy),
		}
	}
	return res, nil
}

// Kind returns the service kind for this prober.
func (p *HealthProber) Kind() infraprobe.ServiceKind {
	return infraprobe.KindVaultHealth
}
