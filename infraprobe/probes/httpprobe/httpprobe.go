// Package httpprobe provides the HTTP prober for infraprobe.
//
// Import this package to register the HTTP prober factory:
//
//	import _ "github.com/BigKAA/infraprobe/infraprobe/probes/httpprobe"
package httpprobe

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"

	"github.com/BigKAA/infraprobe/infraprobe"
)

// maxBody bounds how much of a response body is read for decoding.
const maxBody = 1 << 20

func init() {
	infraprobe.RegisterProberFactory(infraprobe.KindHTTP, func() infraprobe.Prober { return New() })
}

// Option configures the Prober.
type Option func(*Prober)

// Prober sends one GET request and records the status code.
// The probe succeeds as soon as any response is received; the status code
// is left to the evaluator. Redirects are not followed.
type Prober struct {
	tlsSkipVerify bool
	jsonStatuses  []int // nil = any 2xx
	transport     http.RoundTripper
}

// WithTLSSkipVerify skips TLS certificate verification.
func WithTLSSkipVerify(skip bool) Option {
	return func(p *Prober) {
		p.tlsSkipVerify = skip
	}
}

// WithJSONStatuses decodes the body only for the listed status codes
// instead of every 2xx.
func WithJSONStatuses(codes ...int) Option {
	return func(p *Prober) {
		p.jsonStatuses = codes
	}
}

// WithTransport replaces the per-probe transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(p *Prober) {
		p.transport = rt
	}
}

// New creates a new HTTP prober with the given options.
func New(opts ...Option) *Prober {
	p := &Prober{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Probe sends GET target.URL().
func (p *Prober) Probe(ctx context.Context, target infraprobe.Target) (infraprobe.Result, error) {
	var res infraprobe.Result
	url := target.URL()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return res, fmt.Errorf("http create request: %w", err)
	}
	req.Header.Set("User-Agent", infraprobe.UserAgent)

	rt := p.transport
	if rt == nil {
		tr := &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: p.tlsSkipVerify, //nolint:gosec // configurable by user
			},
		}
		defer tr.CloseIdleConnections()
		rt = tr
	}

	client := &http.Client{
		Transport: rt,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	resp, err := client.Do(req)
	if err != nil {
		return res, fmt.Errorf("http request %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	res.StatusCode = resp.StatusCode
	if p.shouldDecode(resp.StatusCode) {
		res.Payload = DecodeJSONObject(resp.Body)
	}
	return res, nil
}

func (p *Prober) shouldDecode(code int) bool {
	if p.jsonStatuses != nil {
		return slices.Contains(p.jsonStatuses, code)
	}
	return code >= 200 && code < 300
}

// DecodeJSONObject reads a JSON object from r. Anything that is not a JSON
// object yields nil, whatever the Content-Type said.
func DecodeJSONObject(r io.Reader) map[string]any {
	var out map[string]any
	if err := json.NewDecoder(io.LimitReader(r, maxBody)).Decode(&out); err != nil {
		return nil
	}
	return out
}

// Kind returns the service kind for this prober.
func (p *Prober) Kind() infraprobe.ServiceKind {
	return infraprobe.KindHTTP
}
