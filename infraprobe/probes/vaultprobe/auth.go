package vaultprobe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"

	"github.com/hashicorp/vault/api"

	"github.com/BigKAA/infraprobe/infraprobe"
)

// AuthOption configures the AuthProber.
type AuthOption func(*AuthProber)

// AuthProber authenticates with the target token and lists what the token
// can see. It is read-only.
//
// Payload keys: policies, mounts, auth_methods. Mount and auth method names
// are normalized with infraprobe.NormalizeMountPath.
type AuthProber struct {
	httpClient *http.Client
}

// WithHTTPClient sets the HTTP client used by the Vault API client.
func WithHTTPClient(c *http.Client) AuthOption {
	return func(p *AuthProber) {
		p.httpClient = c
	}
}

// NewAuth creates a Vault auth prober.
func NewAuth(opts ...AuthOption) *AuthProber {
	p := &AuthProber{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Probe looks up the token and lists secrets engines and auth methods.
func (p *AuthProber) Probe(ctx context.Context, target infraprobe.Target) (infraprobe.Result, error) {
	var res infraprobe.Result
	if target.Token == "" {
		return res, &infraprobe.ClassifiedCheckError{
			Category: infraprobe.StatusAuthError,
			Detail:   "missing_token",
			Cause:    fmt.Errorf("vault %s: no token", target.BaseURL()),
		}
	}

	client, err := p.newClient(target)
	if err != nil {
		return res, fmt.Errorf("vault client %s: %w", target.BaseURL(), err)
	}

	self, err := client.Auth().Token().LookupSelfWithContext(ctx)
	if err != nil {
		return res, classifyError(err, "token lookup", target)
	}
	policies, err := self.TokenPolicies()
	if err != nil {
		return res, fmt.Errorf("vault token policies: %w", err)
	}
	res = res.WithPayload("policies", policies)

	mounts, err := client.Sys().ListMountsWithContext(ctx)
	if err != nil {
		return res, classifyError(err, "list mounts", target)
	}
	res = res.WithPayload("mounts", normalizedKeys(mounts))

	auths, err := client.Sys().ListAuthWithContext(ctx)
	if err != nil {
		return res, classifyError(err, "list auth methods", target)
	}
	res = res.WithPayload("auth_methods", normalizedKeys(auths))

	return res, nil
}

func (p *AuthProber) newClient(target infraprobe.Target) (*api.Client, error) {
	config := api.DefaultConfig()
	if config.Error != nil {
		return nil, config.Error
	}
	config.Address = target.BaseURL() + target.Path
	config.MaxRetries = 0
	if p.httpClient != nil {
		config.HttpClient = p.httpClient
	}

	client, err := api.NewClient(config)
	if err != nil {
		return nil, err
	}
	client.SetToken(target.Token)
	client.SetNamespace("")
	return client, nil
}

func normalizedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, infraprobe.NormalizeMountPath(k))
	}
	slices.Sort(out)
	return out
}

// classifyError maps Vault API response errors: 401/403 are auth errors,
// any other response status means Vault answered but refused the request.
func classifyError(err error, op string, target infraprobe.Target) error {
	var respErr *api.ResponseError
	if errors.As(err, &respErr) {
		cause := fmt.Errorf("vault %s %s: %w", op, target.BaseURL(), err)
		switch respErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return &infraprobe.ClassifiedCheckError{
				Category: infraprobe.StatusAuthError,
				Detail:   "auth_error",
				Cause:    cause,
			}
		default:
			return &infraprobe.ClassifiedCheckError{
				Category: infraprobe.StatusUnhealthy,
				Detail:   fmt.Sprintf("http_%d", respErr.StatusCode),
				Cause:    cause,
			}
		}
	}
	return fmt.Errorf("vault %s %s: %w", op, target.BaseURL(), err)
}

// Kind returns the service kind for this prober.
func (p *AuthProber) Kind() infraprobe.ServiceKind {
	return infraprobe.KindVaultAuth
}
