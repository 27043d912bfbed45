package infraprobe

import (
	"encoding/json"
	"fmt"
	"time"
)

// StatusCategory classifies the outcome of a probe.
type StatusCategory string

const (
	// StatusOK means the probe succeeded.
	StatusOK StatusCategory = "ok"
	// StatusTimeout means the probe exceeded its deadline.
	StatusTimeout StatusCategory = "timeout"
	// StatusConnectionError means the connection to the service failed.
	StatusConnectionError StatusCategory = "connection_error"
	// StatusDNSError means DNS resolution failed for the service host.
	StatusDNSError StatusCategory = "dns_error"
	// StatusAuthError means the service rejected the credentials.
	StatusAuthError StatusCategory = "auth_error"
	// StatusTLSError means a TLS handshake or certificate error occurred.
	StatusTLSError StatusCategory = "tls_error"
	// StatusUnhealthy means the service answered but reported a bad state.
	StatusUnhealthy StatusCategory = "unhealthy"
	// StatusError means an unclassified error occurred.
	StatusError StatusCategory = "error"
)

// AllStatusCategories is the label set of the infraprobe_probe_status gauge.
var AllStatusCategories = []StatusCategory{
	StatusOK,
	StatusTimeout,
	StatusConnectionError,
	StatusDNSError,
	StatusAuthError,
	StatusTLSError,
	StatusUnhealthy,
	StatusError,
}

// Result is the outcome of exactly one probe. It is consumed by the
// evaluator and never persisted.
type Result struct {
	Name       string
	Kind       ServiceKind
	Target     string
	Succeeded  bool
	StatusCode int            // 0 when the service was not reached or has no status codes
	Payload    map[string]any // decoded health JSON, cache value, query result
	Error      string
	Status     StatusCategory
	Detail     string
	Latency    time.Duration
	CheckedAt  time.Time
}

// NewResult returns an empty result bound to target.
func NewResult(target Target) Result {
	return Result{
		Name:   target.Name,
		Kind:   target.Kind,
		Target: target.String(),
	}
}

// Succeed marks the result successful.
func (r Result) Succeed() Result {
	r.Succeeded = true
	r.Error = ""
	r.Status = StatusOK
	r.Detail = string(StatusOK)
	return r
}

// Fail records err and its classification. A nil err is a no-op.
func (r Result) Fail(err error) Result {
	if err == nil {
		return r
	}
	c := classifyError(err)
	r.Succeeded = false
	r.Error = err.Error()
	r.Status = c.Category
	r.Detail = c.Detail
	return r
}

// WithPayload sets a payload field.
func (r Result) WithPayload(key string, value any) Result {
	p := make(map[string]any, len(r.Payload)+1)
	for k, v := range r.Payload {
		p[k] = v
	}
	p[key] = value
	r.Payload = p
	return r
}

// Lookup returns a payload field.
func (r Result) Lookup(key string) (any, bool) {
	if r.Payload == nil {
		return nil, false
	}
	v, ok := r.Payload[key]
	return v, ok
}

// Summary is a one-line description for logs and the CLI.
func (r Result) Summary() string {
	if r.Succeeded {
		if r.StatusCode != 0 {
			return fmt.Sprintf("%s %s: ok (status %d, %s)", r.Kind, r.Target, r.StatusCode, r.Latency.Round(time.Millisecond))
		}
		return fmt.Sprintf("%s %s: ok (%s)", r.Kind, r.Target, r.Latency.Round(time.Millisecond))
	}
	return fmt.Sprintf("%s %s: %s: %s", r.Kind, r.Target, r.Status, r.Error)
}

// LatencyMillis returns the latency in milliseconds as a float64.
func (r Result) LatencyMillis() float64 {
	return float64(r.Latency.Nanoseconds()) / 1e6
}

// resultJSON is the JSON representation of Result.
type resultJSON struct {
	Name       string         `json:"name"`
	Kind       ServiceKind    `json:"kind"`
	Target     string         `json:"target"`
	Succeeded  bool           `json:"succeeded"`
	StatusCode int            `json:"status_code,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
	Error      string         `json:"error,omitempty"`
	Status     StatusCategory `json:"status"`
	Detail     string         `json:"detail"`
	LatencyMs  float64        `json:"latency_ms"`
	CheckedAt  *time.Time     `json:"checked_at"`
}

// MarshalJSON renders Latency as latency_ms and a zero CheckedAt as null.
func (r Result) MarshalJSON() ([]byte, error) {
	j := resultJSON{
		Name:       r.Name,
		Kind:       r.Kind,
		Target:     r.Target,
		Succeeded:  r.Succeeded,
		StatusCode: r.StatusCode,
		Payload:    r.Payload,
		Error:      r.Error,
		Status:     r.Status,
		Detail:     r.Detail,
		LatencyMs:  r.LatencyMillis(),
	}
	if !r.CheckedAt.IsZero() {
		t := r.CheckedAt.UTC()
		j.CheckedAt = &t
	}
	return json.Marshal(j)
}

// UnmarshalJSON implements custom JSON unmarshaling.
func (r *Result) UnmarshalJSON(data []byte) error {
	var j resultJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	*r = Result{
		Name:       j.Name,
		Kind:       j.Kind,
		Target:     j.Target,
		Succeeded:  j.Succeeded,
		StatusCode: j.StatusCode,
		Payload:    j.Payload,
		Error:      j.Error,
		Status:     j.Status,
		Detail:     j.Detail,
		Latency:    time.Duration(j.LatencyMs * 1e6),
	}
	if j.CheckedAt != nil {
		r.CheckedAt = *j.CheckedAt
	}
	return nil
}

// ClassifiedError is an interface for errors that carry status classification.
// Probers return errors implementing it to set the exact category and detail
// of a Result.
type ClassifiedError interface {
	error
	StatusCategory() StatusCategory
	StatusDetail() string
}

// ClassifiedCheckError is a concrete error type that implements ClassifiedError.
type ClassifiedCheckError struct {
	Category StatusCategory
	Detail   string
	Cause    error
}

// Error returns the error message, delegating to Cause if present.
func (e *ClassifiedCheckError) Error() string {
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return e.Detail
}

// Unwrap returns the underlying cause for use with errors.Is/As.
func (e *ClassifiedCheckError) Unwrap() error {
	return e.Cause
}

// StatusCategory returns the status category for this error.
func (e *ClassifiedCheckError) StatusCategory() StatusCategory {
	return e.Category
}

// StatusDetail returns the detail value for this error.
func (e *ClassifiedCheckError) StatusDetail() string {
	return e.Detail
}
