package infraprobe

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestAllStatusCategories_Count(t *testing.T) {
	if len(AllStatusCategories) != 8 {
		t.Errorf("expected 8 status categories, got %d", len(AllStatusCategories))
	}
}

func TestClassifiedCheckError(t *testing.T) {
	var _ ClassifiedError = &ClassifiedCheckError{}

	cause := errors.New("connection refused")
	e := &ClassifiedCheckError{Category: StatusConnectionError, Detail: "connection_refused", Cause: cause}
	if e.Error() != "connection refused" {
		t.Errorf("expected cause message, got %q", e.Error())
	}
	if !errors.Is(e, cause) {
		t.Error("Unwrap should allow errors.Is to match the cause")
	}

	e = &ClassifiedCheckError{Category: StatusUnhealthy, Detail: "http_500"}
	if e.Error() != "http_500" {
		t.Errorf("expected detail as message, got %q", e.Error())
	}
}

func TestResult_SucceedFail(t *testing.T) {
	target := Target{Name: "cache", Kind: KindRedis, Host: "localhost", Port: "6379"}
	r := NewResult(target)
	if r.Target != "localhost:6379" {
		t.Errorf("Target = %q, expected localhost:6379", r.Target)
	}

	failed := r.Fail(ErrConnectionRefused)
	if failed.Succeeded || failed.Status != StatusConnectionError || failed.Error != "connection refused" {
		t.Errorf("Fail() = %+v", failed)
	}
	if r.Status != "" {
		t.Error("Fail() must not modify the receiver")
	}
	if same := r.Fail(nil); same.Status != "" {
		t.Error("Fail(nil) must be a no-op")
	}

	ok := failed.Succeed()
	if !ok.Succeeded || ok.Status != StatusOK || ok.Error != "" {
		t.Errorf("Succeed() = %+v", ok)
	}
}

func TestResult_WithPayloadCopies(t *testing.T) {
	a := Result{}.WithPayload("pong", "PONG")
	b := a.WithPayload("value", "v")

	if _, ok := a.Lookup("value"); ok {
		t.Error("WithPayload must not modify the original payload")
	}
	if v, _ := b.Lookup("pong"); v != "PONG" {
		t.Errorf("pong = %v, expected PONG", v)
	}
	if _, ok := (Result{}).Lookup("anything"); ok {
		t.Error("Lookup on empty payload must report absence")
	}
}

func TestResult_Summary(t *testing.T) {
	r := Result{Kind: KindHTTP, Target: "http://web:80/", StatusCode: 200, Latency: 12 * time.Millisecond}.Succeed()
	if got := r.Summary(); got != "http http://web:80/: ok (status 200, 12ms)" {
		t.Errorf("Summary() = %q", got)
	}

	r = Result{Kind: KindTCP, Target: "vault:8200"}.Fail(ErrTimeout)
	if got := r.Summary(); got != "tcp_socket vault:8200: timeout: probe timeout" {
		t.Errorf("Summary() = %q", got)
	}
}

func TestResult_JSON(t *testing.T) {
	checked := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	r := Result{
		Name:       "vault",
		Kind:       KindVaultHealth,
		Target:     "http://vault:8200",
		StatusCode: 200,
		Payload:    map[string]any{"initialized": true},
		Latency:    1500 * time.Microsecond,
		CheckedAt:  checked,
	}.Succeed()

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	s := string(data)
	for _, want := range []string{`"latency_ms":1.5`, `"checked_at":"2026-03-01T10:00:00Z"`, `"status":"ok"`, `"status_code":200`} {
		if !strings.Contains(s, want) {
			t.Errorf("JSON %s does not contain %s", s, want)
		}
	}

	var back Result
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if back.Latency != r.Latency || !back.CheckedAt.Equal(checked) || back.Payload["initialized"] != true {
		t.Errorf("Unmarshal() = %+v", back)
	}
}

func TestResult_JSON_ZeroCheckedAt(t *testing.T) {
	data, err := json.Marshal(Result{Name: "web"})
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	if !strings.Contains(string(data), `"checked_at":null`) {
		t.Errorf("expected null checked_at, got %s", data)
	}
}
