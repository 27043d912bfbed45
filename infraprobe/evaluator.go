package infraprobe

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Expectation is a predicate over a Result.
type Expectation interface {
	// Check returns nil if the result satisfies the expectation.
	Check(r Result) error
	// String describes the expectation for diagnostics.
	String() string
}

// Evaluate checks every expectation in order and returns the first
// failure. A result that never reached its target yields *ConnectionError
// unless the expectation itself is FailsToConnect.
func Evaluate(r Result, exps ...Expectation) error {
	for _, e := range exps {
		if _, ok := e.(failsToConnect); !ok && !r.Succeeded && IsConnectionFailure(r.Status) {
			return &ConnectionError{Target: r.Target, Status: r.Status, Cause: r.Error}
		}
		if err := e.Check(r); err != nil {
			return err
		}
	}
	return nil
}

type succeeds struct{}

// Succeeds expects the probe to have succeeded.
func Succeeds() Expectation { return succeeds{} }

func (succeeds) String() string { return "probe succeeds" }

func (succeeds) Check(r Result) error {
	if r.Succeeded {
		return nil
	}
	return &AssertionError{
		Target:   r.Target,
		Check:    "probe",
		Expected: "success",
		Actual:   fmt.Sprintf("%s (%s)", r.Status, r.Error),
	}
}

type failsToConnect struct{}

// FailsToConnect expects the target to be unreachable.
func FailsToConnect() Expectation { return failsToConnect{} }

func (failsToConnect) String() string { return "connection fails" }

func (failsToConnect) Check(r Result) error {
	if !r.Succeeded && IsConnectionFailure(r.Status) {
		return nil
	}
	actual := "connected"
	if !r.Succeeded {
		actual = string(r.Status)
	}
	return &AssertionError{
		Target:   r.Target,
		Check:    "connection",
		Expected: "connection failure",
		Actual:   actual,
	}
}

type statusIn []int

// StatusIn expects the HTTP status code to be one of codes.
func StatusIn(codes ...int) Expectation { return statusIn(codes) }

func (s statusIn) String() string {
	return "status code in " + formatCodes(s)
}

func (s statusIn) Check(r Result) error {
	if r.StatusCode != 0 && slices.Contains(s, r.StatusCode) {
		return nil
	}
	actual := strconv.Itoa(r.StatusCode)
	if r.StatusCode == 0 {
		actual = "no status code"
		if r.Error != "" {
			actual += " (" + r.Error + ")"
		}
	}
	return &AssertionError{
		Target:   r.Target,
		Check:    "status code",
		Expected: "one of " + formatCodes(s),
		Actual:   actual,
	}
}

func formatCodes(codes []int) string {
	parts := make([]string, len(codes))
	for i, c := range codes {
		parts[i] = strconv.Itoa(c)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

type flag struct {
	key  string
	want bool
}

// Flag expects the boolean payload field key to equal want.
func Flag(key string, want bool) Expectation { return flag{key: key, want: want} }

func (f flag) String() string { return fmt.Sprintf("%s is %t", f.key, f.want) }

func (f flag) Check(r Result) error {
	v, ok := r.Lookup(f.key)
	if !ok {
		return &AssertionError{
			Target:   r.Target,
			Check:    f.key,
			Expected: strconv.FormatBool(f.want),
			Actual:   "no " + f.key + " in response",
		}
	}
	got, isBool := v.(bool)
	if !isBool || got != f.want {
		return &AssertionError{
			Target:   r.Target,
			Check:    f.key,
			Expected: strconv.FormatBool(f.want),
			Actual:   fmt.Sprintf("%v", v),
		}
	}
	return nil
}

type value struct {
	key  string
	want string
}

// Value expects the payload field key to equal want byte for byte. Byte
// slices are compared after decoding them as strings.
func Value(key, want string) Expectation { return value{key: key, want: want} }

func (v value) String() string { return fmt.Sprintf("%s equals %q", v.key, v.want) }

func (v value) Check(r Result) error {
	raw, ok := r.Lookup(v.key)
	if !ok {
		return &AssertionError{
			Target:   r.Target,
			Check:    v.key,
			Expected: strconv.Quote(v.want),
			Actual:   "no " + v.key + " in result",
		}
	}
	got := stringify(raw)
	if got != v.want {
		return &AssertionError{
			Target:   r.Target,
			Check:    v.key,
			Expected: strconv.Quote(v.want),
			Actual:   strconv.Quote(got),
		}
	}
	return nil
}

type contains struct {
	key  string
	item string
}

// Contains expects the list payload field key to include item. Items are
// compared as mount paths, so "database" matches "database/".
func Contains(key, item string) Expectation { return contains{key: key, item: item} }

func (c contains) String() string { return fmt.Sprintf("%s contains %q", c.key, c.item) }

func (c contains) Check(r Result) error {
	raw, ok := r.Lookup(c.key)
	if !ok {
		return &AssertionError{
			Target:   r.Target,
			Check:    c.key,
			Expected: "list containing " + strconv.Quote(c.item),
			Actual:   "no " + c.key + " in result",
		}
	}
	items := stringList(raw)
	want := NormalizeMountPath(c.item)
	for _, it := range items {
		if NormalizeMountPath(it) == want {
			return nil
		}
	}
	return &AssertionError{
		Target:   r.Target,
		Check:    c.key,
		Expected: "list containing " + strconv.Quote(want),
		Actual:   fmt.Sprintf("%q", items),
	}
}

// NormalizeMountPath canonicalizes a Vault mount or auth method name:
// surrounding slashes and blanks are trimmed, case is folded and exactly one
// trailing slash is appended.
func NormalizeMountPath(name string) string {
	n := strings.ToLower(strings.Trim(strings.TrimSpace(name), "/"))
	if n == "" {
		return ""
	}
	return n + "/"
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}

func stringList(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, it := range t {
			out = append(out, stringify(it))
		}
		return out
	case map[string]any:
		out := make([]string, 0, len(t))
		for k := range t {
			out = append(out, k)
		}
		slices.Sort(out)
		return out
	default:
		return []string{stringify(t)}
	}
}
