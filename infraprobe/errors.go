package infraprobe

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotPopulated is returned when a scenario step reads a value that no
// earlier step has stored.
var ErrNotPopulated = errors.New("scenario value not populated")

// ConfigurationError reports a required value that is missing from every
// configured source. It is raised before any connection attempt.
type ConfigurationError struct {
	Target  string
	Field   string
	Sources []string // human readable list of places that were consulted
	Cause   error
}

func (e *ConfigurationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "configuration error: %s", e.Field)
	if e.Target != "" {
		fmt.Fprintf(&b, " for %s", e.Target)
	}
	if e.Cause != nil && len(e.Sources) == 0 {
		fmt.Fprintf(&b, ": %v", e.Cause)
		return b.String()
	}
	b.WriteString(" is not set")
	if len(e.Sources) > 0 {
		fmt.Fprintf(&b, " (checked %s)", strings.Join(e.Sources, ", "))
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

func (e *ConfigurationError) Unwrap() error { return e.Cause }

// ConnectionError reports that a probe never got an answer from its target.
type ConnectionError struct {
	Target string
	Status StatusCategory
	Cause  string
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection to %s failed (%s): %s", e.Target, e.Status, e.Cause)
}

// AssertionError reports a probe whose answer does not match an expectation.
type AssertionError struct {
	Target   string
	Check    string
	Expected string
	Actual   string
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("%s failed for %s: expected %s, got %s", e.Check, e.Target, e.Expected, e.Actual)
}
