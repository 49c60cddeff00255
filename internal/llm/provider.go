// Package llm is the gateway to text-generation providers: ordered
// failover, per-call timeouts, retry with backoff, and a circuit
// breaker per provider.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// Provider is a single generation backend.
type Provider interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

// HealthChecker is implemented by providers that support a cheap
// reachability probe, used to close an open circuit early.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// ErrorKind classifies a provider failure for retry/failover decisions.
type ErrorKind int

const (
	// KindTransient covers timeouts, connection errors and 5xx
	// responses. Retried on the same provider up to the attempt budget.
	KindTransient ErrorKind = iota
	// KindMalformed covers empty or unparseable responses. Counts as a
	// failed attempt but is not a reason to distrust the network.
	KindMalformed
	// KindAuth covers 401/403 and configuration errors. Retrying cannot
	// succeed; the provider is disabled for the process lifetime.
	KindAuth
)

// CallError wraps a provider failure with its classification.
type CallError struct {
	Kind ErrorKind
	Err  error
}

func (e *CallError) Error() string { return e.Err.Error() }
func (e *CallError) Unwrap() error { return e.Err }

func transientErr(format string, args ...any) error {
	return &CallError{Kind: KindTransient, Err: fmt.Errorf(format, args...)}
}

func malformedErr(format string, args ...any) error {
	return &CallError{Kind: KindMalformed, Err: fmt.Errorf(format, args...)}
}

func authErr(format string, args ...any) error {
	return &CallError{Kind: KindAuth, Err: fmt.Errorf(format, args...)}
}

// kindOf extracts the classification, defaulting to transient for
// plain errors (context deadlines, network failures).
func kindOf(err error) ErrorKind {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindTransient
}
