package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Class buckets a failure by how the caller should react to it.
type Class int

const (
	// ClassTransient failures (timeouts, 429/5xx, intermittent parse errors)
	// are retry-eligible under the calling layer's policy.
	ClassTransient Class = iota
	// ClassPermanent failures (captions disabled, video private, unsupported
	// input) are never retried; retrying cannot change the outcome.
	ClassPermanent
	// ClassResource failures (no provider capacity within the wait budget,
	// audio over a configured ceiling) are surfaced distinctly so callers can
	// degrade instead of treating them as hard failures.
	ClassResource
)

func (c Class) String() string {
	switch c {
	case ClassTransient:
		return "transient"
	case ClassPermanent:
		return "permanent"
	case ClassResource:
		return "resource"
	default:
		return "unknown"
	}
}

// ClassifiedError attaches a failure class and the pipeline stage that
// produced it to an underlying error. It survives fmt.Errorf %w wrapping.
type ClassifiedError struct {
	Class Class
	Stage string
	Err   error
}

func (e *ClassifiedError) Error() string {
	return fmt.Sprintf("%s: %v (%s)", e.Stage, e.Err, e.Class)
}

func (e *ClassifiedError) Unwrap() error {
	return e.Err
}

// Transient wraps err as a retry-eligible failure.
func Transient(stage string, err error) error {
	return &ClassifiedError{Class: ClassTransient, Stage: stage, Err: err}
}

// Permanent wraps err as a failure that must not be retried.
func Permanent(stage string, err error) error {
	return &ClassifiedError{Class: ClassPermanent, Stage: stage, Err: err}
}

// Resource wraps err as a capacity/limit failure.
func Resource(stage string, err error) error {
	return &ClassifiedError{Class: ClassResource, Stage: stage, Err: err}
}

// ErrRateLimited marks a provider's hard rate-limit rejection. The worker
// pool uses it to park the provider until its window resets.
var ErrRateLimited = errors.New("provider rate limited")

// ClassOf returns the failure class of err. Unclassified errors are treated
// as permanent: retrying an error we don't understand wastes the budget.
// Network-level errors without an explicit class are treated as transient.
func ClassOf(err error) Class {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ClassTransient
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ClassTransient
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ClassTransient
	}
	return ClassPermanent
}

// IsTransient reports whether err is retry-eligible.
func IsTransient(err error) bool {
	return err != nil && ClassOf(err) == ClassTransient
}

// classifyStatus maps an HTTP status code to a failure class.
func classifyStatus(code int) Class {
	switch {
	case code == 429:
		return ClassTransient
	case code >= 500:
		return ClassTransient
	default:
		return ClassPermanent
	}
}

// TierFailure records why one acquisition tier gave up.
type TierFailure struct {
	Tier string
	Err  error
}

// AcquisitionError aggregates the terminal failures of every tier attempted,
// so the caller can present a complete diagnostic instead of a bare error.
type AcquisitionError struct {
	VideoID string
	Tiers   []TierFailure
}

func (e *AcquisitionError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "all acquisition tiers failed for %s:", e.VideoID)
	for _, tf := range e.Tiers {
		fmt.Fprintf(&sb, " [%s: %v]", tf.Tier, tf.Err)
	}
	return sb.String()
}
