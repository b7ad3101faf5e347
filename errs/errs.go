// Package errs provides structured error types and helpers for spawnpool.
package errs

import (
	"errors"
	"sort"
	"strconv"
	"strings"
)

// Code identifies a pool error category.
type Code string

const (
	// CodeDuplicatePool indicates a pool already exists for the template.
	CodeDuplicatePool Code = "duplicate_pool"
	// CodeUntrackedRelease indicates a release of an object no pool has handed out.
	CodeUntrackedRelease Code = "untracked_release"
	// CodePoolNotFound indicates no pool exists for the template and auto-warm is disabled.
	CodePoolNotFound Code = "pool_not_found"
	// CodePoolExhausted indicates a bounded pool has no free objects and cannot grow.
	CodePoolExhausted Code = "pool_exhausted"
	// CodeInvalid indicates invalid input provided by the caller.
	CodeInvalid Code = "invalid_request"
	// CodeClosed indicates the component has been shut down.
	CodeClosed Code = "closed"
	// CodeInstantiate indicates a template failed to produce a clone.
	CodeInstantiate Code = "instantiate_failed"
)

// E captures structured error information produced across spawnpool.
type E struct {
	Pool        string
	Code        Code
	Message     string
	Remediation string
	Metadata    map[string]string

	cause error
}

// Option configures an error envelope.
type Option func(*E)

// New constructs an error envelope for the pool and error code.
func New(pool string, code Code, opts ...Option) *E {
	e := &E{
		Pool:        strings.TrimSpace(pool),
		Code:        code,
		Message:     "",
		Remediation: "",
		Metadata:    nil,
		cause:       nil,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// WithMessage attaches a human-readable message to the error.
func WithMessage(message string) Option {
	trimmed := strings.TrimSpace(message)
	return func(e *E) {
		e.Message = trimmed
	}
}

// WithRemediation attaches remediation guidance to the error.
func WithRemediation(remediation string) Option {
	trimmed := strings.TrimSpace(remediation)
	return func(e *E) {
		e.Remediation = trimmed
	}
}

// WithCause sets the underlying cause error.
func WithCause(err error) Option {
	return func(e *E) {
		e.cause = err
	}
}

// WithField appends a single metadata key/value pair.
func WithField(key, value string) Option {
	return func(e *E) {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" {
			return
		}
		if e.Metadata == nil {
			e.Metadata = make(map[string]string, 1)
		}
		e.Metadata[trimmedKey] = strings.TrimSpace(value)
	}
}

func (e *E) Error() string {
	if e == nil {
		return "<nil>"
	}
	var parts []string

	pool := strings.TrimSpace(e.Pool)
	if pool == "" {
		pool = "unknown"
	}
	parts = append(parts, "pool="+pool)

	code := strings.TrimSpace(string(e.Code))
	if code == "" {
		code = "unknown"
	}
	parts = append(parts, "code="+code)

	if e.Message != "" {
		parts = append(parts, "message="+strconv.Quote(e.Message))
	}
	if e.Remediation != "" {
		parts = append(parts, "remediation="+strconv.Quote(e.Remediation))
	}
	if len(e.Metadata) > 0 {
		keys := make([]string, 0, len(e.Metadata))
		for k := range e.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, k+"="+strconv.Quote(e.Metadata[k]))
		}
		parts = append(parts, "meta="+strings.Join(pairs, ","))
	}
	if e.cause != nil {
		parts = append(parts, "cause="+strconv.Quote(e.cause.Error()))
	}

	return strings.Join(parts, " ")
}

func (e *E) Unwrap() error { return e.cause }

// CodeOf extracts the code of the first envelope in the error chain.
func CodeOf(err error) (Code, bool) {
	var e *E
	if !errors.As(err, &e) || e == nil {
		return "", false
	}
	return e.Code, true
}

// HasCode reports whether the error chain carries an envelope with the code.
func HasCode(err error, code Code) bool {
	got, ok := CodeOf(err)
	return ok && got == code
}
