// Package faults defines the error taxonomy shared by the git executor, the
// reasoning pipeline, and the tool server. Transient kinds (network, rate
// limit) are absorbed by the retry policy; a malformed response gets a single
// strict re-prompt in the pipeline instead of a retry; everything else
// surfaces as a typed tool error with a stable JSON-RPC code.
package faults

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies an error for propagation and retry decisions.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindRepositoryBusy    Kind = "repository_busy"
	KindGitOperation      Kind = "git_operation"
	KindNetwork           Kind = "network"
	KindRateLimit         Kind = "rate_limit"
	KindMalformedResponse Kind = "malformed_response"
	KindAuthentication    Kind = "authentication"
	KindTimeout           Kind = "timeout"
)

// Fault is a classified error. It wraps an optional cause.
type Fault struct {
	Kind  Kind
	Msg   string
	Cause error

	// RetryAfter carries a server-provided minimum delay for rate-limit
	// responses. Zero means the server gave none.
	RetryAfter time.Duration
}

func (f *Fault) Error() string {
	if f.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Msg, f.Cause)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Msg)
}

func (f *Fault) Unwrap() error { return f.Cause }

// New creates a Fault without a cause.
func New(kind Kind, format string, args ...any) *Fault {
	return &Fault{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap creates a Fault wrapping an underlying error.
func Wrap(kind Kind, err error, format string, args ...any) *Fault {
	return &Fault{Kind: kind, Msg: fmt.Sprintf(format, args...), Cause: err}
}

// Validation reports bad arguments or a path that does not exist.
func Validation(format string, args ...any) *Fault {
	return New(KindValidation, format, args...)
}

// RepositoryBusy reports lock contention on the repository.
func RepositoryBusy(format string, args ...any) *Fault {
	return New(KindRepositoryBusy, format, args...)
}

// GitOperation reports a rejected or failed repository mutation.
func GitOperation(err error, format string, args ...any) *Fault {
	return Wrap(KindGitOperation, err, format, args...)
}

// RateLimited reports a 429 from the generation service. retryAfter is the
// server-provided minimum delay, or zero.
func RateLimited(retryAfter time.Duration, format string, args ...any) *Fault {
	f := New(KindRateLimit, format, args...)
	f.RetryAfter = retryAfter
	return f
}

// RetryAfterOf extracts the server-provided minimum delay from err, or zero.
func RetryAfterOf(err error) time.Duration {
	var f *Fault
	if errors.As(err, &f) {
		return f.RetryAfter
	}
	return 0
}

// KindOf returns the Kind of err, or "" if err carries no Fault.
func KindOf(err error) Kind {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Transient reports whether err should be retried by the retry policy.
// Authentication failures are never transient.
func Transient(err error) bool {
	switch KindOf(err) {
	case KindNetwork, KindRateLimit:
		return true
	}
	return false
}

// JSON-RPC error codes used by the tool server. -32700/-32601/-32602 follow
// the JSON-RPC 2.0 reserved range; the -3200x block is ours.
const (
	CodeParse       = -32700
	CodeUnknownTool = -32601
	CodeValidation  = -32602
	CodeBusy        = -32001
	CodeGit         = -32002
	CodeTimeout     = -32003
	CodeInternal    = -32000
)

// RPCCode maps an error to the wire code the tool server returns.
func RPCCode(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return CodeValidation
	case KindRepositoryBusy:
		return CodeBusy
	case KindGitOperation:
		return CodeGit
	case KindTimeout:
		return CodeTimeout
	case KindAuthentication:
		return CodeValidation
	default:
		return CodeInternal
	}
}
