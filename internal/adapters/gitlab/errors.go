/* Copyright (c) 2025 Brad Jones
 * SPDX-License-Identifier: BSD-3-Clause */
package gitlab

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

type ErrorKind string

const (
	KindProtocol      ErrorKind = "protocol"
	KindTransport     ErrorKind = "transport"
	KindNetwork       ErrorKind = "network"
	KindScopeNotFound ErrorKind = "scope_not_found"
)

// APIError is the classified form of any failure raised while talking to the
// backend. Context carries the operation name supplied by the caller so the
// surfaced message is actionable without a stack trace.
type APIError struct {
	Kind     ErrorKind
	Context  string
	Status   int
	Reason   string
	Messages []string
	Err      error
}

func (e *APIError) Error() string {
	switch e.Kind {
	case KindProtocol:
		return fmt.Sprintf("GitLab Error (%s): %s", e.Context, strings.Join(e.Messages, ", "))
	case KindTransport:
		reason := e.Reason
		if reason == "" {
			reason = "Unknown error"
		}
		return fmt.Sprintf("HTTP %d (%s): %s", e.Status, e.Context, reason)
	case KindScopeNotFound:
		return fmt.Sprintf("Scope not found (%s): %s", e.Context, e.Reason)
	default:
		return fmt.Sprintf("Failed %s: %v", e.Context, e.Err)
	}
}

func (e *APIError) Unwrap() error { return e.Err }

func newProtocolError(opContext string, messages []string) *APIError {
	return &APIError{Kind: KindProtocol, Context: opContext, Messages: messages}
}

func newTransportError(opContext string, status int, reason string) *APIError {
	return &APIError{Kind: KindTransport, Context: opContext, Status: status, Reason: reason}
}

func newNetworkError(opContext string, err error) *APIError {
	return &APIError{Kind: KindNetwork, Context: opContext, Err: err}
}

func newScopeNotFound(opContext, scope string) *APIError {
	return &APIError{Kind: KindScopeNotFound, Context: opContext, Reason: scope}
}

// IsRetryable is advisory metadata for a caller-side retry policy; the
// clients themselves never retry a failed page fetch.
func IsRetryable(err error) bool {
	var ae *APIError
	if !errors.As(err, &ae) {
		return false
	}
	switch ae.Kind {
	case KindTransport:
		return ae.Status == 429 || ae.Status >= 500
	case KindNetwork:
		return isConnFailure(ae.Err)
	default:
		return false
	}
}

func isConnFailure(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNABORTED) || errors.Is(err, syscall.ETIMEDOUT) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
