package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	// ErrUnknownAgent is returned for names outside the closed set
	ErrUnknownAgent = errors.New("unknown agent")
	// ErrNoEndpoint is returned when an agent has no configured address
	ErrNoEndpoint = errors.New("agent has no endpoint")
)

// UnknownAgentError carries the offending agent name
type UnknownAgentError struct {
	Name string
}

func (e *UnknownAgentError) Error() string {
	return fmt.Sprintf("unknown agent: %q", e.Name)
}

// Is makes errors.Is(err, ErrUnknownAgent) match
func (e *UnknownAgentError) Is(target error) bool {
	return target == ErrUnknownAgent
}

// BusinessError is an error payload returned by an agent. It is never retried.
type BusinessError struct {
	Agent   Name
	Message string
}

func (e *BusinessError) Error() string {
	return fmt.Sprintf("agent %s: %s", e.Agent, e.Message)
}

// IsTransient reports whether err is a transport-level failure worth retrying
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var business *BusinessError
	if errors.As(err, &business) {
		return false
	}
	if errors.Is(err, ErrUnknownAgent) || errors.Is(err, ErrNoEndpoint) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	if st, ok := status.FromError(err); ok && st.Code() != codes.Unknown {
		switch st.Code() {
		case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
			return true
		default:
			return false
		}
	}

	errMsg := strings.ToLower(err.Error())
	if isPermanentError(errMsg) {
		return false
	}
	return isNetworkError(errMsg)
}

// Error classification helpers

func isNetworkError(errMsg string) bool {
	for _, s := range []string{
		"connection refused",
		"connection reset",
		"timeout",
		"eof",
		"broken pipe",
		"network is unreachable",
		"temporary failure",
		"service unavailable",
		"too many requests",
	} {
		if strings.Contains(errMsg, s) {
			return true
		}
	}
	return false
}

func isPermanentError(errMsg string) bool {
	for _, s := range []string{
		"validation failed",
		"invalid argument",
		"missing required field",
		"permission denied",
		"not found",
		"unauthorized",
		"forbidden",
	} {
		if strings.Contains(errMsg, s) {
			return true
		}
	}
	return false
}

// ErrorMessage extracts a human readable message from an invocation error
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	var business *BusinessError
	if errors.As(err, &business) {
		return business.Message
	}
	if st, ok := status.FromError(err); ok && st.Code() != codes.Unknown {
		return st.Message()
	}
	return err.Error()
}
