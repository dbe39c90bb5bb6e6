package server

import (
	"errors"
	"fmt"
	"strings"
	"syscall"
)

// AmbiguousOperationError is reported when a document holds several
// operations and the request does not name one.
type AmbiguousOperationError struct {
	Operations []string
}

func (e *AmbiguousOperationError) Error() string {
	return fmt.Sprintf("document contains %d operations (%s); operationName is required",
		len(e.Operations), strings.Join(e.Operations, ", "))
}

// UnknownOperationError is reported when operationName matches neither an
// operation of the document nor a cataloged one.
type UnknownOperationError struct {
	Name string
}

func (e *UnknownOperationError) Error() string {
	return fmt.Sprintf("unknown operation named %q", e.Name)
}

// UnsupportedOperationError is reported for mutations or subscriptions
// against a schema without that root type.
type UnsupportedOperationError struct {
	Kind string
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("schema does not support %s operations", e.Kind)
}

// PortInUseError is returned by Start when another listener owns the
// address.
type PortInUseError struct {
	Addr string
	Err  error
}

func (e *PortInUseError) Error() string {
	return fmt.Sprintf("port in use: %s", e.Addr)
}

func (e *PortInUseError) Unwrap() error { return e.Err }

// AddressInvalidError is returned by Start when the configured address
// cannot be bound, such as a port outside 1..65535.
type AddressInvalidError struct {
	Addr   string
	Reason string
}

func (e *AddressInvalidError) Error() string {
	return fmt.Sprintf("invalid address %s: %s", e.Addr, e.Reason)
}

// ErrAlreadyRunning is returned by Start on a server that is not Stopped.
var ErrAlreadyRunning = errors.New("server already running")

func isAddrInUse(err error) bool {
	msg := err.Error()
	return errors.Is(err, syscall.EADDRINUSE) ||
		strings.Contains(msg, "address already in use") ||
		strings.Contains(msg, "Only one usage of each socket address")
}
