package api

import (
	"errors"
	"fmt"
)

var (
	// ErrTransient marks failures with no durable effect: the request may
	// never have reached the server, or the response was lost. Safe to
	// retry any number of times.
	ErrTransient = errors.New("transient network error")

	// ErrUnauthorized is the authentication collaborator's failure,
	// propagated verbatim. Retrying without new credentials cannot succeed,
	// so nothing in the agent retries it.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound is a normal lookup outcome, not a fault.
	ErrNotFound = errors.New("not found")
)

// RejectedError is a server-side validation rejection of a direct write.
type RejectedError struct {
	Status int
	Reason string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("server rejected request (%d): %s", e.Status, e.Reason)
}
