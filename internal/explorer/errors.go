package explorer

import "errors"

var (
	// ErrUnexpectedStatus is returned when the explorer answers with a non-200 status.
	ErrUnexpectedStatus = errors.New("unexpected explorer status")

	// ErrUnexpectedResponse is returned when the response body has no usable result.
	ErrUnexpectedResponse = errors.New("unexpected explorer response")

	// ErrNoExplorer is returned when no explorer host is known for a chain.
	ErrNoExplorer = errors.New("no explorer configured for chain")
)
