package courier

import "errors"

var (
	// ErrUndeliverable means the named target session is missing or has
	// reached a terminal state. The message is logged and dropped, never
	// retried.
	ErrUndeliverable = errors.New("courier: undeliverable target")

	// ErrConfirmationTimeout is the outcome of a confirmation request that
	// received no answer before its deadline.
	ErrConfirmationTimeout = errors.New("courier: confirmation timed out")

	// ErrUnknownConfirmation means no pending confirmation matches the
	// given id or answer code.
	ErrUnknownConfirmation = errors.New("courier: unknown confirmation")
)
