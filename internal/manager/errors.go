package manager

import "errors"

var (
	// ErrUnknownTransaction is returned when an operation names a
	// transaction that was never begun.
	ErrUnknownTransaction = errors.New("unknown transaction")

	// ErrTransactionExists is returned by Begin/BeginRO when the
	// transaction id is already in use by a live transaction.
	ErrTransactionExists = errors.New("transaction already begun")

	// ErrUnknownSite is returned when an operation names a site id
	// outside 1..10.
	ErrUnknownSite = errors.New("unknown site")
)
