package domain

import "errors"

var (
	// ErrAlreadyOpen means a register was attempted for a symbol that
	// already has an open record. The caller must close first; this is an
	// upstream logic error, never silently overwritten.
	ErrAlreadyOpen = errors.New("position already open for symbol")

	// ErrPositionNotFound means the symbol has no open record. For update
	// and remove callers this is a normal concurrency outcome: the other
	// loop closed the position first.
	ErrPositionNotFound = errors.New("no open position for symbol")

	// ErrSizeTooSmall means the sizing clamp produced a notional below the
	// exchange minimum. The open is skipped, never rounded up.
	ErrSizeTooSmall = errors.New("computed size below exchange minimum")
)
