package gate

import "errors"

// Domain errors for enforcement gate operations
var (
	ErrStorageUnavailable   = errors.New("gate.errors.storage_unavailable")
	ErrReservationExhausted = errors.New("gate.errors.reservation_exhausted")
	ErrInvalidQuantity      = errors.New("gate.errors.invalid_quantity")
)
