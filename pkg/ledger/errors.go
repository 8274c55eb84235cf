package ledger

import "errors"

// Domain errors for ledger operations
var (
	ErrNegativeDelta      = errors.New("ledger.errors.negative_delta")
	ErrStorageUnavailable = errors.New("ledger.errors.storage_unavailable")
	ErrHistoryUnavailable = errors.New("ledger.errors.history_unavailable")
)
