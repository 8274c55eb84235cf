package override

import "errors"

// Domain errors for override operations
var (
	ErrOverrideNotFound      = errors.New("override.errors.override_not_found")
	ErrInvalidStatus         = errors.New("override.errors.invalid_status")
	ErrInvalidTransition     = errors.New("override.errors.invalid_transition")
	ErrInvalidContractWindow = errors.New("override.errors.invalid_contract_window")
	ErrStorageUnavailable    = errors.New("override.errors.storage_unavailable")
)
