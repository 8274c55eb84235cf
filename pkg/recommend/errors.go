package recommend

import "errors"

// Domain errors for recommendation operations
var (
	ErrRecommendationNotFound = errors.New("recommend.errors.recommendation_not_found")
	ErrInvalidTransition      = errors.New("recommend.errors.invalid_transition")
	ErrInsufficientHistory    = errors.New("recommend.errors.insufficient_history")
	ErrStorageUnavailable     = errors.New("recommend.errors.storage_unavailable")
)
