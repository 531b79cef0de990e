package support

import "errors"

var (
	// ErrNotFound indicates a referenced error record or article is absent.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates malformed input, such as an unknown source kind.
	ErrValidation = errors.New("validation failed")

	// ErrPartialRetrieval indicates at least one retrieval tier failed.
	// The suggestion result is still usable.
	ErrPartialRetrieval = errors.New("partial retrieval failure")

	// ErrPersistence indicates the feedback write failed.
	ErrPersistence = errors.New("persistence failure")
)
