package service

import "errors"

// Failure taxonomy. Only configuration errors are fatal; each of these is
// logged and confined to one dataset, record, or endpoint.
var (
	ErrFetchFailure       = errors.New("fetch failure")
	ErrFormatFailure      = errors.New("format failure")
	ErrDispatchFailure    = errors.New("dispatch failure")
	ErrPersistenceFailure = errors.New("persistence failure")

	ErrPipelinePanic   = errors.New("pipeline panicked")
	ErrCycleInProgress = errors.New("cycle already in progress")
	ErrNotConfigured   = errors.New("service is missing a dependency")

	errMissingIdentity = errors.New("record has neither eventID nor name")
)
