package api

import "errors"

// ErrServe is returned when the ops server stops unexpectedly.
var ErrServe = errors.New("ops server failed")
