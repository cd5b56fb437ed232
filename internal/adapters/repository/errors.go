package repository

import (
	"errors"
	"fmt"
)

// Sentinel kinds for storage errors.
var (
	ErrClosed       = errors.New("store closed")
	ErrPathRequired = errors.New("storage directory is required")
)

// ErrUnknownDriver is returned by Open for an unsupported driver name.
type ErrUnknownDriver struct {
	Driver string
}

func (e ErrUnknownDriver) Error() string {
	return fmt.Sprintf("unknown storage driver: %q", e.Driver)
}
