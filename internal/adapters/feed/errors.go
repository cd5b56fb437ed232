package feed

import (
	"errors"
	"fmt"
)

// ErrFetch wraps every feed or detail page failure.
var ErrFetch = errors.New("feed fetch failed")

// ErrUnexpectedStatus is returned for non-2xx responses.
type ErrUnexpectedStatus struct {
	URL    string
	Status int
}

func (e ErrUnexpectedStatus) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.Status, e.URL)
}
