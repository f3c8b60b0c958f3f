package api

import (
	"errors"
	"fmt"
)

var (
	// ErrUnreachable wraps transport failures: refused connections, DNS,
	// timeouts.
	ErrUnreachable = errors.New("backend unreachable")
	// ErrMalformed is returned when a response does not match the contract.
	ErrMalformed = errors.New("malformed backend response")
	// ErrAlreadyPosted is returned by PostNow for an item that was
	// published before.
	ErrAlreadyPosted = errors.New("post was already published")
)

// StatusError is a non-2xx reply from the backend.
type StatusError struct {
	Op     string
	Status int
	// Body is the backend's detail message, or the raw body when it has none.
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: backend returned %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: backend returned %d: %s", e.Op, e.Status, e.Body)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, status int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == status
}
