package fetcher

import (
	"errors"
	"fmt"
)

// ErrIdentityMismatch means the client presented a different user agent than requested
var ErrIdentityMismatch = errors.New("client identity mismatch")

// StatusError is a non-2xx response
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.Code)
}

// FetchError is returned when every identity has exhausted its retries
type FetchError struct {
	URL      string
	Attempts int
	Err      error // last attempt's failure
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching %s failed after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
