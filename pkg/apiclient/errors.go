package apiclient

import (
	"errors"
	"fmt"
)

var (
	ErrUnavailable   = errors.New("session storage not available")
	ErrAuthRequired  = errors.New("authentication required")
	ErrAuthRejected  = errors.New("authentication rejected")
	ErrTransport     = errors.New("transport failure")
	ErrRequestFailed = errors.New("request failed")
)

// RequestError is returned for every failed request. Status is 0 for
// failures which did not produce an HTTP response.
type RequestError struct {
	Status  int
	Message string
	Details any
	Err     error
}

func (e *RequestError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%v (status %d): %s", e.Err, e.Status, e.Message)
	}
	return fmt.Sprintf("%v (status %d)", e.Err, e.Status)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// StatusOf returns the status of a *RequestError in err's chain or -1
func StatusOf(err error) int {
	var re *RequestError
	if errors.As(err, &re) {
		return re.Status
	}
	return -1
}

// messageOf extracts a human readable message from parsed error details
func messageOf(details any) string {
	switch d := details.(type) {
	case map[string]any:
		for _, key := range []string{"message", "error", "detail"} {
			if s, ok := d[key].(string); ok && s != "" {
				return s
			}
		}
	case string:
		return d
	}
	return ""
}
