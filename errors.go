package flagsmith

import "fmt"

// FlagsmithClientError is returned when a request could not be sent or its
// response could not be decoded.
type FlagsmithClientError struct {
	msg string
	err error
}

// FlagsmithAPIError is returned when the API answers with a non-2xx status.
type FlagsmithAPIError struct {
	msg                string
	ResponseStatusCode int
	ResponseStatus     string
}

func (e *FlagsmithClientError) Error() string {
	if e.err == nil {
		return e.msg
	}
	return e.msg + ": " + e.err.Error()
}

func (e *FlagsmithClientError) Unwrap() error {
	return e.err
}

func (e *FlagsmithAPIError) Error() string {
	return e.msg
}

func newClientError(op string, err error) *FlagsmithClientError {
	return &FlagsmithClientError{
		msg: fmt.Sprintf("flagsmith: %s failed", op),
		err: err,
	}
}

func newAPIError(op string, statusCode int, status string) *FlagsmithAPIError {
	return &FlagsmithAPIError{
		msg:                fmt.Sprintf("flagsmith: %s received error response %d %s", op, statusCode, status),
		ResponseStatusCode: statusCode,
		ResponseStatus:     status,
	}
}
