package client

import "fmt"

// Error is the normalized failure of an API call. StatusCode is zero when no response
// reached the client.
type Error struct {
	Success    bool   `json:"success"`
	Message    string `json:"error"`
	StatusCode int    `json:"-"`
}

func (e *Error) Error() string {
	if e.StatusCode == 0 {
		return e.Message
	}
	return fmt.Sprintf("[%d] %s", e.StatusCode, e.Message)
}

// Transport reports whether the request never reached the server.
func (e *Error) Transport() bool {
	return e.StatusCode == 0
}

func transportError(err error) *Error {
	return &Error{Success: false, Message: err.Error()}
}

// Result is what mutation calls resolve to: either a value or an error, never a panic
// or a bare Go error.
type Result[T any] struct {
	Value T
	Err   *Error
}

func (r Result[T]) OK() bool {
	return r.Err == nil
}

func succeed[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

func fail[T any](err *Error) Result[T] {
	return Result[T]{Err: err}
}
