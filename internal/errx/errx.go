// Package errx attaches formatted detail to a sentinel error while keeping
// errors.Is/errors.As working against the sentinel.
package errx

import "fmt"

type detailed struct {
	sentinel error
	detail   string
}

func (e *detailed) Error() string {
	if e.detail == "" {
		return e.sentinel.Error()
	}
	return e.sentinel.Error() + e.detail
}

func (e *detailed) Unwrap() error { return e.sentinel }

// With returns an error reporting sentinel plus a formatted suffix.
func With(sentinel error, format string, args ...any) error {
	return &detailed{sentinel: sentinel, detail: fmt.Sprintf(format, args...)}
}

// Wrap returns an error reporting sentinel plus err's message.
func Wrap(sentinel error, err error) error {
	if err == nil {
		return sentinel
	}
	return &detailed{sentinel: sentinel, detail: ": " + err.Error()}
}
