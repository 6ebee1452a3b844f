// Package apierror defines the status-coded error type that crosses the HTTP
// boundary between the archive surface and its clients. Errors carry an HTTP
// status so callers can distinguish not-found from upstream failure without
// string matching.
package apierror

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error is the error type returned by network clients and written by the
// server. A zero status means the status is unknown.
type Error struct {
	err    error
	status int
}

type errorMessage struct {
	Message string `json:",omitempty"`
	Status  int    `json:",omitempty"`
}

// fallbackBody is returned by EncodeError if encoding the real error fails.
var fallbackBody []byte

func init() {
	body, err := json.Marshal(&errorMessage{
		Message: http.StatusText(http.StatusInternalServerError),
	})
	if err != nil {
		panic(err)
	}
	fallbackBody = body
}

func New(err error, status int) *Error {
	return &Error{
		err:    err,
		status: status,
	}
}

// FromResponse builds an error from an HTTP response status and body. A
// blank body yields an error carrying only the status.
func FromResponse(status int, body []byte) error {
	var err error
	if text := strings.TrimSpace(string(body)); text != "" {
		err = errors.New(text)
	}
	if status == 0 {
		return err
	}
	return New(err, status)
}

func (e *Error) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	if e.status == 0 {
		return ""
	}
	if text := http.StatusText(e.status); text != "" {
		return fmt.Sprintf("%d %s", e.status, text)
	}
	return fmt.Sprintf("%d", e.status)
}

func (e *Error) Status() int {
	return e.status
}

func (e *Error) Unwrap() error {
	return e.err
}

// StatusOf returns the HTTP status carried by err, or zero if err carries
// none.
func StatusOf(err error) int {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Status()
	}
	return 0
}

// EncodeError serializes an error to a JSON body for an HTTP response.
func EncodeError(err error) []byte {
	if err == nil {
		return nil
	}
	em := errorMessage{
		Message: err.Error(),
		Status:  StatusOf(err),
	}
	data, err := json.Marshal(&em)
	if err != nil {
		return fallbackBody
	}
	return data
}

// DecodeError reverses EncodeError on the client side.
func DecodeError(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	var em errorMessage
	if err := json.Unmarshal(data, &em); err != nil {
		return fmt.Errorf("cannot decode error message: %w", err)
	}
	err := errors.New(em.Message)
	if em.Status == 0 {
		return err
	}
	return New(err, em.Status)
}
