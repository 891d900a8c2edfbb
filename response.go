package authz

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

// Envelope is the JSON body every response uses
type Envelope struct {
	Success bool           `json:"success"`
	Data    any            `json:"data,omitempty"`
	Error   *EnvelopeError `json:"error,omitempty"`
}

// EnvelopeError is the error member of an Envelope
type EnvelopeError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Success wraps data in a successful envelope
func Success(data any) Envelope {
	return Envelope{Success: true, Data: data}
}

// Failure maps err to its HTTP status and error envelope. Errors that do not
// carry a status render as 500 INTERNAL_ERROR.
func Failure(err error) (int, Envelope) {
	status := http.StatusInternalServerError
	body := &EnvelopeError{
		Code:    TextCodeInternal,
		Message: "internal server error",
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		if richErr.Code > 0 {
			status = richErr.Code
		}
		if richErr.TextCode != "" {
			body.Code = richErr.TextCode
		}
		if richErr.Message != "" && status != http.StatusInternalServerError {
			body.Message = richErr.Message
		}
	}

	return status, Envelope{Success: false, Error: body}
}
