package handlers

import (
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// APIError is the uniform error body every non-2xx response carries:
// {"success": false, "error": "..."}. It implements huma.StatusError so huma
// serializes the struct itself instead of its default problem-details shape.
type APIError struct {
	status  int
	Success bool   `json:"success"`
	Detail  string `json:"error"`
}

func (e *APIError) Error() string  { return e.Detail }
func (e *APIError) GetStatus() int { return e.status }

// InitErrors swaps huma's error constructor so handler errors and schema
// validation failures alike render as APIError. Call once before registering
// operations.
func InitErrors() {
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		detail := msg
		if len(errs) > 0 {
			parts := make([]string, len(errs))
			for i, e := range errs {
				parts[i] = e.Error()
			}
			detail = msg + ": " + strings.Join(parts, "; ")
		}
		return &APIError{status: status, Success: false, Detail: detail}
	}
}

// DataBody wraps a payload in the {"success": true, "data": ...} envelope
// shared by every data-carrying endpoint (conversions, auth, stats).
type DataBody[T any] struct {
	Success bool `json:"success"`
	Data    T    `json:"data"`
}

// DataOutput is the huma response wrapper around DataBody.
type DataOutput[T any] struct {
	Body DataBody[T]
}

// OK wraps data in a success envelope.
func OK[T any](data T) *DataOutput[T] {
	return &DataOutput[T]{Body: DataBody[T]{Success: true, Data: data}}
}

// MsgBody is the envelope for endpoints that confirm an action without
// returning data, such as conversion deletion.
type MsgBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// MsgOutput is the huma response wrapper around MsgBody.
type MsgOutput struct {
	Body MsgBody
}

// Msg wraps a confirmation message in a success envelope.
func Msg(message string) *MsgOutput {
	return &MsgOutput{Body: MsgBody{Success: true, Message: message}}
}
