package citarpc

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Error represents a JSON-RPC error returned by the node (or by the CLI
// client wrapping it).
type Error struct {
	Code    int64  `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

// Standard JSON-RPC 2.0 error codes.
const (
	ParseErrorCode     = -32700
	InvalidRequestCode = -32600
	MethodNotFoundCode = -32601
	InvalidParamsCode  = -32602
	InternalErrorCode  = -32603
)

// ErrNoResult is returned when a successful response carries no result.
var ErrNoResult = errors.New("no result returned")

// NewError creates an Error.
func NewError(code int64, message string, data string) *Error {
	return &Error{Code: code, Message: message, Data: data}
}

// NewInvalidParamsError creates an Error for bad method parameters.
func NewInvalidParamsError(data string) *Error {
	return NewError(InvalidParamsCode, "Invalid params", data)
}

// NewInternalError creates an Error for server-side failures.
func NewInternalError(data string) *Error {
	return NewError(InternalErrorCode, "Internal error", data)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Data) == 0 {
		return fmt.Sprintf("%s (%d)", e.Message, e.Code)
	}
	return fmt.Sprintf("%s (%d) - %s", e.Message, e.Code, e.Data)
}

// Is denotes whether the error matches the target one. Only codes are
// compared.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// UnmarshalJSON implements the json.Unmarshaler interface. Non-string data
// is kept as its JSON text.
func (e *Error) UnmarshalJSON(b []byte) error {
	var aux struct {
		Code    int64           `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	e.Code, e.Message, e.Data = aux.Code, aux.Message, ""
	if len(aux.Data) != 0 && string(aux.Data) != "null" {
		var s string
		if err := json.Unmarshal(aux.Data, &s); err == nil {
			e.Data = s
		} else {
			e.Data = string(aux.Data)
		}
	}
	return nil
}
