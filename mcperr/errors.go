// Package mcperr defines the typed failures shared by capability handlers,
// the dispatcher and callers of outbound requests.
//
// Handlers return these values (optionally wrapped with fmt.Errorf and %w) and
// the dispatcher translates them into JSON-RPC error responses:
//
//	MissingFieldError   -> -32602 naming the missing field(s)
//	InvalidParamsError  -> -32602
//	InvalidCursorError  -> -32602
//	NotFoundError       -> -32601
//	anything else       -> -32603
//
// Outbound calls fail with ErrConnectionClosed when the transport ends before
// a response arrives, or with *RemoteError when the peer answered with an
// error object.
package mcperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrConnectionClosed is returned to callers awaiting a response when the
// underlying transport closes first.
var ErrConnectionClosed = errors.New("connection closed")

// MissingFieldError indicates that one or more required fields were absent
// from a parameters object.
// This should result in a JSON-RPC "Invalid params" error.
type MissingFieldError struct {
	Fields []string
}

func (e *MissingFieldError) Error() string {
	quoted := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		quoted[i] = "'" + f + "'"
	}
	if len(quoted) == 1 {
		return "missing required field " + quoted[0]
	}
	return "missing required fields " + strings.Join(quoted, ", ")
}

// InvalidParamsError indicates that the provided parameters are invalid.
// This should result in a JSON-RPC "Invalid params" error.
type InvalidParamsError struct {
	Field  string // which field is invalid
	Reason string // why it's invalid
	Err    error
}

func (e *InvalidParamsError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid parameter %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid parameters: %s", e.Reason)
}

func (e *InvalidParamsError) Unwrap() error { return e.Err }

// UnknownField reports a key that the receiving parameter type does not declare.
func UnknownField(name string) *InvalidParamsError {
	return &InvalidParamsError{Field: name, Reason: "unknown field"}
}

// TypeMismatch reports a value whose JSON type does not match the declared one.
func TypeMismatch(field, want string) *InvalidParamsError {
	return &InvalidParamsError{Field: field, Reason: "expected " + want}
}

// InvalidCursorError indicates a pagination cursor that was not produced by
// this server.
// This should result in a JSON-RPC "Invalid params" error.
type InvalidCursorError struct {
	Cursor string
	Err    error
}

func (e *InvalidCursorError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid cursor %q: %v", e.Cursor, e.Err)
	}
	return fmt.Sprintf("invalid cursor %q", e.Cursor)
}

func (e *InvalidCursorError) Unwrap() error { return e.Err }

// NotFoundError indicates a requested item (method, tool, prompt) doesn't exist.
// This should result in a JSON-RPC "Method not found" error.
type NotFoundError struct {
	Type string // "method", "tool", "prompt"
	Name string // identifier that wasn't found
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Type, e.Name)
}

// RemoteError carries the error object a peer returned for one of our requests.
type RemoteError struct {
	Code    int
	Message string
	Data    json.RawMessage
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error %d: %s", e.Code, e.Message)
}
