// Package rpcerr maps failures raised while serving a request onto JSON-RPC
// error codes and messages.
package rpcerr

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ggoodman/mcp-peer-go/internal/jsonrpc"
	"github.com/ggoodman/mcp-peer-go/mcperr"
)

// Classify returns the JSON-RPC error code and message for err. It is pure and
// total: every error, including nil, yields a code. When method is non-empty
// it is appended to the message as context.
//
// Rules, first match wins:
//  1. missing required field(s)          -> invalid params naming the fields
//  2. other parameter shape failures     -> invalid params
//  3. unknown method, tool or prompt     -> method not found
//  4. malformed wire message             -> parse error
//  5. anything else                      -> internal error with err's message
func Classify(method string, err error) (jsonrpc.ErrorCode, string) {
	code, msg := classify(err)
	if method != "" {
		msg = fmt.Sprintf("%s in %s request", msg, method)
	}
	return code, msg
}

func classify(err error) (jsonrpc.ErrorCode, string) {
	var (
		missing   *mcperr.MissingFieldError
		invalid   *mcperr.InvalidParamsError
		cursor    *mcperr.InvalidCursorError
		syntax    *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
		notFound  *mcperr.NotFoundError
		malformed *jsonrpc.MalformedMessageError
	)

	switch {
	case err == nil:
		return jsonrpc.ErrorCodeInternalError, "internal error"
	case errors.As(err, &missing):
		return jsonrpc.ErrorCodeInvalidParams, missing.Error()
	case errors.As(err, &invalid), errors.As(err, &cursor), errors.As(err, &syntax), errors.As(err, &typeErr):
		return jsonrpc.ErrorCodeInvalidParams, "invalid parameters"
	case errors.As(err, &notFound):
		return jsonrpc.ErrorCodeMethodNotFound, notFound.Error()
	case errors.As(err, &malformed):
		return jsonrpc.ErrorCodeParseError, "parse error"
	default:
		return jsonrpc.ErrorCodeInternalError, "internal error: " + err.Error()
	}
}

// Detail returns optional structured data describing err for the error
// object's data member, or nil when there is nothing beyond the message.
func Detail(err error) any {
	var invalid *mcperr.InvalidParamsError
	if errors.As(err, &invalid) {
		d := map[string]string{"reason": invalid.Reason}
		if invalid.Field != "" {
			d["field"] = invalid.Field
		}
		return d
	}
	var cursor *mcperr.InvalidCursorError
	if errors.As(err, &cursor) {
		return map[string]string{"reason": "invalid cursor"}
	}
	return nil
}
