package jsonrpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ProtocolVersion is the supported JSON-RPC protocol version.
const ProtocolVersion = "2.0"

// Kind discriminates the variants of Message.
type Kind int

const (
	KindRequest Kind = iota + 1
	KindNotification
	KindResponse
)

func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindNotification:
		return "notification"
	case KindResponse:
		return "response"
	}
	return "unknown"
}

// Message is a single JSON-RPC message. Kind selects which fields are
// meaningful:
//
//	KindRequest:      ID, Method, Params
//	KindNotification: Method, Params
//	KindResponse:     ID and exactly one of Result or Error
//
// Params and Result are kept as raw JSON; the codec does not interpret them.
type Message struct {
	Kind   Kind
	ID     *RequestID
	Method string
	Params json.RawMessage
	Result json.RawMessage
	Error  *Error
}

// Error is a JSON-RPC error object.
type Error struct {
	Code    ErrorCode       `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// NewRequest builds a request message. params may be nil.
func NewRequest(id *RequestID, method string, params any) (Message, error) {
	raw, err := marshalOptional(params)
	if err != nil {
		return Message{}, fmt.Errorf("failed to marshal params: %w", err)
	}
	return Message{Kind: KindRequest, ID: id, Method: method, Params: raw}, nil
}

// NewNotification builds a notification message. params may be nil.
func NewNotification(method string, params any) (Message, error) {
	raw, err := marshalOptional(params)
	if err != nil {
		return Message{}, fmt.Errorf("failed to marshal params: %w", err)
	}
	return Message{Kind: KindNotification, Method: method, Params: raw}, nil
}

// NewResultResponse builds a successful JSON-RPC response.
func NewResultResponse(id *RequestID, result any) (Message, error) {
	resultBytes, err := marshalCompact(result)
	if err != nil {
		return Message{}, fmt.Errorf("failed to marshal result: %w", err)
	}
	return Message{Kind: KindResponse, ID: id, Result: resultBytes}, nil
}

// NewErrorResponse builds an error JSON-RPC response with the given code.
// data is optional; if it cannot be marshaled it is dropped.
func NewErrorResponse(id *RequestID, code ErrorCode, message string, data any) Message {
	e := &Error{Code: code, Message: message}
	if data != nil {
		if raw, err := marshalCompact(data); err == nil {
			e.Data = raw
		}
	}
	return Message{Kind: KindResponse, ID: id, Error: e}
}

type wireRequest struct {
	JSONRPCVersion string          `json:"jsonrpc"`
	ID             *RequestID      `json:"id"`
	Method         string          `json:"method"`
	Params         json.RawMessage `json:"params,omitempty"`
}

type wireNotification struct {
	JSONRPCVersion string          `json:"jsonrpc"`
	Method         string          `json:"method"`
	Params         json.RawMessage `json:"params,omitempty"`
}

type wireResult struct {
	JSONRPCVersion string          `json:"jsonrpc"`
	ID             *RequestID      `json:"id"`
	Result         json.RawMessage `json:"result"`
}

type wireError struct {
	JSONRPCVersion string     `json:"jsonrpc"`
	ID             *RequestID `json:"id"`
	Error          *Error     `json:"error"`
}

// Marshal renders m as a single line of JSON without a trailing newline.
func Marshal(m Message) ([]byte, error) {
	var v any
	switch m.Kind {
	case KindRequest:
		if m.ID.IsNil() {
			return nil, errors.New("request requires an id")
		}
		if m.Method == "" {
			return nil, errors.New("request requires a method")
		}
		v = wireRequest{JSONRPCVersion: ProtocolVersion, ID: m.ID, Method: m.Method, Params: m.Params}
	case KindNotification:
		if m.Method == "" {
			return nil, errors.New("notification requires a method")
		}
		v = wireNotification{JSONRPCVersion: ProtocolVersion, Method: m.Method, Params: m.Params}
	case KindResponse:
		hasResult := len(m.Result) > 0
		hasError := m.Error != nil
		switch {
		case hasResult && hasError:
			return nil, errors.New("response cannot carry both result and error")
		case hasError:
			v = wireError{JSONRPCVersion: ProtocolVersion, ID: m.ID, Error: m.Error}
		case hasResult:
			v = wireResult{JSONRPCVersion: ProtocolVersion, ID: m.ID, Result: m.Result}
		default:
			return nil, errors.New("response must carry either result or error")
		}
	default:
		return nil, fmt.Errorf("unknown message kind %d", int(m.Kind))
	}
	return marshalCompact(v)
}

// Parse decodes one line of wire text into a Message.
//
// A payload with a method member is a request when it also has a non-null id
// and a notification otherwise. A payload without a method is a response and
// must carry exactly one of result and error. Unknown members are ignored.
// Failures are reported as *MalformedMessageError.
func Parse(data []byte) (Message, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return Message{}, &MalformedMessageError{Reason: "invalid JSON", Err: err}
	}
	if fields == nil {
		return Message{}, &MalformedMessageError{Reason: "message must be an object"}
	}

	var id *RequestID
	if raw, ok := fields["id"]; ok && !isNull(raw) {
		var parsed RequestID
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return Message{}, &MalformedMessageError{Reason: "invalid id", Err: err}
		}
		id = &parsed
	}

	malformed := func(reason string, err error) (Message, error) {
		return Message{}, &MalformedMessageError{ID: id, Reason: reason, Err: err}
	}

	var version string
	if raw, ok := fields["jsonrpc"]; ok {
		if err := json.Unmarshal(raw, &version); err != nil {
			return malformed("invalid jsonrpc member", err)
		}
	}
	if version != ProtocolVersion {
		return malformed(fmt.Sprintf("invalid JSON-RPC version: expected %q, got %q", ProtocolVersion, version), nil)
	}

	result, hasResult := fields["result"]
	rawErr, hasError := fields["error"]
	if hasError && isNull(rawErr) {
		hasError = false
	}

	if rawMethod, ok := fields["method"]; ok {
		var method string
		if err := json.Unmarshal(rawMethod, &method); err != nil {
			return malformed("method must be a string", err)
		}
		if method == "" {
			return malformed("method must not be empty", nil)
		}
		if hasResult || hasError {
			return malformed("request message cannot have result or error fields", nil)
		}
		var params json.RawMessage
		if raw, ok := fields["params"]; ok && !isNull(raw) {
			params = raw
		}
		if id == nil {
			return Message{Kind: KindNotification, Method: method, Params: params}, nil
		}
		return Message{Kind: KindRequest, ID: id, Method: method, Params: params}, nil
	}

	switch {
	case hasResult && hasError:
		return malformed("response message cannot have both result and error fields", nil)
	case !hasResult && !hasError:
		return malformed("response message must have either result or error field", nil)
	case hasError:
		var e Error
		if err := json.Unmarshal(rawErr, &e); err != nil {
			return malformed("invalid error object", err)
		}
		return Message{Kind: KindResponse, ID: id, Error: &e}, nil
	default:
		return Message{Kind: KindResponse, ID: id, Result: result}, nil
	}
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func marshalOptional(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		return raw, nil
	}
	return marshalCompact(v)
}

// marshalCompact encodes without HTML escaping so that embedded raw JSON is
// written back exactly as it was received.
func marshalCompact(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
