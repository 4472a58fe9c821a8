package jsonrpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// RequestID represents a JSON-RPC ID that can be either a string or a number.
//
// Numeric ids keep their original textual form so that they are echoed back
// to the sender byte for byte.
type RequestID struct {
	value interface{} // string or json.Number
}

// NewRequestID creates a new RequestID from a string or integer.
func NewRequestID(value interface{}) *RequestID {
	switch v := value.(type) {
	case string:
		return &RequestID{value: v}
	case json.Number:
		return &RequestID{value: v}
	case int:
		return &RequestID{value: json.Number(strconv.FormatInt(int64(v), 10))}
	case int64:
		return &RequestID{value: json.Number(strconv.FormatInt(v, 10))}
	case uint64:
		return &RequestID{value: json.Number(strconv.FormatUint(v, 10))}
	default:
		return &RequestID{value: nil}
	}
}

// String returns the string representation of the ID.
func (id *RequestID) String() string {
	if id == nil || id.value == nil {
		return ""
	}
	switch v := id.value.(type) {
	case string:
		return v
	case json.Number:
		return string(v)
	default:
		panic("unreachable: RequestID contains unsupported type")
	}
}

// Key returns a map key that keeps the string "1" and the number 1 apart.
func (id *RequestID) Key() string {
	if id == nil || id.value == nil {
		return ""
	}
	if _, ok := id.value.(json.Number); ok {
		return "n:" + id.String()
	}
	return "s:" + id.String()
}

// Value returns the underlying value.
func (id *RequestID) Value() interface{} {
	if id == nil {
		return nil
	}
	return id.value
}

// IsNil returns true if the ID is nil/empty.
func (id *RequestID) IsNil() bool {
	return id == nil || id.value == nil
}

// Equal reports whether both ids carry the same value and type.
func (id *RequestID) Equal(other *RequestID) bool {
	if id.IsNil() || other.IsNil() {
		return id.IsNil() && other.IsNil()
	}
	return id.value == other.value
}

// MarshalJSON implements json.Marshaler.
func (id *RequestID) MarshalJSON() ([]byte, error) {
	if id == nil || id.value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(id.value)
}

// UnmarshalJSON implements json.Unmarshaler.
func (id *RequestID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("JSON-RPC ID must be a string or number, got empty input")
	}
	if bytes.Equal(data, []byte("null")) {
		id.value = nil
		return nil
	}

	if data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return fmt.Errorf("JSON-RPC ID must be a string or number: %w", err)
		}
		id.value = str
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("JSON-RPC ID must be a string or number: %w", err)
	}
	num, ok := v.(json.Number)
	if !ok {
		return fmt.Errorf("JSON-RPC ID must be a string or number, got: %s", string(data))
	}
	id.value = num
	return nil
}
