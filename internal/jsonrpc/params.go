package jsonrpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"sync"

	"github.com/ggoodman/mcp-peer-go/mcperr"
)

// Validator is implemented by params types that can check required members
// after decoding.
type Validator interface {
	Validate() error
}

// ParamsTable maps a method name to the Go type its params decode into. The
// codec stays type-erased; the dispatcher resolves params through the table
// once it knows which method it is handling.
type ParamsTable struct {
	mu        sync.RWMutex
	factories map[string]func() any
}

// NewParamsTable returns an empty table.
func NewParamsTable() *ParamsTable {
	return &ParamsTable{factories: make(map[string]func() any)}
}

// RegisterParams binds method to a freshly allocated *T per decode.
func RegisterParams[T any](t *ParamsTable, method string) {
	t.Register(method, func() any { return new(T) })
}

// Register binds method to factory, replacing any earlier binding.
func (t *ParamsTable) Register(method string, factory func() any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.factories[method] = factory
}

// Has reports whether method has a registered params type.
func (t *ParamsTable) Has(method string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.factories[method]
	return ok
}

// Decode resolves the params type for method and decodes raw into it. Absent
// or null params decode to the zero value. Unknown methods yield
// *mcperr.NotFoundError; shape problems yield *mcperr.InvalidParamsError or
// whatever the type's Validate method reports.
func (t *ParamsTable) Decode(method string, raw json.RawMessage) (any, error) {
	t.mu.RLock()
	factory, ok := t.factories[method]
	t.mu.RUnlock()
	if !ok {
		return nil, &mcperr.NotFoundError{Type: "method", Name: method}
	}

	v := factory()
	if rm, ok := v.(*json.RawMessage); ok {
		*rm = raw
		return rm, nil
	}
	if len(bytes.TrimSpace(raw)) > 0 && !isNull(raw) {
		if err := json.Unmarshal(raw, v); err != nil {
			return nil, DecodeError(err)
		}
	}
	if val, ok := v.(Validator); ok {
		if err := val.Validate(); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// DecodeError converts an encoding/json failure into the structured
// parameter errors the error mapper understands.
func DecodeError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		e := mcperr.TypeMismatch(typeErr.Field, typeErr.Type.String())
		e.Err = err
		return e
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return &mcperr.InvalidParamsError{Reason: "malformed JSON", Err: err}
	}
	return &mcperr.InvalidParamsError{Reason: err.Error(), Err: err}
}
