package jsonrpc

import (
	"encoding/json"
	"testing"
)

func TestRequestIDEchoesOriginalForm(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{`"abc"`, `1`, `1.0`, `-5`, `12345678901234567890`} {
		var id RequestID
		if err := json.Unmarshal([]byte(raw), &id); err != nil {
			t.Fatalf("Unmarshal(%s): %v", raw, err)
		}
		out, err := json.Marshal(&id)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if string(out) != raw {
			t.Fatalf("echo of %s = %s", raw, out)
		}
	}
}

func TestRequestIDKeyDistinguishesTypes(t *testing.T) {
	t.Parallel()

	s := NewRequestID("1")
	n := NewRequestID(1)
	if s.String() != n.String() {
		t.Fatalf("String() should match: %q vs %q", s.String(), n.String())
	}
	if s.Key() == n.Key() {
		t.Fatalf("Key() must differ for string and number ids")
	}
	if s.Equal(n) {
		t.Fatalf("string and number ids must not be equal")
	}
	if !NewRequestID("1").Equal(s) {
		t.Fatalf("identical ids must be equal")
	}
}

func TestRequestIDRejectsObjects(t *testing.T) {
	t.Parallel()

	var id RequestID
	if err := json.Unmarshal([]byte(`{"x":1}`), &id); err == nil {
		t.Fatal("expected error for object id")
	}
	if err := json.Unmarshal([]byte(`true`), &id); err == nil {
		t.Fatal("expected error for boolean id")
	}
}
