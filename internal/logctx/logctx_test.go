package logctx

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestHandlerAddsContextGroups(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(New(slog.NewJSONHandler(&buf, nil))).With(slog.String("component", "engine"))

	ctx := WithRPCMessage(context.Background(), &RPCMessage{Method: "tools/call", ID: "1", Type: "request"})
	ctx = WithToolCallData(ctx, &ToolCallData{ToolName: "reverseString"})
	log.InfoContext(ctx, "engine.handle_request.ok")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("unmarshal log record: %v", err)
	}
	rpc, ok := rec["rpc"].(map[string]any)
	if !ok || rpc["method"] != "tools/call" || rpc["id"] != "1" {
		t.Fatalf("rpc group = %v", rec["rpc"])
	}
	tool, ok := rec["tool"].(map[string]any)
	if !ok || tool["name"] != "reverseString" {
		t.Fatalf("tool group = %v", rec["tool"])
	}
	if rec["component"] != "engine" {
		t.Fatalf("With attrs lost: %v", rec)
	}
	if _, ok := rec["sess"]; ok {
		t.Fatalf("unexpected sess group without session data")
	}
}
