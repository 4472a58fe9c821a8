package mcpservice

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/ggoodman/mcp-peer-go/mcp"
	"github.com/ggoodman/mcp-peer-go/mcperr"
	"github.com/ggoodman/mcp-peer-go/sessions"
	"github.com/google/go-cmp/cmp"
)

type searchArgs struct {
	Query string   `json:"query" jsonschema:"description=Search terms"`
	Limit int      `json:"limit,omitempty"`
	Tags  []string `json:"tags,omitempty"`
}

func TestNewToolReflectsInputSchema(t *testing.T) {
	t.Parallel()

	tool := NewTool[searchArgs]("search", func(context.Context, sessions.Session, ToolResponseWriter, *ToolRequest[searchArgs]) error {
		return nil
	}, WithToolDescription("Search things"))

	want := mcp.Tool{
		Name:        "search",
		Description: "Search things",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]mcp.SchemaProperty{
				"query": {Type: "string", Description: "Search terms"},
				"limit": {Type: "integer"},
				"tags":  {Type: "array", Items: &mcp.SchemaProperty{Type: "string"}},
			},
			Required: []string{"query"},
		},
	}
	if diff := cmp.Diff(want, tool.Descriptor); diff != "" {
		t.Fatalf("descriptor mismatch (-want +got):\n%s", diff)
	}
}

func TestNewToolDecodesTypedArguments(t *testing.T) {
	t.Parallel()

	var got searchArgs
	tool := NewTool[searchArgs]("search", func(ctx context.Context, s sessions.Session, w ToolResponseWriter, r *ToolRequest[searchArgs]) error {
		got = r.Args()
		if r.Name() != "search" {
			t.Errorf("unexpected name %q", r.Name())
		}
		return w.AppendText("done")
	})

	res, err := tool.Handler(context.Background(), nopSession{}, &mcp.CallToolRequestReceived{
		Name:      "search",
		Arguments: json.RawMessage(`{"query":"go","limit":3,"tags":["a","b"]}`),
	})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if diff := cmp.Diff(searchArgs{Query: "go", Limit: 3, Tags: []string{"a", "b"}}, got); diff != "" {
		t.Fatalf("args mismatch (-want +got):\n%s", diff)
	}
	if res.IsError || len(res.Content) != 1 || res.Content[0].Text != "done" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestNewToolDecodeErrorsAreTyped(t *testing.T) {
	t.Parallel()

	tool := NewTool[searchArgs]("search", func(context.Context, sessions.Session, ToolResponseWriter, *ToolRequest[searchArgs]) error {
		t.Errorf("handler must not run")
		return nil
	})

	_, err := tool.Handler(context.Background(), nopSession{}, &mcp.CallToolRequestReceived{
		Name:      "search",
		Arguments: json.RawMessage(`{"query":"go","limit":"three"}`),
	})
	var ip *mcperr.InvalidParamsError
	if !errors.As(err, &ip) || ip.Field != "limit" {
		t.Fatalf("expected type mismatch on limit, got %T %v", err, err)
	}
}

func TestNewToolHandlerErrorPropagates(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	tool := NewTool[struct{}]("fail", func(context.Context, sessions.Session, ToolResponseWriter, *ToolRequest[struct{}]) error {
		return boom
	})
	_, err := tool.Handler(context.Background(), nopSession{}, &mcp.CallToolRequestReceived{Name: "fail"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestToolResponseWriter(t *testing.T) {
	t.Parallel()

	var reported []float64
	ctx := WithProgressReporter(context.Background(), ProgressReporterFunc(func(_ context.Context, progress, total float64, _ string) error {
		reported = append(reported, progress, total)
		return nil
	}))

	w := newToolResponseWriter(ctx)
	if err := w.AppendText("one"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := w.AppendImage([]byte{1, 2, 3}, "image/png"); err != nil {
		t.Fatalf("append image: %v", err)
	}
	if err := w.SendProgress(1, 2, "half"); err != nil {
		t.Fatalf("progress: %v", err)
	}
	w.SetError(true)
	w.SetMeta("k", "v")

	res := w.Result()
	want := &mcp.CallToolResult{
		Content: []mcp.ContentBlock{
			{Type: "text", Text: "one"},
			{Type: "image", Data: "AQID", MimeType: "image/png"},
		},
		IsError:      true,
		BaseMetadata: mcp.BaseMetadata{Meta: map[string]any{"k": "v"}},
	}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{1, 2}, reported); diff != "" {
		t.Fatalf("progress mismatch (-want +got):\n%s", diff)
	}
	if err := w.AppendText("late"); !errors.Is(err, ErrFinalized) {
		t.Fatalf("expected ErrFinalized, got %v", err)
	}
}

func TestToolResponseWriterHonorsCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	w := newToolResponseWriter(ctx)
	cancel()
	if err := w.AppendText("x"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if err := w.SendProgress(1, 0, ""); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled from progress, got %v", err)
	}
}

func TestEmptyResultKeepsContentArray(t *testing.T) {
	t.Parallel()

	b, err := json.Marshal(newToolResponseWriter(context.Background()).Result())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if got, want := string(b), `{"content":[]}`; got != want {
		t.Fatalf("got %s want %s", got, want)
	}
}
