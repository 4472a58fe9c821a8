package mcpservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ggoodman/mcp-peer-go/mcp"
	"github.com/ggoodman/mcp-peer-go/mcperr"
	"github.com/ggoodman/mcp-peer-go/sessions"
	"github.com/google/go-cmp/cmp"
)

type nopSession struct{ sessions.Session }

type reverseArgs struct {
	S string `json:"s" jsonschema:"description=Text to reverse"`
}

func reverseTool() StaticTool {
	return NewTool[reverseArgs]("reverseString", func(ctx context.Context, s sessions.Session, w ToolResponseWriter, r *ToolRequest[reverseArgs]) error {
		runes := []rune(r.Args().S)
		for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
			runes[i], runes[j] = runes[j], runes[i]
		}
		return w.AppendText(string(runes))
	}, WithToolDescription("Reverse a string"))
}

func namedTool(name string) StaticTool {
	return StaticTool{
		Descriptor: mcp.Tool{Name: name, InputSchema: mcp.ToolInputSchema{Type: "object"}},
		Handler: func(context.Context, sessions.Session, *mcp.CallToolRequestReceived) (*mcp.CallToolResult, error) {
			return TextResult(name), nil
		},
	}
}

func toolNames(caps []Capability) []string {
	var names []string
	for _, c := range caps {
		names = append(names, c.Name())
	}
	return names
}

func TestRegistryInvokeTool(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	if err := reg.RegisterTools(reverseTool()); err != nil {
		t.Fatalf("register: %v", err)
	}

	res, err := reg.InvokeTool(context.Background(), nopSession{}, &mcp.CallToolRequestReceived{
		Name:      "reverseString",
		Arguments: json.RawMessage(`{"s":"abc"}`),
	})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	want := &mcp.CallToolResult{Content: []mcp.ContentBlock{{Type: "text", Text: "cba"}}}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestRegistryInvokeToolErrors(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	if err := reg.RegisterTools(reverseTool()); err != nil {
		t.Fatalf("register: %v", err)
	}

	tests := []struct {
		name  string
		tool  string
		args  string
		check func(t *testing.T, err error)
	}{
		{
			name: "unknown tool",
			tool: "nope",
			args: `{}`,
			check: func(t *testing.T, err error) {
				var nf *mcperr.NotFoundError
				if !errors.As(err, &nf) || nf.Type != "tool" || nf.Name != "nope" {
					t.Fatalf("expected tool NotFoundError, got %T %v", err, err)
				}
			},
		},
		{
			name: "missing required",
			tool: "reverseString",
			args: `{}`,
			check: func(t *testing.T, err error) {
				var mf *mcperr.MissingFieldError
				if !errors.As(err, &mf) {
					t.Fatalf("expected MissingFieldError, got %T %v", err, err)
				}
				if diff := cmp.Diff([]string{"s"}, mf.Fields); diff != "" {
					t.Fatalf("fields mismatch (-want +got):\n%s", diff)
				}
			},
		},
		{
			name: "absent arguments",
			tool: "reverseString",
			args: ``,
			check: func(t *testing.T, err error) {
				var mf *mcperr.MissingFieldError
				if !errors.As(err, &mf) {
					t.Fatalf("expected MissingFieldError, got %T %v", err, err)
				}
			},
		},
		{
			name: "unknown field",
			tool: "reverseString",
			args: `{"s":"x","extra":true}`,
			check: func(t *testing.T, err error) {
				var ip *mcperr.InvalidParamsError
				if !errors.As(err, &ip) || ip.Field != "extra" {
					t.Fatalf("expected unknown field error for extra, got %T %v", err, err)
				}
			},
		},
		{
			name: "type mismatch",
			tool: "reverseString",
			args: `{"s":42}`,
			check: func(t *testing.T, err error) {
				var ip *mcperr.InvalidParamsError
				if !errors.As(err, &ip) || ip.Field != "s" || ip.Reason != "expected string" {
					t.Fatalf("expected type mismatch on s, got %T %v", err, err)
				}
			},
		},
		{
			name: "arguments not an object",
			tool: "reverseString",
			args: `["abc"]`,
			check: func(t *testing.T, err error) {
				var ip *mcperr.InvalidParamsError
				if !errors.As(err, &ip) || ip.Field != "arguments" {
					t.Fatalf("expected arguments error, got %T %v", err, err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := reg.InvokeTool(context.Background(), nopSession{}, &mcp.CallToolRequestReceived{
				Name:      tt.tool,
				Arguments: json.RawMessage(tt.args),
			})
			if err == nil {
				t.Fatalf("expected error")
			}
			tt.check(t, err)
		})
	}
}

func TestRegistryPermissiveToolAcceptsUnknownFields(t *testing.T) {
	t.Parallel()

	tool := NewTool[reverseArgs]("lenient", func(ctx context.Context, s sessions.Session, w ToolResponseWriter, r *ToolRequest[reverseArgs]) error {
		return w.AppendText(r.Args().S)
	}, WithToolAllowAdditionalProperties(true))

	reg := NewRegistry()
	if err := reg.RegisterTools(tool); err != nil {
		t.Fatalf("register: %v", err)
	}
	res, err := reg.InvokeTool(context.Background(), nopSession{}, &mcp.CallToolRequestReceived{
		Name:      "lenient",
		Arguments: json.RawMessage(`{"s":"ok","extra":1}`),
	})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if got := res.Content[0].Text; got != "ok" {
		t.Fatalf("expected ok, got %q", got)
	}
}

func TestRegistryOrderAndOverwrite(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	if err := reg.RegisterTools(namedTool("a"), namedTool("b"), namedTool("c")); err != nil {
		t.Fatalf("register: %v", err)
	}

	replacement := namedTool("b")
	replacement.Descriptor.Description = "second"
	if err := reg.RegisterTools(replacement); err != nil {
		t.Fatalf("re-register: %v", err)
	}

	caps := reg.List(NamespaceTools)
	if diff := cmp.Diff([]string{"a", "b", "c"}, toolNames(caps)); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
	if got := caps[1].Tool.Descriptor.Description; got != "second" {
		t.Fatalf("expected overwritten descriptor, got %q", got)
	}

	if !reg.Remove(NamespaceTools, "a") {
		t.Fatalf("expected remove to succeed")
	}
	if reg.Remove(NamespaceTools, "a") {
		t.Fatalf("expected second remove to report nothing removed")
	}
	if diff := cmp.Diff([]string{"b", "c"}, toolNames(reg.List(NamespaceTools))); diff != "" {
		t.Fatalf("order after remove mismatch (-want +got):\n%s", diff)
	}
}

func TestRegistryNamespacesAreSeparate(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	if err := reg.RegisterTools(namedTool("shared")); err != nil {
		t.Fatalf("register tool: %v", err)
	}
	if _, err := reg.Lookup(NamespacePrompts, "shared"); err == nil {
		t.Fatalf("expected prompt lookup to fail")
	}
	c, err := reg.Lookup(NamespaceTools, "shared")
	if err != nil {
		t.Fatalf("lookup tool: %v", err)
	}
	if c.Tool == nil || c.Prompt != nil {
		t.Fatalf("expected tool capability, got %+v", c)
	}
}

func TestRegistryRejectsInvalidCapabilities(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	err := reg.Register(
		ToolCapability(namedTool("ok")),
		ToolCapability(StaticTool{Descriptor: mcp.Tool{Name: "nohandler"}}),
	)
	if err == nil {
		t.Fatalf("expected error for missing handler")
	}
	if got := len(reg.List(NamespaceTools)); got != 0 {
		t.Fatalf("expected nothing registered, got %d", got)
	}
	if err := reg.Register(Capability{Namespace: "widgets"}); err == nil {
		t.Fatalf("expected error for unknown namespace")
	}
}

func TestRegistryToolsPagination(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(WithPageSize(2))
	for i := 0; i < 5; i++ {
		if err := reg.RegisterTools(namedTool(fmt.Sprintf("t%d", i))); err != nil {
			t.Fatalf("register: %v", err)
		}
	}

	var names []string
	cursor := ""
	pages := 0
	for {
		page, err := reg.Tools().ListTools(context.Background(), nopSession{}, cursor)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		pages++
		for _, tool := range page.Items {
			names = append(names, tool.Name)
		}
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}
	if pages != 3 {
		t.Fatalf("expected 3 pages, got %d", pages)
	}
	if diff := cmp.Diff([]string{"t0", "t1", "t2", "t3", "t4"}, names); diff != "" {
		t.Fatalf("names mismatch (-want +got):\n%s", diff)
	}

	_, err := reg.Tools().ListTools(context.Background(), nopSession{}, "not-a-cursor")
	var ic *mcperr.InvalidCursorError
	if !errors.As(err, &ic) {
		t.Fatalf("expected InvalidCursorError, got %T %v", err, err)
	}
}

func TestRegistryListChangedNotifiesSubscribers(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	lc, ok, err := reg.Tools().GetListChangedCapability(ctx, nopSession{})
	if err != nil || !ok {
		t.Fatalf("expected list changed capability, ok=%v err=%v", ok, err)
	}
	fired := make(chan struct{}, 4)
	if _, err := lc.Register(ctx, nopSession{}, func(context.Context, sessions.Session) error {
		fired <- struct{}{}
		return nil
	}); err != nil {
		t.Fatalf("register listener: %v", err)
	}

	if err := reg.RegisterTools(namedTool("late")); err != nil {
		t.Fatalf("register: %v", err)
	}
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for list changed")
	}

	// Prompt changes do not reach tools listeners.
	if err := reg.RegisterPrompts(greetingPrompt()); err != nil {
		t.Fatalf("register prompt: %v", err)
	}
	select {
	case <-fired:
		t.Fatalf("unexpected tools notification for prompt change")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRegistryRenderPrompt(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	if err := reg.RegisterPrompts(greetingPrompt()); err != nil {
		t.Fatalf("register: %v", err)
	}

	res, err := reg.RenderPrompt(context.Background(), nopSession{}, &mcp.GetPromptRequestReceived{
		Name:      "greeting",
		Arguments: map[string]string{"name": "Ada"},
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got := res.Messages[0].Content.Text; got != "Hello, Ada!" {
		t.Fatalf("unexpected text %q", got)
	}

	_, err = reg.RenderPrompt(context.Background(), nopSession{}, &mcp.GetPromptRequestReceived{Name: "greeting"})
	var mf *mcperr.MissingFieldError
	if !errors.As(err, &mf) || mf.Fields[0] != "name" {
		t.Fatalf("expected missing name, got %T %v", err, err)
	}

	_, err = reg.RenderPrompt(context.Background(), nopSession{}, &mcp.GetPromptRequestReceived{
		Name:      "greeting",
		Arguments: map[string]string{"name": "Ada", "mood": "happy"},
	})
	var ip *mcperr.InvalidParamsError
	if !errors.As(err, &ip) || ip.Field != "mood" {
		t.Fatalf("expected unknown argument mood, got %T %v", err, err)
	}
}
