package mcpservice

import (
	"context"
	"fmt"
	"testing"

	"github.com/ggoodman/mcp-peer-go/mcp"
	"github.com/ggoodman/mcp-peer-go/sessions"
	"github.com/google/go-cmp/cmp"
)

type greetingArgs struct {
	Name  string `json:"name" jsonschema:"description=Who to greet"`
	Style string `json:"style,omitempty"`
}

func greetingPrompt() StaticPrompt {
	return NewPrompt[greetingArgs]("greeting", func(ctx context.Context, s sessions.Session, r *PromptRequest[greetingArgs]) (*mcp.GetPromptResult, error) {
		msg := fmt.Sprintf("Hello, %s!", r.Args().Name)
		if r.Args().Style == "loud" {
			msg = fmt.Sprintf("HELLO, %s!", r.Args().Name)
		}
		return &mcp.GetPromptResult{Messages: []mcp.PromptMessage{UserText(msg)}}, nil
	}, WithPromptDescription("Greet someone"))
}

func TestNewPromptReflectsArguments(t *testing.T) {
	t.Parallel()

	want := mcp.Prompt{
		Name:        "greeting",
		Description: "Greet someone",
		Arguments: []mcp.PromptArgument{
			{Name: "name", Description: "Who to greet", Required: true},
			{Name: "style"},
		},
	}
	if diff := cmp.Diff(want, greetingPrompt().Descriptor); diff != "" {
		t.Fatalf("descriptor mismatch (-want +got):\n%s", diff)
	}
}

func TestNewPromptDecodesArguments(t *testing.T) {
	t.Parallel()

	res, err := greetingPrompt().Handler(context.Background(), nopSession{}, &mcp.GetPromptRequestReceived{
		Name:      "greeting",
		Arguments: map[string]string{"name": "Bo", "style": "loud"},
	})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	want := []mcp.PromptMessage{{Role: mcp.RoleUser, Content: mcp.ContentBlock{Type: "text", Text: "HELLO, Bo!"}}}
	if diff := cmp.Diff(want, res.Messages); diff != "" {
		t.Fatalf("messages mismatch (-want +got):\n%s", diff)
	}
}

func TestStaticCompletions(t *testing.T) {
	t.Parallel()

	c := NewStaticCompletions()
	c.Add("greeting", "style", "loud", "low", "polite")

	complete := func(ref mcp.CompletionReference, arg, value string) mcp.Completion {
		t.Helper()
		res, err := c.Complete(context.Background(), nopSession{}, &mcp.CompleteRequest{
			Ref:      ref,
			Argument: mcp.CompleteArgument{Name: arg, Value: value},
		})
		if err != nil {
			t.Fatalf("complete: %v", err)
		}
		return res.Completion
	}

	prompt := mcp.CompletionReference{Type: mcp.RefTypePrompt, Name: "greeting"}
	if diff := cmp.Diff(mcp.Completion{Values: []string{"loud", "low"}, Total: 2}, complete(prompt, "style", "lo")); diff != "" {
		t.Fatalf("prefix mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(mcp.Completion{Values: []string{}}, complete(prompt, "name", "")); diff != "" {
		t.Fatalf("unknown argument mismatch (-want +got):\n%s", diff)
	}
	resource := mcp.CompletionReference{Type: mcp.RefTypeResource, URI: "file:///x"}
	if diff := cmp.Diff(mcp.Completion{Values: []string{}}, complete(resource, "style", "")); diff != "" {
		t.Fatalf("resource ref mismatch (-want +got):\n%s", diff)
	}
}

func TestStaticCompletionsCapsValues(t *testing.T) {
	t.Parallel()

	c := NewStaticCompletions()
	for i := 0; i < MaxCompletionValues+20; i++ {
		c.Add("p", "a", fmt.Sprintf("v%03d", i))
	}
	res, err := c.Complete(context.Background(), nopSession{}, &mcp.CompleteRequest{
		Ref:      mcp.CompletionReference{Type: mcp.RefTypePrompt, Name: "p"},
		Argument: mcp.CompleteArgument{Name: "a", Value: "v"},
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got := len(res.Completion.Values); got != MaxCompletionValues {
		t.Fatalf("expected %d values, got %d", MaxCompletionValues, got)
	}
	if res.Completion.Total != MaxCompletionValues+20 || !res.Completion.HasMore {
		t.Fatalf("unexpected totals %+v", res.Completion)
	}
}
