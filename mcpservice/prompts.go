package mcpservice

import (
	"context"
	"encoding/json"

	"github.com/ggoodman/mcp-peer-go/internal/jsonrpc"
	"github.com/ggoodman/mcp-peer-go/mcp"
	"github.com/ggoodman/mcp-peer-go/sessions"
)

// PromptHandler handles a prompt get request to produce messages.
type PromptHandler func(ctx context.Context, session sessions.Session, req *mcp.GetPromptRequestReceived) (*mcp.GetPromptResult, error)

// StaticPrompt pairs a prompt descriptor with a handler that can materialize it.
type StaticPrompt struct {
	Descriptor mcp.Prompt
	Handler    PromptHandler
}

// PromptRequest carries the decoded arguments of a prompts/get call.
type PromptRequest[A any] struct {
	name string
	raw  map[string]string
	args A
}

func (r *PromptRequest[A]) Name() string                    { return r.name }
func (r *PromptRequest[A]) RawArguments() map[string]string { return r.raw }
func (r *PromptRequest[A]) Args() A                         { return r.args }

// PromptOption configures NewPrompt.
type PromptOption func(*mcp.Prompt)

// WithPromptDescription sets the description shown in prompts/list.
func WithPromptDescription(desc string) PromptOption {
	return func(p *mcp.Prompt) { p.Description = desc }
}

// NewPrompt constructs a prompt whose arguments are the top-level string
// fields of A. Fields without omitempty are advertised as required.
func NewPrompt[A any](name string, fn func(ctx context.Context, session sessions.Session, r *PromptRequest[A]) (*mcp.GetPromptResult, error), opts ...PromptOption) StaticPrompt {
	desc := mcp.Prompt{
		Name:      name,
		Arguments: reflectPromptArguments[A](),
	}
	for _, opt := range opts {
		opt(&desc)
	}

	handler := func(ctx context.Context, session sessions.Session, req *mcp.GetPromptRequestReceived) (*mcp.GetPromptResult, error) {
		var a A
		if len(req.Arguments) > 0 {
			b, err := json.Marshal(req.Arguments)
			if err != nil {
				return nil, err
			}
			if err := json.Unmarshal(b, &a); err != nil {
				return nil, jsonrpc.DecodeError(err)
			}
		}
		return fn(ctx, session, &PromptRequest[A]{name: req.Name, raw: req.Arguments, args: a})
	}
	return StaticPrompt{Descriptor: desc, Handler: handler}
}

// UserText builds a single user-role text message.
func UserText(text string) mcp.PromptMessage {
	return mcp.PromptMessage{Role: mcp.RoleUser, Content: mcp.ContentBlock{Type: mcp.ContentTypeText, Text: text}}
}

// AssistantText builds a single assistant-role text message.
func AssistantText(text string) mcp.PromptMessage {
	return mcp.PromptMessage{Role: mcp.RoleAssistant, Content: mcp.ContentBlock{Type: mcp.ContentTypeText, Text: text}}
}
