package mcpservice

import (
	"context"
	"strings"
	"sync"

	"github.com/ggoodman/mcp-peer-go/mcp"
	"github.com/ggoodman/mcp-peer-go/sessions"
)

// MaxCompletionValues caps the number of values in a single completion result.
const MaxCompletionValues = 100

// StaticCompletions answers completion/complete for prompt arguments from
// fixed candidate lists. Candidates are matched by prefix in insertion order.
type StaticCompletions struct {
	mu     sync.RWMutex
	values map[string]map[string][]string // prompt -> argument -> candidates
}

var (
	_ CompletionsCapability         = (*StaticCompletions)(nil)
	_ CompletionsCapabilityProvider = (*StaticCompletions)(nil)
)

// NewStaticCompletions returns an empty completion table.
func NewStaticCompletions() *StaticCompletions {
	return &StaticCompletions{values: make(map[string]map[string][]string)}
}

// Add appends candidate values for an argument of the named prompt.
func (c *StaticCompletions) Add(prompt, argument string, values ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	args, ok := c.values[prompt]
	if !ok {
		args = make(map[string][]string)
		c.values[prompt] = args
	}
	args[argument] = append(args[argument], values...)
}

func (c *StaticCompletions) ProvideCompletions(context.Context, sessions.Session) (CompletionsCapability, bool, error) {
	return c, true, nil
}

func (c *StaticCompletions) Complete(_ context.Context, _ sessions.Session, req *mcp.CompleteRequest) (*mcp.CompleteResult, error) {
	matches := []string{}
	if req.Ref.Type == mcp.RefTypePrompt {
		c.mu.RLock()
		for _, v := range c.values[req.Ref.Name][req.Argument.Name] {
			if strings.HasPrefix(v, req.Argument.Value) {
				matches = append(matches, v)
			}
		}
		c.mu.RUnlock()
	}

	total := len(matches)
	hasMore := false
	if total > MaxCompletionValues {
		matches = matches[:MaxCompletionValues]
		hasMore = true
	}
	return &mcp.CompleteResult{Completion: mcp.Completion{Values: matches, Total: total, HasMore: hasMore}}, nil
}
