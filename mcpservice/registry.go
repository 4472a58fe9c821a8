package mcpservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ggoodman/mcp-peer-go/internal/pagination"
	"github.com/ggoodman/mcp-peer-go/mcp"
	"github.com/ggoodman/mcp-peer-go/mcperr"
	"github.com/ggoodman/mcp-peer-go/sessions"
)

// DefaultPageSize is the number of entries per tools/list or prompts/list page
// when the request cursor does not carry its own page size.
const DefaultPageSize = 50

// Namespace separates capability names. A tool and a prompt may share a name.
type Namespace string

const (
	NamespaceTools   Namespace = "tools"
	NamespacePrompts Namespace = "prompts"
)

func (ns Namespace) kind() string {
	switch ns {
	case NamespaceTools:
		return "tool"
	case NamespacePrompts:
		return "prompt"
	default:
		return string(ns)
	}
}

// Capability is a tagged union over the invocable units a Registry holds.
// Exactly one of Tool or Prompt is set, matching Namespace.
type Capability struct {
	Namespace Namespace
	Tool      *StaticTool
	Prompt    *StaticPrompt
}

// ToolCapability wraps a tool for Registry.Register.
func ToolCapability(t StaticTool) Capability {
	return Capability{Namespace: NamespaceTools, Tool: &t}
}

// PromptCapability wraps a prompt for Registry.Register.
func PromptCapability(p StaticPrompt) Capability {
	return Capability{Namespace: NamespacePrompts, Prompt: &p}
}

// Name returns the capability's name within its namespace.
func (c Capability) Name() string {
	switch {
	case c.Namespace == NamespaceTools && c.Tool != nil:
		return c.Tool.Descriptor.Name
	case c.Namespace == NamespacePrompts && c.Prompt != nil:
		return c.Prompt.Descriptor.Name
	default:
		return ""
	}
}

func (c Capability) validate() error {
	switch c.Namespace {
	case NamespaceTools:
		if c.Tool == nil || c.Prompt != nil {
			return errors.New("tool capability must carry exactly one tool")
		}
		if c.Tool.Handler == nil {
			return fmt.Errorf("tool %q has no handler", c.Tool.Descriptor.Name)
		}
	case NamespacePrompts:
		if c.Prompt == nil || c.Tool != nil {
			return errors.New("prompt capability must carry exactly one prompt")
		}
		if c.Prompt.Handler == nil {
			return fmt.Errorf("prompt %q has no handler", c.Prompt.Descriptor.Name)
		}
	default:
		return fmt.Errorf("unknown capability namespace %q", c.Namespace)
	}
	if c.Name() == "" {
		return fmt.Errorf("%s capability has an empty name", c.Namespace.kind())
	}
	return nil
}

type namespaceTable struct {
	order    []string
	entries  map[string]Capability
	notifier ChangeNotifier
}

// Registry maps (namespace, name) to a handler and its declared schema. It is
// safe for concurrent use; listings follow registration order.
type Registry struct {
	mu       sync.RWMutex
	tables   map[Namespace]*namespaceTable
	pageSize int
	log      *slog.Logger

	tools   *RegistryTools
	prompts *RegistryPrompts
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithPageSize sets the default page size for listings.
func WithPageSize(n int) RegistryOption {
	return func(r *Registry) {
		if n > 0 {
			r.pageSize = n
		}
	}
}

// WithRegistryLogger sets the logger used for list-changed delivery failures.
func WithRegistryLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if l != nil {
			r.log = l
		}
	}
}

// NewRegistry returns an empty Registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		tables: map[Namespace]*namespaceTable{
			NamespaceTools:   {entries: map[string]Capability{}},
			NamespacePrompts: {entries: map[string]Capability{}},
		},
		pageSize: DefaultPageSize,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.tools = &RegistryTools{r: r}
	r.prompts = &RegistryPrompts{r: r}
	return r
}

// Register inserts capabilities. A name already present in the namespace is
// replaced in place and keeps its list position. Either every capability is
// registered or, if any is invalid, none is.
func (r *Registry) Register(caps ...Capability) error {
	for _, c := range caps {
		if err := c.validate(); err != nil {
			return err
		}
	}

	changed := make(map[Namespace]bool, 2)
	r.mu.Lock()
	for _, c := range caps {
		t := r.tables[c.Namespace]
		name := c.Name()
		if _, ok := t.entries[name]; !ok {
			t.order = append(t.order, name)
		}
		t.entries[name] = c
		changed[c.Namespace] = true
	}
	r.mu.Unlock()

	for ns := range changed {
		_ = r.tables[ns].notifier.Notify(context.Background())
	}
	return nil
}

// RegisterTools is a convenience wrapper around Register.
func (r *Registry) RegisterTools(tools ...StaticTool) error {
	caps := make([]Capability, len(tools))
	for i, t := range tools {
		caps[i] = ToolCapability(t)
	}
	return r.Register(caps...)
}

// RegisterPrompts is a convenience wrapper around Register.
func (r *Registry) RegisterPrompts(prompts ...StaticPrompt) error {
	caps := make([]Capability, len(prompts))
	for i, p := range prompts {
		caps[i] = PromptCapability(p)
	}
	return r.Register(caps...)
}

// Remove deletes a capability. It reports whether anything was removed.
func (r *Registry) Remove(ns Namespace, name string) bool {
	t, ok := r.tables[ns]
	if !ok {
		return false
	}
	r.mu.Lock()
	if _, ok := t.entries[name]; !ok {
		r.mu.Unlock()
		return false
	}
	delete(t.entries, name)
	for i, n := range t.order {
		if n == name {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	r.mu.Unlock()

	_ = t.notifier.Notify(context.Background())
	return true
}

// Lookup returns the capability registered under (ns, name), or a
// *mcperr.NotFoundError.
func (r *Registry) Lookup(ns Namespace, name string) (Capability, error) {
	t, ok := r.tables[ns]
	if !ok {
		return Capability{}, &mcperr.NotFoundError{Type: ns.kind(), Name: name}
	}
	r.mu.RLock()
	c, ok := t.entries[name]
	r.mu.RUnlock()
	if !ok {
		return Capability{}, &mcperr.NotFoundError{Type: ns.kind(), Name: name}
	}
	return c, nil
}

// List returns the capabilities of ns in registration order.
func (r *Registry) List(ns Namespace) []Capability {
	t, ok := r.tables[ns]
	if !ok {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Capability, 0, len(t.order))
	for _, name := range t.order {
		out = append(out, t.entries[name])
	}
	return out
}

// InvokeTool validates the call arguments against the tool's input schema and
// runs its handler.
func (r *Registry) InvokeTool(ctx context.Context, session sessions.Session, req *mcp.CallToolRequestReceived) (*mcp.CallToolResult, error) {
	c, err := r.Lookup(NamespaceTools, req.Name)
	if err != nil {
		return nil, err
	}
	if err := validateArguments(c.Tool.Descriptor.InputSchema, req.Arguments); err != nil {
		return nil, err
	}
	return c.Tool.Handler(ctx, session, req)
}

// RenderPrompt validates the prompt arguments and runs the prompt's handler.
func (r *Registry) RenderPrompt(ctx context.Context, session sessions.Session, req *mcp.GetPromptRequestReceived) (*mcp.GetPromptResult, error) {
	c, err := r.Lookup(NamespacePrompts, req.Name)
	if err != nil {
		return nil, err
	}
	if err := validatePromptArguments(c.Prompt.Descriptor, req.Arguments); err != nil {
		return nil, err
	}
	return c.Prompt.Handler(ctx, session, req)
}

// Tools exposes the tools namespace as a ToolsCapability.
func (r *Registry) Tools() *RegistryTools { return r.tools }

// Prompts exposes the prompts namespace as a PromptsCapability.
func (r *Registry) Prompts() *RegistryPrompts { return r.prompts }

func (r *Registry) listChanged(ns Namespace) ListChangedCapability {
	return registryListChanged{r: r, t: r.tables[ns], ns: ns}
}

type registryListChanged struct {
	r  *Registry
	t  *namespaceTable
	ns Namespace
}

func (l registryListChanged) Register(ctx context.Context, s sessions.Session, fn ListChangedFunc) (bool, error) {
	if fn == nil {
		return false, nil
	}
	ch := l.t.notifier.Subscribe(ctx)
	go forward(ctx, ch, func(ctx context.Context) error { return fn(ctx, s) }, func(err error) {
		l.r.log.DebugContext(ctx, "registry.list_changed.err", slog.String("namespace", string(l.ns)), slog.String("err", err.Error()))
	})
	return true, nil
}

// RegistryTools is the tools view of a Registry.
type RegistryTools struct{ r *Registry }

var (
	_ ToolsCapability         = (*RegistryTools)(nil)
	_ ToolsCapabilityProvider = (*RegistryTools)(nil)
)

func (t *RegistryTools) ProvideTools(context.Context, sessions.Session) (ToolsCapability, bool, error) {
	return t, true, nil
}

func (t *RegistryTools) ListTools(ctx context.Context, _ sessions.Session, cursor string) (Page[mcp.Tool], error) {
	caps := t.r.List(NamespaceTools)
	all := make([]mcp.Tool, len(caps))
	for i, c := range caps {
		all[i] = c.Tool.Descriptor
	}
	items, next, err := pagination.Paginate(all, cursor, t.r.pageSize)
	if err != nil {
		return Page[mcp.Tool]{}, err
	}
	return NewPage(items, next), nil
}

func (t *RegistryTools) CallTool(ctx context.Context, session sessions.Session, req *mcp.CallToolRequestReceived) (*mcp.CallToolResult, error) {
	return t.r.InvokeTool(ctx, session, req)
}

func (t *RegistryTools) GetListChangedCapability(context.Context, sessions.Session) (ListChangedCapability, bool, error) {
	return t.r.listChanged(NamespaceTools), true, nil
}

// RegistryPrompts is the prompts view of a Registry.
type RegistryPrompts struct{ r *Registry }

var (
	_ PromptsCapability         = (*RegistryPrompts)(nil)
	_ PromptsCapabilityProvider = (*RegistryPrompts)(nil)
)

func (p *RegistryPrompts) ProvidePrompts(context.Context, sessions.Session) (PromptsCapability, bool, error) {
	return p, true, nil
}

func (p *RegistryPrompts) ListPrompts(ctx context.Context, _ sessions.Session, cursor string) (Page[mcp.Prompt], error) {
	caps := p.r.List(NamespacePrompts)
	all := make([]mcp.Prompt, len(caps))
	for i, c := range caps {
		all[i] = c.Prompt.Descriptor
	}
	items, next, err := pagination.Paginate(all, cursor, p.r.pageSize)
	if err != nil {
		return Page[mcp.Prompt]{}, err
	}
	return NewPage(items, next), nil
}

func (p *RegistryPrompts) GetPrompt(ctx context.Context, session sessions.Session, req *mcp.GetPromptRequestReceived) (*mcp.GetPromptResult, error) {
	return p.r.RenderPrompt(ctx, session, req)
}

func (p *RegistryPrompts) GetListChangedCapability(context.Context, sessions.Session) (ListChangedCapability, bool, error) {
	return p.r.listChanged(NamespacePrompts), true, nil
}
