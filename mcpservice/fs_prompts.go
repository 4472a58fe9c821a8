package mcpservice

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/ggoodman/mcp-peer-go/mcp"
	"github.com/ggoodman/mcp-peer-go/sessions"
)

var placeholderRE = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

// FSPrompts registers every *.md and *.txt file in a directory as a prompt.
// The file name without extension is the prompt name, {{name}} placeholders
// are required arguments, and a leading "# " line becomes the description.
type FSPrompts struct {
	reg      *Registry
	root     string
	log      *slog.Logger
	debounce time.Duration

	mu     sync.Mutex
	loaded map[string]struct{}
}

// FSPromptsOption configures NewFSPrompts.
type FSPromptsOption func(*FSPrompts)

// WithFSPromptsLogger sets the logger used by Watch.
func WithFSPromptsLogger(l *slog.Logger) FSPromptsOption {
	return func(p *FSPrompts) {
		if l != nil {
			p.log = l
		}
	}
}

// WithFSPromptsDebounce coalesces bursts of file events into one reload.
func WithFSPromptsDebounce(d time.Duration) FSPromptsOption {
	return func(p *FSPrompts) { p.debounce = d }
}

// NewFSPrompts binds a directory to a registry. Nothing is read until Load or
// Watch is called.
func NewFSPrompts(reg *Registry, root string, opts ...FSPromptsOption) *FSPrompts {
	p := &FSPrompts{
		reg:      reg,
		root:     root,
		log:      slog.Default(),
		debounce: 100 * time.Millisecond,
		loaded:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Load scans the directory, registers each prompt file and removes prompts
// whose files have disappeared since the previous Load.
func (p *FSPrompts) Load() error {
	entries, err := os.ReadDir(p.root)
	if err != nil {
		return fmt.Errorf("read prompts dir: %w", err)
	}

	var prompts []StaticPrompt
	seen := make(map[string]struct{})
	for _, e := range entries {
		if e.IsDir() || !isPromptFile(e.Name()) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(p.root, e.Name()))
		if err != nil {
			return fmt.Errorf("read prompt %s: %w", e.Name(), err)
		}
		sp := parsePromptFile(e.Name(), string(data))
		prompts = append(prompts, sp)
		seen[sp.Descriptor.Name] = struct{}{}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.reg.RegisterPrompts(prompts...); err != nil {
		return err
	}
	stale := make([]string, 0)
	for name := range p.loaded {
		if _, ok := seen[name]; !ok {
			stale = append(stale, name)
		}
	}
	sort.Strings(stale)
	for _, name := range stale {
		p.reg.Remove(NamespacePrompts, name)
	}
	p.loaded = seen
	return nil
}

// Watch loads the directory and then reloads it on every change until ctx is
// done.
func (p *FSPrompts) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() {
		_ = w.Close()
	}()
	if err := w.Add(p.root); err != nil {
		return fmt.Errorf("watch %s: %w", p.root, err)
	}
	if err := p.Load(); err != nil {
		return err
	}

	var reload <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !isPromptFile(ev.Name) {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if reload == nil {
				reload = time.After(p.debounce)
			}
		case <-reload:
			reload = nil
			if err := p.Load(); err != nil {
				p.log.WarnContext(ctx, "fsprompts.reload.err", slog.String("dir", p.root), slog.String("err", err.Error()))
				continue
			}
			p.log.DebugContext(ctx, "fsprompts.reload.ok", slog.String("dir", p.root))
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			p.log.DebugContext(ctx, "fsprompts.watch.err", slog.String("err", err.Error()))
		}
	}
}

func isPromptFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md", ".txt":
		return true
	default:
		return false
	}
}

func parsePromptFile(fileName, text string) StaticPrompt {
	name := strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName))
	desc := mcp.Prompt{Name: name}

	body := text
	if first, rest, _ := strings.Cut(text, "\n"); strings.HasPrefix(first, "# ") {
		desc.Description = strings.TrimSpace(strings.TrimPrefix(first, "# "))
		body = strings.TrimLeft(rest, "\r\n")
	}

	seen := make(map[string]bool)
	for _, m := range placeholderRE.FindAllStringSubmatch(body, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			desc.Arguments = append(desc.Arguments, mcp.PromptArgument{Name: m[1], Required: true})
		}
	}

	handler := func(_ context.Context, _ sessions.Session, req *mcp.GetPromptRequestReceived) (*mcp.GetPromptResult, error) {
		rendered := placeholderRE.ReplaceAllStringFunc(body, func(m string) string {
			key := placeholderRE.FindStringSubmatch(m)[1]
			return req.Arguments[key]
		})
		return &mcp.GetPromptResult{
			Description: desc.Description,
			Messages:    []mcp.PromptMessage{UserText(rendered)},
		}, nil
	}
	return StaticPrompt{Descriptor: desc, Handler: handler}
}
