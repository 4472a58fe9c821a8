package mcpservice

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ggoodman/mcp-peer-go/mcp"
	"github.com/google/go-cmp/cmp"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestFSPromptsLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "review.md"), "# Review code\nReview {{file}} focusing on {{ topic }}. Mention {{file}} by name.\n")
	writeFile(t, filepath.Join(dir, "plain.txt"), "No arguments here.")
	writeFile(t, filepath.Join(dir, "ignored.json"), "{}")

	reg := NewRegistry()
	fp := NewFSPrompts(reg, dir)
	if err := fp.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}

	c, err := reg.Lookup(NamespacePrompts, "review")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	want := mcp.Prompt{
		Name:        "review",
		Description: "Review code",
		Arguments: []mcp.PromptArgument{
			{Name: "file", Required: true},
			{Name: "topic", Required: true},
		},
	}
	if diff := cmp.Diff(want, c.Prompt.Descriptor); diff != "" {
		t.Fatalf("descriptor mismatch (-want +got):\n%s", diff)
	}

	res, err := reg.RenderPrompt(context.Background(), nopSession{}, &mcp.GetPromptRequestReceived{
		Name:      "review",
		Arguments: map[string]string{"file": "main.go", "topic": "errors"},
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got, want := res.Messages[0].Content.Text, "Review main.go focusing on errors. Mention main.go by name.\n"; got != want {
		t.Fatalf("rendered %q, want %q", got, want)
	}

	if _, err := reg.Lookup(NamespacePrompts, "ignored"); err == nil {
		t.Fatalf("non-prompt file should not be registered")
	}

	if err := os.Remove(filepath.Join(dir, "plain.txt")); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := fp.Load(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if _, err := reg.Lookup(NamespacePrompts, "plain"); err == nil {
		t.Fatalf("expected removed prompt to be unregistered")
	}
}

func TestFSPromptsWatchReloads(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	reg := NewRegistry()
	fp := NewFSPrompts(reg, dir, WithFSPromptsDebounce(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- fp.Watch(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	changed := reg.tables[NamespacePrompts].notifier.Subscribe(ctx)
	deadline := time.After(5 * time.Second)
	for {
		// The watcher may not be armed yet; keep touching the file until the
		// prompt shows up.
		writeFile(t, filepath.Join(dir, "hello.md"), "Hello {{who}}")
		select {
		case <-changed:
		case <-time.After(100 * time.Millisecond):
		case <-deadline:
			t.Fatalf("timed out waiting for prompt registration")
		}
		if _, err := reg.Lookup(NamespacePrompts, "hello"); err == nil {
			return
		}
	}
}
