//go:build integration

package render

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/proto"

	"github.com/paperfold/paperfold/internal/config"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()

	engine, err := NewEngine(&config.RenderConfig{
		MarkupTimeout:   30 * time.Second,
		URLTimeout:      30 * time.Second,
		SelectorTimeout: 5 * time.Second,
	})
	if err != nil {
		t.Skipf("Browser not available: %v", err)
	}
	t.Cleanup(func() {
		if err := engine.Close(); err != nil {
			t.Logf("closing engine: %v", err)
		}
	})
	return engine
}

func TestRender_ProducesPDF(t *testing.T) {
	engine := newTestEngine(t)

	pdf, err := engine.Render(context.Background(), "<html><body><h1>Invoice</h1></body></html>", nil)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF-")) {
		t.Fatalf("output is not a PDF, got prefix %q", pdf[:min(8, len(pdf))])
	}
	if len(pdf) < 100 {
		t.Fatalf("PDF suspiciously small: %d bytes", len(pdf))
	}
}

// Every render runs in its own incognito context; the context must be
// disposed when the render finishes, or the shared Chrome process
// accumulates one per request until it falls over.
func TestRender_DisposesSessions(t *testing.T) {
	engine := newTestEngine(t)

	before, err := proto.TargetGetBrowserContexts{}.Call(engine.browser)
	if err != nil {
		t.Fatalf("listing browser contexts: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := engine.Render(context.Background(), "<html><body><p>page</p></body></html>", nil); err != nil {
			t.Fatalf("Render %d failed: %v", i, err)
		}
	}

	after, err := proto.TargetGetBrowserContexts{}.Call(engine.browser)
	if err != nil {
		t.Fatalf("listing browser contexts: %v", err)
	}
	if len(after.BrowserContextIDs) != len(before.BrowserContextIDs) {
		t.Fatalf("browser contexts leaked: %d before, %d after", len(before.BrowserContextIDs), len(after.BrowserContextIDs))
	}
}
