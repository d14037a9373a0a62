package content

import (
	"errors"
	"strings"
	"testing"

	"pgregory.net/rapid"

	"github.com/paperfold/paperfold/internal/models"
)

func TestResolve_ExactlyOneField(t *testing.T) {
	r := NewResolver()

	tests := []struct {
		name    string
		input   Input
		wantErr error
		want    models.SourceKind
	}{
		{"html only", Input{HTML: "<p>hi</p>"}, nil, models.SourceHTML},
		{"markdown only", Input{Markdown: "# hi"}, nil, models.SourceMarkdown},
		{"text only", Input{Text: "hi"}, nil, models.SourceText},
		{"nothing", Input{}, ErrEmptyContent, ""},
		{"html and markdown", Input{HTML: "<p>a</p>", Markdown: "# b"}, ErrAmbiguousContent, ""},
		{"html and text", Input{HTML: "<p>a</p>", Text: "b"}, ErrAmbiguousContent, ""},
		{"markdown and text", Input{Markdown: "# a", Text: "b"}, ErrAmbiguousContent, ""},
		{"all three", Input{HTML: "<p>a</p>", Markdown: "# b", Text: "c"}, ErrAmbiguousContent, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := r.Resolve(tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("got error %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve failed: %v", err)
			}
			if doc.Kind != tt.want {
				t.Fatalf("kind = %q, want %q", doc.Kind, tt.want)
			}
		})
	}
}

// HTML input is passed through byte for byte.
func TestResolve_HTMLPassthrough(t *testing.T) {
	r := NewResolver()

	markup := `<html><body><h1>Invoice</h1><script>render()</script></body></html>`
	doc, err := r.Resolve(Input{HTML: markup})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if doc.Markup != markup {
		t.Fatalf("markup was altered:\n%s", doc.Markup)
	}
}

func TestResolve_MarkdownRenders(t *testing.T) {
	r := NewResolver()

	doc, err := r.Resolve(Input{Markdown: "# Title\n\nSome **bold** text.\n\n- one\n- two"})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	for _, want := range []string{"<h1", "Title", "<strong>bold</strong>", "<li>one", "<li>two"} {
		if !strings.Contains(doc.Markup, want) {
			t.Errorf("rendered markdown missing %q", want)
		}
	}
	// The wrapping template must produce a standalone page.
	if !strings.Contains(doc.Markup, "<!DOCTYPE html>") {
		t.Error("markdown output is not a standalone HTML document")
	}
}

func TestResolve_MarkdownTable(t *testing.T) {
	r := NewResolver()

	doc, err := r.Resolve(Input{Markdown: "| a | b |\n|---|---|\n| 1 | 2 |"})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !strings.Contains(doc.Markup, "<table>") {
		t.Error("GFM table was not rendered")
	}
}

// Plain text must be escaped, never interpreted as markup.
func TestResolve_TextEscaped(t *testing.T) {
	r := NewResolver()

	doc, err := r.Resolve(Input{Text: `<script>alert("x")</script> & more`})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if strings.Contains(doc.Markup, "<script>alert") {
		t.Fatal("text content was not escaped")
	}
	if !strings.Contains(doc.Markup, "&lt;script&gt;") {
		t.Fatal("escaped text missing from output")
	}
	if !strings.Contains(doc.Markup, "&amp; more") {
		t.Fatal("ampersand was not escaped")
	}
}

// Escaping plain text never loses printable content.
func TestResolve_TextRoundTrip(t *testing.T) {
	r := NewResolver()

	rapid.Check(t, func(rt *rapid.T) {
		text := rapid.StringMatching(`[a-zA-Z0-9 .,!?-]{1,200}`).Draw(rt, "text")
		doc, err := r.Resolve(Input{Text: text})
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if !strings.Contains(doc.Markup, text) {
			t.Fatalf("benign text %q missing from output", text)
		}
		if doc.Kind != models.SourceText {
			t.Fatalf("kind = %q, want text", doc.Kind)
		}
	})
}

// The untyped content field routes through kind detection and counts
// toward the exactly-one rule like the typed fields.
func TestResolve_UntypedContent(t *testing.T) {
	r := NewResolver()

	t.Run("html detected", func(t *testing.T) {
		markup := "<html><body><h1>Invoice</h1></body></html>"
		doc, err := r.Resolve(Input{Content: markup})
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if doc.Kind != models.SourceHTML {
			t.Fatalf("kind = %q, want html", doc.Kind)
		}
		if doc.Markup != markup {
			t.Fatalf("html content was altered:\n%s", doc.Markup)
		}
	})

	t.Run("markdown detected", func(t *testing.T) {
		doc, err := r.Resolve(Input{Content: "# Title\n\nSome **bold** text."})
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if doc.Kind != models.SourceMarkdown {
			t.Fatalf("kind = %q, want markdown", doc.Kind)
		}
		if !strings.Contains(doc.Markup, "<strong>bold</strong>") {
			t.Fatal("detected markdown was not rendered")
		}
	})

	t.Run("plain text escaped", func(t *testing.T) {
		doc, err := r.Resolve(Input{Content: "totals & balances"})
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if doc.Kind != models.SourceText {
			t.Fatalf("kind = %q, want text", doc.Kind)
		}
		if !strings.Contains(doc.Markup, "totals &amp; balances") {
			t.Fatal("plain content was not escaped")
		}
	})

	t.Run("ambiguous with typed field", func(t *testing.T) {
		_, err := r.Resolve(Input{Content: "plain", HTML: "<p>a</p>"})
		if !errors.Is(err, ErrAmbiguousContent) {
			t.Fatalf("got %v, want ErrAmbiguousContent", err)
		}
	})
}

func TestDetectKind(t *testing.T) {
	tests := []struct {
		body string
		want models.SourceKind
	}{
		{"<html><body>x</body></html>", models.SourceHTML},
		{"  <div>x</div>", models.SourceHTML},
		{"# Heading", models.SourceMarkdown},
		{"some **bold** words", models.SourceMarkdown},
		{"plain old text", models.SourceText},
		{"", models.SourceText},
	}
	for _, tt := range tests {
		if got := DetectKind(tt.body); got != tt.want {
			t.Errorf("DetectKind(%q) = %q, want %q", tt.body, got, tt.want)
		}
	}
}
