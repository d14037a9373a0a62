package content

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"strings"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	goldmarkhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/paperfold/paperfold/internal/models"
)

// Resolution failures.
var (
	ErrAmbiguousContent = errors.New("exactly one of html, markdown or text must be provided")
	ErrEmptyContent     = errors.New("content cannot be empty")
)

// Input carries the direct-content fields of a generation request.
// Content is the untyped field whose kind is auto-detected; it counts
// against the exactly-one rule like the typed fields. URL requests are
// a distinct entry point and never pass through here.
type Input struct {
	HTML     string
	Markdown string
	Text     string
	Content  string
}

// Document is normalized renderable markup plus its source kind.
type Document struct {
	Markup string
	Kind   models.SourceKind
}

// Resolver classifies direct-content requests and normalizes them into
// renderable HTML. Markdown and plain text are wrapped in fixed
// templates; HTML is trusted and passed through unmodified (sanitizing
// is the caller-facing layer's responsibility).
type Resolver struct {
	md goldmark.Markdown
}

// NewResolver creates a resolver with a GFM markdown converter.
// Soft line breaks render as <br> to match common pasted-notes input.
func NewResolver() *Resolver {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			highlighting.NewHighlighting(
				highlighting.WithFormatOptions(
					chromahtml.WithClasses(true),
				),
			),
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			goldmarkhtml.WithHardWraps(),
			goldmarkhtml.WithXHTML(),
		),
	)
	return &Resolver{md: md}
}

// Resolve validates that exactly one content field is set and returns
// the normalized document. No rendering resource is touched before this
// validation passes.
func (r *Resolver) Resolve(input Input) (*Document, error) {
	set := 0
	if input.HTML != "" {
		set++
	}
	if input.Markdown != "" {
		set++
	}
	if input.Text != "" {
		set++
	}
	if input.Content != "" {
		set++
	}
	if set == 0 {
		return nil, ErrEmptyContent
	}
	if set > 1 {
		return nil, ErrAmbiguousContent
	}

	if input.Content != "" {
		switch DetectKind(input.Content) {
		case models.SourceHTML:
			input.HTML = input.Content
		case models.SourceMarkdown:
			input.Markdown = input.Content
		default:
			input.Text = input.Content
		}
	}

	switch {
	case input.HTML != "":
		return &Document{Markup: input.HTML, Kind: models.SourceHTML}, nil
	case input.Markdown != "":
		markup, err := r.markdownToHTML(input.Markdown)
		if err != nil {
			return nil, err
		}
		return &Document{Markup: markup, Kind: models.SourceMarkdown}, nil
	default:
		return &Document{Markup: wrapText(input.Text), Kind: models.SourceText}, nil
	}
}

// DetectKind guesses the content kind for callers that submit a single
// untyped content field: leading '<' means HTML, markdown markers mean
// markdown, anything else is plain text.
func DetectKind(body string) models.SourceKind {
	trimmed := strings.TrimSpace(body)
	if strings.HasPrefix(trimmed, "<") {
		return models.SourceHTML
	}
	if strings.Contains(trimmed, "#") || strings.Contains(trimmed, "**") {
		return models.SourceMarkdown
	}
	return models.SourceText
}

func (r *Resolver) markdownToHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("converting markdown: %w", err)
	}
	return fmt.Sprintf(markdownTemplate, buf.String()), nil
}

func wrapText(text string) string {
	return fmt.Sprintf(textTemplate, html.EscapeString(text))
}
