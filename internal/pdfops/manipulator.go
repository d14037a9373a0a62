package pdfops

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/rs/zerolog"

	"github.com/paperfold/paperfold/internal/logging"
	"github.com/paperfold/paperfold/internal/monitoring"
)

// Merge source count bounds.
const (
	MinMergeSources = 2
	MaxMergeSources = 10
)

// Watermark defaults.
const (
	DefaultWatermarkPosition = "center"
	DefaultWatermarkOpacity  = 0.3
	DefaultWatermarkRotation = 0.0
	DefaultWatermarkFontSize = 48
)

var watermarkPositions = map[string]string{
	"center":       "c",
	"top-left":     "tl",
	"top-right":    "tr",
	"bottom-left":  "bl",
	"bottom-right": "br",
}

// WatermarkSpec describes a text watermark drawn on every page.
// Position is computed per page from that page's own dimensions, so
// mixed page sizes within one document stay consistent.
type WatermarkSpec struct {
	Text     string
	Position string
	Opacity  float64
	Rotation float64
	FontSize int
}

// Op is one step of a modify pipeline, applied in request order.
type Op struct {
	Action string `json:"action"`
	Pages  []int  `json:"pages"`
	Angle  int    `json:"angle,omitempty"`
}

// Manipulator performs structural page-level operations on PDF byte
// streams. Every operation validates its page references against the
// document before any mutation, and produces a fresh self-contained
// output stream.
type Manipulator struct {
	conf   *model.Configuration
	logger zerolog.Logger
}

func NewManipulator() *Manipulator {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &Manipulator{
		conf:   conf,
		logger: logging.NewLogger("pdfops"),
	}
}

// PageCount reports the number of pages in the document.
func (m *Manipulator) PageCount(doc []byte) (int, error) {
	n, err := api.PageCount(bytes.NewReader(doc), m.conf)
	if err != nil {
		return 0, fmt.Errorf("%w: unreadable document: %v", ErrInvalidOperation, err)
	}
	return n, nil
}

// Extract builds a new document containing only the given 1-indexed
// pages, in the order given. Callers may reorder pages by listing them
// out of ascending order.
func (m *Manipulator) Extract(doc []byte, pages []int) ([]byte, error) {
	return m.observed("extract", func() ([]byte, error) {
		count, err := m.PageCount(doc)
		if err != nil {
			return nil, err
		}
		if err := validatePages(pages, count); err != nil {
			return nil, err
		}
		var out bytes.Buffer
		if err := api.Collect(bytes.NewReader(doc), &out, selection(pages), m.conf); err != nil {
			return nil, fmt.Errorf("%w: extracting pages: %v", ErrInvalidOperation, err)
		}
		return out.Bytes(), nil
	})
}

// Rotate adds angle to each target page's existing rotation, modulo
// 360. Validation is complete before any page is touched.
func (m *Manipulator) Rotate(doc []byte, pages []int, angle int) ([]byte, error) {
	return m.observed("rotate", func() ([]byte, error) {
		if angle != 90 && angle != 180 && angle != 270 {
			return nil, fmt.Errorf("%w: rotation angle %d, want 90, 180 or 270", ErrInvalidOperation, angle)
		}
		count, err := m.PageCount(doc)
		if err != nil {
			return nil, err
		}
		if err := validatePages(pages, count); err != nil {
			return nil, err
		}
		var out bytes.Buffer
		if err := api.Rotate(bytes.NewReader(doc), &out, angle, selection(pages), m.conf); err != nil {
			return nil, fmt.Errorf("%w: rotating pages: %v", ErrInvalidOperation, err)
		}
		return out.Bytes(), nil
	})
}

// Delete removes the given pages. Targets are processed in descending
// order so removals never shift the indices of later targets within
// the same batch. Duplicate references are rejected up front, and so
// is deleting every page: a PDF must keep at least one page, and
// pdfcpu writes an unparseable stream when the page tree goes empty.
func (m *Manipulator) Delete(doc []byte, pages []int) ([]byte, error) {
	return m.observed("delete", func() ([]byte, error) {
		count, err := m.PageCount(doc)
		if err != nil {
			return nil, err
		}
		if err := validatePages(pages, count); err != nil {
			return nil, err
		}
		if len(pages) == count {
			return nil, fmt.Errorf("%w: deleting all %d pages would leave an empty document", ErrInvalidOperation, count)
		}
		var out bytes.Buffer
		if err := api.RemovePages(bytes.NewReader(doc), &out, selection(descending(pages)), m.conf); err != nil {
			return nil, fmt.Errorf("%w: deleting pages: %v", ErrInvalidOperation, err)
		}
		return out.Bytes(), nil
	})
}

// Merge copies pages from each source, in order, into a fresh output
// document. An optional order permutation reorders the sources first.
func (m *Manipulator) Merge(docs [][]byte, order []int) ([]byte, error) {
	return m.observed("merge", func() ([]byte, error) {
		if len(docs) < MinMergeSources || len(docs) > MaxMergeSources {
			return nil, fmt.Errorf("%w: %d sources, want %d to %d", ErrInvalidOperation, len(docs), MinMergeSources, MaxMergeSources)
		}
		ordered := docs
		if order != nil {
			var err error
			if ordered, err = permute(docs, order); err != nil {
				return nil, err
			}
		}
		readers := make([]io.ReadSeeker, len(ordered))
		for i, d := range ordered {
			readers[i] = bytes.NewReader(d)
		}
		var out bytes.Buffer
		if err := api.MergeRaw(readers, &out, false, m.conf); err != nil {
			return nil, fmt.Errorf("%w: merging documents: %v", ErrInvalidOperation, err)
		}
		return out.Bytes(), nil
	})
}

// Watermark draws spec.Text on every page.
func (m *Manipulator) Watermark(doc []byte, spec WatermarkSpec) ([]byte, error) {
	return m.observed("watermark", func() ([]byte, error) {
		if spec.Text == "" {
			return nil, fmt.Errorf("%w: empty watermark text", ErrInvalidOperation)
		}
		anchor, ok := watermarkPositions[spec.Position]
		if !ok {
			return nil, fmt.Errorf("%w: watermark position %q", ErrInvalidOperation, spec.Position)
		}
		if spec.Opacity < 0 || spec.Opacity > 1 {
			return nil, fmt.Errorf("%w: watermark opacity %g, want 0 to 1", ErrInvalidOperation, spec.Opacity)
		}
		if spec.Rotation < -90 || spec.Rotation > 90 {
			return nil, fmt.Errorf("%w: watermark rotation %g, want -90 to 90", ErrInvalidOperation, spec.Rotation)
		}
		if spec.FontSize < 8 || spec.FontSize > 72 {
			return nil, fmt.Errorf("%w: watermark font size %d, want 8 to 72", ErrInvalidOperation, spec.FontSize)
		}

		desc := fmt.Sprintf("points:%d, pos:%s, rot:%g, opacity:%g, scale:1 abs, mode:0",
			spec.FontSize, anchor, spec.Rotation, spec.Opacity)
		wm, err := api.TextWatermark(spec.Text, desc, true, false, types.POINTS)
		if err != nil {
			return nil, fmt.Errorf("%w: watermark description: %v", ErrInvalidOperation, err)
		}
		var out bytes.Buffer
		if err := api.AddWatermarks(bytes.NewReader(doc), &out, nil, wm, m.conf); err != nil {
			return nil, fmt.Errorf("%w: applying watermark: %v", ErrInvalidOperation, err)
		}
		return out.Bytes(), nil
	})
}

// Modify applies the operation list left to right, feeding each step's
// output into the next. The first failing step aborts the fold.
func (m *Manipulator) Modify(doc []byte, ops []Op) ([]byte, error) {
	if len(ops) == 0 {
		return nil, fmt.Errorf("%w: no operations specified", ErrInvalidOperation)
	}
	current := doc
	for i, op := range ops {
		var err error
		switch op.Action {
		case "extract":
			current, err = m.Extract(current, op.Pages)
		case "rotate":
			current, err = m.Rotate(current, op.Pages, op.Angle)
		case "delete":
			current, err = m.Delete(current, op.Pages)
		default:
			err = fmt.Errorf("%w: unknown action %q", ErrInvalidOperation, op.Action)
		}
		if err != nil {
			return nil, fmt.Errorf("operation %d (%s): %w", i+1, op.Action, err)
		}
	}
	return current, nil
}

// Info reports container-level metadata about the document.
type Info struct {
	PageCount    int    `json:"page_count"`
	Version      string `json:"pdf_version"`
	Title        string `json:"title,omitempty"`
	Author       string `json:"author,omitempty"`
	Subject      string `json:"subject,omitempty"`
	Creator      string `json:"creator,omitempty"`
	Producer     string `json:"producer,omitempty"`
	CreationDate string `json:"creation_date,omitempty"`
	ModDate      string `json:"modification_date,omitempty"`
	Encrypted    bool   `json:"encrypted"`
	SizeBytes    int    `json:"size_bytes"`
}

func (m *Manipulator) Info(doc []byte) (*Info, error) {
	ctx, err := api.ReadContext(bytes.NewReader(doc), m.conf)
	if err != nil {
		return nil, fmt.Errorf("%w: unreadable document: %v", ErrInvalidOperation, err)
	}
	if err := api.ValidateContext(ctx); err != nil {
		return nil, fmt.Errorf("%w: invalid document: %v", ErrInvalidOperation, err)
	}
	return &Info{
		PageCount:    ctx.PageCount,
		Version:      ctx.HeaderVersion.String(),
		Title:        ctx.Title,
		Author:       ctx.Author,
		Subject:      ctx.Subject,
		Creator:      ctx.Creator,
		Producer:     ctx.Producer,
		CreationDate: ctx.CreationDate,
		ModDate:      ctx.ModDate,
		Encrypted:    ctx.Encrypt != nil,
		SizeBytes:    len(doc),
	}, nil
}

// permute reorders docs by the given permutation of 1-indexed source
// positions. The permutation must reference every source exactly once.
func permute(docs [][]byte, order []int) ([][]byte, error) {
	if len(order) != len(docs) {
		return nil, fmt.Errorf("%w: order lists %d sources, want %d", ErrInvalidOperation, len(order), len(docs))
	}
	if err := validatePages(order, len(docs)); err != nil {
		return nil, fmt.Errorf("%w: bad merge order", ErrInvalidOperation)
	}
	out := make([][]byte, len(docs))
	for i, src := range order {
		out[i] = docs[src-1]
	}
	return out, nil
}

func (m *Manipulator) observed(operation string, fn func() ([]byte, error)) ([]byte, error) {
	out, err := fn()
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	monitoring.Get().ManipulationsTotal.WithLabelValues(operation, outcome).Inc()
	return out, err
}
