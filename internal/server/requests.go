package server

import (
	"encoding/base64"
	"strings"

	apierrors "github.com/paperfold/paperfold/internal/errors"
	"github.com/paperfold/paperfold/internal/pdfops"
	"github.com/paperfold/paperfold/internal/pipeline"
	"github.com/paperfold/paperfold/internal/render"
)

// generateRequest carries exactly one of html, markdown, text or the
// untyped content field (kind auto-detected), plus render options. The
// exactly-one rule is enforced by the resolver, not here, so its
// failure surfaces through the standard taxonomy.
type generateRequest struct {
	HTML     string         `json:"html,omitempty"`
	Markdown string         `json:"markdown,omitempty"`
	Text     string         `json:"text,omitempty"`
	Content  string         `json:"content,omitempty"`
	Options  render.Options `json:"options"`
}

type generateURLRequest struct {
	URL      string `json:"url" binding:"required"`
	Format   string `json:"format,omitempty"`
	Filename string `json:"filename,omitempty"`
	WaitFor  string `json:"wait_for,omitempty"`
	FullPage *bool  `json:"full_page,omitempty"`
}

// options applies the URL-path defaults: full_page is on unless the
// caller turns it off.
func (r *generateURLRequest) options() *render.Options {
	fullPage := true
	if r.FullPage != nil {
		fullPage = *r.FullPage
	}
	return &render.Options{
		Format:   r.Format,
		Filename: r.Filename,
		FullPage: fullPage,
	}
}

type modifyRequest struct {
	PDFSource  string      `json:"pdf_source" binding:"required"`
	Operations []pdfops.Op `json:"operations" binding:"required"`
	Filename   string      `json:"filename,omitempty"`
}

type watermarkRequest struct {
	PDFSource     string   `json:"pdf_source" binding:"required"`
	WatermarkText string   `json:"watermark_text" binding:"required"`
	Position      *string  `json:"position,omitempty"`
	Opacity       *float64 `json:"opacity,omitempty"`
	Rotation      *float64 `json:"rotation,omitempty"`
	FontSize      *int     `json:"font_size,omitempty"`
	Filename      string   `json:"filename,omitempty"`
}

// spec applies the documented defaults for absent fields.
func (r *watermarkRequest) spec() pdfops.WatermarkSpec {
	spec := pdfops.WatermarkSpec{
		Text:     r.WatermarkText,
		Position: pdfops.DefaultWatermarkPosition,
		Opacity:  pdfops.DefaultWatermarkOpacity,
		Rotation: pdfops.DefaultWatermarkRotation,
		FontSize: pdfops.DefaultWatermarkFontSize,
	}
	if r.Position != nil {
		spec.Position = *r.Position
	}
	if r.Opacity != nil {
		spec.Opacity = *r.Opacity
	}
	if r.Rotation != nil {
		spec.Rotation = *r.Rotation
	}
	if r.FontSize != nil {
		spec.FontSize = *r.FontSize
	}
	return spec
}

type mergeRequest struct {
	PDFSources []string `json:"pdf_sources" binding:"required"`
	Order      []int    `json:"order,omitempty"`
	Filename   string   `json:"filename,omitempty"`
}

type extractTextRequest struct {
	PDFSource string `json:"pdf_source" binding:"required"`
	Pages     []int  `json:"pages,omitempty"`
	MaxLength *int   `json:"max_length,omitempty"`
}

// maxLength applies the extraction default; an explicit 0 disables
// truncation.
func (r *extractTextRequest) maxLength() int {
	if r.MaxLength == nil {
		return pdfops.DefaultExtractMaxLength
	}
	return *r.MaxLength
}

type infoRequest struct {
	PDFSource string `json:"pdf_source" binding:"required"`
}

// pdfResponse is the success envelope for produced documents. The
// bytes travel base64-encoded in JSON rather than as a raw stream.
type pdfResponse struct {
	Success   bool   `json:"success"`
	Filename  string `json:"filename"`
	Size      int    `json:"size"`
	PageCount *int   `json:"page_count,omitempty"`
	PDF       string `json:"pdf"`
	RequestID string `json:"request_id"`
}

func newPDFResponse(res *pipeline.Result, requestID string) *pdfResponse {
	resp := &pdfResponse{
		Success:   true,
		Filename:  res.Filename,
		Size:      len(res.PDF),
		PDF:       base64.StdEncoding.EncodeToString(res.PDF),
		RequestID: requestID,
	}
	if res.Document != nil {
		resp.PageCount = res.Document.PageCount
	}
	return resp
}

// decodePDF decodes a base64 PDF source. Data-URI prefixes are
// tolerated since browser clients tend to send them.
func decodePDF(source string) ([]byte, *apierrors.APIError) {
	if source == "" {
		return nil, apierrors.NewValidationError("pdf_source is required")
	}
	if idx := strings.Index(source, ";base64,"); idx >= 0 {
		source = source[idx+len(";base64,"):]
	}
	raw, err := base64.StdEncoding.DecodeString(source)
	if err != nil {
		return nil, apierrors.NewValidationError("pdf_source is not valid base64")
	}
	if len(raw) == 0 {
		return nil, apierrors.NewValidationError("pdf_source is empty")
	}
	return raw, nil
}
