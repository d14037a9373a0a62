package pdfops

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// DefaultExtractMaxLength bounds extracted text when the caller does
// not set a limit.
const DefaultExtractMaxLength = 10000

// ExtractedText is the result of pulling plain text out of a PDF.
type ExtractedText struct {
	Text      string `json:"text"`
	PageCount int    `json:"page_count"`
	Truncated bool   `json:"truncated"`
}

// ExtractText pulls plain text from the document. When pages is
// non-empty only those 1-indexed pages are read, in the order given.
// maxLength > 0 truncates the combined text at that many runes.
func ExtractText(doc []byte, pages []int, maxLength int) (*ExtractedText, error) {
	reader, err := pdf.NewReader(bytes.NewReader(doc), int64(len(doc)))
	if err != nil {
		return nil, fmt.Errorf("%w: unreadable document: %v", ErrInvalidOperation, err)
	}
	total := reader.NumPage()

	targets := pages
	if len(targets) == 0 {
		targets = make([]int, total)
		for i := range targets {
			targets[i] = i + 1
		}
	} else if err := validatePages(targets, total); err != nil {
		return nil, err
	}

	var sb strings.Builder
	for _, n := range targets {
		page := reader.Page(n)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("%w: reading page %d: %v", ErrInvalidOperation, n, err)
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}

	out := &ExtractedText{Text: sb.String(), PageCount: total}
	if maxLength > 0 {
		runes := []rune(out.Text)
		if len(runes) > maxLength {
			out.Text = string(runes[:maxLength])
			out.Truncated = true
		}
	}
	return out, nil
}
