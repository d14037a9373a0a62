package server

import (
	"testing"

	"github.com/paperfold/paperfold/internal/pdfops"
)

func TestGenerateURLRequest_FullPageDefault(t *testing.T) {
	req := &generateURLRequest{URL: "https://example.com"}
	if !req.options().FullPage {
		t.Fatal("full_page should default to true when absent")
	}

	off := false
	req.FullPage = &off
	if req.options().FullPage {
		t.Fatal("explicit full_page=false was ignored")
	}

	on := true
	req.FullPage = &on
	if !req.options().FullPage {
		t.Fatal("explicit full_page=true was ignored")
	}
}

func TestExtractTextRequest_MaxLengthDefault(t *testing.T) {
	req := &extractTextRequest{PDFSource: "x"}
	if got := req.maxLength(); got != pdfops.DefaultExtractMaxLength {
		t.Fatalf("default max_length = %d, want %d", got, pdfops.DefaultExtractMaxLength)
	}

	zero := 0
	req.MaxLength = &zero
	if got := req.maxLength(); got != 0 {
		t.Fatalf("explicit max_length=0 became %d", got)
	}

	limit := 250
	req.MaxLength = &limit
	if got := req.maxLength(); got != 250 {
		t.Fatalf("explicit max_length=250 became %d", got)
	}
}
