package render

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-rod/rod/lib/proto"
)

// Page formats and their physical size in inches.
var pageFormats = map[string][2]float64{
	"A4":     {8.27, 11.69},
	"Letter": {8.5, 11},
	"Legal":  {8.5, 14},
}

// DefaultFormat is used when the caller does not specify one.
const DefaultFormat = "A4"

const defaultMargin = "20mm"

const emptyTemplate = "<span></span>"

// Margin holds per-side margins as CSS-like lengths (e.g. "20mm", "0.5in").
// Each side is defaulted independently when absent.
type Margin struct {
	Top    string `json:"top,omitempty"`
	Right  string `json:"right,omitempty"`
	Bottom string `json:"bottom,omitempty"`
	Left   string `json:"left,omitempty"`
}

// Options control how markup or a URL is rasterized to PDF.
type Options struct {
	Format    string `json:"format,omitempty"`
	Filename  string `json:"filename,omitempty"`
	Margin    Margin `json:"margin,omitempty"`
	Landscape bool   `json:"landscape,omitempty"`
	Header    string `json:"header,omitempty"`
	Footer    string `json:"footer,omitempty"`

	// FullPage lets the page's own CSS page size win over the format.
	FullPage bool `json:"full_page,omitempty"`
}

// ValidFormat reports whether the format name is supported.
func ValidFormat(format string) bool {
	_, ok := pageFormats[format]
	return ok
}

// ResolvedFormat returns the format to use, defaulting when empty.
func (o *Options) ResolvedFormat() string {
	if o.Format == "" {
		return DefaultFormat
	}
	return o.Format
}

// ResolvedFilename returns the output filename, deriving a
// collision-resistant time-based name when none was supplied.
func (o *Options) ResolvedFilename() string {
	if o.Filename != "" {
		return o.Filename
	}
	return DefaultFilename()
}

// DefaultFilename derives a collision-resistant output name.
func DefaultFilename() string {
	return fmt.Sprintf("pdf-%d.pdf", time.Now().UnixNano())
}

// buildPrintOptions maps Options 1:1 onto the devtools print call.
// Header and footer templates are always concrete strings, never nil.
func buildPrintOptions(opts *Options) (*proto.PagePrintToPDF, error) {
	dims, ok := pageFormats[opts.ResolvedFormat()]
	if !ok {
		return nil, fmt.Errorf("unsupported page format %q", opts.Format)
	}

	top, err := marginInches(opts.Margin.Top)
	if err != nil {
		return nil, err
	}
	right, err := marginInches(opts.Margin.Right)
	if err != nil {
		return nil, err
	}
	bottom, err := marginInches(opts.Margin.Bottom)
	if err != nil {
		return nil, err
	}
	left, err := marginInches(opts.Margin.Left)
	if err != nil {
		return nil, err
	}

	pdfOpts := &proto.PagePrintToPDF{
		PaperWidth:      floatPtr(dims[0]),
		PaperHeight:     floatPtr(dims[1]),
		MarginTop:       floatPtr(top),
		MarginRight:     floatPtr(right),
		MarginBottom:    floatPtr(bottom),
		MarginLeft:      floatPtr(left),
		Landscape:       opts.Landscape,
		PrintBackground: true,
	}
	if opts.FullPage {
		pdfOpts.PreferCSSPageSize = true
	}

	if opts.Header != "" || opts.Footer != "" {
		pdfOpts.DisplayHeaderFooter = true
		pdfOpts.HeaderTemplate = opts.Header
		if pdfOpts.HeaderTemplate == "" {
			pdfOpts.HeaderTemplate = emptyTemplate
		}
		pdfOpts.FooterTemplate = opts.Footer
		if pdfOpts.FooterTemplate == "" {
			pdfOpts.FooterTemplate = emptyTemplate
		}
	}

	return pdfOpts, nil
}

// marginInches parses a CSS-like length into inches.
// Supported units: mm, cm, in, pt, px. A bare number is millimeters.
func marginInches(value string) (float64, error) {
	if value == "" {
		value = defaultMargin
	}
	value = strings.TrimSpace(value)

	unit := "mm"
	num := value
	for _, u := range []string{"mm", "cm", "in", "pt", "px"} {
		if strings.HasSuffix(value, u) {
			unit = u
			num = strings.TrimSpace(strings.TrimSuffix(value, u))
			break
		}
	}

	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid margin %q", value)
	}
	if n < 0 {
		return 0, fmt.Errorf("margin %q must not be negative", value)
	}

	switch unit {
	case "mm":
		return n / 25.4, nil
	case "cm":
		return n / 2.54, nil
	case "in":
		return n, nil
	case "pt":
		return n / 72, nil
	case "px":
		return n / 96, nil
	}
	return 0, fmt.Errorf("invalid margin unit in %q", value)
}

func floatPtr(v float64) *float64 {
	return &v
}
