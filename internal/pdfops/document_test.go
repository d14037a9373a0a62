package pdfops

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"pgregory.net/rapid"
)

// buildPDF assembles a minimal n-page document with a classic xref
// table, optionally with a document information dictionary.
func buildPDF(n int, info map[string]string) []byte {
	var objs []string
	kids := make([]string, n)
	for i := range kids {
		kids[i] = fmt.Sprintf("%d 0 R", 3+i)
	}
	objs = append(objs,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), n),
	)
	for i := 0; i < n; i++ {
		objs = append(objs, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>")
	}

	infoRef := ""
	if len(info) > 0 {
		keys := make([]string, 0, len(info))
		for k := range info {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var sb strings.Builder
		sb.WriteString("<<")
		for _, k := range keys {
			fmt.Fprintf(&sb, " /%s (%s)", k, info[k])
		}
		sb.WriteString(" >>")
		objs = append(objs, sb.String())
		infoRef = fmt.Sprintf(" /Info %d 0 R", len(objs))
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs)+1)
	for i, obj := range objs {
		offsets[i+1] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objs)+1)
	buf.WriteString("0000000000 65535 f \n")
	for i := 1; i <= len(objs); i++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[i])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R%s >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, infoRef, xref)
	return buf.Bytes()
}

// fataler lets rotation checks run under both testing.T and rapid.T.
type fataler interface {
	Fatalf(format string, args ...any)
}

// pageRotation reads the effective rotation of one 1-indexed page.
func pageRotation(t fataler, m *Manipulator, doc []byte, page int) int {
	ctx, err := api.ReadContext(bytes.NewReader(doc), m.conf)
	if err != nil {
		t.Fatalf("reading document: %v", err)
	}
	if err := api.ValidateContext(ctx); err != nil {
		t.Fatalf("validating document: %v", err)
	}
	_, _, inh, err := ctx.PageDict(page, false)
	if err != nil {
		t.Fatalf("reading page %d: %v", page, err)
	}
	return inh.Rotate
}

func TestBuildPDF_Parses(t *testing.T) {
	m := NewManipulator()
	for _, n := range []int{1, 3, 5} {
		count, err := m.PageCount(buildPDF(n, nil))
		if err != nil {
			t.Fatalf("PageCount on %d-page fixture: %v", n, err)
		}
		if count != n {
			t.Fatalf("page count = %d, want %d", count, n)
		}
	}
}

func TestDelete_EntireDocumentRejected(t *testing.T) {
	m := NewManipulator()
	doc := buildPDF(3, nil)

	if _, err := m.Delete(doc, []int{1, 2, 3}); !errors.Is(err, ErrInvalidOperation) {
		t.Fatalf("deleting every page: err = %v, want ErrInvalidOperation", err)
	}

	// Partial deletes still produce a readable document.
	out, err := m.Delete(doc, []int{2})
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	count, err := m.PageCount(out)
	if err != nil {
		t.Fatalf("output unreadable: %v", err)
	}
	if count != 2 {
		t.Fatalf("page count after delete = %d, want 2", count)
	}
}

func TestModify_FoldStepsSeeWorkingDocument(t *testing.T) {
	m := NewManipulator()
	doc := buildPDF(3, nil)

	// After the delete, page 2 of the working document is the
	// original page 3, so that is the page the rotate lands on.
	out, err := m.Modify(doc, []Op{
		{Action: "delete", Pages: []int{2}},
		{Action: "rotate", Pages: []int{2}, Angle: 90},
	})
	if err != nil {
		t.Fatalf("Modify failed: %v", err)
	}

	count, err := m.PageCount(out)
	if err != nil {
		t.Fatalf("output unreadable: %v", err)
	}
	if count != 2 {
		t.Fatalf("page count = %d, want 2", count)
	}
	if got := pageRotation(t, m, out, 1); got != 0 {
		t.Fatalf("page 1 rotation = %d, want 0", got)
	}
	if got := pageRotation(t, m, out, 2); got != 90 {
		t.Fatalf("page 2 rotation = %d, want 90", got)
	}
}

func TestRotate_Additive(t *testing.T) {
	m := NewManipulator()
	doc := buildPDF(2, nil)

	rapid.Check(t, func(rt *rapid.T) {
		first := rapid.SampledFrom([]int{90, 180, 270}).Draw(rt, "first")
		second := rapid.SampledFrom([]int{90, 180, 270}).Draw(rt, "second")

		once, err := m.Rotate(doc, []int{1}, first)
		if err != nil {
			rt.Fatalf("first rotate: %v", err)
		}
		twice, err := m.Rotate(once, []int{1}, second)
		if err != nil {
			rt.Fatalf("second rotate: %v", err)
		}

		want := (first + second) % 360
		if got := pageRotation(rt, m, twice, 1); got != want {
			rt.Fatalf("rotation after %d+%d = %d, want %d", first, second, got, want)
		}
		if got := pageRotation(rt, m, twice, 2); got != 0 {
			rt.Fatalf("untouched page rotated to %d", got)
		}
	})
}

func TestExtract_HonorsRequestOrder(t *testing.T) {
	m := NewManipulator()

	// Mark the original page 3 so it stays identifiable after reorder.
	marked, err := m.Rotate(buildPDF(3, nil), []int{3}, 90)
	if err != nil {
		t.Fatalf("marking page: %v", err)
	}

	out, err := m.Extract(marked, []int{3, 1})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	count, err := m.PageCount(out)
	if err != nil {
		t.Fatalf("output unreadable: %v", err)
	}
	if count != 2 {
		t.Fatalf("page count = %d, want 2", count)
	}
	if got := pageRotation(t, m, out, 1); got != 90 {
		t.Fatalf("first output page rotation = %d, want the marked page", got)
	}
	if got := pageRotation(t, m, out, 2); got != 0 {
		t.Fatalf("second output page rotation = %d, want 0", got)
	}
}

func TestExtractMergeRoundTrip(t *testing.T) {
	m := NewManipulator()
	marked, err := m.Rotate(buildPDF(3, nil), []int{3}, 90)
	if err != nil {
		t.Fatalf("marking page: %v", err)
	}

	first, err := m.Extract(marked, []int{1})
	if err != nil {
		t.Fatalf("extracting page 1: %v", err)
	}
	third, err := m.Extract(marked, []int{3})
	if err != nil {
		t.Fatalf("extracting page 3: %v", err)
	}

	out, err := m.Merge([][]byte{first, third}, nil)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	count, err := m.PageCount(out)
	if err != nil {
		t.Fatalf("merged output unreadable: %v", err)
	}
	if count != 2 {
		t.Fatalf("merged page count = %d, want 2", count)
	}
	if got := pageRotation(t, m, out, 2); got != 90 {
		t.Fatalf("second merged page rotation = %d, want 90", got)
	}

	// An order permutation reverses the sources.
	reversed, err := m.Merge([][]byte{first, third}, []int{2, 1})
	if err != nil {
		t.Fatalf("Merge with order failed: %v", err)
	}
	if got := pageRotation(t, m, reversed, 1); got != 90 {
		t.Fatalf("first page of reversed merge rotation = %d, want 90", got)
	}
}

func TestInfo_RealDocument(t *testing.T) {
	m := NewManipulator()
	doc := buildPDF(3, map[string]string{
		"Title":        "Quarterly Report",
		"Author":       "Finance Team",
		"Subject":      "Q2 revenue",
		"Creator":      "report builder",
		"Producer":     "fixture",
		"CreationDate": "D:20240102030405+00'00'",
		"ModDate":      "D:20240601120000+00'00'",
	})

	info, err := m.Info(doc)
	if err != nil {
		t.Fatalf("Info failed: %v", err)
	}
	if info.PageCount != 3 {
		t.Fatalf("page count = %d, want 3", info.PageCount)
	}
	if info.Title != "Quarterly Report" || info.Author != "Finance Team" {
		t.Fatalf("unexpected title/author: %+v", info)
	}
	if info.Subject != "Q2 revenue" {
		t.Fatalf("subject = %q, want Q2 revenue", info.Subject)
	}
	if info.Creator != "report builder" || info.Producer != "fixture" {
		t.Fatalf("unexpected creator/producer: %+v", info)
	}
	if info.CreationDate == "" {
		t.Fatal("creation date missing")
	}
	if info.ModDate == "" {
		t.Fatal("modification date missing")
	}
	if info.Encrypted {
		t.Fatal("fixture reported as encrypted")
	}
	if info.SizeBytes != len(doc) {
		t.Fatalf("size = %d, want %d", info.SizeBytes, len(doc))
	}
}
