package pdfops

import (
	"errors"
	"sort"
	"testing"

	"pgregory.net/rapid"
)

// Any set of distinct in-bounds pages passes validation; adding one
// out-of-bounds reference fails it.
func TestValidatePages(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		count := rapid.IntRange(1, 500).Draw(rt, "count")
		n := rapid.IntRange(1, count).Draw(rt, "n")

		pages := rapid.SliceOfNDistinct(rapid.IntRange(1, count), n, n, rapid.ID).Draw(rt, "pages")
		if err := validatePages(pages, count); err != nil {
			t.Fatalf("distinct in-bounds pages rejected: %v", err)
		}

		over := append(append([]int{}, pages...), count+rapid.IntRange(1, 100).Draw(rt, "over"))
		if err := validatePages(over, count); !errors.Is(err, ErrPageOutOfBounds) {
			t.Fatalf("out-of-bounds page accepted: %v", err)
		}
	})
}

func TestValidatePages_ZeroAndNegative(t *testing.T) {
	for _, p := range []int{0, -1, -100} {
		if err := validatePages([]int{p}, 10); !errors.Is(err, ErrPageOutOfBounds) {
			t.Errorf("page %d accepted: %v", p, err)
		}
	}
}

// A page referenced twice in one call is rejected up front rather than
// resolved per-step. This makes a double delete of the same page an
// error, never a silent no-op.
func TestValidatePages_DuplicatesRejected(t *testing.T) {
	err := validatePages([]int{3, 1, 3}, 5)
	if !errors.Is(err, ErrPageOutOfBounds) {
		t.Fatalf("duplicate page accepted: %v", err)
	}
}

func TestValidatePages_Empty(t *testing.T) {
	if err := validatePages(nil, 5); !errors.Is(err, ErrInvalidOperation) {
		t.Fatalf("empty page list accepted: %v", err)
	}
}

func TestDescending(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		pages := rapid.SliceOfN(rapid.IntRange(1, 1000), 1, 50).Draw(rt, "pages")
		got := descending(pages)

		if len(got) != len(pages) {
			t.Fatalf("length changed: %d -> %d", len(pages), len(got))
		}
		if !sort.SliceIsSorted(got, func(i, j int) bool { return got[i] > got[j] }) {
			t.Fatalf("not descending: %v", got)
		}
		// Same multiset.
		want := append([]int{}, pages...)
		sort.Ints(want)
		check := append([]int{}, got...)
		sort.Ints(check)
		for i := range want {
			if want[i] != check[i] {
				t.Fatalf("elements changed: %v vs %v", pages, got)
			}
		}
	})
}

// The selection must preserve the caller's order: extraction order is
// how callers reorder pages.
func TestSelectionPreservesOrder(t *testing.T) {
	got := selection([]int{3, 1, 2})
	want := []string{"3", "1", "2"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("selection = %v, want %v", got, want)
		}
	}
}
