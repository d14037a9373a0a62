package pdfops

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
)

var (
	// ErrPageOutOfBounds is returned when a page reference does not
	// exist in the target document, or is duplicated within one call.
	ErrPageOutOfBounds = errors.New("page out of bounds")

	// ErrInvalidOperation is returned for structurally invalid
	// manipulation requests.
	ErrInvalidOperation = errors.New("invalid operation")
)

// validatePages checks every 1-indexed page reference against the
// document's page count before any mutation happens. Duplicates within
// one call are rejected too, so a delete batch can be processed in a
// single pass without revalidating per step.
func validatePages(pages []int, pageCount int) error {
	if len(pages) == 0 {
		return fmt.Errorf("%w: no pages specified", ErrInvalidOperation)
	}
	seen := make(map[int]struct{}, len(pages))
	for _, p := range pages {
		if p < 1 || p > pageCount {
			return fmt.Errorf("%w: page %d of %d", ErrPageOutOfBounds, p, pageCount)
		}
		if _, dup := seen[p]; dup {
			return fmt.Errorf("%w: page %d referenced twice", ErrPageOutOfBounds, p)
		}
		seen[p] = struct{}{}
	}
	return nil
}

// selection renders 1-indexed pages as a page selection, preserving
// the caller's order.
func selection(pages []int) []string {
	sel := make([]string, len(pages))
	for i, p := range pages {
		sel[i] = strconv.Itoa(p)
	}
	return sel
}

// descending returns a copy of pages sorted highest-first, so deletes
// within one batch never shift the indices of later targets.
func descending(pages []int) []int {
	out := make([]int, len(pages))
	copy(out, pages)
	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	return out
}
