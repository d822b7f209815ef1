// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package paging

import (
	"fmt"
)

// GrowthQuantum is the granularity of page table capacity.
const GrowthQuantum = 128

// PageTable records which pages of a segment have been materialized.
// Capacity only grows, and a present page stays present for the lifetime of
// the process.
type PageTable struct {
	pages    []uintptr // Zero means absent.
	resident int
}

// NewPageTable with room for at least the given number of pages.
func NewPageTable(pages int) *PageTable {
	return &PageTable{
		pages: make([]uintptr, quantize(max(pages-1, 0))),
	}
}

// quantize returns the smallest multiple of GrowthQuantum which exceeds
// index.
func quantize(index int) int {
	return (index/GrowthQuantum + 1) * GrowthQuantum
}

func (t *PageTable) Capacity() int { return len(t.pages) }
func (t *PageTable) Resident() int { return t.resident }

// EnsureCapacity grows the table so that index is a valid slot.  Existing
// entries are preserved and new slots are absent.  Only the bookkeeping array
// is reallocated; mapped pages are never moved.
func (t *PageTable) EnsureCapacity(index int) {
	if index < 0 {
		panic(fmt.Sprintf("negative page index %d", index))
	}
	if index < len(t.pages) {
		return
	}

	pages := make([]uintptr, quantize(index))
	copy(pages, t.pages)
	t.pages = pages
}

// Present reports whether the page has been materialized.
func (t *PageTable) Present(index int) bool {
	return index >= 0 && index < len(t.pages) && t.pages[index] != 0
}

// Page address of a present page, or zero.
func (t *PageTable) Page(index int) uintptr {
	if !t.Present(index) {
		return 0
	}
	return t.pages[index]
}

// MarkPresent records a materialized page.  EnsureCapacity must have been
// called for the index.
func (t *PageTable) MarkPresent(index int, addr uintptr) {
	if index < 0 || index >= len(t.pages) {
		panic(fmt.Sprintf("page index %d outside of page table capacity %d", index, len(t.pages)))
	}
	if addr == 0 {
		panic("zero page address")
	}

	if t.pages[index] == 0 {
		t.resident++
	}
	t.pages[index] = addr
}
