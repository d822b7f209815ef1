// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package paging

import (
	"github.com/tidwall/btree"
)

// IndexThreshold is the segment count above which a validated segment table
// is searched via an ordered index instead of a linear scan.
const IndexThreshold = 8

// Translator maps fault addresses to segments and page indexes.
type Translator struct {
	segs     []*Segment
	pageSize int
	index    *btree.BTreeG[*Segment]
}

// NewTranslator for a segment table.  If indexed is true, the caller
// guarantees that the segments don't overlap (see ValidateSegments), and a
// large table may be searched in logarithmic time.
func NewTranslator(segs []*Segment, pageSize int, indexed bool) *Translator {
	t := &Translator{
		segs:     segs,
		pageSize: pageSize,
	}

	if indexed && len(segs) > IndexThreshold {
		t.index = btree.NewBTreeGOptions(func(a, b *Segment) bool {
			return a.Vaddr < b.Vaddr
		}, btree.Options{NoLocks: true})

		for _, s := range segs {
			if s.MemSize > 0 {
				t.index.Set(s)
			}
		}
	}

	return t
}

func (t *Translator) Segments() []*Segment { return t.segs }
func (t *Translator) PageSize() int        { return t.pageSize }

// Locate the segment which owns addr, and the page index within it.  The
// first owning segment in table order is authoritative.
func (t *Translator) Locate(addr uintptr) (seg *Segment, index int, found bool) {
	if t.index != nil {
		seg = t.lookup(addr)
	} else {
		for _, s := range t.segs {
			if s.Contains(addr) {
				seg = s
				break
			}
		}
	}

	if seg == nil {
		return nil, 0, false
	}

	return seg, int((addr - seg.Vaddr) / uintptr(t.pageSize)), true
}

// lookup finds the segment with the highest base address not above addr.
func (t *Translator) lookup(addr uintptr) (seg *Segment) {
	t.index.Descend(&Segment{Vaddr: addr}, func(s *Segment) bool {
		if s.Contains(addr) {
			seg = s
		}
		return false
	})
	return
}
