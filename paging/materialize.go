// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package paging

import (
	"fmt"
	"log/slog"
	"time"
)

// Memory provides the address space primitives needed for materializing
// pages.
type Memory interface {
	// Reserve a writable, zero-filled region at exactly addr.  The returned
	// slice aliases the region.
	Reserve(addr uintptr, size int) ([]byte, error)

	// Protect applies the final permission to a reserved region.
	Protect(addr uintptr, region []byte, perm Perm) error
}

// Materializer maps single pages of segments on demand.
type Materializer struct {
	mem      Memory
	image    []byte
	pageSize int
	log      *slog.Logger
}

// NewMaterializer copies file content from image, which must be the whole
// executable file.
func NewMaterializer(mem Memory, image []byte, pageSize int, log *slog.Logger) *Materializer {
	if log == nil {
		log = slog.Default()
	}

	return &Materializer{
		mem:      mem,
		image:    image,
		pageSize: pageSize,
		log:      log,
	}
}

// Materialize maps the page, fills it with file content and zeros, applies
// the segment's permission and marks it present.  The page address is
// returned.  Failures panic via the package's pan zone.
func (m *Materializer) Materialize(seg *Segment, index int) uintptr {
	begin := time.Now()

	ps := uint64(m.pageSize)
	pageStart := uint64(index) * ps
	pageEnd := pageStart + ps
	addr := seg.Vaddr + uintptr(pageStart)

	page := must(m.mem.Reserve(addr, m.pageSize))
	if len(page) != m.pageSize {
		z.Check(fmt.Errorf("reserved region at %#x has size %d", addr, len(page)))
	}

	// The copy overscans past FileSize; the zero-fill below corrects it.
	var copied int
	if off := uint64(seg.Offset) + pageStart; off < uint64(len(m.image)) {
		copied = copy(page, m.image[off:])
	}

	var zeroed int
	if start, end := max(seg.FileSize, pageStart), min(seg.MemSize, pageEnd); end > start {
		clear(page[start-pageStart : end-pageStart])
		zeroed = int(end - start)
	}

	z.Check(m.mem.Protect(addr, page, seg.Perm))

	seg.Table.EnsureCapacity(index)
	seg.Table.MarkPresent(index, addr)

	materializeDuration.Observe(time.Since(begin).Seconds())
	zeroFilledBytes.Add(float64(zeroed))

	m.log.Debug("page materialized", "segment", seg, "page", index, "addr", Addr(addr), "copied", copied, "zeroed", zeroed)

	return addr
}
