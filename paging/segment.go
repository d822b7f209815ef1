// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package paging

import (
	"fmt"
	"sort"
	"strings"
)

// Perm is a page protection.  The bit values match PROT_READ, PROT_WRITE
// and PROT_EXEC.
type Perm int

const (
	PermRead  Perm = 0x1
	PermWrite Perm = 0x2
	PermExec  Perm = 0x4
)

func (p Perm) String() string {
	var b strings.Builder
	for _, x := range []struct {
		bit Perm
		c   byte
	}{{PermRead, 'r'}, {PermWrite, 'w'}, {PermExec, 'x'}} {
		if p&x.bit != 0 {
			b.WriteByte(x.c)
		} else {
			b.WriteByte('-')
		}
	}
	return b.String()
}

// Segment is a contiguous part of the loaded program's address space.  All
// fields except Table are produced by the executable parser and treated as
// read-only.
type Segment struct {
	Vaddr    uintptr // Page-aligned.
	FileSize uint64
	MemSize  uint64 // At least FileSize.
	Offset   int64
	Perm     Perm

	Table *PageTable
}

// End of the segment's virtual address range (exclusive).
func (s *Segment) End() uintptr {
	return s.Vaddr + uintptr(s.MemSize)
}

// Contains reports whether addr is within the segment.
func (s *Segment) Contains(addr uintptr) bool {
	return addr >= s.Vaddr && addr < s.End()
}

// PageCount is the number of pages spanned by the segment.
func (s *Segment) PageCount(pageSize int) int {
	return int((s.MemSize + uint64(pageSize) - 1) / uint64(pageSize))
}

func (s *Segment) String() string {
	return fmt.Sprintf("%#x-%#x %s", s.Vaddr, s.End(), s.Perm)
}

// ValidateSegments checks that the segments are page-aligned, that memory
// size covers file size, and that no two segments overlap.
func ValidateSegments(segs []*Segment, pageSize int) error {
	if pageSize <= 0 || pageSize&(pageSize-1) != 0 {
		return fmt.Errorf("invalid page size %d", pageSize)
	}

	mask := uintptr(pageSize - 1)

	for i, s := range segs {
		if s.Vaddr == 0 {
			return fmt.Errorf("segment %d: zero address", i)
		}
		if s.Vaddr&mask != 0 {
			return fmt.Errorf("segment %d: address %#x is not page-aligned", i, s.Vaddr)
		}
		if s.MemSize < s.FileSize {
			return fmt.Errorf("segment %d: memory size %d is smaller than file size %d", i, s.MemSize, s.FileSize)
		}
		if s.Offset < 0 {
			return fmt.Errorf("segment %d: negative file offset", i)
		}
		if s.End() < s.Vaddr {
			return fmt.Errorf("segment %d: address range wraps around", i)
		}
	}

	sorted := make([]*Segment, len(segs))
	copy(sorted, segs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Vaddr < sorted[j].Vaddr })

	for i := 1; i < len(sorted); i++ {
		prev, s := sorted[i-1], sorted[i]
		if s.Vaddr < roundUp(prev.End(), mask) {
			return fmt.Errorf("segments %s and %s overlap", prev, s)
		}
	}

	return nil
}

func roundUp(addr, mask uintptr) uintptr {
	return (addr + mask) &^ mask
}
