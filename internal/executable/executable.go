// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package executable parses the segment table of a statically linked ELF
// executable.
package executable

import (
	"debug/elf"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"gate.computer/lazyexec/paging"
)

var (
	ErrDynamic     = errors.New("dynamically linked executables are not supported")
	ErrRelocatable = errors.New("position-independent executables are not supported")
	ErrNoSegments  = errors.New("no loadable segments")
)

// Executable describes a program to be loaded.
type Executable struct {
	Path     string
	Entry    uintptr
	Segments []*paging.Segment

	// Program header table location in the loaded image, or zero if it is
	// not covered by any segment.
	Phdr  uintptr
	Phent int
	Phnum int
}

var machines = map[string]elf.Machine{
	"386":   elf.EM_386,
	"amd64": elf.EM_X86_64,
	"arm":   elf.EM_ARM,
	"arm64": elf.EM_AARCH64,
}

// Parse an executable file.  Segments are expanded to page boundaries.
func Parse(path string, pageSize int) (*Executable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	x, err := parse(f, info.Size(), pageSize)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	x.Path = path
	return x, nil
}

func parse(r io.ReaderAt, size int64, pageSize int) (*Executable, error) {
	ef, err := elf.NewFile(r)
	if err != nil {
		return nil, err
	}

	if m, ok := machines[runtime.GOARCH]; !ok || ef.Machine != m {
		return nil, fmt.Errorf("machine %s does not match host architecture %s", ef.Machine, runtime.GOARCH)
	}

	switch ef.Type {
	case elf.ET_EXEC:
	case elf.ET_DYN:
		return nil, ErrRelocatable
	default:
		return nil, fmt.Errorf("unsupported ELF type %s", ef.Type)
	}

	phoff, phent, err := programHeaderTable(r, ef)
	if err != nil {
		return nil, err
	}

	x := &Executable{
		Entry: uintptr(ef.Entry),
		Phent: phent,
		Phnum: len(ef.Progs),
	}

	mask := uint64(pageSize - 1)

	for i, p := range ef.Progs {
		switch p.Type {
		case elf.PT_INTERP, elf.PT_DYNAMIC:
			return nil, ErrDynamic

		case elf.PT_PHDR:
			x.Phdr = uintptr(p.Vaddr)

		case elf.PT_LOAD:
			if p.Vaddr&mask != p.Off&mask {
				return nil, fmt.Errorf("program header %d: address %#x and offset %#x are not congruent modulo page size", i, p.Vaddr, p.Off)
			}
			if p.Memsz < p.Filesz {
				return nil, fmt.Errorf("program header %d: memory size is smaller than file size", i)
			}
			if p.Off+p.Filesz > uint64(size) || p.Off+p.Filesz < p.Off {
				return nil, fmt.Errorf("program header %d: file content extends beyond end of file", i)
			}

			skew := p.Vaddr & mask
			x.Segments = append(x.Segments, &paging.Segment{
				Vaddr:    uintptr(p.Vaddr - skew),
				FileSize: p.Filesz + skew,
				MemSize:  p.Memsz + skew,
				Offset:   int64(p.Off - skew),
				Perm:     perm(p.Flags),
			})
		}
	}

	if len(x.Segments) == 0 {
		return nil, ErrNoSegments
	}

	if x.Phdr == 0 {
		x.Phdr = locate(x.Segments, phoff, uint64(phent)*uint64(x.Phnum))
	}

	return x, nil
}

// programHeaderTable reads e_phoff and e_phentsize, which debug/elf doesn't
// expose.
func programHeaderTable(r io.ReaderAt, ef *elf.File) (phoff uint64, phent int, err error) {
	sr := io.NewSectionReader(r, 0, 1<<16)

	switch ef.Class {
	case elf.ELFCLASS64:
		var h elf.Header64
		if err := binary.Read(sr, ef.ByteOrder, &h); err != nil {
			return 0, 0, err
		}
		return h.Phoff, int(h.Phentsize), nil

	case elf.ELFCLASS32:
		var h elf.Header32
		if err := binary.Read(sr, ef.ByteOrder, &h); err != nil {
			return 0, 0, err
		}
		return uint64(h.Phoff), int(h.Phentsize), nil

	default:
		return 0, 0, fmt.Errorf("unsupported ELF class %s", ef.Class)
	}
}

// locate the virtual address of a file range which is covered by file
// content of a segment.
func locate(segs []*paging.Segment, offset, size uint64) uintptr {
	for _, s := range segs {
		start := uint64(s.Offset)
		if offset >= start && offset+size <= start+s.FileSize {
			return s.Vaddr + uintptr(offset-start)
		}
	}
	return 0
}

func perm(flags elf.ProgFlag) (p paging.Perm) {
	if flags&elf.PF_R != 0 {
		p |= paging.PermRead
	}
	if flags&elf.PF_W != 0 {
		p |= paging.PermWrite
	}
	if flags&elf.PF_X != 0 {
		p |= paging.PermExec
	}
	return
}
