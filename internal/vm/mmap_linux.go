// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vm

import (
	"errors"
	"fmt"
	"os"
	"unsafe"

	"gate.computer/lazyexec/paging"
	"golang.org/x/sys/unix"
)

// ErrAddressInUse is returned when a fixed range overlaps with an existing
// mapping, such as the loader's own executable.
var ErrAddressInUse = errors.New("address range already in use")

var _ paging.Memory = Fixed{}

// Reserve replaces whatever is mapped at addr with a private, writable,
// zero-filled page range.
func (Fixed) Reserve(addr uintptr, size int) ([]byte, error) {
	p, err := unix.MmapPtr(-1, 0, unsafe.Pointer(addr), uintptr(size), unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS|unix.MAP_FIXED)
	if err != nil {
		return nil, fmt.Errorf("mmap %#x: %w", addr, err)
	}
	if uintptr(p) != addr {
		return nil, fmt.Errorf("mmap %#x: mapping landed at %p", addr, p)
	}

	return unsafe.Slice((*byte)(p), size), nil
}

func (Fixed) Protect(addr uintptr, region []byte, perm paging.Perm) error {
	if err := unix.Mprotect(region, int(perm)); err != nil {
		return fmt.Errorf("mprotect %#x: %w", addr, err)
	}
	return nil
}

// ReserveRange maps an empty anonymous range for a segment without replacing
// existing mappings.  Its pages stay unpopulated until they are touched.  The
// size is rounded up to page size.
func ReserveRange(addr uintptr, size int, perm paging.Perm) error {
	size = roundUp(size, PageSize())
	if size == 0 {
		return nil
	}

	p, err := unix.MmapPtr(-1, 0, unsafe.Pointer(addr), uintptr(size), int(perm), unix.MAP_PRIVATE|unix.MAP_ANONYMOUS|unix.MAP_NORESERVE|unix.MAP_FIXED_NOREPLACE)
	if err != nil {
		if errors.Is(err, unix.EEXIST) {
			err = ErrAddressInUse
		}
		return fmt.Errorf("reserving %#x-%#x: %w", addr, addr+uintptr(size), err)
	}

	// Kernels older than 4.17 treat MAP_FIXED_NOREPLACE as a hint.
	if uintptr(p) != addr {
		unix.Syscall(unix.SYS_MUNMAP, uintptr(p), uintptr(size), 0)
		return fmt.Errorf("reserving %#x-%#x: %w", addr, addr+uintptr(size), ErrAddressInUse)
	}

	return nil
}

// Release unmaps a range reserved with ReserveRange, including the pages
// which have been materialized in it.
func Release(addr uintptr, size int) error {
	size = roundUp(size, PageSize())
	if _, _, errno := unix.Syscall(unix.SYS_MUNMAP, addr, uintptr(size), 0); errno != 0 {
		return fmt.Errorf("munmap %#x: %w", addr, errno)
	}
	return nil
}

// MapFile maps a whole file read-only.  The file descriptor is closed before
// returning; the mapping stays valid.
func MapFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() == 0 {
		return nil, fmt.Errorf("%s: empty file", path)
	}

	b, err := unix.Mmap(int(f.Fd()), 0, int(info.Size()), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}

	return b, nil
}

// MapStack allocates a downward-growing stack.  The returned slice covers
// the whole stack; its top is the end of the slice.
func MapStack(size int) ([]byte, error) {
	size = roundUp(size, PageSize())

	b, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS|unix.MAP_STACK)
	if err != nil {
		return nil, fmt.Errorf("mmap stack: %w", err)
	}

	return b, nil
}

func mustMunmap(b []byte) {
	if err := unix.Munmap(b); err != nil {
		panic(fmt.Errorf("munmap: %w", err))
	}
}

// Unmap memory returned by MapFile or MapStack.
func Unmap(b []byte) {
	mustMunmap(b)
}
