// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vm

import (
	"os"
	"path/filepath"
	"testing"
	"unsafe"

	"gate.computer/lazyexec/paging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	. "import.name/testing/mustr"
)

// scratch returns the address of a free range.
func scratch(t *testing.T, size int) uintptr {
	t.Helper()
	b := Must(t, R(unix.Mmap(-1, 0, size, unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)))
	t.Cleanup(func() { unix.Munmap(b) })
	return uintptr(unsafe.Pointer(&b[0]))
}

func TestFixedReserveProtect(t *testing.T) {
	ps := PageSize()
	addr := scratch(t, ps)

	page := Must(t, R(Fixed{}.Reserve(addr, ps)))
	require.Len(t, page, ps)
	assert.Equal(t, addr, uintptr(unsafe.Pointer(&page[0])))
	assert.Equal(t, make([]byte, ps), page)

	page[0] = 42
	require.NoError(t, Fixed{}.Protect(addr, page, paging.PermRead))
	assert.Equal(t, byte(42), page[0])
}

func TestReserveRangeInUse(t *testing.T) {
	ps := PageSize()
	addr := scratch(t, 2*ps)

	err := ReserveRange(addr, ps, paging.PermRead)
	assert.ErrorIs(t, err, ErrAddressInUse)
}

func TestReserveRange(t *testing.T) {
	ps := PageSize()
	addr := scratch(t, 4*ps)
	require.NoError(t, unix.Munmap(unsafe.Slice((*byte)(unsafe.Pointer(addr)), 4*ps)))

	require.NoError(t, ReserveRange(addr, 3*ps-1, paging.PermRead|paging.PermWrite))
	b := unsafe.Slice((*byte)(unsafe.Pointer(addr)), 3*ps)
	defer unix.Munmap(b)

	assert.Zero(t, b[3*ps-1])
	b[0] = 1
}

func TestMapFile(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "image")
	data := []byte("\x7fELF and then some")
	require.NoError(t, os.WriteFile(filename, data, 0o644))

	b := Must(t, R(MapFile(filename)))
	defer Unmap(b)
	assert.Equal(t, data, b)
}

func TestMapFileErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := MapFile(filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	empty := filepath.Join(dir, "empty")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	_, err = MapFile(empty)
	assert.Error(t, err)
}

func TestMapStack(t *testing.T) {
	b := Must(t, R(MapStack(10000)))
	defer Unmap(b)
	assert.Equal(t, 0, len(b)%PageSize())
	b[len(b)-1] = 1
}

func TestRelease(t *testing.T) {
	ps := PageSize()
	addr := scratch(t, 2*ps)
	require.NoError(t, unix.Munmap(unsafe.Slice((*byte)(unsafe.Pointer(addr)), 2*ps)))

	require.NoError(t, ReserveRange(addr, 2*ps, paging.PermRead|paging.PermWrite))
	unsafe.Slice((*byte)(unsafe.Pointer(addr)), 2*ps)[ps] = 1

	require.NoError(t, Release(addr, 2*ps-1))
	require.NoError(t, ReserveRange(addr, 2*ps, paging.PermRead))
	assert.Zero(t, unsafe.Slice((*byte)(unsafe.Pointer(addr)), 2*ps)[ps])
	require.NoError(t, Release(addr, 2*ps))
}
