// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package paging

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "import.name/testing/mustr"
)

type testRig struct {
	mem       *testMemory
	image     []byte
	ctx       *Context
	delegated []Fault
}

func newTestRig(image []byte, opt Options, segs ...*Segment) *testRig {
	r := &testRig{
		mem:   newTestMemory(),
		image: image,
	}
	r.ctx = NewContext(segs, image, testPageSize, r.mem, func(f Fault) {
		r.delegated = append(r.delegated, f)
	}, opt)
	return r
}

func (r *testRig) fault(t *testing.T, addr uintptr) Outcome {
	t.Helper()
	return Must(t, R(r.ctx.Handler.Serve(Fault{Addr: addr})))
}

func TestFirstTouchMaterializesOnePage(t *testing.T) {
	seg := &Segment{Vaddr: 0x400000, FileSize: 0x5000, MemSize: 0x5000, Perm: PermRead}
	r := newTestRig(testImage(0x5000), Options{}, seg)

	assert.Equal(t, Materialized, r.fault(t, 0x402abc))
	assert.Equal(t, []uintptr{0x402000}, r.mem.reserved)
	assert.True(t, seg.Table.Present(2))
	assert.Equal(t, uintptr(0x402000), seg.Table.Page(2))
	assert.Equal(t, 1, seg.Table.Resident())
	assert.Empty(t, r.delegated)
}

func TestContentFidelity(t *testing.T) {
	seg := &Segment{Vaddr: 0x400000, Offset: 0, FileSize: 8192, MemSize: 8192, Perm: PermRead | PermExec}
	r := newTestRig(testImage(8192), Options{}, seg)

	r.fault(t, 0x400000)
	r.fault(t, 0x401000)

	assert.Equal(t, r.image[0:4096], r.mem.pages[0x400000])
	assert.Equal(t, r.image[4096:8192], r.mem.pages[0x401000])
}

func TestContentFidelityWithOffset(t *testing.T) {
	seg := &Segment{Vaddr: 0x600000, Offset: 0x3000, FileSize: 0x2000, MemSize: 0x2000, Perm: PermRead | PermWrite}
	r := newTestRig(testImage(0x5000), Options{}, seg)

	r.fault(t, 0x601234)
	assert.Equal(t, r.image[0x4000:0x5000], r.mem.pages[0x601000])
}

func TestBoundaryZeroFill(t *testing.T) {
	seg := &Segment{Vaddr: 0x400000, Offset: 0, FileSize: 4096, MemSize: 8192, Perm: PermRead | PermWrite}
	r := newTestRig(testImage(8192), Options{}, seg)

	r.fault(t, 0x400000)
	assert.Equal(t, r.image[:4096], r.mem.pages[0x400000])

	r.fault(t, 0x401000)
	assert.Equal(t, make([]byte, 4096), r.mem.pages[0x401000])
}

func TestMixedPageZeroFill(t *testing.T) {
	seg := &Segment{Vaddr: 0x600000, Offset: 0x1000, FileSize: 0x1100, MemSize: 0x1f00, Perm: PermRead | PermWrite}
	r := newTestRig(testImage(0x4000), Options{}, seg)

	r.fault(t, 0x601080)
	page := r.mem.pages[0x601000]

	assert.Equal(t, r.image[0x2000:0x2100], page[:0x100])
	assert.Equal(t, make([]byte, 0xe00), page[0x100:0xf00])
	// Beyond the segment's memory size the file content is left as copied.
	assert.Equal(t, r.image[0x2f00:0x3000], page[0xf00:])
}

func TestShortImage(t *testing.T) {
	seg := &Segment{Vaddr: 0x400000, Offset: 0x800, FileSize: 0x800, MemSize: 0x3000, Perm: PermRead}
	r := newTestRig(testImage(0x1000), Options{}, seg)

	r.fault(t, 0x400000)
	r.fault(t, 0x402000)

	page := r.mem.pages[0x400000]
	assert.Equal(t, r.image[0x800:], page[:0x800])
	assert.Equal(t, make([]byte, 0x800), page[0x800:])
	assert.Equal(t, make([]byte, 4096), r.mem.pages[0x402000])
}

func TestPermissionFinalization(t *testing.T) {
	text := &Segment{Vaddr: 0x400000, FileSize: 0x1000, MemSize: 0x1000, Perm: PermRead | PermExec}
	data := &Segment{Vaddr: 0x600000, FileSize: 0x1000, MemSize: 0x1000, Offset: 0x1000, Perm: PermRead | PermWrite}
	r := newTestRig(testImage(0x2000), Options{}, text, data)

	r.fault(t, 0x400010)
	r.fault(t, 0x600010)

	assert.Equal(t, PermRead|PermExec, r.mem.perms[0x400000])
	assert.Equal(t, PermRead|PermWrite, r.mem.perms[0x600000])
}

func TestIdempotentResidency(t *testing.T) {
	seg := &Segment{Vaddr: 0x400000, FileSize: 0x2000, MemSize: 0x2000, Perm: PermRead}
	r := newTestRig(testImage(0x2000), Options{}, seg)

	assert.Equal(t, Materialized, r.fault(t, 0x400100))
	assert.Equal(t, DelegatedPresent, r.fault(t, 0x400200))

	assert.Len(t, r.mem.reserved, 1)
	require.Len(t, r.delegated, 1)
	assert.Equal(t, uintptr(0x400200), r.delegated[0].Addr)
}

func TestOutOfSegmentDelegation(t *testing.T) {
	seg := &Segment{Vaddr: 0x400000, FileSize: 0x1000, MemSize: 0x1000, Perm: PermRead}
	r := newTestRig(testImage(0x1000), Options{}, seg)

	assert.Equal(t, DelegatedUnowned, r.fault(t, 0x401000))
	assert.Equal(t, DelegatedUnowned, r.fault(t, 0x10))

	assert.Empty(t, r.mem.reserved)
	assert.Equal(t, []Fault{{Addr: 0x401000}, {Addr: 0x10}}, r.delegated)
	assert.Zero(t, seg.Table.Resident())
}

func TestNilDelegate(t *testing.T) {
	seg := &Segment{Vaddr: 0x400000, FileSize: 0x1000, MemSize: 0x1000, Perm: PermRead}
	ctx := NewContext([]*Segment{seg}, testImage(0x1000), testPageSize, newTestMemory(), nil, Options{})

	assert.Equal(t, DelegatedUnowned, ctx.Handler.Handle(Fault{Addr: 0x500000}))
}

func TestGrowthDuringFaults(t *testing.T) {
	const pages = 3 * GrowthQuantum
	seg := &Segment{Vaddr: 0x10000000, MemSize: pages * testPageSize, Perm: PermRead | PermWrite}
	r := newTestRig(nil, Options{}, seg)
	require.Equal(t, GrowthQuantum, seg.Table.Capacity())

	r.fault(t, seg.Vaddr+5*testPageSize)
	r.fault(t, seg.Vaddr+(pages-1)*testPageSize)
	assert.Equal(t, pages, seg.Table.Capacity())

	r.fault(t, seg.Vaddr+GrowthQuantum*testPageSize)

	assert.True(t, seg.Table.Present(5))
	assert.True(t, seg.Table.Present(pages-1))
	assert.True(t, seg.Table.Present(GrowthQuantum))
	assert.Equal(t, seg.Vaddr+5*testPageSize, seg.Table.Page(5))
	assert.Equal(t, 3, seg.Table.Resident())
}

func TestPresizedTables(t *testing.T) {
	const pages = 3*GrowthQuantum + 1
	seg := &Segment{Vaddr: 0x10000000, MemSize: pages * testPageSize, Perm: PermRead}
	r := newTestRig(nil, Options{Presize: true}, seg)

	capacity := seg.Table.Capacity()
	assert.Equal(t, 4*GrowthQuantum, capacity)

	r.fault(t, seg.Vaddr+(pages-1)*testPageSize)
	assert.Equal(t, capacity, seg.Table.Capacity())
}

func TestMaterializationFailure(t *testing.T) {
	seg := &Segment{Vaddr: 0x400000, FileSize: 0x1000, MemSize: 0x1000, Perm: PermRead}

	for name, fail := range map[string]func(*testMemory){
		"reserve": func(m *testMemory) { m.failReserve = errors.New("ENOMEM") },
		"protect": func(m *testMemory) { m.failProtect = errors.New("EACCES") },
	} {
		seg.Table = nil
		r := newTestRig(testImage(0x1000), Options{}, seg)
		fail(r.mem)

		_, err := r.ctx.Handler.Serve(Fault{Addr: 0x400000})
		assert.Error(t, err, name)
		assert.False(t, seg.Table.Present(0), name)
		assert.Empty(t, r.delegated, name)
	}
}

func TestOutcomeString(t *testing.T) {
	assert.True(t, Materialized.Handled())
	assert.False(t, DelegatedPresent.Handled())
	assert.Equal(t, "unowned", DelegatedUnowned.String())
	assert.Equal(t, "outcome(9)", Outcome(9).String())
}
