// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package paging

import (
	"errors"
	"fmt"
)

// testMemory simulates an address space with Go memory.
type testMemory struct {
	pages    map[uintptr][]byte
	perms    map[uintptr]Perm
	reserved []uintptr

	failReserve error
	failProtect error
}

func newTestMemory() *testMemory {
	return &testMemory{
		pages: make(map[uintptr][]byte),
		perms: make(map[uintptr]Perm),
	}
}

func (m *testMemory) Reserve(addr uintptr, size int) ([]byte, error) {
	if m.failReserve != nil {
		return nil, m.failReserve
	}
	if size != testPageSize || addr%testPageSize != 0 {
		return nil, fmt.Errorf("bad reservation %#x+%d", addr, size)
	}
	if _, exist := m.pages[addr]; exist {
		return nil, errors.New("page already mapped")
	}

	b := make([]byte, size)
	m.pages[addr] = b
	m.perms[addr] = PermWrite
	m.reserved = append(m.reserved, addr)
	return b, nil
}

func (m *testMemory) Protect(addr uintptr, region []byte, perm Perm) error {
	if m.failProtect != nil {
		return m.failProtect
	}
	if b, ok := m.pages[addr]; !ok || &b[0] != &region[0] {
		return fmt.Errorf("protecting unreserved region %#x", addr)
	}

	m.perms[addr] = perm
	return nil
}

func testImage(size int) []byte {
	b := make([]byte, size)
	for i := range b {
		b[i] = byte(i*7 + 3)
		if b[i] == 0 {
			b[i] = 0xff
		}
	}
	return b
}
