// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package entry transfers control to a loaded program.
package entry

import (
	"encoding/binary"
	"errors"
)

// Auxiliary vector tags.
const (
	AT_NULL   = 0
	AT_PHDR   = 3
	AT_PHENT  = 4
	AT_PHNUM  = 5
	AT_PAGESZ = 6
	AT_ENTRY  = 9
	AT_UID    = 11
	AT_EUID   = 12
	AT_GID    = 13
	AT_EGID   = 14
	AT_RANDOM = 25
	AT_EXECFN = 31
)

const wordSize = 8

var ErrStackOverflow = errors.New("arguments and environment do not fit in stack")

type Aux struct {
	Tag uint64
	Val uint64
}

// BuildStack lays out the initial process stack at the top of stack, which
// is mapped at address base: argc, argv, envp and auxv, followed by the
// strings they point to.  AT_RANDOM, AT_EXECFN and AT_NULL entries are
// appended to aux.  The returned stack pointer is 16-byte aligned.
func BuildStack(stack []byte, base uintptr, execfn string, args, env []string, aux []Aux, random [16]byte) (uintptr, error) {
	pos := len(stack)

	push := func(b []byte) (uint64, bool) {
		if pos < len(b) {
			return 0, false
		}
		pos -= len(b)
		copy(stack[pos:], b)
		return uint64(base) + uint64(pos), true
	}

	pushString := func(s string) (uint64, bool) {
		return push(append([]byte(s), 0))
	}

	pushStrings := func(list []string) ([]uint64, bool) {
		addrs := make([]uint64, len(list))
		for i := len(list) - 1; i >= 0; i-- {
			addr, ok := pushString(list[i])
			if !ok {
				return nil, false
			}
			addrs[i] = addr
		}
		return addrs, true
	}

	execfnAddr, ok := pushString(execfn)
	if !ok {
		return 0, ErrStackOverflow
	}
	envAddrs, ok := pushStrings(env)
	if !ok {
		return 0, ErrStackOverflow
	}
	argAddrs, ok := pushStrings(args)
	if !ok {
		return 0, ErrStackOverflow
	}
	pos &^= 15
	randomAddr, ok := push(random[:])
	if !ok {
		return 0, ErrStackOverflow
	}

	aux = append(aux[:len(aux):len(aux)],
		Aux{AT_RANDOM, randomAddr},
		Aux{AT_EXECFN, execfnAddr},
		Aux{AT_NULL, 0},
	)

	var words []uint64
	words = append(words, uint64(len(args)))
	words = append(words, argAddrs...)
	words = append(words, 0)
	words = append(words, envAddrs...)
	words = append(words, 0)
	for _, a := range aux {
		words = append(words, a.Tag, a.Val)
	}

	size := len(words) * wordSize
	if pos < size+15 {
		return 0, ErrStackOverflow
	}
	pos = (pos - size) &^ 15

	for i, w := range words {
		binary.NativeEndian.PutUint64(stack[pos+i*wordSize:], w)
	}

	return base + uintptr(pos), nil
}
