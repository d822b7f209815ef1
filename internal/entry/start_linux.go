// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package entry

import (
	"crypto/rand"
	"fmt"
	"os"
	"unsafe"

	"gate.computer/lazyexec/internal/executable"
	"gate.computer/lazyexec/internal/vm"
)

// Start the program on a new thread which is not managed by the Go runtime.
// All signals are blocked on the thread.  The thread id is returned; the
// program's own exit terminates the process.
func Start(x *executable.Executable, args, env []string, stackSize int) (int, error) {
	var random [16]byte
	if _, err := rand.Read(random[:]); err != nil {
		return 0, err
	}

	stack, err := vm.MapStack(stackSize)
	if err != nil {
		return 0, err
	}
	base := uintptr(unsafe.Pointer(&stack[0]))

	aux := []Aux{
		{AT_PAGESZ, uint64(vm.PageSize())},
		{AT_ENTRY, uint64(x.Entry)},
		{AT_UID, uint64(os.Getuid())},
		{AT_EUID, uint64(os.Geteuid())},
		{AT_GID, uint64(os.Getgid())},
		{AT_EGID, uint64(os.Getegid())},
	}
	if x.Phdr != 0 {
		aux = append(aux,
			Aux{AT_PHDR, uint64(x.Phdr)},
			Aux{AT_PHENT, uint64(x.Phent)},
			Aux{AT_PHNUM, uint64(x.Phnum)},
		)
	}

	sp, err := BuildStack(stack, base, x.Path, args, env, aux, random)
	if err != nil {
		vm.Unmap(stack)
		return 0, err
	}

	tid, err := spawn(sp, x.Entry)
	if err != nil {
		vm.Unmap(stack)
		return 0, fmt.Errorf("starting program thread: %w", err)
	}

	return tid, nil
}
