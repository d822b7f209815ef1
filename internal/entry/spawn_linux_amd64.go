// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package entry

import (
	"syscall"
)

// startThread blocks all signals, clones a thread sharing the address space
// with stack pointer sp, and jumps to entry in the child.  The parent's
// signal mask is restored.  A negative result is an errno.
func startThread(sp, entry uintptr) (tid int64)

func spawn(sp, entry uintptr) (int, error) {
	tid := startThread(sp, entry)
	if tid < 0 {
		return 0, syscall.Errno(-tid)
	}
	return int(tid), nil
}
