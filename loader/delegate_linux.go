// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package loader

import (
	"log/slog"

	"gate.computer/lazyexec/internal/vm"
	"gate.computer/lazyexec/paging"
	"golang.org/x/sys/unix"
)

// DefaultDelegate is the fault behavior of a process without demand paging:
// termination by SIGSEGV.
func DefaultDelegate(f paging.Fault) {
	slog.Error("segmentation fault", "fault", f)
	vm.RaiseDefault(unix.SIGSEGV)
}
