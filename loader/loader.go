// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package loader runs statically linked executables with demand paging.
//
// The loader's own executable must not occupy the address ranges of the
// loaded program's segments; build it as a position-independent executable.
//
// Faults reach the handler only for missing pages of registered segment
// ranges.  An access outside of all segments, or a protection violation on a
// page which has already been materialized, is raised by the kernel as
// SIGSEGV on the program thread.  The thread blocks all signals, so the
// kernel terminates the process as it would without demand paging.  The
// delegate (DefaultDelegate unless overridden) therefore only runs for
// faults which the service itself decides not to resolve, and it terminates
// the process the same way.
package loader

import (
	"errors"
)

var (
	ErrInitialized    = errors.New("loader already initialized")
	ErrNotInitialized = errors.New("loader not initialized")
)
