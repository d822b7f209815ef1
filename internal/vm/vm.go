// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package vm wraps the address space primitives used by the loader.
package vm

import (
	"os"
)

func PageSize() int {
	return os.Getpagesize()
}

// Fixed implements paging.Memory with anonymous mappings at fixed
// addresses.
type Fixed struct{}

func roundUp(n, pageSize int) int {
	return (n + pageSize - 1) &^ (pageSize - 1)
}
