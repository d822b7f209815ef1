// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package paging

import (
	"log/slog"
)

type Options struct {
	Presize bool // Allocate page tables for whole segments up front.
	Indexed bool // Segments are known not to overlap.
	Log     *slog.Logger
}
