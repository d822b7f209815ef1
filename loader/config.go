// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package loader

import (
	"log/slog"

	"gate.computer/lazyexec/paging"
)

const DefaultStackSize = 8 << 20

type Config struct {
	// Allocate each segment's page table for the whole segment up front, so
	// that faults never grow it.
	PresizeTables bool

	// Reject executables whose segments are misaligned or overlap.  Also
	// enables indexed fault translation for large segment tables.
	Validate bool

	// Size of the loaded program's initial stack.
	StackSize int
}

var DefaultConfig = Config{
	PresizeTables: true,
	Validate:      true,
	StackSize:     DefaultStackSize,
}

func (c *Config) stackSize() int {
	if c.StackSize <= 0 {
		return DefaultStackSize
	}
	return c.StackSize
}

// Options which can't be expressed in a configuration file.
type Options struct {
	// Fault behavior for faults which are not first touches of tracked
	// pages.  DefaultDelegate is used if nil.
	Previous paging.Delegate

	// Called after the program thread has been started.
	Started func(thread int)

	Log *slog.Logger
}

func (o *Options) log() *slog.Logger {
	if o.Log == nil {
		return slog.Default()
	}
	return o.Log
}
