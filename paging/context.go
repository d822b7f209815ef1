// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package paging

import (
	"errors"
	"sync/atomic"
)

// ErrEstablished is returned when a second loader context is established in
// the same process.
var ErrEstablished = errors.New("loader context already established")

// Context is the state shared between the loader and the fault handler.
// There is exactly one per process, since only one executable is ever loaded
// per process.  It is written once by Establish and only read afterwards.
type Context struct {
	PageSize int
	Segments []*Segment
	Image    []byte   // Read-only mapping of the executable file.
	Previous Delegate // Fault behavior in effect before installation.
	Handler  *Handler
}

var current atomic.Pointer[Context]

// Establish the process-wide context.  It can be done only once.
func Establish(c *Context) error {
	if !current.CompareAndSwap(nil, c) {
		return ErrEstablished
	}
	return nil
}

// Current context, or nil if none has been established.
func Current() *Context {
	return current.Load()
}

// NewContext initializes page tables for the segments and wires a handler
// around them.  If presize is true, each page table is allocated for the
// segment's full page count so that it never grows while handling faults.
// If indexed is true, the segments must have been validated.
func NewContext(segs []*Segment, image []byte, pageSize int, mem Memory, previous Delegate, opt Options) *Context {
	for _, s := range segs {
		pages := 0
		if opt.Presize {
			pages = s.PageCount(pageSize)
		}
		s.Table = NewPageTable(pages)
	}

	t := NewTranslator(segs, pageSize, opt.Indexed)
	m := NewMaterializer(mem, image, pageSize, opt.Log)

	return &Context{
		PageSize: pageSize,
		Segments: segs,
		Image:    image,
		Previous: previous,
		Handler:  NewHandler(t, m, previous, opt.Log),
	}
}
