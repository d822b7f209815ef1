// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package paging implements demand paging of executable segments.

A segment's pages are mapped only when the loaded program first touches
them.  The Handler decides each fault independently: if the faulting address
belongs to a segment and its page is absent, the Materializer maps exactly
that page, copies the file content, zero-fills the part beyond the
segment's file size, and applies the segment's permission.  Any other fault
(an address outside of all segments, or a protection violation on a page
which is already present) is passed to the Delegate which was in effect
before the handler was installed.

Faults must be delivered one at a time by a single reader, on an ordinary
goroutine.  Page table growth allocates memory; Options.Presize avoids it on
the fault path.  Nested or concurrent fault delivery needs external
serialization.
*/
package paging
