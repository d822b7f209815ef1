// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package lazyexec contains general documentation for its subpackages.

The loader package maps a static executable's segments on demand: nothing is
read from the file until the program touches a page.  Each first touch of a
segment page is resolved by the paging package, which maps exactly that page,
fills it from the file image and zero-fills the part beyond the segment's file
size, and only then applies the segment's final protection.  Faults which
don't belong to a segment, or which hit a page that is already resident, are
delegated to the fault behavior that was in effect before.

Faults are received from a userfaultfd file descriptor, so the program runs on
a thread of its own while the fault service runs in a goroutine.

# Errors

Setup failures are returned as error values which wrap the underlying cause;
use errors.Is or errors.As to inspect them.  A page which can't be
materialized after the program has started is fatal: the process is aborted,
because the faulting thread can't make progress.
*/
package lazyexec
