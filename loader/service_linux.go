// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package loader

import (
	"log/slog"

	"gate.computer/lazyexec/internal/uffd"
	"gate.computer/lazyexec/internal/vm"
	"gate.computer/lazyexec/paging"
)

type faultSource interface {
	ReadFault() (uffd.Fault, error)
	Wake(addr uintptr, size int) error
}

var abort = vm.Abort

// serve faults one at a time until the source fails.  A faulting thread is
// woken only if its page was materialized; delegated faults leave it to the
// previous fault behavior.
func serve(faults faultSource, h *paging.Handler, pageSize int, log *slog.Logger) error {
	mask := ^uintptr(pageSize - 1)

	for {
		uf, err := faults.ReadFault()
		if err != nil {
			return err
		}

		f := paging.Fault{
			Addr:   uf.Addr,
			Write:  uf.Write,
			Thread: uf.Thread,
		}

		o, err := h.Serve(f)
		if err != nil {
			log.Error("page fault handling failed", "fault", f, "error", err)
			abort()
			return err
		}

		if o.Handled() {
			if err := faults.Wake(f.Addr&mask, pageSize); err != nil {
				log.Error("waking faulting thread failed", "fault", f, "error", err)
				abort()
				return err
			}
		}
	}
}
