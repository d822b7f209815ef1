// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package paging

import (
	"fmt"
	"log/slog"
)

// Addr formats as hexadecimal.
type Addr uintptr

func (a Addr) String() string { return fmt.Sprintf("%#x", uintptr(a)) }

// Fault describes a memory access which had no valid mapping.
type Fault struct {
	Addr   uintptr
	Write  bool
	Thread int // Zero if unknown.
}

func (f Fault) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("addr", Addr(f.Addr).String()),
		slog.Bool("write", f.Write),
	}
	if f.Thread != 0 {
		attrs = append(attrs, slog.Int("thread", f.Thread))
	}
	return slog.GroupValue(attrs...)
}

// Delegate is the fault behavior which was in effect before the handler was
// installed.  It is invoked unchanged for faults which are not first touches
// of tracked pages.
type Delegate func(Fault)

// Outcome of handling a fault.
type Outcome int

const (
	Materialized     Outcome = iota // First touch of a tracked page.
	DelegatedUnowned                // No segment owns the address.
	DelegatedPresent                // Page was already present.
)

func (o Outcome) Handled() bool { return o == Materialized }

func (o Outcome) String() string {
	switch o {
	case Materialized:
		return "materialized"
	case DelegatedUnowned:
		return "unowned"
	case DelegatedPresent:
		return "present"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Handler is the demand-paging fault handler.  Each fault is decided
// independently: a first touch of a page of a known segment is
// materialized, and everything else is delegated.
type Handler struct {
	translator   *Translator
	materializer *Materializer
	delegate     Delegate
	log          *slog.Logger
}

func NewHandler(t *Translator, m *Materializer, previous Delegate, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}

	return &Handler{
		translator:   t,
		materializer: m,
		delegate:     previous,
		log:          log,
	}
}

// Handle a fault.  Materialization failures panic; see Serve.
func (h *Handler) Handle(f Fault) Outcome {
	seg, index, found := h.translator.Locate(f.Addr)
	if !found {
		h.log.Warn("fault outside of segments", "fault", f)
		return h.pass(f, DelegatedUnowned)
	}

	if seg.Table.Present(index) {
		h.log.Warn("fault on present page", "fault", f, "segment", seg, "page", index)
		return h.pass(f, DelegatedPresent)
	}

	h.materializer.Materialize(seg, index)
	faultsTotal.WithLabelValues(Materialized.String()).Inc()
	return Materialized
}

func (h *Handler) pass(f Fault, o Outcome) Outcome {
	faultsTotal.WithLabelValues(o.String()).Inc()
	if h.delegate != nil {
		h.delegate(f)
	}
	return o
}

// Serve handles a fault and converts a materialization failure into an
// error.  The caller must not resume the faulting thread if an error is
// returned.
func (h *Handler) Serve(f Fault) (o Outcome, err error) {
	err = z.Recover(func() {
		o = h.Handle(f)
	})
	if err != nil {
		err = fmt.Errorf("materializing page at %s: %w", Addr(f.Addr), err)
	}
	return
}
