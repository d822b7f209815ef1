// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package loader

import (
	"fmt"
	"sync"

	"gate.computer/lazyexec/internal/entry"
	"gate.computer/lazyexec/internal/executable"
	"gate.computer/lazyexec/internal/uffd"
	"gate.computer/lazyexec/internal/vm"
	"gate.computer/lazyexec/paging"
	"github.com/google/uuid"
	"import.name/lock"

	. "import.name/type/context"
)

type installation struct {
	config   Config
	opt      Options
	pageSize int
	faults   *uffd.FD
	previous paging.Delegate
}

var (
	mu        sync.Mutex
	installed *installation
)

// Initialize installs the fault handler.  The fault behavior which was in
// effect before (Options.Previous or DefaultDelegate) is captured for
// delegation.  It can be called once per process.
func Initialize(c *Config, opt Options) (err error) {
	lock.Guard(&mu, func() {
		if installed != nil {
			err = ErrInitialized
			return
		}
		installed, err = install(c, opt)
	})
	return
}

func install(c *Config, opt Options) (*installation, error) {
	faults, err := uffd.Open()
	if err != nil {
		return nil, err
	}

	previous := opt.Previous
	if previous == nil {
		previous = DefaultDelegate
	}

	in := &installation{
		config:   *c,
		opt:      opt,
		pageSize: vm.PageSize(),
		faults:   faults,
		previous: previous,
	}

	opt.log().Info("fault handler installed", "pagesize", in.pageSize, "threadids", faults.ThreadIDs())
	return in, nil
}

// Execute loads and runs a program.  It doesn't return after the program has
// been started, unless fault handling breaks down or ctx is done; the
// program terminates the process when it exits.  The returned error is never
// nil.
//
// Failures before the program's address space has been committed leave no
// mappings behind, and Execute may be retried.  Once the program thread has
// been attempted to start, a failure is terminal for the process.
func Execute(ctx Context, path string, args, env []string) error {
	var in *installation
	lock.Guard(&mu, func() { in = installed })

	if in == nil {
		return ErrNotInitialized
	}

	return in.execute(ctx, path, args, env)
}

func (in *installation) execute(ctx Context, path string, args, env []string) error {
	log := in.opt.log().With("execution", uuid.NewString())

	x, err := executable.Parse(path, in.pageSize)
	if err != nil {
		return err
	}

	if in.config.Validate {
		if err := paging.ValidateSegments(x.Segments, in.pageSize); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}

	image, err := vm.MapFile(path)
	if err != nil {
		return err
	}

	pc := paging.NewContext(x.Segments, image, in.pageSize, vm.Fixed{}, in.previous, paging.Options{
		Presize: in.config.PresizeTables,
		Indexed: in.config.Validate,
		Log:     log,
	})
	var reserved []*paging.Segment
	release := func() {
		for _, s := range reserved {
			vm.Release(s.Vaddr, s.PageCount(in.pageSize)*in.pageSize)
		}
		vm.Unmap(image)
	}

	for _, s := range x.Segments {
		if s.MemSize == 0 {
			continue
		}

		size := s.PageCount(in.pageSize) * in.pageSize

		if err := vm.ReserveRange(s.Vaddr, size, s.Perm); err != nil {
			release()
			return fmt.Errorf("segment %s: %w", s, err)
		}
		reserved = append(reserved, s)

		// Unmapping the range unregisters it.
		if err := in.faults.Register(s.Vaddr, size); err != nil {
			release()
			return fmt.Errorf("segment %s: %w", s, err)
		}

		log.Debug("segment reserved", "segment", s, "offset", s.Offset, "filesize", s.FileSize)
	}

	if err := paging.Establish(pc); err != nil {
		release()
		return err
	}

	done := make(chan error, 1)
	go func() {
		done <- serve(in.faults, pc.Handler, in.pageSize, log)
	}()

	thread, err := entry.Start(x, args, env, in.config.stackSize())
	if err != nil {
		in.faults.Close()
		return err
	}

	log.Info("program started", "path", path, "thread", thread, "entry", paging.Addr(x.Entry), "segments", len(x.Segments))

	if in.opt.Started != nil {
		in.opt.Started(thread)
	}

	select {
	case err := <-done:
		return fmt.Errorf("fault handling: %w", err)

	case <-ctx.Done():
		return ctx.Err()
	}
}
