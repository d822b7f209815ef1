// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package uffd delivers missing-page faults of registered address ranges
// via userfaultfd(2).
package uffd

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	api = 0xaa

	ioctlAPI      = 0xc018aa3f // _IOWR(0xaa, 0x3f, struct uffdio_api)
	ioctlRegister = 0xc020aa00 // _IOWR(0xaa, 0x00, struct uffdio_register)
	ioctlWake     = 0x8010aa02 // _IOR(0xaa, 0x02, struct uffdio_range)

	registerModeMissing = 1 << 0

	featureThreadID = 1 << 8

	userModeOnly = 1 // UFFD_USER_MODE_ONLY

	eventPagefault     = 0x12
	pagefaultFlagWrite = 1 << 0

	msgSize = 32 // sizeof(struct uffd_msg)
)

type uffdioAPI struct {
	API      uint64
	Features uint64
	Ioctls   uint64
}

type uffdioRange struct {
	Start uint64
	Len   uint64
}

type uffdioRegister struct {
	Range  uffdioRange
	Mode   uint64
	Ioctls uint64
}

// Fault is a missing-page fault event.
type Fault struct {
	Addr   uintptr
	Write  bool
	Thread int // Zero if the kernel doesn't report it.
}

// FD is a userfaultfd file descriptor.
type FD struct {
	f        *os.File
	features uint64
	buf      [msgSize * 16]byte
	pending  []byte
}

// Open a userfaultfd which handles faults from user mode only, falling back
// to an unrestricted descriptor on kernels which don't know the flag.
func Open() (*FD, error) {
	flags := userModeOnly
	fd, err := open(flags)
	if errors.Is(err, unix.EINVAL) {
		flags = 0
		fd, err = open(flags)
	}
	if err != nil {
		return nil, fmt.Errorf("userfaultfd: %w", err)
	}

	// The API handshake can be attempted only once per descriptor.
	features, err := handshake(fd, featureThreadID)
	if errors.Is(err, unix.EINVAL) {
		unix.Close(fd)
		if fd, err = open(flags); err != nil {
			return nil, fmt.Errorf("userfaultfd: %w", err)
		}
		features, err = handshake(fd, 0)
	}
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("userfaultfd api: %w", err)
	}

	return &FD{
		f:        os.NewFile(uintptr(fd), "userfaultfd"),
		features: features,
	}, nil
}

func open(flags int) (int, error) {
	fd, _, errno := unix.Syscall(unix.SYS_USERFAULTFD, uintptr(unix.O_CLOEXEC|unix.O_NONBLOCK|flags), 0, 0)
	if errno != 0 {
		return -1, errno
	}
	return int(fd), nil
}

func handshake(fd int, features uint64) (uint64, error) {
	arg := uffdioAPI{
		API:      api,
		Features: features,
	}
	if err := ioctl(fd, ioctlAPI, unsafe.Pointer(&arg)); err != nil {
		return 0, err
	}
	return arg.Features, nil
}

func ioctl(fd int, req uintptr, arg unsafe.Pointer) error {
	for {
		_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(arg))
		switch errno {
		case 0:
			return nil

		case unix.EINTR:
			continue

		default:
			return errno
		}
	}
}

func (u *FD) control(req uintptr, arg unsafe.Pointer) error {
	conn, err := u.f.SyscallConn()
	if err != nil {
		return err
	}

	var ioctlErr error
	if err := conn.Control(func(fd uintptr) {
		ioctlErr = ioctl(int(fd), req, arg)
	}); err != nil {
		return err
	}
	return ioctlErr
}

// ThreadIDs reports whether faults carry the faulting thread id.
func (u *FD) ThreadIDs() bool {
	return u.features&featureThreadID != 0
}

// Register a page-aligned range for missing-page faults.  The range must be
// covered by anonymous private mappings.
func (u *FD) Register(addr uintptr, size int) error {
	arg := uffdioRegister{
		Range: uffdioRange{uint64(addr), uint64(size)},
		Mode:  registerModeMissing,
	}
	if err := u.control(ioctlRegister, unsafe.Pointer(&arg)); err != nil {
		return fmt.Errorf("userfaultfd register %#x-%#x: %w", addr, addr+uintptr(size), err)
	}
	return nil
}

// Wake threads blocked on faults within the range.
func (u *FD) Wake(addr uintptr, size int) error {
	arg := uffdioRange{uint64(addr), uint64(size)}
	if err := u.control(ioctlWake, unsafe.Pointer(&arg)); err != nil {
		return fmt.Errorf("userfaultfd wake %#x: %w", addr, err)
	}
	return nil
}

// ReadFault blocks until the next page fault.  Events of other kinds are
// skipped.  os.ErrClosed is returned after Close.
func (u *FD) ReadFault() (Fault, error) {
	for {
		for len(u.pending) >= msgSize {
			msg := u.pending[:msgSize]
			u.pending = u.pending[msgSize:]

			if msg[0] == eventPagefault {
				return decodeFault(msg), nil
			}
		}

		n, err := u.f.Read(u.buf[:])
		if err != nil {
			if errors.Is(err, syscall.EAGAIN) {
				continue
			}
			return Fault{}, err
		}
		u.pending = u.buf[:n]
	}
}

func decodeFault(msg []byte) Fault {
	flags := binary.NativeEndian.Uint64(msg[8:])

	return Fault{
		Addr:   uintptr(binary.NativeEndian.Uint64(msg[16:])),
		Write:  flags&pagefaultFlagWrite != 0,
		Thread: int(binary.NativeEndian.Uint32(msg[24:])),
	}
}

// Close unblocks ReadFault.
func (u *FD) Close() error {
	return u.f.Close()
}
