// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vm

import (
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

// sigaction is large enough for struct kernel_sigaction on all supported
// architectures.  All-zero means SIG_DFL with no flags.
type sigaction [4]uint64

func resetSignal(sig syscall.Signal) {
	var sa sigaction
	unix.RawSyscall6(unix.SYS_RT_SIGACTION, uintptr(sig), uintptr(unsafe.Pointer(&sa)), 0, 8, 0, 0)
}

// RaiseDefault restores the default disposition of a signal and sends it to
// the process.  For SIGSEGV and SIGABRT that terminates the process the
// way the kernel would if no handler had been installed.
func RaiseDefault(sig syscall.Signal) {
	resetSignal(sig)
	unix.Kill(unix.Getpid(), sig)

	// Delivery is asynchronous; don't let the caller continue.
	select {}
}

// Abort the process with SIGABRT.
func Abort() {
	RaiseDefault(unix.SIGABRT)
}
