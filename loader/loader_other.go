// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !linux

package loader

import (
	"errors"

	"gate.computer/lazyexec/paging"

	. "import.name/type/context"
)

func Initialize(*Config, Options) error {
	return errors.ErrUnsupported
}

func Execute(Context, string, []string, []string) error {
	return errors.ErrUnsupported
}

func DefaultDelegate(paging.Fault) {
	panic("segmentation fault")
}
