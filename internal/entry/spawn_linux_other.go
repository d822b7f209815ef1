// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux && !amd64

package entry

import (
	"errors"
)

func spawn(sp, entry uintptr) (int, error) {
	return 0, errors.ErrUnsupported
}
