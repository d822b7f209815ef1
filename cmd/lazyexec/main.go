// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"gate.computer/lazyexec/cmd/lazyexec/lazyexec"
)

func main() {
	lazyexec.Main()
}
