// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Thorium Works
//
// Manifold - Corewire control link host
//
// Host-side tooling for driving, monitoring and diagnosing control nodes on
// a Corewire serial link.

package main

import (
	"os"

	"github.com/thorium-works/manifold/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
