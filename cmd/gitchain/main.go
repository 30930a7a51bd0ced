// Copyright 2026 The GitChain Authors
// SPDX-License-Identifier: Apache-2.0

// The gitchain command is the operator CLI for the provenance store:
// writing and reading versioned containers, sealing Merkle batches,
// inspecting anchoring status, and resolving verified context.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := run(); err != nil {
		// Commands that print their own output return an ExitError
		// with the desired code. No redundant "error:" line for those.
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return rootCommand().Execute(os.Args[1:])
}
