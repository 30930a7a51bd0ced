// Copyright 2026 The GitChain Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/gitchain-foundation/gitchain/cmd/gitchain/cli"
	"github.com/gitchain-foundation/gitchain/lib/version"
)

// rootCommand builds the complete gitchain CLI command tree.
func rootCommand() *cli.Command {
	return &cli.Command{
		Name: "gitchain",
		Description: `GitChain: verified context for product data.

Write versioned containers with full provenance, seal their
fingerprints into Merkle batches, anchor batch roots on a ledger,
and resolve cryptographically verified context bundles.`,
		Subcommands: []*cli.Command{
			writeCommand(),
			readCommand(),
			historyCommand(),
			diffCommand(),
			sealCommand(),
			anchorStatusCommand(),
			resolveCommand(),
			verifyCommand(),
			atomsCommand(),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(args []string) error {
					fmt.Printf("gitchain %s\n", version.Full())
					return nil
				},
			},
		},
		Examples: []cli.Example{
			{
				Description: "Write a new container version from a JSONC payload",
				Command:     "gitchain write 0711:product:tools:drill-11 --data drill.jsonc --author importer",
			},
			{
				Description: "Read the latest version of a container",
				Command:     "gitchain read 0711:product:tools:drill-11:latest",
			},
			{
				Description: "Show what changed between two versions",
				Command:     "gitchain diff 0711:product:tools:drill-11 1 2",
			},
			{
				Description: "Seal pending fingerprints into a batch",
				Command:     "gitchain seal",
			},
			{
				Description: "Resolve a verified context bundle as markdown",
				Command:     "gitchain resolve --verify 0711:product:tools:drill-11:latest",
			},
		},
	}
}
