// Copyright 2026 The GitChain Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/gitchain-foundation/gitchain/cmd/gitchain/cli"
	"github.com/gitchain-foundation/gitchain/inject"
)

func resolveCommand() *cli.Command {
	var (
		configPath string
		verify     bool
		formatName string
		citations  bool
		maxTokens  int
		timeout    time.Duration
	)
	return &cli.Command{
		Name:    "resolve",
		Summary: "Resolve containers into a formatted context bundle",
		Description: `Resolve reads one or more containers and renders them for
injection into a model context window. With --verify, each
container's Merkle proof is checked against its batch's
ledger-confirmed root and the provenance status is included in
the output.`,
		Usage: "gitchain resolve <container-id>... [flags]",
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("resolve", pflag.ContinueOnError)
			fs.StringVar(&configPath, "config", "", "config file (defaults to GITCHAIN_CONFIG)")
			fs.BoolVar(&verify, "verify", false, "check Merkle proofs against confirmed roots")
			fs.StringVar(&formatName, "format", "markdown", "output format: markdown, json, yaml")
			fs.BoolVar(&citations, "citations", false, "include source citations")
			fs.IntVar(&maxTokens, "max-tokens", 0, "token budget, 0 for unbounded")
			fs.DurationVar(&timeout, "timeout", 30*time.Second, "resolution deadline")
			return fs
		},
		Run: func(args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("resolve: at least one container id required")
			}
			format, err := inject.ParseFormat(formatName)
			if err != nil {
				return err
			}
			rt, err := openRuntime(configPath)
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			bundle, err := rt.resolver.Resolve(ctx, args, inject.ResolveOptions{Verify: verify})
			if err != nil {
				return err
			}
			out, tokens, err := inject.FormatContext(bundle, inject.FormatOptions{
				Format:           format,
				IncludeCitations: citations,
				MaxTokens:        maxTokens,
			})
			if err != nil {
				return err
			}
			fmt.Print(out)
			if format == inject.FormatMarkdown {
				fmt.Printf("\n(%d tokens, verified=%t)\n", tokens, bundle.Verified)
			}
			return nil
		},
		Examples: []cli.Example{
			{
				Description: "Inject two products with verified provenance",
				Command:     "gitchain resolve --verify --citations 0711:product:tools:drill-11:latest 0711:product:tools:saw-3:latest",
			},
		},
	}
}

func verifyCommand() *cli.Command {
	var (
		configPath string
		asJSON     bool
	)
	return &cli.Command{
		Name:    "verify",
		Summary: "Verify a container against its ledger anchor",
		Description: `Verify checks a single container, addressed by container id or by
content fingerprint, against its batch's confirmed Merkle root.
Exits 0 when verified, 1 when the container exists but cannot be
verified yet (or the proof fails).`,
		Usage: "gitchain verify <container-id | fingerprint> [flags]",
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("verify", pflag.ContinueOnError)
			fs.StringVar(&configPath, "config", "", "config file (defaults to GITCHAIN_CONFIG)")
			fs.BoolVar(&asJSON, "json", false, "output as JSON")
			return fs
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("verify: exactly one container id or fingerprint required")
			}
			rt, err := openRuntime(configPath)
			if err != nil {
				return err
			}
			defer rt.Close()

			resolved, err := rt.resolver.VerifyOne(context.Background(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				if err := cli.WriteJSON(resolved); err != nil {
					return err
				}
			} else if resolved.Verified {
				fmt.Printf("%s verified (batch %d, tx %s, block %d)\n",
					resolved.ID,
					resolved.Proof.BatchID,
					resolved.Proof.TxHash,
					resolved.Proof.BlockNumber)
			} else {
				fmt.Printf("%s unverified: %s\n", resolved.ID, resolved.Reason)
			}
			if !resolved.Verified {
				return &cli.ExitError{Code: 1}
			}
			return nil
		},
	}
}
