// Copyright 2026 The GitChain Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/pflag"

	"github.com/gitchain-foundation/gitchain/cmd/gitchain/cli"
	"github.com/gitchain-foundation/gitchain/merkle"
)

func sealCommand() *cli.Command {
	var configPath string
	return &cli.Command{
		Name:    "seal",
		Summary: "Seal pending fingerprints into a Merkle batch",
		Description: `Seal drains the pending fingerprint set into a new batch: leaves
are sorted, the Merkle tree is built, and the batch is persisted
awaiting ledger submission by the daemon's anchoring loop.

The pending set is recovered from the commit log, so sealing from
the CLI picks up writes made by any process against the same
database.`,
		Usage: "gitchain seal [flags]",
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("seal", pflag.ContinueOnError)
			fs.StringVar(&configPath, "config", "", "config file (defaults to GITCHAIN_CONFIG)")
			return fs
		},
		Run: func(args []string) error {
			rt, err := openRuntime(configPath)
			if err != nil {
				return err
			}
			defer rt.Close()
			ctx := context.Background()

			// A fresh CLI process has an empty in-memory pending set;
			// rebuild it from fingerprints not yet in any batch.
			digests, err := rt.store.Fingerprints(ctx)
			if err != nil {
				return err
			}
			if _, err := rt.engine.Recover(ctx, digests); err != nil {
				return err
			}

			batch, err := rt.engine.Seal(ctx)
			if err != nil {
				if errors.Is(err, merkle.ErrEmptyBatch) {
					fmt.Println("nothing to seal")
					return nil
				}
				return err
			}
			fmt.Printf("batch %d sealed: %d leaves, root %s\n",
				batch.ID, batch.LeafCount, batch.Root.String())
			return nil
		},
	}
}

func anchorStatusCommand() *cli.Command {
	var (
		configPath string
		asJSON     bool
	)
	return &cli.Command{
		Name:    "anchor-status",
		Summary: "Show batch anchoring status",
		Usage:   "gitchain anchor-status [batch-id | container-id] [flags]",
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("anchor-status", pflag.ContinueOnError)
			fs.StringVar(&configPath, "config", "", "config file (defaults to GITCHAIN_CONFIG)")
			fs.BoolVar(&asJSON, "json", false, "output as JSON")
			return fs
		},
		Run: func(args []string) error {
			rt, err := openRuntime(configPath)
			if err != nil {
				return err
			}
			defer rt.Close()
			ctx := context.Background()

			switch len(args) {
			case 0:
				return printAllBatches(ctx, rt, asJSON)
			case 1:
				batch, err := lookupBatch(ctx, rt, args[0])
				if err != nil {
					return err
				}
				if asJSON {
					return cli.WriteJSON(batch)
				}
				printBatch(batch)
				return nil
			default:
				return fmt.Errorf("anchor-status: at most one argument")
			}
		},
	}
}

// lookupBatch resolves the argument as a numeric batch id or as a
// container id whose latest version's batch is wanted.
func lookupBatch(ctx context.Context, rt *runtime, arg string) (*merkle.Batch, error) {
	if id, err := strconv.ParseInt(arg, 10, 64); err == nil {
		return rt.engine.Batch(ctx, id)
	}
	target, err := parseTarget(arg)
	if err != nil {
		return nil, err
	}
	container, err := rt.store.Read(ctx, target)
	if err != nil {
		return nil, err
	}
	batch, err := rt.engine.BatchForLeaf(ctx, container.Fingerprint)
	if err != nil {
		if errors.Is(err, merkle.ErrNotFound) {
			return nil, fmt.Errorf("%s is not in any batch yet", container.Ref.String())
		}
		return nil, err
	}
	return batch, nil
}

func printAllBatches(ctx context.Context, rt *runtime, asJSON bool) error {
	var all []merkle.Batch
	for _, status := range []merkle.Status{
		merkle.StatusPending, merkle.StatusSubmitted,
		merkle.StatusConfirmed, merkle.StatusFailed,
	} {
		batches, err := rt.engine.BatchesByStatus(ctx, status)
		if err != nil {
			return err
		}
		all = append(all, batches...)
	}
	if asJSON {
		return cli.WriteJSON(all)
	}
	if len(all) == 0 {
		fmt.Println("no batches")
		return nil
	}
	for i := range all {
		printBatch(&all[i])
	}
	return nil
}

func printBatch(batch *merkle.Batch) {
	fmt.Printf("batch %d  %s  %d leaves  root %s\n",
		batch.ID, batch.Status, batch.LeafCount, batch.Root.String())
	if batch.TxHash != "" {
		fmt.Printf("  tx %s  block %d\n", batch.TxHash, batch.BlockNumber)
	}
	if batch.LastError != "" {
		fmt.Printf("  last error: %s (%d attempts)\n", batch.LastError, batch.Attempts)
	}
}
