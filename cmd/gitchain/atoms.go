// Copyright 2026 The GitChain Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/gitchain-foundation/gitchain/atom"
	"github.com/gitchain-foundation/gitchain/cmd/gitchain/cli"
)

func atomsCommand() *cli.Command {
	var (
		configPath string
		sourceName string
		trustMin   string
		fields     []string
		asJSON     bool
	)
	return &cli.Command{
		Name:    "atoms",
		Summary: "Decompose a container into provenance atoms",
		Description: `Atoms flattens a container version into per-field provenance
atoms, each carrying the trust level derived from the given source
type. The container's display trust is the minimum across its
atoms.`,
		Usage: "gitchain atoms <container-id> [flags]",
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("atoms", pflag.ContinueOnError)
			fs.StringVar(&configPath, "config", "", "config file (defaults to GITCHAIN_CONFIG)")
			fs.StringVar(&sourceName, "source", string(atom.SourceManufacturerFeed),
				"source type attributed to the container's fields")
			fs.StringVar(&trustMin, "trust-min", "", "drop atoms below this trust level")
			fs.StringSliceVar(&fields, "field", nil, "keep only this field path, repeatable")
			fs.BoolVar(&asJSON, "json", false, "output as JSON")
			return fs
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("atoms: exactly one container id required")
			}
			target, err := parseTarget(args[0])
			if err != nil {
				return err
			}
			rt, err := openRuntime(configPath)
			if err != nil {
				return err
			}
			defer rt.Close()

			container, err := rt.store.Read(context.Background(), target)
			if err != nil {
				return err
			}
			data, ok := container.Data.Interface().(map[string]any)
			if !ok {
				return fmt.Errorf("atoms: container %s has non-object data", container.Ref.String())
			}

			contributor := atom.Contributor{ID: container.Meta.Author}
			atoms := atom.Decompose(data, atom.SourceType(sourceName), contributor, container.Meta.UpdatedAt)

			opts := atom.FilterOptions{Fields: fields}
			if trustMin != "" {
				level, err := atom.ParseTrustLevel(trustMin)
				if err != nil {
					return err
				}
				opts.TrustMin = level
			}
			atoms = atom.Filter(atoms, opts)

			if asJSON {
				return cli.WriteJSON(map[string]any{
					"id":              container.Ref.String(),
					"container_trust": atom.ContainerTrust(atoms),
					"atoms":           atoms,
				})
			}
			for _, a := range atoms {
				fmt.Printf("%-40s %-10s %v\n", a.FieldPath, a.Trust, a.Value)
			}
			fmt.Printf("\ncontainer trust: %s (%d atoms)\n", atom.ContainerTrust(atoms), len(atoms))
			return nil
		},
	}
}
