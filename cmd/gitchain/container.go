// Copyright 2026 The GitChain Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"github.com/tidwall/jsonc"

	"github.com/gitchain-foundation/gitchain/cmd/gitchain/cli"
	"github.com/gitchain-foundation/gitchain/lib/fingerprint"
	"github.com/gitchain-foundation/gitchain/lib/ref"
	"github.com/gitchain-foundation/gitchain/lib/value"
	"github.com/gitchain-foundation/gitchain/store"
)

// parseTarget accepts either a full container id
// ("0711:product:tools:drill-11:latest") or the shorter
// "type:namespace:identifier" form, which implies latest.
func parseTarget(arg string) (ref.ContainerRef, error) {
	if strings.HasPrefix(arg, ref.Prefix+":") {
		return ref.Parse(arg)
	}
	parts := strings.Split(arg, ":")
	if len(parts) == 3 {
		return ref.New(ref.ContainerType(parts[0]), parts[1], parts[2], ref.Latest)
	}
	return ref.ContainerRef{}, fmt.Errorf("invalid container reference %q", arg)
}

func writeCommand() *cli.Command {
	var (
		configPath string
		dataPath   string
		name       string
		author     string
		message    string
		parentHex  string
		tags       []string
	)
	return &cli.Command{
		Name:    "write",
		Summary: "Append a new container version",
		Usage:   "gitchain write <container-id> --data <file.jsonc> [flags]",
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("write", pflag.ContinueOnError)
			fs.StringVar(&configPath, "config", "", "config file (defaults to GITCHAIN_CONFIG)")
			fs.StringVar(&dataPath, "data", "", "JSONC payload file, - for stdin")
			fs.StringVar(&name, "name", "", "container display name")
			fs.StringVar(&author, "author", "", "commit author")
			fs.StringVarP(&message, "message", "m", "", "commit message")
			fs.StringVar(&parentHex, "parent", "", "expected head fingerprint (conflict check)")
			fs.StringSliceVar(&tags, "tag", nil, "metadata tag, repeatable")
			return fs
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("write: exactly one container id required")
			}
			if dataPath == "" {
				return fmt.Errorf("write: --data is required")
			}
			target, err := parseTarget(args[0])
			if err != nil {
				return err
			}
			if !target.IsLatest() {
				return fmt.Errorf("write: cannot write to a pinned version, omit the version or use latest")
			}

			raw, err := readPayload(dataPath)
			if err != nil {
				return err
			}
			var data any
			if err := json.Unmarshal(jsonc.ToJSON(raw), &data); err != nil {
				return fmt.Errorf("parse %s: %w", dataPath, err)
			}
			val, err := value.FromAny(data)
			if err != nil {
				return err
			}

			req := store.WriteRequest{
				Type:       target.Type,
				Namespace:  target.Namespace,
				Identifier: target.Identifier,
				Data:       val,
				Meta: store.Meta{
					Name:   name,
					Author: author,
					Tags:   tags,
				},
				Message: message,
			}
			if parentHex != "" {
				parent, err := fingerprint.Parse(parentHex)
				if err != nil {
					return fmt.Errorf("write: --parent: %w", err)
				}
				req.Parent = parent
			}

			rt, err := openRuntime(configPath)
			if err != nil {
				return err
			}
			defer rt.Close()

			written, digest, err := rt.store.Write(context.Background(), req)
			if err != nil {
				return err
			}
			fmt.Printf("%s %s\n", written.String(), digest.String())
			return nil
		},
		Examples: []cli.Example{
			{
				Description: "Import a product container",
				Command:     "gitchain write product:tools:drill-11 --data drill.jsonc --author importer -m 'bosch feed import'",
			},
		},
	}
}

func readPayload(path string) ([]byte, error) {
	if path == "-" {
		raw, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return raw, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	return raw, nil
}

func readCommand() *cli.Command {
	var (
		configPath string
		asJSON     bool
	)
	return &cli.Command{
		Name:    "read",
		Summary: "Print a container version",
		Usage:   "gitchain read <container-id> [flags]",
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("read", pflag.ContinueOnError)
			fs.StringVar(&configPath, "config", "", "config file (defaults to GITCHAIN_CONFIG)")
			fs.BoolVar(&asJSON, "json", false, "output as JSON")
			return fs
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("read: exactly one container id required")
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
			if asJSON {
				return cli.WriteJSON(map[string]any{
					"id":          container.Ref.String(),
					"fingerprint": container.Fingerprint.String(),
					"meta":        container.Meta,
					"data":        container.Data.Interface(),
					"citations":   container.Citations,
					"message":     container.Message,
				})
			}

			fmt.Printf("%s\n", container.Ref.String())
			fmt.Printf("fingerprint: %s\n", container.Fingerprint.String())
			if !container.Parent.IsZero() {
				fmt.Printf("parent:      %s\n", container.Parent.String())
			}
			if container.Meta.Name != "" {
				fmt.Printf("name:        %s\n", container.Meta.Name)
			}
			if container.Meta.Author != "" {
				fmt.Printf("author:      %s\n", container.Meta.Author)
			}
			if container.Message != "" {
				fmt.Printf("message:     %s\n", container.Message)
			}
			pretty, err := json.MarshalIndent(container.Data.Interface(), "", "  ")
			if err != nil {
				return err
			}
			fmt.Printf("\n%s\n", pretty)
			return nil
		},
	}
}

func historyCommand() *cli.Command {
	var (
		configPath string
		limit      int
		offset     int
		asJSON     bool
	)
	return &cli.Command{
		Name:    "history",
		Summary: "List a container's version history",
		Usage:   "gitchain history <container-id> [flags]",
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("history", pflag.ContinueOnError)
			fs.StringVar(&configPath, "config", "", "config file (defaults to GITCHAIN_CONFIG)")
			fs.IntVar(&limit, "limit", 50, "maximum entries")
			fs.IntVar(&offset, "offset", 0, "entries to skip, for paging")
			fs.BoolVar(&asJSON, "json", false, "output as JSON")
			return fs
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("history: exactly one container id required")
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

			records, err := rt.store.History(context.Background(),
				target.Type, target.Namespace, target.Identifier, limit, offset)
			if err != nil {
				return err
			}
			if asJSON {
				return cli.WriteJSON(records)
			}
			for _, record := range records {
				line := fmt.Sprintf("v%d  %s  %s",
					record.Version,
					record.CreatedAt.Format("2006-01-02 15:04:05"),
					record.Fingerprint.String()[:12])
				if record.Author != "" {
					line += "  " + record.Author
				}
				if record.Message != "" {
					line += "  " + record.Message
				}
				fmt.Println(line)
			}
			return nil
		},
	}
}

func diffCommand() *cli.Command {
	var (
		configPath string
		asJSON     bool
	)
	return &cli.Command{
		Name:    "diff",
		Summary: "Show field-level changes between two versions",
		Usage:   "gitchain diff <container-id> <from-version> <to-version> [flags]",
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("diff", pflag.ContinueOnError)
			fs.StringVar(&configPath, "config", "", "config file (defaults to GITCHAIN_CONFIG)")
			fs.BoolVar(&asJSON, "json", false, "output as JSON")
			return fs
		},
		Run: func(args []string) error {
			if len(args) != 3 {
				return fmt.Errorf("diff: expected <container-id> <from-version> <to-version>")
			}
			target, err := parseTarget(args[0])
			if err != nil {
				return err
			}
			from, err := parseVersionArg(args[1])
			if err != nil {
				return err
			}
			to, err := parseVersionArg(args[2])
			if err != nil {
				return err
			}

			rt, err := openRuntime(configPath)
			if err != nil {
				return err
			}
			defer rt.Close()

			result, err := rt.store.Diff(context.Background(),
				target.Type, target.Namespace, target.Identifier, from, to)
			if err != nil {
				return err
			}
			if asJSON {
				return cli.WriteJSON(result)
			}
			if result.Empty() {
				fmt.Printf("no changes between v%d and v%d (%d fields unchanged)\n",
					from, to, result.UnchangedCount)
				return nil
			}
			for _, change := range result.Added {
				fmt.Printf("+ %s = %v\n", change.Path, change.New.Interface())
			}
			for _, change := range result.Removed {
				fmt.Printf("- %s = %v\n", change.Path, change.Old.Interface())
			}
			for _, change := range result.Modified {
				fmt.Printf("~ %s: %v -> %v\n", change.Path, change.Old.Interface(), change.New.Interface())
			}
			fmt.Printf("%d fields unchanged\n", result.UnchangedCount)
			return nil
		},
	}
}

// parseVersionArg accepts "2" or "v2".
func parseVersionArg(arg string) (int, error) {
	trimmed := strings.TrimPrefix(arg, "v")
	version, err := strconv.Atoi(trimmed)
	if err != nil || version < 1 {
		return 0, fmt.Errorf("invalid version %q", arg)
	}
	return version, nil
}
