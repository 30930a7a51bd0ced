// Copyright 2026 The GitChain Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"zombiezen.com/go/sqlite"

	"github.com/gitchain-foundation/gitchain/anchor"
	"github.com/gitchain-foundation/gitchain/cmd/gitchain/cli"
	"github.com/gitchain-foundation/gitchain/inject"
	"github.com/gitchain-foundation/gitchain/lib/clock"
	"github.com/gitchain-foundation/gitchain/lib/config"
	"github.com/gitchain-foundation/gitchain/lib/sqlitepool"
	"github.com/gitchain-foundation/gitchain/merkle"
	"github.com/gitchain-foundation/gitchain/store"
)

// runtime bundles the components a CLI command needs. The CLI opens
// the same database as the daemon and builds the same stack over it;
// anchoring runs only in the daemon, so the ledger here is always
// the disabled one and anchoring state is read, never advanced.
type runtime struct {
	cfg      *config.Config
	pool     *sqlitepool.Pool
	store    *store.Store
	engine   *merkle.Engine
	resolver *inject.Resolver
}

// openRuntime loads configuration (from --config or GITCHAIN_CONFIG)
// and wires the component stack. Callers must Close.
func openRuntime(configPath string) (*runtime, error) {
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.EnsurePaths(); err != nil {
		return nil, err
	}

	logger := cli.NewCommandLogger()
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     cfg.Store.Path,
		PoolSize: cfg.Store.PoolSize,
		Logger:   logger,
		OnConnect: func(conn *sqlite.Conn) error {
			if err := store.EnsureSchema(conn); err != nil {
				return err
			}
			return merkle.EnsureSchema(conn)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", cfg.Store.Path, err)
	}

	clk := clock.Real()
	engine, err := merkle.New(merkle.Config{Pool: pool, Clock: clk, Logger: logger})
	if err != nil {
		pool.Close()
		return nil, err
	}
	st, err := store.New(store.Config{
		Pool:    pool,
		Clock:   clk,
		Logger:  logger,
		OnWrite: engine.Enqueue,
	})
	if err != nil {
		pool.Close()
		return nil, err
	}
	anchorSvc, err := anchor.New(anchor.Config{
		Engine:        engine,
		Ledger:        anchor.Disabled{},
		Clock:         clk,
		Logger:        logger,
		Network:       cfg.Anchor.Network,
		Confirmations: cfg.Anchor.Confirmations,
	})
	if err != nil {
		pool.Close()
		return nil, err
	}
	resolver, err := inject.NewResolver(inject.ResolverConfig{
		Store:  st,
		Engine: engine,
		Anchor: anchorSvc,
		Clock:  clk,
		Logger: logger,
	})
	if err != nil {
		pool.Close()
		return nil, err
	}
	return &runtime{
		cfg:      cfg,
		pool:     pool,
		store:    st,
		engine:   engine,
		resolver: resolver,
	}, nil
}

func (r *runtime) Close() {
	r.pool.Close()
}
