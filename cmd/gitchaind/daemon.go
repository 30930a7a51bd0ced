// Copyright 2026 The GitChain Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"zombiezen.com/go/sqlite"

	"github.com/gitchain-foundation/gitchain/anchor"
	"github.com/gitchain-foundation/gitchain/inject"
	"github.com/gitchain-foundation/gitchain/lib/clock"
	"github.com/gitchain-foundation/gitchain/lib/config"
	"github.com/gitchain-foundation/gitchain/lib/fingerprint"
	"github.com/gitchain-foundation/gitchain/lib/sqlitepool"
	"github.com/gitchain-foundation/gitchain/merkle"
	"github.com/gitchain-foundation/gitchain/store"
)

// daemon owns the full component stack. Everything is wired through
// explicit construction here; there are no package-level singletons.
type daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	clock  clock.Clock

	pool     *sqlitepool.Pool
	store    *store.Store
	engine   *merkle.Engine
	anchor   *anchor.Service
	cache    *inject.Cache
	resolver *inject.Resolver

	// sealNow wakes the seal loop when the pending set reaches the
	// configured size threshold, ahead of the interval timer.
	sealNow chan struct{}
}

func newDaemon(cfg *config.Config, logger *slog.Logger) (*daemon, error) {
	return newDaemonWithClock(cfg, logger, clock.Real())
}

// newDaemonWithClock is the injectable constructor used by tests.
func newDaemonWithClock(cfg *config.Config, logger *slog.Logger, clk clock.Clock) (*daemon, error) {
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

	d := &daemon{
		cfg:     cfg,
		logger:  logger,
		clock:   clk,
		pool:    pool,
		sealNow: make(chan struct{}, 1),
	}

	d.engine, err = merkle.New(merkle.Config{Pool: pool, Clock: clk, Logger: logger})
	if err != nil {
		pool.Close()
		return nil, err
	}

	if cfg.Cache.Enabled {
		d.cache = inject.NewCache(cfg.CacheTTL(), clk)
	}

	d.store, err = store.New(store.Config{
		Pool:         pool,
		Clock:        clk,
		Logger:       logger,
		OnWrite:      d.onWrite,
		OnInvalidate: d.onInvalidate,
	})
	if err != nil {
		pool.Close()
		return nil, err
	}

	d.anchor, err = anchor.New(anchor.Config{
		Engine:         d.engine,
		Ledger:         d.selectLedger(),
		Clock:          clk,
		Logger:         logger,
		Network:        cfg.Anchor.Network,
		Confirmations:  cfg.Anchor.Confirmations,
		MaxAttempts:    cfg.Anchor.MaxAttempts,
		InitialBackoff: cfg.AnchorBackoff(),
	})
	if err != nil {
		pool.Close()
		return nil, err
	}

	d.resolver, err = inject.NewResolver(inject.ResolverConfig{
		Store:  d.store,
		Engine: d.engine,
		Anchor: d.anchor,
		Cache:  d.cache,
		Clock:  clk,
		Logger: logger,
	})
	if err != nil {
		pool.Close()
		return nil, err
	}
	return d, nil
}

// selectLedger picks the ledger client. The production RPC client
// lives outside this repository; in-process the choices are the
// disabled ledger (seal-only operation) and the in-memory one for
// development networks.
func (d *daemon) selectLedger() anchor.Ledger {
	if d.cfg.Anchor.Disabled {
		d.logger.Info("anchoring disabled, batches will seal but never confirm")
		return anchor.Disabled{}
	}
	d.logger.Info("using in-process ledger",
		"network", d.cfg.Anchor.Network,
		"confirmations", d.cfg.Anchor.Confirmations)
	ledger := anchor.NewFakeLedger()
	ledger.AutoConfirm(d.cfg.Anchor.Confirmations)
	return ledger
}

// onWrite runs on the write path after each commit. Enqueue is the
// only work allowed here; sealing happens on the seal loop.
func (d *daemon) onWrite(digest fingerprint.Digest) {
	d.engine.Enqueue(digest)
	if d.engine.PendingCount() >= d.cfg.Batch.MaxPending {
		select {
		case d.sealNow <- struct{}{}:
		default:
		}
	}
}

func (d *daemon) onInvalidate(prefix string) {
	d.cache.Invalidate(prefix)
}

// Run starts the seal loop and the anchoring loop and blocks until
// the context is cancelled.
func (d *daemon) Run(ctx context.Context) error {
	// Rebuild the pending set from commits that never made it into
	// a batch before the last shutdown.
	digests, err := d.store.Fingerprints(ctx)
	if err != nil {
		return err
	}
	recovered, err := d.engine.Recover(ctx, digests)
	if err != nil {
		return err
	}
	if recovered > 0 {
		d.logger.Info("recovered unbatched fingerprints", "count", recovered)
	}

	d.logger.Info("gitchaind running",
		"database", d.cfg.Store.Path,
		"environment", string(d.cfg.Environment),
		"seal_interval", d.cfg.BatchInterval().String(),
		"seal_max_pending", d.cfg.Batch.MaxPending)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		d.sealLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		d.anchor.Run(ctx, d.cfg.BatchInterval())
	}()

	<-ctx.Done()
	d.logger.Info("shutting down")
	wg.Wait()
	return nil
}

// sealLoop seals the pending set whenever the interval elapses or the
// size threshold fires, whichever comes first.
func (d *daemon) sealLoop(ctx context.Context) {
	ticker := d.clock.NewTicker(d.cfg.BatchInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-d.sealNow:
		}
		d.sealOnce(ctx)
	}
}

func (d *daemon) sealOnce(ctx context.Context) {
	batch, err := d.engine.Seal(ctx)
	if err != nil {
		if errors.Is(err, merkle.ErrEmptyBatch) {
			return
		}
		d.logger.Error("seal failed", "error", err)
		return
	}
	d.logger.Info("batch sealed",
		"batch_id", batch.ID,
		"leaves", batch.LeafCount,
		"root", batch.Root.String())
}

func (d *daemon) Close() {
	d.pool.Close()
}
