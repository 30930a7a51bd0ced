// Copyright 2026 The GitChain Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool wraps zombiezen.com/go/sqlite's connection pool
// with GitChain's standard pragmas (WAL, NORMAL sync, foreign keys).
//
// One pool backs one database file holding the commit log, sealed
// batches, and anchoring state. Components share the pool rather
// than opening their own connections so that WAL checkpointing and
// busy-timeout behavior are uniform.
package sqlitepool
