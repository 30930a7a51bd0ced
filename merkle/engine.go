// Copyright 2026 The GitChain Authors
// SPDX-License-Identifier: Apache-2.0

package merkle

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/gitchain-foundation/gitchain/lib/clock"
	"github.com/gitchain-foundation/gitchain/lib/fingerprint"
	"github.com/gitchain-foundation/gitchain/lib/sqlitepool"
)

// Status is a batch's position in the anchoring lifecycle. Transitions
// are monotonic: pending → submitted → confirmed, with failed reachable
// from pending or submitted. A confirmed batch never changes again.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSubmitted Status = "submitted"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
)

// Valid reports whether s is a known batch status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusSubmitted, StatusConfirmed, StatusFailed:
		return true
	}
	return false
}

// Batch is one sealed set of fingerprints with its tree root and
// anchoring state. Root and membership are fixed at seal time; only
// the anchoring columns change afterwards.
type Batch struct {
	ID          int64     `json:"id"`
	Root        Hash      `json:"root"`
	LeafCount   int       `json:"leaf_count"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	MetadataURI string    `json:"metadata_uri,omitempty"`

	// Set once the ledger accepts the batch.
	LedgerBatchID string `json:"ledger_batch_id,omitempty"`
	TxHash        string `json:"tx_hash,omitempty"`
	BlockNumber   int64  `json:"block_number,omitempty"`

	// Submission bookkeeping.
	Attempts  int    `json:"attempts,omitempty"`
	LastError string `json:"last_error,omitempty"`
}

// Engine owns the pending fingerprint set and the sealed batch
// records. Enqueue is cheap and idempotent (a mutex-guarded set);
// Seal drains the set into a persisted batch. All durable state lives
// in SQLite, so proofs survive restarts.
type Engine struct {
	pool   *sqlitepool.Pool
	clock  clock.Clock
	logger *slog.Logger

	mu      sync.Mutex
	pending map[fingerprint.Digest]struct{}
}

// Config holds the parameters for creating a batch engine.
type Config struct {
	// Pool is the SQLite connection pool. Required. The pool's
	// OnConnect must include [EnsureSchema].
	Pool *sqlitepool.Pool

	// Clock provides seal timestamps. Required.
	Clock clock.Clock

	// Logger receives operational messages. Nil discards.
	Logger *slog.Logger
}

// New creates a batch engine over an existing pool.
func New(cfg Config) (*Engine, error) {
	if cfg.Pool == nil {
		return nil, fmt.Errorf("merkle: Pool is required")
	}
	if cfg.Clock == nil {
		return nil, fmt.Errorf("merkle: Clock is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{
		pool:    cfg.Pool,
		clock:   cfg.Clock,
		logger:  logger,
		pending: make(map[fingerprint.Digest]struct{}),
	}, nil
}

// EnsureSchema creates the batch tables. Pass it (or a function that
// calls it) as the pool's OnConnect.
func EnsureSchema(conn *sqlite.Conn) error {
	return sqlitex.ExecuteScript(conn, `
		CREATE TABLE IF NOT EXISTS batches (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			root            BLOB NOT NULL,
			leaf_count      INTEGER NOT NULL,
			status          TEXT NOT NULL,
			created_at      INTEGER NOT NULL,
			metadata_uri    TEXT NOT NULL DEFAULT '',
			ledger_batch_id TEXT NOT NULL DEFAULT '',
			tx_hash         TEXT NOT NULL DEFAULT '',
			block_number    INTEGER NOT NULL DEFAULT 0,
			attempts        INTEGER NOT NULL DEFAULT 0,
			last_error      TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_batches_status ON batches(status);
		CREATE TABLE IF NOT EXISTS batch_leaves (
			batch_id   INTEGER NOT NULL REFERENCES batches(id),
			leaf_index INTEGER NOT NULL,
			leaf       BLOB NOT NULL,
			PRIMARY KEY (batch_id, leaf_index)
		) WITHOUT ROWID;
		CREATE INDEX IF NOT EXISTS idx_batch_leaves_leaf ON batch_leaves(leaf);
	`, nil)
}

// Enqueue adds a fingerprint to the pending set. Duplicate enqueues
// of the same fingerprint collapse to one pending entry.
func (e *Engine) Enqueue(digest fingerprint.Digest) {
	if digest.IsZero() {
		return
	}
	e.mu.Lock()
	e.pending[digest] = struct{}{}
	e.mu.Unlock()
}

// PendingCount returns the current pending set size. The seal
// scheduler uses this for its size trigger.
func (e *Engine) PendingCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

// Seal drains the pending set into a new batch: leaves sorted, tree
// built, batch and leaf rows persisted in one transaction.
// Fingerprints already covered by a live batch are dropped rather
// than certified twice; coverage by a failed batch does not count.
// ErrEmptyBatch if nothing new is pending.
//
// On persistence failure the drained fingerprints return to the
// pending set so the next seal retries them.
func (e *Engine) Seal(ctx context.Context) (*Batch, error) {
	e.mu.Lock()
	if len(e.pending) == 0 {
		e.mu.Unlock()
		return nil, ErrEmptyBatch
	}
	drained := make([]fingerprint.Digest, 0, len(e.pending))
	for digest := range e.pending {
		drained = append(drained, digest)
	}
	e.pending = make(map[fingerprint.Digest]struct{})
	e.mu.Unlock()

	batch, err := e.sealLeaves(ctx, drained)
	if err != nil {
		e.mu.Lock()
		for _, digest := range drained {
			e.pending[digest] = struct{}{}
		}
		e.mu.Unlock()
		return nil, err
	}
	return batch, nil
}

func (e *Engine) sealLeaves(ctx context.Context, drained []fingerprint.Digest) (batch *Batch, err error) {
	conn, err := e.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("merkle: seal: %w", err)
	}
	defer e.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return nil, fmt.Errorf("merkle: seal: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	leaves, err := filterBatched(conn, drained)
	if err != nil {
		return nil, err
	}
	if len(leaves) == 0 {
		return nil, ErrEmptyBatch
	}

	SortLeaves(leaves)
	root := ComputeRoot(leaves)
	now := e.clock.Now().UTC()

	err = sqlitex.Execute(conn, `
		INSERT INTO batches (root, leaf_count, status, created_at)
		VALUES (?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{root[:], len(leaves), string(StatusPending), now.UnixNano()},
		})
	if err != nil {
		return nil, fmt.Errorf("merkle: seal: insert batch: %w", err)
	}
	batchID := conn.LastInsertRowID()

	for index, leaf := range leaves {
		err = sqlitex.Execute(conn, `
			INSERT INTO batch_leaves (batch_id, leaf_index, leaf)
			VALUES (?, ?, ?)`,
			&sqlitex.ExecOptions{
				Args: []any{batchID, index, leaf[:]},
			})
		if err != nil {
			return nil, fmt.Errorf("merkle: seal: insert leaf %d: %w", index, err)
		}
	}

	e.logger.Info("batch sealed",
		"batch_id", batchID,
		"root", root.String(),
		"leaf_count", len(leaves),
	)

	return &Batch{
		ID:        batchID,
		Root:      root,
		LeafCount: len(leaves),
		Status:    StatusPending,
		CreatedAt: now,
	}, nil
}

// filterBatched drops fingerprints that a live (non-failed) batch
// already covers. Membership in a failed batch does not count:
// failed batches are never re-submitted, so their content must stay
// eligible for a fresh seal.
func filterBatched(conn *sqlite.Conn, drained []fingerprint.Digest) ([]fingerprint.Digest, error) {
	leaves := make([]fingerprint.Digest, 0, len(drained))
	for _, digest := range drained {
		covered := false
		err := sqlitex.Execute(conn, `
			SELECT 1 FROM batch_leaves
			JOIN batches ON batches.id = batch_leaves.batch_id
			WHERE batch_leaves.leaf = ? AND batches.status != ?
			LIMIT 1`,
			&sqlitex.ExecOptions{
				Args: []any{digest[:], string(StatusFailed)},
				ResultFunc: func(*sqlite.Stmt) error {
					covered = true
					return nil
				},
			})
		if err != nil {
			return nil, fmt.Errorf("merkle: seal: check leaf: %w", err)
		}
		if !covered {
			leaves = append(leaves, digest)
		}
	}
	return leaves, nil
}

// Recover re-enqueues fingerprints that no live batch covers. The
// daemon calls this on startup with the store's full fingerprint list
// so content written while no daemon was running, and content whose
// batch failed anchoring, still gets batched.
func (e *Engine) Recover(ctx context.Context, digests []fingerprint.Digest) (int, error) {
	conn, err := e.pool.Take(ctx)
	if err != nil {
		return 0, fmt.Errorf("merkle: recover: %w", err)
	}
	unbatched, err := filterBatched(conn, digests)
	e.pool.Put(conn)
	if err != nil {
		return 0, err
	}

	for _, digest := range unbatched {
		e.Enqueue(digest)
	}
	if len(unbatched) > 0 {
		e.logger.Info("recovered unbatched fingerprints", "count", len(unbatched))
	}
	return len(unbatched), nil
}

// RequeueBatch returns a failed batch's leaves to the pending set so
// the next seal covers them with a fresh batch. Leaves that a live
// batch already covers are skipped. ErrBadTransition if the batch is
// not failed. Returns the number of leaves requeued.
func (e *Engine) RequeueBatch(ctx context.Context, batchID int64) (int, error) {
	conn, err := e.pool.Take(ctx)
	if err != nil {
		return 0, fmt.Errorf("merkle: requeue: %w", err)
	}
	batch, err := batchByID(conn, batchID)
	if err != nil {
		e.pool.Put(conn)
		return 0, err
	}
	if batch.Status != StatusFailed {
		e.pool.Put(conn)
		return 0, fmt.Errorf("merkle: requeue batch %d: status is %s: %w", batchID, batch.Status, ErrBadTransition)
	}
	leaves, err := loadLeaves(conn, batchID)
	if err != nil {
		e.pool.Put(conn)
		return 0, err
	}
	uncovered, err := filterBatched(conn, leaves)
	e.pool.Put(conn)
	if err != nil {
		return 0, err
	}

	for _, digest := range uncovered {
		e.Enqueue(digest)
	}
	if len(uncovered) > 0 {
		e.logger.Info("requeued failed batch content",
			"batch_id", batchID,
			"leaf_count", len(uncovered),
		)
	}
	return len(uncovered), nil
}

// Leaves returns a batch's sorted leaf list. ErrNotFound for an
// unknown batch.
func (e *Engine) Leaves(ctx context.Context, batchID int64) ([]fingerprint.Digest, error) {
	conn, err := e.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("merkle: leaves: %w", err)
	}
	defer e.pool.Put(conn)
	return loadLeaves(conn, batchID)
}

func loadLeaves(conn *sqlite.Conn, batchID int64) ([]fingerprint.Digest, error) {
	var leaves []fingerprint.Digest
	err := sqlitex.Execute(conn, `
		SELECT leaf FROM batch_leaves
		WHERE batch_id = ? ORDER BY leaf_index`,
		&sqlitex.ExecOptions{
			Args: []any{batchID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				var leaf fingerprint.Digest
				stmt.ColumnBytes(0, leaf[:])
				leaves = append(leaves, leaf)
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("merkle: leaves of batch %d: %w", batchID, err)
	}
	if len(leaves) == 0 {
		return nil, fmt.Errorf("merkle: batch %d: %w", batchID, ErrNotFound)
	}
	return leaves, nil
}

// Proof rebuilds the membership proof for a fingerprint within a
// batch from the persisted leaf list. ErrNotFound if the batch does
// not exist or the fingerprint is not a member.
func (e *Engine) Proof(ctx context.Context, batchID int64, digest fingerprint.Digest) (Proof, error) {
	leaves, err := e.Leaves(ctx, batchID)
	if err != nil {
		return Proof{}, err
	}
	for index, leaf := range leaves {
		if leaf == digest {
			return BuildProof(leaves, index), nil
		}
	}
	return Proof{}, fmt.Errorf("merkle: %s not in batch %d: %w", digest.String(), batchID, ErrNotFound)
}

// BatchForLeaf returns the newest live batch containing the
// fingerprint; batches that failed anchoring are returned only when
// nothing else covers the leaf. ErrNotFound if no batch covers it.
func (e *Engine) BatchForLeaf(ctx context.Context, digest fingerprint.Digest) (*Batch, error) {
	conn, err := e.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("merkle: batch for leaf: %w", err)
	}
	defer e.pool.Put(conn)

	var batchID int64
	found := false
	err = sqlitex.Execute(conn, `
		SELECT batch_leaves.batch_id FROM batch_leaves
		JOIN batches ON batches.id = batch_leaves.batch_id
		WHERE batch_leaves.leaf = ?
		ORDER BY (batches.status != ?) DESC, batch_leaves.batch_id DESC
		LIMIT 1`,
		&sqlitex.ExecOptions{
			Args: []any{digest[:], string(StatusFailed)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				batchID = stmt.ColumnInt64(0)
				found = true
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("merkle: batch for leaf: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("merkle: leaf %s: %w", digest.String(), ErrNotFound)
	}
	return batchByID(conn, batchID)
}

// Batch returns one batch record. ErrNotFound for an unknown ID.
func (e *Engine) Batch(ctx context.Context, batchID int64) (*Batch, error) {
	conn, err := e.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("merkle: batch: %w", err)
	}
	defer e.pool.Put(conn)
	return batchByID(conn, batchID)
}

const batchColumns = `id, root, leaf_count, status, created_at,
	metadata_uri, ledger_batch_id, tx_hash, block_number, attempts,
	last_error`

func batchByID(conn *sqlite.Conn, batchID int64) (*Batch, error) {
	var batch *Batch
	err := sqlitex.Execute(conn,
		"SELECT "+batchColumns+" FROM batches WHERE id = ?",
		&sqlitex.ExecOptions{
			Args: []any{batchID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				batch = scanBatch(stmt)
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("merkle: batch %d: %w", batchID, err)
	}
	if batch == nil {
		return nil, fmt.Errorf("merkle: batch %d: %w", batchID, ErrNotFound)
	}
	return batch, nil
}

func scanBatch(stmt *sqlite.Stmt) *Batch {
	batch := &Batch{
		ID:            stmt.ColumnInt64(0),
		LeafCount:     stmt.ColumnInt(2),
		Status:        Status(stmt.ColumnText(3)),
		CreatedAt:     time.Unix(0, stmt.ColumnInt64(4)).UTC(),
		MetadataURI:   stmt.ColumnText(5),
		LedgerBatchID: stmt.ColumnText(6),
		TxHash:        stmt.ColumnText(7),
		BlockNumber:   stmt.ColumnInt64(8),
		Attempts:      stmt.ColumnInt(9),
		LastError:     stmt.ColumnText(10),
	}
	stmt.ColumnBytes(1, batch.Root[:])
	return batch
}

// BatchesByStatus returns all batches in a given status, oldest
// first. The anchoring loop uses it to find work.
func (e *Engine) BatchesByStatus(ctx context.Context, status Status) ([]Batch, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("merkle: invalid status %q", status)
	}
	conn, err := e.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("merkle: batches by status: %w", err)
	}
	defer e.pool.Put(conn)

	var batches []Batch
	err = sqlitex.Execute(conn,
		"SELECT "+batchColumns+" FROM batches WHERE status = ? ORDER BY id",
		&sqlitex.ExecOptions{
			Args: []any{string(status)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				batches = append(batches, *scanBatch(stmt))
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("merkle: batches by status %s: %w", status, err)
	}
	return batches, nil
}

// MarkSubmitted records the ledger acceptance of a pending batch and
// moves it to submitted. ErrBadTransition if the batch is not
// pending.
func (e *Engine) MarkSubmitted(ctx context.Context, batchID int64, ledgerBatchID, txHash string, blockNumber int64, metadataURI string) error {
	return e.transition(ctx, batchID, `
		UPDATE batches
		SET status = ?, ledger_batch_id = ?, tx_hash = ?, block_number = ?,
		    metadata_uri = ?
		WHERE id = ? AND status = ?`,
		[]any{
			string(StatusSubmitted), ledgerBatchID, txHash, blockNumber,
			metadataURI, batchID, string(StatusPending),
		})
}

// MarkConfirmed moves a submitted batch to confirmed. ErrBadTransition
// if the batch is not submitted; a confirmed batch stays confirmed.
func (e *Engine) MarkConfirmed(ctx context.Context, batchID int64) error {
	return e.transition(ctx, batchID, `
		UPDATE batches SET status = ?
		WHERE id = ? AND status = ?`,
		[]any{string(StatusConfirmed), batchID, string(StatusSubmitted)})
}

// MarkFailed records a definitive failure for a pending or submitted
// batch. The batch's content must go into a new batch via
// RequeueBatch; a sealed batch itself is never re-submitted.
func (e *Engine) MarkFailed(ctx context.Context, batchID int64, reason string) error {
	return e.transition(ctx, batchID, `
		UPDATE batches SET status = ?, last_error = ?
		WHERE id = ? AND status IN (?, ?)`,
		[]any{
			string(StatusFailed), reason, batchID,
			string(StatusPending), string(StatusSubmitted),
		})
}

// RecordAttempt increments a batch's submission attempt counter and
// stores the latest error for operator visibility.
func (e *Engine) RecordAttempt(ctx context.Context, batchID int64, lastError string) error {
	conn, err := e.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("merkle: record attempt: %w", err)
	}
	defer e.pool.Put(conn)

	err = sqlitex.Execute(conn, `
		UPDATE batches SET attempts = attempts + 1, last_error = ?
		WHERE id = ?`,
		&sqlitex.ExecOptions{Args: []any{lastError, batchID}})
	if err != nil {
		return fmt.Errorf("merkle: record attempt on batch %d: %w", batchID, err)
	}
	return nil
}

// transition runs a guarded status update. The WHERE clause carries
// the expected current status, so a stale caller changes nothing and
// gets ErrBadTransition.
func (e *Engine) transition(ctx context.Context, batchID int64, query string, args []any) error {
	conn, err := e.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("merkle: transition: %w", err)
	}
	defer e.pool.Put(conn)

	if err := sqlitex.Execute(conn, query, &sqlitex.ExecOptions{Args: args}); err != nil {
		return fmt.Errorf("merkle: transition batch %d: %w", batchID, err)
	}
	if conn.Changes() == 0 {
		return fmt.Errorf("merkle: batch %d: %w", batchID, ErrBadTransition)
	}
	return nil
}
