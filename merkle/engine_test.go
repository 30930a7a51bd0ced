// Copyright 2026 The GitChain Authors
// SPDX-License-Identifier: Apache-2.0

package merkle

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/gitchain-foundation/gitchain/lib/clock"
	"github.com/gitchain-foundation/gitchain/lib/fingerprint"
	"github.com/gitchain-foundation/gitchain/lib/sqlitepool"
)

func openPool(t *testing.T, path string) *sqlitepool.Pool {
	t.Helper()
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:      path,
		PoolSize:  2,
		OnConnect: EnsureSchema,
	})
	if err != nil {
		t.Fatalf("Open pool: %v", err)
	}
	t.Cleanup(func() { pool.Close() })
	return pool
}

func testEngine(t *testing.T) *Engine {
	t.Helper()
	pool := openPool(t, filepath.Join(t.TempDir(), "merkle.db"))
	engine, err := New(Config{
		Pool:  pool,
		Clock: clock.Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return engine
}

func digests(n int) []fingerprint.Digest {
	out := make([]fingerprint.Digest, n)
	for i := range out {
		out[i] = fingerprint.Sum([]byte(fmt.Sprintf("content-%d", i)))
	}
	return out
}

func TestEnqueueIdempotent(t *testing.T) {
	engine := testEngine(t)
	digest := fingerprint.Sum([]byte("once"))

	engine.Enqueue(digest)
	engine.Enqueue(digest)
	engine.Enqueue(digest)
	if got := engine.PendingCount(); got != 1 {
		t.Errorf("PendingCount = %d, want 1", got)
	}

	engine.Enqueue(fingerprint.Digest{})
	if got := engine.PendingCount(); got != 1 {
		t.Errorf("zero digest should be ignored, PendingCount = %d", got)
	}
}

func TestSealAndProve(t *testing.T) {
	engine := testEngine(t)
	ctx := context.Background()
	leaves := digests(5)
	for _, digest := range leaves {
		engine.Enqueue(digest)
	}

	batch, err := engine.Seal(ctx)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if batch.LeafCount != 5 {
		t.Errorf("LeafCount = %d, want 5", batch.LeafCount)
	}
	if batch.Status != StatusPending {
		t.Errorf("Status = %s, want pending", batch.Status)
	}
	if batch.Root.IsZero() {
		t.Error("root should be set")
	}
	if engine.PendingCount() != 0 {
		t.Error("pending set should drain on seal")
	}

	for _, digest := range leaves {
		proof, err := engine.Proof(ctx, batch.ID, digest)
		if err != nil {
			t.Fatalf("Proof(%s): %v", digest.String(), err)
		}
		if !Verify(batch.Root, proof) {
			t.Errorf("proof for %s does not verify", digest.String())
		}
	}

	if _, err := engine.Seal(ctx); !errors.Is(err, ErrEmptyBatch) {
		t.Errorf("empty seal: err = %v, want ErrEmptyBatch", err)
	}
}

func TestSealRootIndependentOfEnqueueOrder(t *testing.T) {
	ctx := context.Background()
	leaves := digests(6)

	forward := testEngine(t)
	for _, digest := range leaves {
		forward.Enqueue(digest)
	}
	backward := testEngine(t)
	for i := len(leaves) - 1; i >= 0; i-- {
		backward.Enqueue(leaves[i])
	}

	batchA, err := forward.Seal(ctx)
	if err != nil {
		t.Fatalf("Seal forward: %v", err)
	}
	batchB, err := backward.Seal(ctx)
	if err != nil {
		t.Fatalf("Seal backward: %v", err)
	}
	if batchA.Root != batchB.Root {
		t.Error("root should not depend on enqueue order")
	}
}

func TestSealSkipsAlreadyBatched(t *testing.T) {
	engine := testEngine(t)
	ctx := context.Background()
	leaves := digests(2)

	engine.Enqueue(leaves[0])
	if _, err := engine.Seal(ctx); err != nil {
		t.Fatalf("Seal: %v", err)
	}

	// Re-enqueueing a certified fingerprint must not certify it twice.
	engine.Enqueue(leaves[0])
	engine.Enqueue(leaves[1])
	batch, err := engine.Seal(ctx)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if batch.LeafCount != 1 {
		t.Errorf("LeafCount = %d, want 1 (already-batched leaf dropped)", batch.LeafCount)
	}

	// Nothing new at all: ErrEmptyBatch, no empty batch row.
	engine.Enqueue(leaves[0])
	if _, err := engine.Seal(ctx); !errors.Is(err, ErrEmptyBatch) {
		t.Errorf("err = %v, want ErrEmptyBatch", err)
	}
}

func TestProofNotFound(t *testing.T) {
	engine := testEngine(t)
	ctx := context.Background()

	engine.Enqueue(fingerprint.Sum([]byte("member")))
	batch, err := engine.Seal(ctx)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	_, err = engine.Proof(ctx, batch.ID, fingerprint.Sum([]byte("outsider")))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("non-member: err = %v, want ErrNotFound", err)
	}
	_, err = engine.Proof(ctx, 999, fingerprint.Sum([]byte("member")))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown batch: err = %v, want ErrNotFound", err)
	}
}

func TestBatchForLeaf(t *testing.T) {
	engine := testEngine(t)
	ctx := context.Background()
	digest := fingerprint.Sum([]byte("find-me"))

	engine.Enqueue(digest)
	sealed, err := engine.Seal(ctx)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	batch, err := engine.BatchForLeaf(ctx, digest)
	if err != nil {
		t.Fatalf("BatchForLeaf: %v", err)
	}
	if batch.ID != sealed.ID || batch.Root != sealed.Root {
		t.Error("BatchForLeaf returned the wrong batch")
	}

	_, err = engine.BatchForLeaf(ctx, fingerprint.Sum([]byte("nowhere")))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestStatusTransitions(t *testing.T) {
	engine := testEngine(t)
	ctx := context.Background()

	engine.Enqueue(fingerprint.Sum([]byte("lifecycle")))
	sealed, err := engine.Seal(ctx)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	if err := engine.MarkSubmitted(ctx, sealed.ID, "ledger-7", "0xtx", 1042, "gitchain://batches/1"); err != nil {
		t.Fatalf("MarkSubmitted: %v", err)
	}
	batch, err := engine.Batch(ctx, sealed.ID)
	if err != nil {
		t.Fatalf("Batch: %v", err)
	}
	if batch.Status != StatusSubmitted || batch.LedgerBatchID != "ledger-7" ||
		batch.TxHash != "0xtx" || batch.BlockNumber != 1042 {
		t.Errorf("after submit: %+v", batch)
	}

	// Submitting twice is a stale transition.
	err = engine.MarkSubmitted(ctx, sealed.ID, "ledger-8", "0xother", 1043, "")
	if !errors.Is(err, ErrBadTransition) {
		t.Errorf("double submit: err = %v, want ErrBadTransition", err)
	}

	if err := engine.MarkConfirmed(ctx, sealed.ID); err != nil {
		t.Fatalf("MarkConfirmed: %v", err)
	}

	// Confirmed is terminal: no failure, no re-confirmation.
	if err := engine.MarkFailed(ctx, sealed.ID, "too late"); !errors.Is(err, ErrBadTransition) {
		t.Errorf("fail after confirm: err = %v, want ErrBadTransition", err)
	}
	if err := engine.MarkConfirmed(ctx, sealed.ID); !errors.Is(err, ErrBadTransition) {
		t.Errorf("double confirm: err = %v, want ErrBadTransition", err)
	}

	batch, err = engine.Batch(ctx, sealed.ID)
	if err != nil {
		t.Fatalf("Batch: %v", err)
	}
	if batch.Status != StatusConfirmed {
		t.Errorf("confirmed batch regressed to %s", batch.Status)
	}
}

func TestMarkFailedFromPending(t *testing.T) {
	engine := testEngine(t)
	ctx := context.Background()

	engine.Enqueue(fingerprint.Sum([]byte("doomed")))
	sealed, err := engine.Seal(ctx)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	if err := engine.MarkFailed(ctx, sealed.ID, "ledger rejected root"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	batch, err := engine.Batch(ctx, sealed.ID)
	if err != nil {
		t.Fatalf("Batch: %v", err)
	}
	if batch.Status != StatusFailed || batch.LastError != "ledger rejected root" {
		t.Errorf("after fail: %+v", batch)
	}
}

func TestRecordAttempt(t *testing.T) {
	engine := testEngine(t)
	ctx := context.Background()

	engine.Enqueue(fingerprint.Sum([]byte("retry")))
	sealed, err := engine.Seal(ctx)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := engine.RecordAttempt(ctx, sealed.ID, "ledger unavailable"); err != nil {
			t.Fatalf("RecordAttempt: %v", err)
		}
	}
	batch, err := engine.Batch(ctx, sealed.ID)
	if err != nil {
		t.Fatalf("Batch: %v", err)
	}
	if batch.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", batch.Attempts)
	}
	if batch.LastError != "ledger unavailable" {
		t.Errorf("LastError = %q", batch.LastError)
	}
}

func TestBatchesByStatus(t *testing.T) {
	engine := testEngine(t)
	ctx := context.Background()

	var sealedIDs []int64
	for i := 0; i < 3; i++ {
		engine.Enqueue(fingerprint.Sum([]byte(fmt.Sprintf("group-%d", i))))
		batch, err := engine.Seal(ctx)
		if err != nil {
			t.Fatalf("Seal %d: %v", i, err)
		}
		sealedIDs = append(sealedIDs, batch.ID)
	}
	if err := engine.MarkSubmitted(ctx, sealedIDs[1], "l", "0xtx", 1, ""); err != nil {
		t.Fatalf("MarkSubmitted: %v", err)
	}

	pending, err := engine.BatchesByStatus(ctx, StatusPending)
	if err != nil {
		t.Fatalf("BatchesByStatus: %v", err)
	}
	if len(pending) != 2 || pending[0].ID != sealedIDs[0] || pending[1].ID != sealedIDs[2] {
		t.Errorf("pending = %+v", pending)
	}

	submitted, err := engine.BatchesByStatus(ctx, StatusSubmitted)
	if err != nil {
		t.Fatalf("BatchesByStatus: %v", err)
	}
	if len(submitted) != 1 || submitted[0].ID != sealedIDs[1] {
		t.Errorf("submitted = %+v", submitted)
	}

	if _, err := engine.BatchesByStatus(ctx, "archived"); err == nil {
		t.Error("unknown status should be rejected")
	}
}

func TestProofsSurviveRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "merkle.db")
	fakeClock := clock.Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()
	leaves := digests(4)

	pool, err := sqlitepool.Open(sqlitepool.Config{Path: path, PoolSize: 1, OnConnect: EnsureSchema})
	if err != nil {
		t.Fatalf("Open pool: %v", err)
	}
	engine, err := New(Config{Pool: pool, Clock: fakeClock})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for _, digest := range leaves {
		engine.Enqueue(digest)
	}
	sealed, err := engine.Seal(ctx)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if err := pool.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	pool = openPool(t, path)
	engine, err = New(Config{Pool: pool, Clock: fakeClock})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for _, digest := range leaves {
		proof, err := engine.Proof(ctx, sealed.ID, digest)
		if err != nil {
			t.Fatalf("Proof after restart: %v", err)
		}
		if !Verify(sealed.Root, proof) {
			t.Errorf("proof for %s does not verify after restart", digest.String())
		}
	}
}

func TestRecover(t *testing.T) {
	engine := testEngine(t)
	ctx := context.Background()
	leaves := digests(3)

	engine.Enqueue(leaves[0])
	if _, err := engine.Seal(ctx); err != nil {
		t.Fatalf("Seal: %v", err)
	}

	// Simulate a restart: leaves[1] and leaves[2] were written to the
	// store but never batched.
	recovered, err := engine.Recover(ctx, leaves)
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if recovered != 2 {
		t.Errorf("recovered = %d, want 2", recovered)
	}
	if engine.PendingCount() != 2 {
		t.Errorf("PendingCount = %d, want 2", engine.PendingCount())
	}

	batch, err := engine.Seal(ctx)
	if err != nil {
		t.Fatalf("Seal after recover: %v", err)
	}
	if batch.LeafCount != 2 {
		t.Errorf("LeafCount = %d, want 2", batch.LeafCount)
	}
}

func TestFailedBatchContentReseals(t *testing.T) {
	engine := testEngine(t)
	ctx := context.Background()
	leaf := fingerprint.Sum([]byte("rejected-content"))

	engine.Enqueue(leaf)
	first, err := engine.Seal(ctx)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if err := engine.MarkFailed(ctx, first.ID, "ledger rejected root"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	// Requeueing a non-failed batch is rejected.
	engine.Enqueue(fingerprint.Sum([]byte("other")))
	other, err := engine.Seal(ctx)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if _, err := engine.RequeueBatch(ctx, other.ID); !errors.Is(err, ErrBadTransition) {
		t.Fatalf("RequeueBatch on pending batch: err = %v, want ErrBadTransition", err)
	}

	requeued, err := engine.RequeueBatch(ctx, first.ID)
	if err != nil {
		t.Fatalf("RequeueBatch: %v", err)
	}
	if requeued != 1 {
		t.Fatalf("RequeueBatch = %d, want 1", requeued)
	}

	// The failed batch's membership does not block a new seal.
	second, err := engine.Seal(ctx)
	if err != nil {
		t.Fatalf("Seal after failure: %v", err)
	}
	if second.ID == first.ID {
		t.Fatal("reseal must produce a new batch")
	}
	if _, err := engine.Proof(ctx, second.ID, leaf); err != nil {
		t.Errorf("Proof in new batch: %v", err)
	}

	// Lookups now prefer the live batch over the failed one.
	covering, err := engine.BatchForLeaf(ctx, leaf)
	if err != nil {
		t.Fatalf("BatchForLeaf: %v", err)
	}
	if covering.ID != second.ID {
		t.Errorf("BatchForLeaf = batch %d, want %d", covering.ID, second.ID)
	}

	// With live coverage in place, the failed batch has nothing left
	// to requeue.
	requeued, err = engine.RequeueBatch(ctx, first.ID)
	if err != nil {
		t.Fatalf("second RequeueBatch: %v", err)
	}
	if requeued != 0 {
		t.Errorf("second RequeueBatch = %d, want 0", requeued)
	}
}

func TestRecoverIncludesFailedBatchContent(t *testing.T) {
	engine := testEngine(t)
	ctx := context.Background()
	leaf := fingerprint.Sum([]byte("failed-then-recovered"))

	engine.Enqueue(leaf)
	batch, err := engine.Seal(ctx)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if err := engine.MarkFailed(ctx, batch.ID, "attempts exhausted"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	recovered, err := engine.Recover(ctx, []fingerprint.Digest{leaf})
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if recovered != 1 {
		t.Errorf("Recover = %d, want 1 (failed coverage does not count)", recovered)
	}
	if got := engine.PendingCount(); got != 1 {
		t.Errorf("PendingCount = %d, want 1", got)
	}
}
