// Copyright 2026 The GitChain Authors
// SPDX-License-Identifier: Apache-2.0

package anchor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gitchain-foundation/gitchain/merkle"
)

// FakeLedger is an in-memory Ledger for tests and local development.
// Failure injection is explicit: FailNext makes the next submissions
// transiently unavailable, RejectRoot makes a specific root fail
// definitively, and confirmations advance only via AddConfirmations
// (or per poll when AutoConfirm is set).
type FakeLedger struct {
	mu            sync.Mutex
	unavailable   int
	rejected      map[merkle.Hash]string
	batches       map[string]LedgerBatch
	confirmations map[string]int
	certifyCalls  int
	nextID        int
	nextBlock     int64
	autoConfirm   int
}

// NewFakeLedger creates an empty fake ledger.
func NewFakeLedger() *FakeLedger {
	return &FakeLedger{
		rejected:      make(map[merkle.Hash]string),
		batches:       make(map[string]LedgerBatch),
		confirmations: make(map[string]int),
		nextBlock:     1000,
	}
}

// FailNext makes the next n CertifyBatch calls fail with
// ErrLedgerUnavailable.
func (l *FakeLedger) FailNext(n int) {
	l.mu.Lock()
	l.unavailable = n
	l.mu.Unlock()
}

// RejectRoot makes submissions of the given root fail definitively.
func (l *FakeLedger) RejectRoot(root merkle.Hash, reason string) {
	l.mu.Lock()
	l.rejected[root] = reason
	l.mu.Unlock()
}

// AddConfirmations advances the confirmation depth of a transaction.
func (l *FakeLedger) AddConfirmations(txHash string, n int) {
	l.mu.Lock()
	l.confirmations[txHash] += n
	l.mu.Unlock()
}

// AutoConfirm makes confirmation depth grow by one on each poll, up
// to target, simulating block production for local development where
// no test drives AddConfirmations.
func (l *FakeLedger) AutoConfirm(target int) {
	l.mu.Lock()
	l.autoConfirm = target
	l.mu.Unlock()
}

// CorruptBatch overwrites the stored root of a certified batch so
// tests can exercise the read-back mismatch path.
func (l *FakeLedger) CorruptBatch(ledgerBatchID string, root merkle.Hash) {
	l.mu.Lock()
	defer l.mu.Unlock()
	batch := l.batches[ledgerBatchID]
	batch.Root = root
	l.batches[ledgerBatchID] = batch
}

// CertifyCalls returns how many CertifyBatch attempts were made,
// including failed ones.
func (l *FakeLedger) CertifyCalls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.certifyCalls
}

func (l *FakeLedger) CertifyBatch(_ context.Context, root merkle.Hash, metadataURI string) (SubmitResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.certifyCalls++
	if l.unavailable > 0 {
		l.unavailable--
		return SubmitResult{}, fmt.Errorf("fake ledger: rpc timeout: %w", ErrLedgerUnavailable)
	}
	if reason, ok := l.rejected[root]; ok {
		return SubmitResult{}, fmt.Errorf("fake ledger: %s: %w", reason, ErrRejected)
	}

	l.nextID++
	l.nextBlock++
	result := SubmitResult{
		LedgerBatchID: fmt.Sprintf("batch-%d", l.nextID),
		TxHash:        fmt.Sprintf("0x%064x", l.nextID),
		BlockNumber:   l.nextBlock,
	}
	l.batches[result.LedgerBatchID] = LedgerBatch{
		ID:          result.LedgerBatchID,
		Root:        root,
		MetadataURI: metadataURI,
		Timestamp:   time.Unix(1770000000, 0).UTC(),
	}
	l.confirmations[result.TxHash] = 1
	return result, nil
}

func (l *FakeLedger) GetBatch(_ context.Context, ledgerBatchID string) (LedgerBatch, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	batch, ok := l.batches[ledgerBatchID]
	if !ok {
		return LedgerBatch{}, fmt.Errorf("fake ledger: unknown batch %q: %w", ledgerBatchID, ErrRejected)
	}
	return batch, nil
}

func (l *FakeLedger) Confirmations(_ context.Context, txHash string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	depth, ok := l.confirmations[txHash]
	if !ok {
		return 0, fmt.Errorf("fake ledger: unknown transaction %q: %w", txHash, ErrLedgerUnavailable)
	}
	if l.autoConfirm > depth {
		depth++
		l.confirmations[txHash] = depth
	}
	return depth, nil
}
