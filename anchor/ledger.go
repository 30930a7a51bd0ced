// Copyright 2026 The GitChain Authors
// SPDX-License-Identifier: Apache-2.0

// Package anchor submits sealed batch roots to an external ledger and
// tracks them to confirmation. The ledger itself is behind the
// [Ledger] interface; this repository ships a fake for tests and
// local development, and a disabled variant for deployments that run
// without anchoring.
package anchor

import (
	"context"
	"errors"
	"time"

	"github.com/gitchain-foundation/gitchain/merkle"
)

// ErrLedgerUnavailable reports a transient ledger failure (network,
// RPC timeout, congestion). The service retries these with bounded
// exponential backoff.
var ErrLedgerUnavailable = errors.New("ledger unavailable")

// ErrRejected reports a definitive ledger rejection of a submission.
// Not retried: the batch is marked failed and its content must go
// into a new batch.
var ErrRejected = errors.New("ledger rejected submission")

// ErrDisabled reports that anchoring is switched off in this
// deployment. Not a failure: a pending batch stays pending until
// anchoring is enabled.
var ErrDisabled = errors.New("anchoring disabled")

// ErrNotConfirmed reports that a batch has not reached the
// confirmation depth, so its root cannot be used for verification
// yet.
var ErrNotConfirmed = errors.New("batch not confirmed")

// SubmitResult is the ledger's acceptance record for a certifyBatch
// call.
type SubmitResult struct {
	// LedgerBatchID is the batch identifier assigned by the
	// certification contract.
	LedgerBatchID string

	// TxHash is the submission transaction hash.
	TxHash string

	// BlockNumber is the block that included the transaction.
	BlockNumber int64
}

// LedgerBatch is a certified batch as read back from the ledger.
type LedgerBatch struct {
	ID          string
	Root        merkle.Hash
	MetadataURI string
	Timestamp   time.Time
}

// Ledger is the certification contract surface:
// certifyBatch(bytes32 merkleRoot, string metadataURI) returning a
// batch ID, and getBatch for read-back. Implementations must be safe
// for concurrent use.
type Ledger interface {
	// CertifyBatch submits a root. ErrLedgerUnavailable for transient
	// failures, ErrRejected for definitive ones.
	CertifyBatch(ctx context.Context, root merkle.Hash, metadataURI string) (SubmitResult, error)

	// GetBatch reads a certified batch back by its ledger batch ID.
	GetBatch(ctx context.Context, ledgerBatchID string) (LedgerBatch, error)

	// Confirmations returns the current confirmation depth of a
	// submission transaction.
	Confirmations(ctx context.Context, txHash string) (int, error)
}

// Disabled is the Ledger for deployments without anchoring. Every
// method fails with ErrDisabled.
type Disabled struct{}

func (Disabled) CertifyBatch(context.Context, merkle.Hash, string) (SubmitResult, error) {
	return SubmitResult{}, ErrDisabled
}

func (Disabled) GetBatch(context.Context, string) (LedgerBatch, error) {
	return LedgerBatch{}, ErrDisabled
}

func (Disabled) Confirmations(context.Context, string) (int, error) {
	return 0, ErrDisabled
}
