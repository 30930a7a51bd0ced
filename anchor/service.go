// Copyright 2026 The GitChain Authors
// SPDX-License-Identifier: Apache-2.0

package anchor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gitchain-foundation/gitchain/lib/clock"
	"github.com/gitchain-foundation/gitchain/merkle"
)

// Service drives sealed batches through the ledger lifecycle:
// Submit retries transient ledger failures with bounded exponential
// backoff, PollConfirmation promotes submitted batches once they
// reach the confirmation depth. It runs on the anchoring loop, never
// on the write path.
type Service struct {
	engine *merkle.Engine
	ledger Ledger
	clock  clock.Clock
	logger *slog.Logger

	network        string
	confirmations  int
	maxAttempts    int
	initialBackoff time.Duration
	metadataBase   string
}

// Config holds the parameters for creating an anchoring service.
type Config struct {
	// Engine is the batch engine owning the batch records. Required.
	Engine *merkle.Engine

	// Ledger is the certification contract client. Required.
	Ledger Ledger

	// Clock drives retry backoff and the run loop. Required.
	Clock clock.Clock

	// Logger receives operational messages. Nil discards.
	Logger *slog.Logger

	// Network names the target ledger network, for logging and for
	// the resolved chain proof.
	Network string

	// Confirmations is the block depth before a batch is treated as
	// final. Defaults to 3.
	Confirmations int

	// MaxAttempts bounds submission retries. Defaults to 5.
	MaxAttempts int

	// InitialBackoff is the delay before the first retry; it doubles
	// per attempt. Zero and negative values disable waiting between
	// retries (tests rely on this). The daemon's config layer
	// supplies the production default.
	InitialBackoff time.Duration

	// MetadataBase is the URI prefix for batch metadata references
	// passed to certifyBatch. Defaults to "gitchain://batches".
	MetadataBase string
}

// New creates an anchoring service.
func New(cfg Config) (*Service, error) {
	if cfg.Engine == nil {
		return nil, fmt.Errorf("anchor: Engine is required")
	}
	if cfg.Ledger == nil {
		return nil, fmt.Errorf("anchor: Ledger is required")
	}
	if cfg.Clock == nil {
		return nil, fmt.Errorf("anchor: Clock is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	confirmations := cfg.Confirmations
	if confirmations <= 0 {
		confirmations = 3
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	backoff := cfg.InitialBackoff
	if backoff < 0 {
		backoff = 0
	}
	metadataBase := cfg.MetadataBase
	if metadataBase == "" {
		metadataBase = "gitchain://batches"
	}
	return &Service{
		engine:         cfg.Engine,
		ledger:         cfg.Ledger,
		clock:          cfg.Clock,
		logger:         logger,
		network:        cfg.Network,
		confirmations:  confirmations,
		maxAttempts:    maxAttempts,
		initialBackoff: backoff,
		metadataBase:   metadataBase,
	}, nil
}

// Network returns the configured ledger network name.
func (s *Service) Network() string {
	return s.network
}

// Submit pushes a pending batch's root to the ledger. Transient
// failures retry with exponential backoff up to the attempt bound;
// definitive rejections and exhausted retries mark the batch failed.
// Submitting a batch that already left pending is a no-op.
func (s *Service) Submit(ctx context.Context, batchID int64) error {
	batch, err := s.engine.Batch(ctx, batchID)
	if err != nil {
		return fmt.Errorf("anchor: submit: %w", err)
	}
	switch batch.Status {
	case merkle.StatusPending:
	case merkle.StatusSubmitted, merkle.StatusConfirmed:
		return nil
	default:
		return fmt.Errorf("anchor: submit batch %d: status is %s", batchID, batch.Status)
	}

	metadataURI := fmt.Sprintf("%s/%d", s.metadataBase, batchID)
	backoff := s.initialBackoff

	for attempt := 1; ; attempt++ {
		result, err := s.ledger.CertifyBatch(ctx, batch.Root, metadataURI)
		if err == nil {
			if err := s.engine.MarkSubmitted(ctx, batchID, result.LedgerBatchID, result.TxHash, result.BlockNumber, metadataURI); err != nil {
				return fmt.Errorf("anchor: submit batch %d: %w", batchID, err)
			}
			s.logger.Info("batch submitted",
				"batch_id", batchID,
				"network", s.network,
				"ledger_batch_id", result.LedgerBatchID,
				"tx_hash", result.TxHash,
				"block_number", result.BlockNumber,
				"attempts", attempt,
			)
			return nil
		}

		if errors.Is(err, ErrDisabled) {
			// Anchoring is switched off in this deployment. The
			// batch stays pending and is picked up once anchoring
			// is enabled.
			return fmt.Errorf("anchor: submit batch %d: %w", batchID, err)
		}
		if !errors.Is(err, ErrLedgerUnavailable) {
			// Definitive: rejection or a malformed submission.
			// Nothing a retry can change.
			s.fail(ctx, batchID, err.Error())
			return fmt.Errorf("anchor: submit batch %d: %w", batchID, err)
		}

		if recordErr := s.engine.RecordAttempt(ctx, batchID, err.Error()); recordErr != nil {
			s.logger.Warn("recording attempt failed", "batch_id", batchID, "error", recordErr)
		}

		if attempt >= s.maxAttempts {
			reason := fmt.Sprintf("submission attempts exhausted after %d tries: %v", attempt, err)
			s.fail(ctx, batchID, reason)
			return fmt.Errorf("anchor: submit batch %d: %s: %w", batchID, reason, ErrLedgerUnavailable)
		}

		s.logger.Warn("ledger unavailable, backing off",
			"batch_id", batchID,
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)
		if err := s.wait(ctx, backoff); err != nil {
			return fmt.Errorf("anchor: submit batch %d: %w", batchID, err)
		}
		backoff *= 2
	}
}

// fail marks a batch failed, logs the operator-visible error, and
// returns the batch's leaves to the pending set so the next seal
// covers them with a new batch. The failed batch itself is never
// re-submitted.
func (s *Service) fail(ctx context.Context, batchID int64, reason string) {
	s.logger.Error("batch anchoring failed",
		"batch_id", batchID,
		"network", s.network,
		"reason", reason,
	)
	if err := s.engine.MarkFailed(ctx, batchID, reason); err != nil {
		s.logger.Warn("marking batch failed", "batch_id", batchID, "error", err)
		return
	}
	requeued, err := s.engine.RequeueBatch(ctx, batchID)
	if err != nil {
		s.logger.Warn("requeueing failed batch", "batch_id", batchID, "error", err)
		return
	}
	s.logger.Info("failed batch content requeued for a new batch",
		"batch_id", batchID,
		"leaf_count", requeued,
	)
}

func (s *Service) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-s.clock.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PollConfirmation checks a submitted batch's confirmation depth and
// promotes it to confirmed once the depth is reached and the ledger's
// root read-back matches. Returns ErrNotConfirmed while the depth is
// short; transient ledger errors propagate for the caller to retry
// on its next tick.
func (s *Service) PollConfirmation(ctx context.Context, batchID int64) error {
	batch, err := s.engine.Batch(ctx, batchID)
	if err != nil {
		return fmt.Errorf("anchor: poll: %w", err)
	}
	switch batch.Status {
	case merkle.StatusConfirmed:
		return nil
	case merkle.StatusSubmitted:
	default:
		return fmt.Errorf("anchor: poll batch %d: status is %s: %w", batchID, batch.Status, ErrNotConfirmed)
	}

	depth, err := s.ledger.Confirmations(ctx, batch.TxHash)
	if err != nil {
		return fmt.Errorf("anchor: poll batch %d: %w", batchID, err)
	}
	if depth < s.confirmations {
		return fmt.Errorf("anchor: batch %d at depth %d of %d: %w", batchID, depth, s.confirmations, ErrNotConfirmed)
	}

	// Read the certified batch back. A root mismatch means the
	// ledger certified something else under our ID, which is a
	// definitive failure, not a retry case.
	ledgerBatch, err := s.ledger.GetBatch(ctx, batch.LedgerBatchID)
	if err != nil {
		if errors.Is(err, ErrLedgerUnavailable) {
			return fmt.Errorf("anchor: poll batch %d: %w", batchID, err)
		}
		s.fail(ctx, batchID, fmt.Sprintf("read-back failed: %v", err))
		return fmt.Errorf("anchor: poll batch %d: %w", batchID, err)
	}
	if ledgerBatch.Root != batch.Root {
		reason := fmt.Sprintf("ledger root %s does not match sealed root %s",
			ledgerBatch.Root.String(), batch.Root.String())
		s.fail(ctx, batchID, reason)
		return fmt.Errorf("anchor: poll batch %d: %s: %w", batchID, reason, ErrRejected)
	}

	if err := s.engine.MarkConfirmed(ctx, batchID); err != nil {
		// A concurrent poller may have won the transition.
		if errors.Is(err, merkle.ErrBadTransition) {
			return nil
		}
		return fmt.Errorf("anchor: poll batch %d: %w", batchID, err)
	}
	s.logger.Info("batch confirmed",
		"batch_id", batchID,
		"network", s.network,
		"root", batch.Root.String(),
		"depth", depth,
	)
	return nil
}

// IsConfirmed reports whether a batch has reached confirmed status.
func (s *Service) IsConfirmed(ctx context.Context, batchID int64) (bool, error) {
	batch, err := s.engine.Batch(ctx, batchID)
	if err != nil {
		return false, fmt.Errorf("anchor: %w", err)
	}
	return batch.Status == merkle.StatusConfirmed, nil
}

// ConfirmedRoot returns the root of a confirmed batch for proof
// verification. ErrNotConfirmed if the batch has not been anchored
// and confirmed.
func (s *Service) ConfirmedRoot(ctx context.Context, batchID int64) (merkle.Hash, error) {
	batch, err := s.engine.Batch(ctx, batchID)
	if err != nil {
		return merkle.Hash{}, fmt.Errorf("anchor: %w", err)
	}
	if batch.Status != merkle.StatusConfirmed {
		return merkle.Hash{}, fmt.Errorf("anchor: batch %d is %s: %w", batchID, batch.Status, ErrNotConfirmed)
	}
	return batch.Root, nil
}

// Run is the anchoring loop: every interval it submits pending
// batches and polls submitted ones. Returns when ctx is canceled.
// Per-batch errors are logged, never fatal to the loop.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick performs one submit-and-poll pass.
func (s *Service) tick(ctx context.Context) {
	pending, err := s.engine.BatchesByStatus(ctx, merkle.StatusPending)
	if err != nil {
		s.logger.Error("listing pending batches", "error", err)
	}
	for _, batch := range pending {
		err := s.Submit(ctx, batch.ID)
		if err != nil && !errors.Is(err, ErrDisabled) {
			s.logger.Warn("batch submission", "batch_id", batch.ID, "error", err)
		}
		if ctx.Err() != nil {
			return
		}
	}

	submitted, err := s.engine.BatchesByStatus(ctx, merkle.StatusSubmitted)
	if err != nil {
		s.logger.Error("listing submitted batches", "error", err)
	}
	for _, batch := range submitted {
		err := s.PollConfirmation(ctx, batch.ID)
		if err != nil && !errors.Is(err, ErrNotConfirmed) && !errors.Is(err, ErrDisabled) {
			s.logger.Warn("confirmation poll", "batch_id", batch.ID, "error", err)
		}
		if ctx.Err() != nil {
			return
		}
	}
}
