// Copyright 2026 The GitChain Authors
// SPDX-License-Identifier: Apache-2.0

// Package inject assembles verified context bundles. The resolver
// reads containers from the store, optionally checks each one's
// membership proof against a ledger-confirmed Merkle root, and the
// formatter renders the bundle for injection into a model context
// window under a token budget.
package inject

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gitchain-foundation/gitchain/anchor"
	"github.com/gitchain-foundation/gitchain/lib/clock"
	"github.com/gitchain-foundation/gitchain/lib/fingerprint"
	"github.com/gitchain-foundation/gitchain/lib/ref"
	"github.com/gitchain-foundation/gitchain/merkle"
	"github.com/gitchain-foundation/gitchain/store"
)

// ReasonNotAnchored marks a container whose fingerprint has not yet
// been sealed into a confirmed batch. This is a normal intermediate
// state for fresh writes, not an error.
const ReasonNotAnchored = "not yet anchored"

// ChainProof ties a container version to its confirmed ledger anchor.
type ChainProof struct {
	BatchID       int64              `json:"batch_id"`
	LedgerBatchID string             `json:"ledger_batch_id"`
	TxHash        string             `json:"tx_hash"`
	BlockNumber   int64              `json:"block_number"`
	Root          merkle.Hash        `json:"merkle_root"`
	Leaf          fingerprint.Digest `json:"leaf"`
	Siblings      []merkle.Hash      `json:"siblings"`
}

// Resolved is the per-container outcome of a resolve request. Err is
// set when the identifier could not be resolved at all; Verified and
// Reason describe the verification outcome when it could.
type Resolved struct {
	ID        string           `json:"id"`
	Container *store.Container `json:"container,omitempty"`
	Verified  bool             `json:"verified"`
	Reason    string           `json:"reason,omitempty"`
	Err       string           `json:"error,omitempty"`
	Proof     *ChainProof      `json:"chain_proof,omitempty"`
}

// Bundle is the result of resolving a set of container identifiers.
// Verified is the conjunction over all members; one unverifiable
// container makes the whole bundle unverified.
type Bundle struct {
	Containers []Resolved `json:"containers"`
	Verified   bool       `json:"verified"`
	VerifiedAt time.Time  `json:"verified_at,omitzero"`

	// Incomplete is set when the request deadline expired before all
	// identifiers were resolved. Containers holds what completed.
	Incomplete bool `json:"incomplete,omitempty"`
}

// ResolveOptions controls a resolve request.
type ResolveOptions struct {
	// Verify checks each container's Merkle proof against its
	// batch's ledger-confirmed root.
	Verify bool
}

// Resolver reads containers and verifies their anchoring state.
type Resolver struct {
	store  *store.Store
	engine *merkle.Engine
	anchor *anchor.Service
	cache  *Cache
	clock  clock.Clock
	logger *slog.Logger
}

// ResolverConfig wires a Resolver. Store, Engine, and Anchor are
// required; Cache is optional.
type ResolverConfig struct {
	Store  *store.Store
	Engine *merkle.Engine
	Anchor *anchor.Service
	Cache  *Cache
	Clock  clock.Clock
	Logger *slog.Logger
}

// NewResolver validates the configuration and builds a Resolver.
func NewResolver(cfg ResolverConfig) (*Resolver, error) {
	if cfg.Store == nil {
		return nil, errors.New("inject: ResolverConfig.Store is required")
	}
	if cfg.Engine == nil {
		return nil, errors.New("inject: ResolverConfig.Engine is required")
	}
	if cfg.Anchor == nil {
		return nil, errors.New("inject: ResolverConfig.Anchor is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &Resolver{
		store:  cfg.Store,
		engine: cfg.Engine,
		anchor: cfg.Anchor,
		cache:  cfg.Cache,
		clock:  cfg.Clock,
		logger: cfg.Logger,
	}, nil
}

// Resolve reads each identifier and returns a bundle with per-entry
// status. A bad identifier degrades that entry, never the whole
// request. If the context deadline expires mid-request the bundle is
// returned with Incomplete set and whatever entries finished.
func (r *Resolver) Resolve(ctx context.Context, ids []string, opts ResolveOptions) (*Bundle, error) {
	bundle := &Bundle{Containers: make([]Resolved, 0, len(ids))}

	for _, id := range ids {
		if ctx.Err() != nil {
			bundle.Incomplete = true
			break
		}
		bundle.Containers = append(bundle.Containers, r.resolveOne(ctx, id, opts))
	}

	bundle.Verified = opts.Verify && !bundle.Incomplete && len(bundle.Containers) > 0
	for _, entry := range bundle.Containers {
		if !entry.Verified {
			bundle.Verified = false
		}
	}
	if bundle.Verified {
		bundle.VerifiedAt = r.clock.Now()
	}
	return bundle, nil
}

func (r *Resolver) resolveOne(ctx context.Context, id string, opts ResolveOptions) Resolved {
	resolved := Resolved{ID: id}

	reference, err := ref.Parse(id)
	if err != nil {
		resolved.Err = err.Error()
		return resolved
	}

	container, err := r.readContainer(ctx, reference)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			resolved.Err = fmt.Sprintf("container not found: %s", id)
		} else {
			resolved.Err = err.Error()
		}
		return resolved
	}
	resolved.Container = &container

	if opts.Verify {
		r.verifyContainer(ctx, &resolved)
	}
	return resolved
}

// readContainer consults the cache before the store. Only successful
// reads are cached; the canonical ref string keys the entry so that
// "latest" and pinned versions cache independently, and both fall
// under the identifier prefix the store invalidates on write.
func (r *Resolver) readContainer(ctx context.Context, reference ref.ContainerRef) (store.Container, error) {
	key := reference.Key() + ":" + reference.String()
	if container, ok := r.cache.Get(key); ok {
		return container, nil
	}
	container, err := r.store.Read(ctx, reference)
	if err != nil {
		return store.Container{}, err
	}
	r.cache.Set(key, container)
	return container, nil
}

// verifyContainer fills in the verification outcome for a resolved
// container. Verification failures are reported in Reason, never as
// errors: a mismatched proof is a correct, reportable result.
func (r *Resolver) verifyContainer(ctx context.Context, resolved *Resolved) {
	digest := resolved.Container.Fingerprint

	batch, err := r.engine.BatchForLeaf(ctx, digest)
	if err != nil {
		if errors.Is(err, merkle.ErrNotFound) {
			resolved.Reason = ReasonNotAnchored
		} else {
			resolved.Reason = fmt.Sprintf("batch lookup failed: %v", err)
		}
		return
	}

	root, err := r.anchor.ConfirmedRoot(ctx, batch.ID)
	if err != nil {
		if errors.Is(err, anchor.ErrNotConfirmed) {
			resolved.Reason = ReasonNotAnchored
		} else {
			resolved.Reason = fmt.Sprintf("confirmation lookup failed: %v", err)
		}
		return
	}

	proof, err := r.engine.Proof(ctx, batch.ID, digest)
	if err != nil {
		resolved.Reason = fmt.Sprintf("proof generation failed: %v", err)
		return
	}
	if !merkle.Verify(root, proof) {
		resolved.Reason = "proof does not match confirmed root"
		r.logger.Error("membership proof rejected",
			"container", resolved.ID,
			"batch_id", batch.ID,
			"fingerprint", digest.String())
		return
	}

	resolved.Verified = true
	resolved.Proof = &ChainProof{
		BatchID:       batch.ID,
		LedgerBatchID: batch.LedgerBatchID,
		TxHash:        batch.TxHash,
		BlockNumber:   batch.BlockNumber,
		Root:          root,
		Leaf:          digest,
		Siblings:      proof.Siblings,
	}
}

// VerifyOne resolves and verifies a single container addressed either
// by its identifier or by a hex content fingerprint.
func (r *Resolver) VerifyOne(ctx context.Context, idOrFingerprint string) (Resolved, error) {
	if digest, err := fingerprint.Parse(idOrFingerprint); err == nil {
		container, err := r.store.ReadByFingerprint(ctx, digest)
		if err != nil {
			return Resolved{}, fmt.Errorf("inject: fingerprint %s: %w", idOrFingerprint, err)
		}
		resolved := Resolved{ID: container.Ref.String(), Container: &container}
		r.verifyContainer(ctx, &resolved)
		return resolved, nil
	}

	reference, err := ref.Parse(idOrFingerprint)
	if err != nil {
		return Resolved{}, fmt.Errorf("inject: %q is neither a container id nor a fingerprint", idOrFingerprint)
	}
	container, err := r.readContainer(ctx, reference)
	if err != nil {
		return Resolved{}, fmt.Errorf("inject: read %s: %w", idOrFingerprint, err)
	}
	resolved := Resolved{ID: idOrFingerprint, Container: &container}
	r.verifyContainer(ctx, &resolved)
	return resolved, nil
}
