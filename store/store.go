// Copyright 2026 The GitChain Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"fmt"
	"log/slog"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/gitchain-foundation/gitchain/lib/clock"
	"github.com/gitchain-foundation/gitchain/lib/codec"
	"github.com/gitchain-foundation/gitchain/lib/compress"
	"github.com/gitchain-foundation/gitchain/lib/fingerprint"
	"github.com/gitchain-foundation/gitchain/lib/ref"
	"github.com/gitchain-foundation/gitchain/lib/sqlitepool"
	"github.com/gitchain-foundation/gitchain/lib/value"
)

// Store is the versioned container store: an append-only commit log
// keyed by (type, namespace, identifier, version). Versions are
// immutable once written; a new write always appends the next version.
//
// Write path: Write fingerprints the content, assigns the next
// version inside an IMMEDIATE transaction, and inserts the commit
// row with its compressed payload blob. After the transaction
// commits, the OnWrite and OnInvalidate hooks fire so the batch
// engine picks up the new fingerprint and the resolver cache drops
// stale entries for the identifier.
//
// Read path: Read resolves the latest-version sentinel to the highest
// existing version and reconstructs the container from its blob.
// History and Diff are read-only views over the same rows.
type Store struct {
	pool   *sqlitepool.Pool
	clock  clock.Clock
	logger *slog.Logger

	onWrite      func(fingerprint.Digest)
	onInvalidate func(prefix string)
}

// Config holds the parameters for creating a container store.
type Config struct {
	// Pool is the SQLite connection pool. Required. The pool's
	// OnConnect must include [EnsureSchema].
	Pool *sqlitepool.Pool

	// Clock provides commit timestamps. Required.
	Clock clock.Clock

	// Logger receives operational messages. Nil discards.
	Logger *slog.Logger

	// OnWrite is called after each committed write with the new
	// version's fingerprint. The daemon wires this to the batch
	// engine's Enqueue. Optional.
	OnWrite func(fingerprint.Digest)

	// OnInvalidate is called after each committed write with the
	// identifier key prefix ("type:namespace:identifier") so cached
	// resolutions of the identifier are dropped. Optional.
	OnInvalidate func(prefix string)
}

// New creates a container store over an existing pool.
func New(cfg Config) (*Store, error) {
	if cfg.Pool == nil {
		return nil, fmt.Errorf("store: Pool is required")
	}
	if cfg.Clock == nil {
		return nil, fmt.Errorf("store: Clock is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{
		pool:         cfg.Pool,
		clock:        cfg.Clock,
		logger:       logger,
		onWrite:      cfg.OnWrite,
		onInvalidate: cfg.OnInvalidate,
	}, nil
}

// EnsureSchema creates the commit log tables. Pass it (or a function
// that calls it) as the pool's OnConnect.
func EnsureSchema(conn *sqlite.Conn) error {
	return sqlitex.ExecuteScript(conn, `
		CREATE TABLE IF NOT EXISTS commits (
			container_type TEXT NOT NULL,
			namespace      TEXT NOT NULL,
			identifier     TEXT NOT NULL,
			version        INTEGER NOT NULL,
			fingerprint    BLOB NOT NULL,
			parent         BLOB,
			author         TEXT NOT NULL DEFAULT '',
			message        TEXT NOT NULL DEFAULT '',
			created_at     INTEGER NOT NULL,
			payload        BLOB NOT NULL,
			payload_size   INTEGER NOT NULL,
			payload_tag    INTEGER NOT NULL,
			PRIMARY KEY (container_type, namespace, identifier, version)
		) WITHOUT ROWID;
		CREATE INDEX IF NOT EXISTS idx_commits_fingerprint
			ON commits(fingerprint);
	`, nil)
}

// WriteRequest holds the inputs for appending a container version.
type WriteRequest struct {
	Type       ref.ContainerType
	Namespace  string
	Identifier string

	// Data is the structured content. Its fingerprint identifies the
	// version in batches and proofs.
	Data value.Value

	Meta      Meta
	Citations []Citation

	// Message is the commit message recorded in history.
	Message string

	// Parent, when non-zero, is the fingerprint the writer believes
	// is the current head. A mismatch fails with ErrConflict so the
	// caller can re-read and retry with fresh content.
	Parent fingerprint.Digest
}

// Write appends the next version for the identifier. Returns the
// concrete reference of the new version and its content fingerprint.
// Version 1 is created implicitly for a previously unknown
// identifier.
func (s *Store) Write(ctx context.Context, req WriteRequest) (ref.ContainerRef, fingerprint.Digest, error) {
	reference, err := ref.New(req.Type, req.Namespace, req.Identifier, ref.Latest)
	if err != nil {
		return ref.ContainerRef{}, fingerprint.Digest{}, fmt.Errorf("store: write: %w", err)
	}

	digest, err := fingerprint.Fingerprint(req.Data.Interface())
	if err != nil {
		return ref.ContainerRef{}, fingerprint.Digest{}, fmt.Errorf("store: write: fingerprint: %w", err)
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return ref.ContainerRef{}, fingerprint.Digest{}, fmt.Errorf("store: write: %w", err)
	}
	defer s.pool.Put(conn)

	version, err := s.writeCommit(conn, reference, digest, req)
	if err != nil {
		return ref.ContainerRef{}, fingerprint.Digest{}, err
	}

	s.logger.Info("container written",
		"container", reference.Key(),
		"version", version,
		"fingerprint", digest.String(),
	)

	if s.onWrite != nil {
		s.onWrite(digest)
	}
	if s.onInvalidate != nil {
		s.onInvalidate(reference.Key())
	}

	return reference.WithVersion(version), digest, nil
}

// writeCommit runs the version assignment and insert in one IMMEDIATE
// transaction. Returns the assigned version number.
func (s *Store) writeCommit(conn *sqlite.Conn, reference ref.ContainerRef, digest fingerprint.Digest, req WriteRequest) (version int, err error) {
	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return 0, fmt.Errorf("store: write: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	head, headVersion, err := s.headLocked(conn, reference)
	if err != nil {
		return 0, err
	}
	version = headVersion + 1

	if !req.Parent.IsZero() && req.Parent != head {
		return 0, fmt.Errorf("store: write %s: head is %s, not %s: %w",
			reference.Key(), head.String(), req.Parent.String(), ErrConflict)
	}

	now := s.clock.Now().UTC()
	meta := req.Meta
	meta.UpdatedAt = now
	if version == 1 {
		meta.CreatedAt = now
	} else if meta.CreatedAt.IsZero() {
		// Carry the original creation time forward.
		first, err := s.readVersion(conn, reference.WithVersion(1))
		if err != nil {
			return 0, err
		}
		meta.CreatedAt = first.Meta.CreatedAt
	}

	blob, size, tag, err := encodePayload(req.Data, meta, req.Citations)
	if err != nil {
		return 0, fmt.Errorf("store: write %s: %w", reference.Key(), err)
	}

	var parent any
	if version > 1 {
		parent = head[:]
	}

	err = sqlitex.Execute(conn, `
		INSERT INTO commits
			(container_type, namespace, identifier, version, fingerprint,
			 parent, author, message, created_at, payload, payload_size,
			 payload_tag)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{
				string(reference.Type),
				reference.Namespace,
				reference.Identifier,
				version,
				digest[:],
				parent,
				meta.Author,
				req.Message,
				now.UnixNano(),
				blob,
				size,
				int(tag),
			},
		})
	if err != nil {
		if sqlite.ErrCode(err).ToPrimary() == sqlite.ResultConstraint {
			return 0, fmt.Errorf("store: write %s version %d: %w",
				reference.Key(), version, ErrConflict)
		}
		return 0, fmt.Errorf("store: write %s: %w", reference.Key(), err)
	}

	return version, nil
}

// headLocked returns the current head fingerprint and version for an
// identifier. Zero digest and version 0 for an unknown identifier.
// Must be called inside a transaction.
func (s *Store) headLocked(conn *sqlite.Conn, reference ref.ContainerRef) (fingerprint.Digest, int, error) {
	var head fingerprint.Digest
	var version int
	err := sqlitex.Execute(conn, `
		SELECT version, fingerprint FROM commits
		WHERE container_type = ? AND namespace = ? AND identifier = ?
		ORDER BY version DESC LIMIT 1`,
		&sqlitex.ExecOptions{
			Args: []any{string(reference.Type), reference.Namespace, reference.Identifier},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				version = stmt.ColumnInt(0)
				stmt.ColumnBytes(1, head[:])
				return nil
			},
		})
	if err != nil {
		return fingerprint.Digest{}, 0, fmt.Errorf("store: head %s: %w", reference.Key(), err)
	}
	return head, version, nil
}

// Read returns one container version. A reference with the latest
// sentinel resolves to the highest existing version. ErrNotFound if
// the identifier or the requested version does not exist.
func (s *Store) Read(ctx context.Context, reference ref.ContainerRef) (Container, error) {
	if err := reference.Validate(); err != nil {
		return Container{}, fmt.Errorf("store: read: %w", err)
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return Container{}, fmt.Errorf("store: read: %w", err)
	}
	defer s.pool.Put(conn)

	return s.readVersion(conn, reference)
}

func (s *Store) readVersion(conn *sqlite.Conn, reference ref.ContainerRef) (Container, error) {
	query := `
		SELECT version, fingerprint, parent, message, payload,
		       payload_size, payload_tag
		FROM commits
		WHERE container_type = ? AND namespace = ? AND identifier = ?`
	args := []any{string(reference.Type), reference.Namespace, reference.Identifier}

	if reference.IsLatest() {
		query += " ORDER BY version DESC LIMIT 1"
	} else {
		query += " AND version = ?"
		args = append(args, reference.Version)
	}

	var container Container
	found := false
	err := sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			found = true
			return scanContainer(stmt, reference, &container)
		},
	})
	if err != nil {
		return Container{}, fmt.Errorf("store: read %s: %w", reference.String(), err)
	}
	if !found {
		return Container{}, fmt.Errorf("store: read %s: %w", reference.String(), ErrNotFound)
	}
	return container, nil
}

// scanContainer reconstructs a container from a commit row. The
// column order matches readVersion and ReadByFingerprint.
func scanContainer(stmt *sqlite.Stmt, reference ref.ContainerRef, container *Container) error {
	version := stmt.ColumnInt(0)
	stmt.ColumnBytes(1, container.Fingerprint[:])
	if !stmt.ColumnIsNull(2) {
		stmt.ColumnBytes(2, container.Parent[:])
	}
	container.Message = stmt.ColumnText(3)

	blob := make([]byte, stmt.ColumnLen(4))
	stmt.ColumnBytes(4, blob)
	size := stmt.ColumnInt(5)
	tag := compress.Tag(stmt.ColumnInt(6))

	data, meta, citations, err := decodePayload(blob, size, tag)
	if err != nil {
		return fmt.Errorf("version %d: %w", version, err)
	}

	container.Ref = reference.WithVersion(version)
	container.Data = data
	container.Meta = meta
	container.Citations = citations
	return nil
}

// ReadByFingerprint returns the newest container version whose
// content has the given fingerprint. Used by the verify surface where
// the caller holds a fingerprint instead of an identifier.
func (s *Store) ReadByFingerprint(ctx context.Context, digest fingerprint.Digest) (Container, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return Container{}, fmt.Errorf("store: read by fingerprint: %w", err)
	}
	defer s.pool.Put(conn)

	var container Container
	found := false
	err = sqlitex.Execute(conn, `
		SELECT version, fingerprint, parent, message, payload,
		       payload_size, payload_tag,
		       container_type, namespace, identifier
		FROM commits
		WHERE fingerprint = ?
		ORDER BY created_at DESC LIMIT 1`,
		&sqlitex.ExecOptions{
			Args: []any{digest[:]},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				found = true
				reference := ref.ContainerRef{
					Type:       ref.ContainerType(stmt.ColumnText(7)),
					Namespace:  stmt.ColumnText(8),
					Identifier: stmt.ColumnText(9),
				}
				return scanContainer(stmt, reference, &container)
			},
		})
	if err != nil {
		return Container{}, fmt.Errorf("store: read by fingerprint %s: %w", digest.String(), err)
	}
	if !found {
		return Container{}, fmt.Errorf("store: fingerprint %s: %w", digest.String(), ErrNotFound)
	}
	return container, nil
}

// History returns a container's commit records newest first. limit
// caps the page size (0 means a default of 50); offset skips past
// newer records for paging. ErrNotFound if the identifier has no
// versions at all.
func (s *Store) History(ctx context.Context, containerType ref.ContainerType, namespace, identifier string, limit, offset int) ([]CommitRecord, error) {
	reference, err := ref.New(containerType, namespace, identifier, ref.Latest)
	if err != nil {
		return nil, fmt.Errorf("store: history: %w", err)
	}
	if limit <= 0 {
		limit = 50
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: history: %w", err)
	}
	defer s.pool.Put(conn)

	var records []CommitRecord
	err = sqlitex.Execute(conn, `
		SELECT version, fingerprint, parent, author, message, created_at
		FROM commits
		WHERE container_type = ? AND namespace = ? AND identifier = ?
		ORDER BY version DESC LIMIT ? OFFSET ?`,
		&sqlitex.ExecOptions{
			Args: []any{
				string(reference.Type), reference.Namespace,
				reference.Identifier, limit, offset,
			},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				var record CommitRecord
				record.Version = stmt.ColumnInt(0)
				stmt.ColumnBytes(1, record.Fingerprint[:])
				if !stmt.ColumnIsNull(2) {
					stmt.ColumnBytes(2, record.Parent[:])
				}
				record.Author = stmt.ColumnText(3)
				record.Message = stmt.ColumnText(4)
				record.CreatedAt = nanosToTime(stmt.ColumnInt64(5))
				records = append(records, record)
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("store: history %s: %w", reference.Key(), err)
	}

	if len(records) == 0 {
		// Distinguish "no such container" from "offset past the end".
		_, headVersion, err := s.headLocked(conn, reference)
		if err != nil {
			return nil, err
		}
		if headVersion == 0 {
			return nil, fmt.Errorf("store: history %s: %w", reference.Key(), ErrNotFound)
		}
	}
	return records, nil
}

// Diff returns the structural field-path diff between two versions of
// a container. Either version may be the latest sentinel.
func (s *Store) Diff(ctx context.Context, containerType ref.ContainerType, namespace, identifier string, fromVersion, toVersion int) (value.DiffResult, error) {
	from, err := s.Read(ctx, ref.ContainerRef{
		Type: containerType, Namespace: namespace,
		Identifier: identifier, Version: fromVersion,
	})
	if err != nil {
		return value.DiffResult{}, err
	}
	to, err := s.Read(ctx, ref.ContainerRef{
		Type: containerType, Namespace: namespace,
		Identifier: identifier, Version: toVersion,
	})
	if err != nil {
		return value.DiffResult{}, err
	}
	return value.Diff(from.Data, to.Data), nil
}

// Fingerprints returns every distinct content fingerprint in the
// commit log, oldest first. The batch engine uses this on startup to
// re-enqueue fingerprints written while no daemon was running.
func (s *Store) Fingerprints(ctx context.Context) ([]fingerprint.Digest, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: fingerprints: %w", err)
	}
	defer s.pool.Put(conn)

	var digests []fingerprint.Digest
	err = sqlitex.Execute(conn, `
		SELECT fingerprint, MIN(created_at) AS first_seen
		FROM commits GROUP BY fingerprint ORDER BY first_seen`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				var digest fingerprint.Digest
				stmt.ColumnBytes(0, digest[:])
				digests = append(digests, digest)
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("store: fingerprints: %w", err)
	}
	return digests, nil
}

// encodePayload marshals the envelope to canonical CBOR and
// compresses it. Returns the blob, the uncompressed size, and the
// compression tag actually used.
func encodePayload(data value.Value, meta Meta, citations []Citation) ([]byte, int, compress.Tag, error) {
	encoded, err := codec.Marshal(envelope{
		Data:      data.Interface(),
		Meta:      meta,
		Citations: citations,
	})
	if err != nil {
		return nil, 0, 0, fmt.Errorf("encode payload: %w", err)
	}
	blob, tag, err := compress.Compress(encoded, compress.Zstd)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("compress payload: %w", err)
	}
	return blob, len(encoded), tag, nil
}

func decodePayload(blob []byte, size int, tag compress.Tag) (value.Value, Meta, []Citation, error) {
	encoded, err := compress.Decompress(blob, tag, size)
	if err != nil {
		return value.Value{}, Meta{}, nil, fmt.Errorf("decompress payload: %w", err)
	}
	var env envelope
	if err := codec.Unmarshal(encoded, &env); err != nil {
		return value.Value{}, Meta{}, nil, fmt.Errorf("decode payload: %w", err)
	}
	data, err := value.FromAny(env.Data)
	if err != nil {
		return value.Value{}, Meta{}, nil, fmt.Errorf("decode payload data: %w", err)
	}
	return data, env.Meta, env.Citations, nil
}
