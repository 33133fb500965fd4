// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Livegate Contributors

// Package store provides the PostgreSQL record store and schema migrations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/livegate/livegate/internal/core"
)

// Connect retry policy. Startup races the database in containerized
// deployments, so the first ping retries with exponential backoff.
const (
	connectAttempts = 5
	connectBackoff  = 500 * time.Millisecond
)

// poolIface abstracts *pgxpool.Pool for testing with pgxmock.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresRecordStore implements core.RecordStore using PostgreSQL.
type PostgresRecordStore struct {
	pool poolIface
}

// NewPostgresRecordStore connects to PostgreSQL and verifies the connection,
// retrying the initial ping with exponential backoff.
func NewPostgresRecordStore(ctx context.Context, dsn string) (*PostgresRecordStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, oops.Code("STORE_CONNECT_FAILED").
			With("operation", "create connection pool").
			Wrap(err)
	}

	backoff := retry.WithMaxRetries(connectAttempts, retry.NewExponential(connectBackoff))
	if err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if pingErr := pool.Ping(ctx); pingErr != nil {
			return retry.RetryableError(pingErr)
		}
		return nil
	}); err != nil {
		pool.Close()
		return nil, oops.Code("STORE_CONNECT_FAILED").
			With("operation", "ping database").
			Wrap(err)
	}

	return &PostgresRecordStore{pool: pool}, nil
}

// NewPostgresRecordStoreWithPool wraps an existing pool. Used by tests.
func NewPostgresRecordStoreWithPool(pool poolIface) *PostgresRecordStore {
	return &PostgresRecordStore{pool: pool}
}

// Close closes the connection pool.
func (s *PostgresRecordStore) Close() {
	s.pool.Close()
}

// Insert persists a record and returns the stored shape with its assigned
// sequential ID and creation timestamp.
func (s *PostgresRecordStore) Insert(ctx context.Context, record core.Record) (core.Record, error) {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO records (topic, author_id, author, message, type, media_url)
		 VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))
		 RETURNING id, created_at`,
		record.Topic,
		record.AuthorID,
		record.Author,
		record.Message,
		string(record.Type),
		record.MediaURL,
	).Scan(&record.ID, &record.CreatedAt)
	if err != nil {
		return core.Record{}, wrapPgError(err, "insert record", record.Topic)
	}
	return record, nil
}

// Recent returns up to limit of the newest records for a topic in ascending
// ID order. An unknown topic yields an empty result, not an error.
func (s *PostgresRecordStore) Recent(ctx context.Context, topic string, limit int) ([]core.Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, topic, author_id, author, message, type, COALESCE(media_url, ''), created_at
		 FROM (
		     SELECT * FROM records WHERE topic = $1 ORDER BY id DESC LIMIT $2
		 ) latest
		 ORDER BY id ASC`,
		topic, limit)
	if err != nil {
		return nil, wrapPgError(err, "query recent records", topic)
	}
	defer rows.Close()

	var records []core.Record
	for rows.Next() {
		var r core.Record
		var typeStr string
		if err := rows.Scan(&r.ID, &r.Topic, &r.AuthorID, &r.Author, &r.Message, &typeStr, &r.MediaURL, &r.CreatedAt); err != nil {
			return nil, oops.Code("STORE_SCAN_FAILED").
				With("topic", topic).
				Wrap(err)
		}
		r.Type = core.RecordType(typeStr)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapPgError(err, "iterate recent records", topic)
	}
	return records, nil
}

// wrapPgError wraps a pgx error with an oops code, adding a migration hint
// when the schema is missing.
func wrapPgError(err error, operation, topic string) error {
	builder := oops.Code("STORE_QUERY_FAILED").
		With("operation", operation).
		With("topic", topic)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UndefinedTable {
		builder = builder.Hint("schema missing: run 'livegate migrate up'")
	}
	return builder.Wrap(err)
}
