// Copyright (c) 2026 Nlaak Studios (https://nlaak.com)
// Author: Andrew Donelson (https://www.linkedin.com/in/andrew-donelson/)
//
// l3.go - PostgreSQL payload table: one row per (type, record id) holding a
// serialized payload, bulk-loaded with COPY through a staging table and
// upserted, plus streaming scans, point reads and counts.

// Package l3 provides the PostgreSQL payload table adapter.
package l3

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrMiss is returned by Get when no row matches.
var ErrMiss = errors.New("l3: miss")

// Columns of every payload table, in COPY order.
var Columns = []string{"type_id", "record_id", "payload"}

// Row is one stored payload.
type Row struct {
	TypeID   string
	RecordID string
	Payload  []byte
}

// Store is the PostgreSQL adapter.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a new Store from an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Ping verifies the pool is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// EnsureTable creates the payload table when it does not exist.
func (s *Store) EnsureTable(ctx context.Context, table string) error {
	sql := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	type_id   TEXT  NOT NULL,
	record_id TEXT  NOT NULL,
	payload   BYTEA NOT NULL,
	PRIMARY KEY (type_id, record_id)
)`, quote(table))
	if _, err := s.pool.Exec(ctx, sql); err != nil {
		return fmt.Errorf("l3 create %s: %w", table, err)
	}
	return nil
}

// Upsert bulk-loads rows with COPY into a transaction-scoped staging table
// and merges them into table, replacing payloads of existing keys.
func (s *Store) Upsert(ctx context.Context, table string, rows []Row) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("l3 begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const staging = "ormpack_staging"
	if _, err := tx.Exec(ctx, fmt.Sprintf(
		"CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP", staging, quote(table))); err != nil {
		return 0, fmt.Errorf("l3 staging %s: %w", table, err)
	}
	src := pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
		return []any{rows[i].TypeID, rows[i].RecordID, rows[i].Payload}, nil
	})
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{staging}, Columns, src); err != nil {
		return 0, fmt.Errorf("l3 copy %s: %w", table, err)
	}
	tag, err := tx.Exec(ctx, fmt.Sprintf(
		`INSERT INTO %s (type_id, record_id, payload)
		 SELECT DISTINCT ON (type_id, record_id) type_id, record_id, payload FROM %s
		 ON CONFLICT (type_id, record_id) DO UPDATE SET payload = EXCLUDED.payload`,
		quote(table), staging))
	if err != nil {
		return 0, fmt.Errorf("l3 merge %s: %w", table, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("l3 commit %s: %w", table, err)
	}
	return tag.RowsAffected(), nil
}

// Get returns the payload stored for (typeID, recordID).
func (s *Store) Get(ctx context.Context, table, typeID, recordID string) ([]byte, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		fmt.Sprintf("SELECT payload FROM %s WHERE type_id = $1 AND record_id = $2", quote(table)),
		typeID, recordID).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("l3 get %s: %w", table, err)
	}
	return payload, nil
}

// Scan streams rows ordered by key to fn. An empty typeID scans every type.
func (s *Store) Scan(ctx context.Context, table, typeID string, fn func(Row) error) error {
	sql := fmt.Sprintf("SELECT type_id, record_id, payload FROM %s", quote(table))
	var args []any
	if typeID != "" {
		sql += " WHERE type_id = $1"
		args = append(args, typeID)
	}
	sql += " ORDER BY type_id, record_id"

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("l3 scan %s: %w", table, err)
	}
	defer rows.Close()
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.TypeID, &r.RecordID, &r.Payload); err != nil {
			return fmt.Errorf("l3 scan %s: %w", table, err)
		}
		if err := fn(r); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Delete removes one row.
func (s *Store) Delete(ctx context.Context, table, typeID, recordID string) error {
	_, err := s.pool.Exec(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE type_id = $1 AND record_id = $2", quote(table)),
		typeID, recordID)
	if err != nil {
		return fmt.Errorf("l3 delete %s: %w", table, err)
	}
	return nil
}

// Count returns the number of rows, restricted to typeID when it is set.
func (s *Store) Count(ctx context.Context, table, typeID string) (int64, error) {
	sql := fmt.Sprintf("SELECT COUNT(*) FROM %s", quote(table))
	var args []any
	if typeID != "" {
		sql += " WHERE type_id = $1"
		args = append(args, typeID)
	}
	var n int64
	if err := s.pool.QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("l3 count %s: %w", table, err)
	}
	return n, nil
}

func quote(table string) string {
	return pgx.Identifier{table}.Sanitize()
}
