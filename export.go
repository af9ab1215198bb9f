// Copyright (c) 2026 Nlaak Studios (https://nlaak.com)
// Author: Andrew Donelson (https://www.linkedin.com/in/andrew-donelson/)
//
// export.go - PostgresExporter: bulk-exports serialized records into a
// PostgreSQL payload table keyed by (type, primary key) and streams them
// back through Deserialize.

package ormpack

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AndrewDonelson/ormpack/internal/l3"
)

// DefaultExportTable is the payload table used when none is given.
const DefaultExportTable = "ormpack_records"

// PostgresExporter writes records to and reads them from a payload table.
type PostgresExporter struct {
	c     *Codec
	l3    *l3.Store
	table string
}

// NewPostgresExporter returns an exporter writing to table through pool.
func NewPostgresExporter(pool *pgxpool.Pool, c *Codec, table string) *PostgresExporter {
	if table == "" {
		table = DefaultExportTable
	}
	return &PostgresExporter{c: c, l3: l3.New(pool), table: table}
}

// Table returns the payload table name.
func (e *PostgresExporter) Table() string { return e.table }

// EnsureTable creates the payload table when it does not exist.
func (e *PostgresExporter) EnsureTable(ctx context.Context) error {
	return e.l3.EnsureTable(ctx, e.table)
}

// Export serializes records and upserts them in one COPY batch. It returns
// the number of rows written.
func (e *PostgresExporter) Export(ctx context.Context, records ...any) (int64, error) {
	rows, err := e.rows(records)
	if err != nil {
		return 0, err
	}
	n, err := e.l3.Upsert(ctx, e.table, rows)
	if err != nil {
		e.c.metrics.RecordError("export", e.table)
		return 0, err
	}
	e.c.logger.Debug("ormpack: exported records", "table", e.table, "rows", n)
	return n, nil
}

// rows builds the table rows of records. Partial records are refused.
func (e *PostgresExporter) rows(records []any) ([]l3.Row, error) {
	out := make([]l3.Row, 0, len(records))
	for _, r := range records {
		schema, err := e.c.Schema(r)
		if err != nil {
			return nil, err
		}
		if schema.Partial() {
			return nil, fmt.Errorf("%w: %s serializes a subset of its fields", ErrInvalidOptions, schema.Name)
		}
		id, err := schema.ID(r)
		if err != nil {
			return nil, err
		}
		payload, err := e.c.Serialize(r)
		if err != nil {
			return nil, err
		}
		out = append(out, l3.Row{TypeID: e.typeKey(schema.Type), RecordID: idString(id), Payload: payload})
	}
	return out, nil
}

// Load reads the record with primary key id into dst, a pointer to a record.
func (e *PostgresExporter) Load(ctx context.Context, dst any, id any) error {
	t, err := modelType(dst)
	if err != nil {
		return err
	}
	payload, err := e.l3.Get(ctx, e.table, e.typeKey(t), idString(id))
	if err != nil {
		if errors.Is(err, l3.ErrMiss) {
			return fmt.Errorf("%w: %s %s", ErrNotFound, QualifiedName(t), idString(id))
		}
		return err
	}
	return e.c.Unmarshal(payload, dst)
}

// Import streams every record of model's type to fn, ordered by primary key
// text. A nil model streams every row in the table.
func (e *PostgresExporter) Import(ctx context.Context, model any, fn func(record any) error) error {
	typeID := ""
	if model != nil {
		t, err := modelType(model)
		if err != nil {
			return err
		}
		typeID = e.typeKey(t)
	}
	return e.l3.Scan(ctx, e.table, typeID, func(row l3.Row) error {
		v, err := e.c.Deserialize(row.Payload)
		if err != nil {
			return fmt.Errorf("row %s/%s: %w", row.TypeID, row.RecordID, err)
		}
		return fn(v)
	})
}

// Delete removes the row of model's type with primary key id.
func (e *PostgresExporter) Delete(ctx context.Context, model any, id any) error {
	t, err := modelType(model)
	if err != nil {
		return err
	}
	return e.l3.Delete(ctx, e.table, e.typeKey(t), idString(id))
}

// Count returns the number of rows of model's type, or of every type when
// model is nil.
func (e *PostgresExporter) Count(ctx context.Context, model any) (int64, error) {
	typeID := ""
	if model != nil {
		t, err := modelType(model)
		if err != nil {
			return 0, err
		}
		typeID = e.typeKey(t)
	}
	return e.l3.Count(ctx, e.table, typeID)
}

// Ping checks that PostgreSQL is reachable.
func (e *PostgresExporter) Ping(ctx context.Context) error {
	return e.l3.Ping(ctx)
}

// typeKey matches RedisStore: the registry id when registered, else the
// qualified name.
func (e *PostgresExporter) typeKey(t reflect.Type) string {
	return storeTypeKey(e.c, t)
}
