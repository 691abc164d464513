// Package store writes converted records to Postgres.
//
// Records are flattened along their property paths into the columns named by
// the definition (see schema.Definition.Targets) and bulk loaded with COPY.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/sheetconv/internal/core"
	"github.com/JonMunkholm/sheetconv/internal/schema"
)

var (
	ErrNoTable    = errors.New("definition has no target table")
	ErrNoDatabase = errors.New("database not configured")
)

// CopyFromer is implemented by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type CopyFromer interface {
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// Sink bulk loads records into the table of a definition.
type Sink struct {
	db     CopyFromer
	logger *slog.Logger
}

// NewSink creates a sink. A nil db makes every Write fail with ErrNoDatabase.
func NewSink(db CopyFromer, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{db: db, logger: logger}
}

// Write copies records into def.Table and returns the number of rows written.
func (s *Sink) Write(ctx context.Context, def schema.Definition, records []core.Record) (int64, error) {
	if s.db == nil {
		return 0, ErrNoDatabase
	}
	if def.Table == "" {
		return 0, fmt.Errorf("%w: %s", ErrNoTable, def.Key)
	}
	if len(records) == 0 {
		return 0, nil
	}

	targets := def.Targets()
	columns := make([]string, len(targets))
	for i, t := range targets {
		columns[i] = t.Column
	}

	start := time.Now()
	rows := pgx.CopyFromSlice(len(records), func(i int) ([]any, error) {
		return Row(records[i], targets), nil
	})

	n, err := s.db.CopyFrom(ctx, TableIdentifier(def.Table), columns, rows)
	if err != nil {
		return 0, fmt.Errorf("copy into %s: %w", def.Table, err)
	}

	s.logger.Info("records imported",
		slog.String("schema", def.Key),
		slog.String("table", def.Table),
		slog.Int64("rows", n),
		slog.Duration("duration", time.Since(start)),
	)
	return n, nil
}

// TableIdentifier splits an optionally schema-qualified table name.
func TableIdentifier(table string) pgx.Identifier {
	return pgx.Identifier(strings.Split(table, "."))
}

// Row flattens a record into COPY values in target order.
func Row(rec core.Record, targets []schema.Target) []any {
	values := make([]any, len(targets))
	for i, t := range targets {
		values[i] = PgValue(lookup(rec, t.Path))
	}
	return values
}

func lookup(rec core.Record, path []string) any {
	var v any = rec
	for _, key := range path {
		m, ok := v.(core.Record)
		if !ok {
			return nil
		}
		v = m[key]
	}
	return v
}

// PgValue converts a record value to its pgtype form. Lists become text arrays.
func PgValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		return pgtype.Text{String: x, Valid: true}
	case float64:
		return pgtype.Float8{Float64: x, Valid: true}
	case int64:
		return pgtype.Int8{Int64: x, Valid: true}
	case bool:
		return pgtype.Bool{Bool: x, Valid: true}
	case time.Time:
		return pgtype.Timestamptz{Time: x, Valid: true}
	case uuid.UUID:
		return pgtype.UUID{Bytes: x, Valid: true}
	case []any:
		out := make([]string, len(x))
		for i, e := range x {
			out[i] = fmt.Sprint(e)
		}
		return out
	case core.Record:
		return nil
	}
	return pgtype.Text{String: fmt.Sprint(v), Valid: true}
}
