// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

// Package sqlite implements a persistent data vault with a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/fxamacker/cbor/v2"

	"github.com/fido-device-onboard/go-dice"
)

// DB implements dice.DataVault.
type DB struct {
	// Log all SQL queries to this optional writer.
	DebugLog io.Writer

	db *sql.DB
}

// New creates a DB. The expected tables must be created before the database
// is used as a data vault.
func New(db *sql.DB) *DB { return &DB{db: db} }

// Init ensures all tables are created. It does not recognize if tables have
// been created with invalid schemas.
//
// In most cases, Open should be used, which implicitly calls Init.
func Init(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS journal
			( seq INTEGER PRIMARY KEY AUTOINCREMENT
			, kind INTEGER NOT NULL
			, data BLOB NOT NULL
			)`,
		`CREATE TABLE IF NOT EXISTS identities
			( name TEXT PRIMARY KEY
			, subject_sn TEXT NOT NULL
			, record BLOB NOT NULL
			)`,
	}
	for _, sql := range stmts {
		if _, err := db.Exec(sql); err != nil {
			_ = db.Close()
			if strings.Contains(err.Error(), "file is not a database") {
				return fmt.Errorf("file is not a database: likely due to incorrect or missing database password")
			}
			return fmt.Errorf("error creating tables: %w", err)
		}
	}
	return nil
}

// Close closes the database connection.
func (db *DB) Close() error { return db.db.Close() }

// DB returns the underlying database/sql DB.
func (db *DB) DB() *sql.DB { return db.db }

type debugLogKey struct{}

func (db *DB) debugCtx(parent context.Context) context.Context {
	return context.WithValue(parent, debugLogKey{}, db.DebugLog)
}

func debug(ctx context.Context, format string, a ...any) {
	w, ok := ctx.Value(debugLogKey{}).(io.Writer)
	if !ok || w == nil {
		return
	}
	msg := strings.TrimSpace(fmt.Sprintf(format, a...))
	_, _ = fmt.Fprintln(w, msg)
}

var _ dice.DataVault = (*DB)(nil)

// Journal implements dice.DataVault.
func (db *DB) Journal(ctx context.Context) ([]dice.Measurement, error) {
	ctx = db.debugCtx(ctx)

	query := `SELECT kind, data FROM journal ORDER BY seq ASC`
	debug(ctx, "sqlite: %s", query)
	rows, err := db.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error querying journal: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var journal []dice.Measurement
	for rows.Next() {
		var (
			kind int
			data []byte
		)
		if err := rows.Scan(&kind, &data); err != nil {
			return nil, fmt.Errorf("error scanning journal: %w", err)
		}
		journal = append(journal, dice.Measurement{Kind: dice.MeasurementKind(kind), Data: data})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading journal: %w", err)
	}
	return journal, nil
}

// AppendJournal implements dice.DataVault. Records are added in a single
// transaction.
func (db *DB) AppendJournal(ctx context.Context, records ...dice.Measurement) error {
	ctx = db.debugCtx(ctx)

	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, m := range records {
		if err := insert(ctx, tx, "journal", map[string]any{
			"kind": int(m.Kind),
			"data": m.Data,
		}, nil); err != nil {
			return fmt.Errorf("error appending %s to journal: %w", m.Kind, err)
		}
	}
	return tx.Commit()
}

// ClearJournal implements dice.DataVault.
func (db *DB) ClearJournal(ctx context.Context) error {
	ctx = db.debugCtx(ctx)

	query := `DELETE FROM journal`
	debug(ctx, "sqlite: %s", query)
	_, err := db.db.ExecContext(ctx, query)
	return err
}

// Identity implements dice.DataVault.
func (db *DB) Identity(ctx context.Context, name string) (*dice.ChainIdentity, error) {
	var record []byte
	if err := query(db.debugCtx(ctx), db.db, "identities", []string{"record"}, map[string]any{
		"name": name,
	}, &record); err != nil {
		return nil, err
	}
	var id dice.ChainIdentity
	if err := cbor.Unmarshal(record, &id); err != nil {
		return nil, fmt.Errorf("error decoding identity %q: %w", name, err)
	}
	return &id, nil
}

// SetIdentity implements dice.DataVault.
func (db *DB) SetIdentity(ctx context.Context, name string, id *dice.ChainIdentity) error {
	record, err := cbor.Marshal(id)
	if err != nil {
		return fmt.Errorf("error encoding identity %q: %w", name, err)
	}
	return insert(db.debugCtx(ctx), db.db, "identities", map[string]any{
		"name":       name,
		"subject_sn": string(id.SN[:]),
		"record":     record,
	}, []string{"name"})
}

// Allows using *sql.DB or *sql.Tx
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Allows using *sql.DB or *sql.Tx
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// If upsertOnConflict is not empty, rows conflicting on those columns are
// updated in place.
func insert(ctx context.Context, db execer, table string, kvs map[string]any, upsertOnConflict []string) error {
	columns := slices.Sorted(maps.Keys(kvs))
	args := make([]any, len(columns))
	for i, name := range columns {
		args[i] = kvs[name]
	}
	markers := slices.Repeat([]string{"?"}, len(columns))

	var upsert string
	if len(upsertOnConflict) > 0 {
		var updates []string
		for _, key := range columns {
			if !slices.Contains(upsertOnConflict, key) {
				updates = append(updates, fmt.Sprintf("`%s` = excluded.`%s`", key, key))
			}
		}
		upsert = fmt.Sprintf(" ON CONFLICT(`%s`) DO UPDATE SET ", strings.Join(upsertOnConflict, "`, `"))
		upsert += strings.Join(updates, ", ")
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)%s",
		table,
		"`"+strings.Join(columns, "`, `")+"`",
		strings.Join(markers, ", "),
		upsert,
	)
	debug(ctx, "sqlite: %s\n%+v", query, args)
	_, err := db.ExecContext(ctx, query, args...)
	return err
}

func query(ctx context.Context, db querier, table string, columns []string, where map[string]any, into ...any) error {
	if len(columns) != len(into) {
		panic("programming error - query must have the same number of columns and values")
	}

	whereKeys := slices.Sorted(maps.Keys(where))
	clauses := make([]string, len(whereKeys))
	whereVals := make([]any, len(whereKeys))
	for i, key := range whereKeys {
		clauses[i] = "`" + key + "` = ?"
		whereVals[i] = where[key]
	}

	query := fmt.Sprintf(
		`SELECT %s FROM %s WHERE %s`,
		"`"+strings.Join(columns, "`, `")+"`",
		table,
		strings.Join(clauses, " AND "),
	)
	debug(ctx, "sqlite: %s\n%+v", query, where)

	row := db.QueryRowContext(ctx, query, whereVals...)
	if err := row.Scan(into...); errors.Is(err, sql.ErrNoRows) {
		return dice.ErrNotFound
	} else if err != nil {
		return fmt.Errorf("error querying DB: %w", err)
	}
	return nil
}
