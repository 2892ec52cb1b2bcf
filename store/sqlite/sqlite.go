// Package sqlite stores a ledger in a SQLite database.
//
// Entities are kept as JSON documents in a single table keyed by kind and id.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	finance "github.com/dkicekeeper/AIFinanceManager-sub008"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	seq  INTEGER PRIMARY KEY AUTOINCREMENT,
	kind TEXT NOT NULL,
	id   TEXT NOT NULL,
	body TEXT NOT NULL,
	UNIQUE(kind, id)
);`

// Repository is a finance.Repository backed by SQLite.
type Repository struct {
	db *sql.DB
}

// Open opens (or creates) the database at path.
func Open(path string) (*Repository, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1) // sqlite
	db.SetConnMaxLifetime(0)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema in %q: %w", path, err)
	}
	return &Repository{db: db}, nil
}

// Close closes the database.
func (r *Repository) Close() error { return r.db.Close() }

// withTx runs fn in a transaction.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Save replaces the stored state with s in a single transaction.
func (r *Repository) Save(ctx context.Context, s *finance.Snapshot) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM documents`); err != nil {
			return fmt.Errorf("clear documents: %w", err)
		}
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO documents(kind, id, body) VALUES (?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		put := func(kind finance.RecordKind, id string, v any) error {
			body, err := json.Marshal(v)
			if err != nil {
				return fmt.Errorf("marshal %s %q: %w", kind, id, err)
			}
			if _, err := stmt.ExecContext(ctx, string(kind), id, string(body)); err != nil {
				return fmt.Errorf("insert %s %q: %w", kind, id, err)
			}
			return nil
		}
		for _, a := range s.Accounts {
			if err := put(finance.KindAccount, a.ID, a); err != nil {
				return err
			}
		}
		for _, rs := range s.Series {
			if err := put(finance.KindSeries, rs.ID, rs); err != nil {
				return err
			}
		}
		for _, t := range s.Transactions {
			if err := put(finance.KindTransaction, t.ID, t); err != nil {
				return err
			}
		}
		for _, o := range s.Occurrences {
			if err := put(finance.KindOccurrence, o.ID, o); err != nil {
				return err
			}
		}
		return nil
	})
}

// Load reads the stored state. An empty database is an empty ledger.
func (r *Repository) Load(ctx context.Context) (*finance.Snapshot, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT kind, id, body FROM documents ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	s := new(finance.Snapshot)
	for rows.Next() {
		var kind, id, body string
		if err := rows.Scan(&kind, &id, &body); err != nil {
			return nil, err
		}
		data := []byte(body)
		switch finance.RecordKind(kind) {
		case finance.KindAccount:
			var a finance.Account
			err = json.Unmarshal(data, &a)
			s.Accounts = append(s.Accounts, a)
		case finance.KindTransaction:
			var t finance.Transaction
			err = json.Unmarshal(data, &t)
			s.Transactions = append(s.Transactions, t)
		case finance.KindSeries:
			var rs finance.RecurringSeries
			err = json.Unmarshal(data, &rs)
			s.Series = append(s.Series, rs)
		case finance.KindOccurrence:
			var o finance.Occurrence
			err = json.Unmarshal(data, &o)
			s.Occurrences = append(s.Occurrences, o)
		default:
			err = fmt.Errorf("unknown document kind %q", kind)
		}
		if err != nil {
			return nil, fmt.Errorf("%s %q: %w", kind, id, err)
		}
	}
	return s, rows.Err()
}
