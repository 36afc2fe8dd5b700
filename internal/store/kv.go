package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned by get when the key does not exist.
var ErrNotFound = errors.New("store: key not found")

// get reads and JSON-decodes the value at key into dst.
func (s *Store) get(key string, dst any) error {
	return getTx(s.conn, key, dst)
}

func getTx(q querier, key string, dst any) error {
	var raw []byte
	err := q.QueryRow("SELECT value FROM kv_store WHERE key = ?", key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get %q: %w", key, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode %q: %w", key, err)
	}
	return nil
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryRow(query string, args ...any) *sql.Row
	Exec(query string, args ...any) (sql.Result, error)
}

func putTx(q querier, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	_, err = q.Exec(`
		INSERT INTO kv_store (key, value, updated_at) VALUES (?, ?, datetime('now'))
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, raw)
	if err != nil {
		return fmt.Errorf("put %q: %w", key, err)
	}
	return nil
}

func deleteTx(q querier, key string) error {
	if _, err := q.Exec("DELETE FROM kv_store WHERE key = ?", key); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

func existsTx(q querier, key string) (bool, error) {
	var one int
	err := q.QueryRow("SELECT 1 FROM kv_store WHERE key = ?", key).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("exists %q: %w", key, err)
	}
	return true, nil
}

// withTx runs fn inside a sqlite transaction, committing on success and
// rolling back on any error. This is the store's sole atomicity primitive:
// every exported multi-key mutation is a single call to withTx, satisfying
// the "all multi-key mutations atomic" requirement of spec §4.A.
func (s *Store) withTx(fn func(tx *sql.Tx) error) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
