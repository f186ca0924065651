// Package history keeps an append-only SQLite log of every stock reading,
// one row per store per check. The snapshot files remain the source the diff
// step reads; this log backs the status API and long-term auditing.
package history

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"stockwatch/pkg/models"
)

// ErrNoReadings is returned when no check has been recorded for a product.
var ErrNoReadings = errors.New("no readings recorded")

// Entry is one recorded reading.
type Entry struct {
	CheckedAt  time.Time       `json:"checked_at"`
	StoreLabel string          `json:"store_label"`
	Quantity   models.Quantity `json:"quantity"`
}

type Log struct {
	db *sql.DB
}

func Open(dbPath string) (*Log, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS readings (
			checked_at DATETIME NOT NULL,
			product TEXT NOT NULL,
			store TEXT NOT NULL,
			quantity INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_readings_product_time
			ON readings (product, checked_at);
	`)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Log{db: db}, nil
}

// Append records one full pass of readings for a product. Rows are only ever
// inserted, never updated or deleted.
func (l *Log) Append(product string, at time.Time, readings models.Snapshot) error {
	tx, err := l.db.Begin()
	if err != nil {
		return fmt.Errorf("begin history append: %w", err)
	}
	for store, qty := range readings {
		if _, err := tx.Exec(
			`INSERT INTO readings (checked_at, product, store, quantity) VALUES (?, ?, ?, ?)`,
			at, product, store, int(qty),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("append reading for %s/%s: %w", product, store, err)
		}
	}
	return tx.Commit()
}

// Latest returns the readings of the most recent recorded check for product
// together with its timestamp.
func (l *Log) Latest(product string) (models.Snapshot, time.Time, error) {
	var at time.Time
	err := l.db.QueryRow(
		`SELECT checked_at FROM readings WHERE product = ? ORDER BY checked_at DESC LIMIT 1`,
		product,
	).Scan(&at)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, ErrNoReadings
	}
	if err != nil {
		return nil, time.Time{}, err
	}

	rows, err := l.db.Query(
		`SELECT store, quantity FROM readings WHERE product = ? AND checked_at = ?`,
		product, at,
	)
	if err != nil {
		return nil, time.Time{}, err
	}
	defer rows.Close()

	snap := make(models.Snapshot)
	for rows.Next() {
		var store string
		var qty int
		if err := rows.Scan(&store, &qty); err != nil {
			return nil, time.Time{}, err
		}
		snap[store] = models.Quantity(qty)
	}
	return snap, at, rows.Err()
}

// Recent returns up to limit readings for product, newest first.
func (l *Log) Recent(product string, limit int) ([]Entry, error) {
	rows, err := l.db.Query(
		`SELECT checked_at, store, quantity FROM readings
		 WHERE product = ? ORDER BY checked_at DESC, store ASC LIMIT ?`,
		product, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var qty int
		if err := rows.Scan(&e.CheckedAt, &e.StoreLabel, &qty); err != nil {
			return nil, err
		}
		e.Quantity = models.Quantity(qty)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (l *Log) Close() error {
	return l.db.Close()
}
