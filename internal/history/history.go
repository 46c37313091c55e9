// Hasher: Neural Inference Engine Powered by SHA-256 ASICs
// Copyright (C) 2026  Guillermo Perry
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package history records scenario run outcomes in an embedded bbolt store
// so the CLI's monitor subcommand and status API can report recent results
// without keeping a server process running.
package history

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var runsBucket = []byte("Runs")

// Run records one scenario execution.
type Run struct {
	Scenario string    `json:"scenario"`
	Firmware string    `json:"firmware,omitempty"`
	Passed   bool      `json:"passed"`
	Error    string    `json:"error,omitempty"`
	StartedAt time.Time `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// Store wraps a bbolt database holding scenario run history.
type Store struct {
	db *bbolt.DB
}

// Open opens (creating if necessary) the history database at path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(runsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("history: create bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// runKey orders runs lexicographically by time by using a sortable,
// fixed-width UTC RFC3339 nanosecond timestamp as the key.
func runKey(r Run) []byte {
	return []byte(r.StartedAt.UTC().Format("2006-01-02T15:04:05.000000000Z07:00"))
}

// Record appends a run to the store.
func (s *Store) Record(r Run) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(runsBucket)
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("history: marshal run: %w", err)
		}
		return b.Put(runKey(r), data)
	})
}

// Recent returns up to limit most-recent runs, newest first.
func (s *Store) Recent(limit int) ([]Run, error) {
	var runs []Run
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(runsBucket)
		c := b.Cursor()
		for k, v := c.Last(); k != nil && len(runs) < limit; k, v = c.Prev() {
			var r Run
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("history: unmarshal run: %w", err)
			}
			runs = append(runs, r)
		}
		return nil
	})
	return runs, err
}
