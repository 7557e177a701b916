// Package storage persists position fill history, the input of the
// weighted-entry exit calculation.
package storage

import (
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"sync/atomic"

	"github.com/quantbr/perpedge/pkg/core"
	"github.com/tidwall/buntdb"
)

// BuntStorage implements core.PositionStorage using BuntDB
type BuntStorage struct {
	lastID int64
	db     *buntdb.DB
}

// FromMemory creates an in-memory storage
func FromMemory() (core.PositionStorage, error) {
	return NewBuntStorage(":memory:")
}

// FromFile creates a file-based storage
func FromFile(file string) (core.PositionStorage, error) {
	return NewBuntStorage(file)
}

// NewBuntStorage creates a new BuntDB storage instance
func NewBuntStorage(sourceFile string) (core.PositionStorage, error) {
	db, err := buntdb.Open(sourceFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open buntdb: %w", err)
	}

	err = db.CreateIndex("update_index", "*", buntdb.IndexJSON("updated_at"))
	if err != nil {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	return &BuntStorage{
		db: db,
	}, nil
}

// getID generates a unique ID for position records
func (b *BuntStorage) getID() int64 {
	return atomic.AddInt64(&b.lastID, 1)
}

// CreatePosition stores a new position record
func (b *BuntStorage) CreatePosition(record *core.PositionRecord) error {
	return b.db.Update(func(tx *buntdb.Tx) error {
		record.ID = b.getID()
		content, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("failed to marshal position record: %w", err)
		}

		_, _, err = tx.Set(strconv.FormatInt(record.ID, 10), string(content), nil)
		if err != nil {
			return fmt.Errorf("failed to store position record: %w", err)
		}

		return nil
	})
}

// UpdatePosition updates an existing position record
func (b *BuntStorage) UpdatePosition(record *core.PositionRecord) error {
	return b.db.Update(func(tx *buntdb.Tx) error {
		id := strconv.FormatInt(record.ID, 10)

		_, err := tx.Get(id)
		if err != nil {
			return fmt.Errorf("position record not found: %w", err)
		}

		content, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("failed to marshal position record: %w", err)
		}

		_, _, err = tx.Set(id, string(content), nil)
		if err != nil {
			return fmt.Errorf("failed to update position record: %w", err)
		}

		return nil
	})
}

// Positions retrieves records matching all provided filters, ordered by
// update time
func (b *BuntStorage) Positions(filters ...core.PositionFilter) ([]*core.PositionRecord, error) {
	records := make([]*core.PositionRecord, 0)

	err := b.db.View(func(tx *buntdb.Tx) error {
		err := tx.Ascend("update_index", func(_, value string) bool {
			var record core.PositionRecord
			err := json.Unmarshal([]byte(value), &record)
			if err != nil {
				log.Printf("Failed to unmarshal position record: %v", err)
				return true // Continue iteration
			}

			for _, filter := range filters {
				if !filter(record) {
					return true
				}
			}

			records = append(records, &record)
			return true
		})

		if err != nil {
			return fmt.Errorf("failed to iterate over position records: %w", err)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return records, nil
}

// Close closes the database connection
func (b *BuntStorage) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}
