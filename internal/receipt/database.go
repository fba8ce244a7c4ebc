package receipt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/zombor/receipt-pipeline/internal/pipeline"
)

const (
	receiptsBucket    = "receipts"
	correctionsBucket = "corrections"
)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = errors.New("not found")

// DB defines the interface for database operations
type DB interface {
	pipeline.DiffRecorder

	// SaveReceipt saves a receipt to the database
	SaveReceipt(receipt *StoredReceipt) error

	// GetReceipt retrieves a receipt by ID
	GetReceipt(id string) (*StoredReceipt, error)

	// ListReceipts returns all receipts
	ListReceipts() ([]*StoredReceipt, error)

	// DeleteReceipt removes a receipt from the database
	DeleteReceipt(id string) error

	// ListCorrections returns up to limit correction diffs, newest first.
	// A limit of zero or less returns all of them.
	ListCorrections(limit int) ([]*pipeline.CorrectionDiff, error)

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB opens the database at path and creates its buckets
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{receiptsBucket, correctionsBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// Bolt returns the underlying handle so other stores can share the file
func (b *BoltDB) Bolt() *bbolt.DB {
	return b.db
}

// SaveReceipt saves a receipt to the database
func (b *BoltDB) SaveReceipt(receipt *StoredReceipt) error {
	if receipt == nil || receipt.FinalReceipt == nil || receipt.ID == "" {
		return errors.New("receipt has no id")
	}
	data, err := json.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("marshaling receipt: %w", err)
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(receiptsBucket)).Put([]byte(receipt.ID), data)
	})
}

// GetReceipt retrieves a receipt by ID
func (b *BoltDB) GetReceipt(id string) (*StoredReceipt, error) {
	var receipt StoredReceipt
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(receiptsBucket)).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("receipt %s: %w", id, ErrNotFound)
		}
		return json.Unmarshal(data, &receipt)
	})
	if err != nil {
		return nil, err
	}
	return &receipt, nil
}

// ListReceipts returns all receipts in key order
func (b *BoltDB) ListReceipts() ([]*StoredReceipt, error) {
	receipts := make([]*StoredReceipt, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(receiptsBucket)).ForEach(func(k, v []byte) error {
			var receipt StoredReceipt
			if err := json.Unmarshal(v, &receipt); err != nil {
				return fmt.Errorf("unmarshaling receipt %s: %w", k, err)
			}
			receipts = append(receipts, &receipt)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return receipts, nil
}

// DeleteReceipt removes a receipt from the database
func (b *BoltDB) DeleteReceipt(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(receiptsBucket))
		if bucket.Get([]byte(id)) == nil {
			return fmt.Errorf("receipt %s: %w", id, ErrNotFound)
		}
		return bucket.Delete([]byte(id))
	})
}

// correctionKey orders diffs by creation time so a cursor walks them chronologically
func correctionKey(diff *pipeline.CorrectionDiff) []byte {
	return []byte(fmt.Sprintf("%020d_%s", diff.CreatedAt.UnixNano(), diff.ID))
}

// RecordDiff appends a correction diff
func (b *BoltDB) RecordDiff(ctx context.Context, diff *pipeline.CorrectionDiff) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(diff)
	if err != nil {
		return fmt.Errorf("marshaling correction: %w", err)
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(correctionsBucket)).Put(correctionKey(diff), data)
	})
}

// ListCorrections returns up to limit correction diffs, newest first
func (b *BoltDB) ListCorrections(limit int) ([]*pipeline.CorrectionDiff, error) {
	diffs := make([]*pipeline.CorrectionDiff, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(correctionsBucket)).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(diffs) >= limit {
				break
			}
			var diff pipeline.CorrectionDiff
			if err := json.Unmarshal(v, &diff); err != nil {
				return fmt.Errorf("unmarshaling correction %s: %w", k, err)
			}
			diffs = append(diffs, &diff)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return diffs, nil
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}
