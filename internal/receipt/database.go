package receipt

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const (
	receiptBucketName = "receipts"
	indexBucketName   = "receipt_ids"
	digestBucketName  = "receipt_digests"
)

// ErrNotFound is returned when no receipt has the requested ID
var ErrNotFound = errors.New("receipt not found")

// DB defines the interface for database operations
type DB interface {
	// SaveReceipt stores a new receipt and assigns its sequence number
	SaveReceipt(receipt *Receipt) error

	// GetReceipt retrieves a receipt by ID
	GetReceipt(id string) (*Receipt, error)

	// FindByDigest retrieves the receipt stored for a document digest
	FindByDigest(digest string) (*Receipt, error)

	// ListReceipts returns all receipts in the order they were saved
	ListReceipts() ([]*Receipt, error)

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB.
// Receipts are keyed by their big-endian sequence number so a cursor walk
// returns them in commit order; further buckets map IDs and document
// digests to those keys.
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(receiptBucketName)); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(indexBucketName)); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(digestBucketName)); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}

// SaveReceipt stores a receipt under the next sequence number
func (b *BoltDB) SaveReceipt(receipt *Receipt) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(receiptBucketName))
		index := tx.Bucket([]byte(indexBucketName))

		if index.Get([]byte(receipt.ID)) != nil {
			return fmt.Errorf("receipt %s already exists", receipt.ID)
		}

		seq, err := bucket.NextSequence()
		if err != nil {
			return fmt.Errorf("allocating sequence: %w", err)
		}
		receipt.Seq = seq

		data, err := json.Marshal(receipt)
		if err != nil {
			return fmt.Errorf("marshaling receipt: %w", err)
		}
		key := seqKey(seq)
		if err := bucket.Put(key, data); err != nil {
			return err
		}
		if err := index.Put([]byte(receipt.ID), key); err != nil {
			return err
		}
		if receipt.Digest == "" {
			return nil
		}
		return tx.Bucket([]byte(digestBucketName)).Put([]byte(receipt.Digest), key)
	})
}

// GetReceipt retrieves a receipt by ID
func (b *BoltDB) GetReceipt(id string) (*Receipt, error) {
	var receipt *Receipt
	err := b.db.View(func(tx *bbolt.Tx) error {
		key := tx.Bucket([]byte(indexBucketName)).Get([]byte(id))
		if key == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		data := tx.Bucket([]byte(receiptBucketName)).Get(key)
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return json.Unmarshal(data, &receipt)
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// FindByDigest retrieves the receipt stored for a document digest
func (b *BoltDB) FindByDigest(digest string) (*Receipt, error) {
	var receipt *Receipt
	err := b.db.View(func(tx *bbolt.Tx) error {
		key := tx.Bucket([]byte(digestBucketName)).Get([]byte(digest))
		if key == nil {
			return fmt.Errorf("%w: digest %s", ErrNotFound, digest)
		}
		data := tx.Bucket([]byte(receiptBucketName)).Get(key)
		if data == nil {
			return fmt.Errorf("%w: digest %s", ErrNotFound, digest)
		}
		return json.Unmarshal(data, &receipt)
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// ListReceipts returns all receipts in sequence order
func (b *BoltDB) ListReceipts() ([]*Receipt, error) {
	receipts := make([]*Receipt, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(receiptBucketName))
		return bucket.ForEach(func(k, v []byte) error {
			var receipt Receipt
			if err := json.Unmarshal(v, &receipt); err != nil {
				return fmt.Errorf("unmarshaling receipt %d: %w", binary.BigEndian.Uint64(k), err)
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

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}
