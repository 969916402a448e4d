package credential

import (
	"fmt"
	"time"

	"github.com/boltdb/bolt"
)

var sessionBucket = []byte("Session")

// BoltStore keeps the credential in a bolt database bucket.
type BoltStore struct {
	db *bolt.DB
}

// OpenBoltStore opens (or creates) the bolt file at path and prepares the
// session bucket.
func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt store: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(sessionBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("create session bucket: %w", err)
	}
	return &BoltStore{db: db}, nil
}

func (b *BoltStore) Save(token string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(sessionBucket)
		if bucket == nil {
			return ErrClosed
		}
		return bucket.Put([]byte(SessionKey), []byte(token))
	})
}

func (b *BoltStore) Get() (string, error) {
	var token string
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(sessionBucket)
		if bucket == nil {
			return ErrClosed
		}
		// Values are only valid inside the transaction.
		token = string(bucket.Get([]byte(SessionKey)))
		return nil
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

func (b *BoltStore) Clear() error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(sessionBucket)
		if bucket == nil {
			return ErrClosed
		}
		return bucket.Delete([]byte(SessionKey))
	})
}

// Close releases the bolt file lock.
func (b *BoltStore) Close() error {
	return b.db.Close()
}
