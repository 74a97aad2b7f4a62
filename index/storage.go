package index

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

var (
	ErrArtifactNotFound = errors.New("artifact not found")
	ErrArtifactCorrupt  = errors.New("artifact corrupt")
)

// Artifact is an opaque serialized model together with
// some metadata for reviewing stored models.
type Artifact struct {
	Data      []byte
	CreatedAt time.Time
	Info      string
}

// DB is a wrapper around badger.DB providing a key-addressed
// storage of model artifacts and some auxiliary values.
type DB struct {
	bdb *badger.DB
}

// Close closes the internal Badger database.
// It is possible to call the method on nil instance
// or on an uninitialized DB object, in which case
// it is a NOP.
func (db *DB) Close() error {
	if db != nil && db.bdb != nil {
		return db.bdb.Close()
	}
	return nil
}

// SaveArtifact stores (or replaces) an artifact under the key.
func (db *DB) SaveArtifact(key string, art Artifact) error {
	value, err := encodeArtifact(art)
	if err != nil {
		return fmt.Errorf("failed to save artifact %s: %w", key, err)
	}
	err = db.bdb.Update(func(txn *badger.Txn) error {
		return txn.Set(encodeKey(ArtifactPrefix, key), value)
	})
	if err != nil {
		return fmt.Errorf("failed to save artifact %s: %w", key, err)
	}
	return nil
}

// LoadArtifact returns ErrArtifactNotFound for missing keys and
// ErrArtifactCorrupt for values which cannot be decoded.
func (db *DB) LoadArtifact(key string) (Artifact, error) {
	var ans Artifact
	err := db.bdb.View(func(txn *badger.Txn) error {
		item, err := txn.Get(encodeKey(ArtifactPrefix, key))
		if err == badger.ErrKeyNotFound {
			return ErrArtifactNotFound

		} else if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			art, decodeErr := decodeArtifact(val)
			if decodeErr != nil {
				return decodeErr
			}
			ans = art
			return nil
		})
	})
	if err != nil {
		return Artifact{}, fmt.Errorf("failed to load artifact %s: %w", key, err)
	}
	return ans, nil
}

// PutRawArtifact stores the value as is, bypassing the envelope.
// It is intended for data migration and for testing of damaged values.
func (db *DB) PutRawArtifact(key string, value []byte) error {
	return db.bdb.Update(func(txn *badger.Txn) error {
		return txn.Set(encodeKey(ArtifactPrefix, key), value)
	})
}

func (db *DB) StoreTimestamp(key string, value time.Time) error {
	return db.bdb.Update(func(txn *badger.Txn) error {
		return txn.Set(encodeKey(AuxDataPrefix, key), encodeTime(value))
	})
}

func (db *DB) ReadTimestamp(key string) (time.Time, error) {
	var result time.Time
	err := db.bdb.View(func(txn *badger.Txn) error {
		item, err := txn.Get(encodeKey(AuxDataPrefix, key))
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			t, decodeErr := decodeTime(val)
			if decodeErr != nil {
				return decodeErr
			}
			result = t
			return nil
		})
	})

	return result, err
}

func OpenDB(path string) (*DB, error) {
	opts := badger.DefaultOptions(path).
		WithLogger(nil)
	return open(opts)
}

// OpenInMemoryDB opens a non-persistent database (used mainly in tests).
func OpenInMemoryDB() (*DB, error) {
	opts := badger.DefaultOptions("").
		WithInMemory(true).
		WithLogger(nil)
	return open(opts)
}

func open(opts badger.Options) (*DB, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open model store: %w", err)
	}
	return &DB{bdb: db}, nil
}
