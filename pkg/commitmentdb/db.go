// Package commitmentdb records the PoDLE commitments a maker has already
// accepted, so that each UTXO proof opens at most one round.
package commitmentdb

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/decred/slog"
	bolt "go.etcd.io/bbolt"
)

var bucketUsed = []byte("used_commitments")

var ErrInvalidCommitment = errors.New("commitmentdb: commitment must be 32 bytes")

const commitmentLen = 32

// Store is a bbolt backed set of used commitments. It is safe for concurrent
// use.
type Store struct {
	db  *bolt.DB
	log slog.Logger
	now func() time.Time
}

// Open opens, or creates, the store at path. A nil log disables logging.
func Open(path string, log slog.Logger) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("commitmentdb.Open: path required")
	}
	if log == nil {
		log = slog.Disabled
	}
	bdb, err := bolt.Open(path, 0o600, &bolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("commitmentdb.Open: open bbolt: %w", err)
	}
	if err := bdb.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketUsed)
		return err
	}); err != nil {
		_ = bdb.Close()
		return nil, fmt.Errorf("commitmentdb.Open: create bucket %s: %w", string(bucketUsed), err)
	}
	return &Store{db: bdb, log: log, now: time.Now}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Add records commitment as used. It reports false, without error, if the
// commitment was already recorded; check and insert are one transaction.
func (s *Store) Add(commitment []byte) (bool, error) {
	if len(commitment) != commitmentLen {
		return false, ErrInvalidCommitment
	}
	added := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketUsed)
		if b.Get(commitment) != nil {
			return nil
		}
		var at [8]byte
		binary.BigEndian.PutUint64(at[:], uint64(s.now().Unix()))
		added = true
		return b.Put(commitment, at[:])
	})
	if err != nil {
		return false, fmt.Errorf("commitmentdb.Add: %w", err)
	}
	if added {
		s.log.Debugf("Recorded commitment %s", hex.EncodeToString(commitment))
	} else {
		s.log.Warnf("Commitment %s was already used", hex.EncodeToString(commitment))
	}
	return added, nil
}

// Contains reports whether commitment has been recorded.
func (s *Store) Contains(commitment []byte) (bool, error) {
	if len(commitment) != commitmentLen {
		return false, ErrInvalidCommitment
	}
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(bucketUsed).Get(commitment) != nil
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("commitmentdb.Contains: %w", err)
	}
	return found, nil
}

// UsedAt returns when commitment was recorded.
func (s *Store) UsedAt(commitment []byte) (time.Time, bool, error) {
	var (
		at    time.Time
		found bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketUsed).Get(commitment)
		if len(v) != 8 {
			return nil
		}
		found = true
		at = time.Unix(int64(binary.BigEndian.Uint64(v)), 0)
		return nil
	})
	if err != nil {
		return time.Time{}, false, fmt.Errorf("commitmentdb.UsedAt: %w", err)
	}
	return at, found, nil
}

// Count returns the number of recorded commitments.
func (s *Store) Count() (int, error) {
	n := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketUsed).Stats().KeyN
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("commitmentdb.Count: %w", err)
	}
	return n, nil
}
