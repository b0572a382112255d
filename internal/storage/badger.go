package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"
)

// conflictAttempts bounds how often a read-modify-write is replayed after
// another transaction committed the same key first.
const conflictAttempts = 50

// BadgerStore implements Store using BadgerDB.
type BadgerStore struct {
	db  *badger.DB
	log logrus.FieldLogger
}

// NewBadgerStore opens the database at dbPath.
func NewBadgerStore(dbPath string, logger logrus.FieldLogger) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = &badgerLogger{logger.WithField("component", "badgerdb")}

	db, err := badger.Open(opts)
	if err != nil {
		logger.WithError(err).Error("Failed to open BadgerDB")
		return nil, fmt.Errorf("failed to open badger db at %s: %w", dbPath, err)
	}
	logger.Info("BadgerDB opened successfully at path: ", dbPath)

	return &BadgerStore{
		db:  db,
		log: logger.WithField("component", "store"),
	}, nil
}

// Close closes the BadgerDB database.
func (s *BadgerStore) Close() error {
	s.log.Info("Closing BadgerDB...")
	if err := s.db.Close(); err != nil {
		s.log.WithError(err).Error("Error closing BadgerDB")
		return err
	}
	s.log.Info("BadgerDB closed.")
	return nil
}

// Get returns the value stored under key.
func (s *BadgerStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		var found bool
		var err error
		value, found, err = readItem(txn, []byte(key))
		if err != nil {
			return err
		}
		if !found {
			return ErrNotFound
		}
		return nil
	})
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		s.log.WithError(err).WithField("key", key).Error("Failed to read from BadgerDB")
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return value, nil
}

// Put replaces the value stored under key.
func (s *BadgerStore) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry([]byte(key), value))
	})
	if err != nil {
		s.log.WithError(err).WithField("key", key).Error("Failed to write to BadgerDB")
		return fmt.Errorf("failed to put %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Badger deletes are idempotent.
func (s *BadgerStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		s.log.WithError(err).WithField("key", key).Error("Failed to delete from BadgerDB")
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Update runs fn inside a read-write transaction. Badger aborts the commit
// with ErrConflict when another transaction wrote the key after it was read;
// the whole read-modify-write is then replayed against the fresh value.
func (s *BadgerStore) Update(ctx context.Context, key string, fn UpdateFunc) error {
	log := s.log.WithField("key", key)
	attempt := 0

	err := retry.Do(
		func() error {
			attempt++
			return s.db.Update(func(txn *badger.Txn) error {
				current, found, err := readItem(txn, []byte(key))
				if err != nil {
					return err
				}
				next, err := fn(current, found)
				if err != nil {
					return err
				}
				return txn.SetEntry(badger.NewEntry([]byte(key), next))
			})
		},
		retry.Context(ctx),
		retry.Attempts(conflictAttempts),
		retry.DelayType(retry.RandomDelay),
		retry.MaxJitter(10*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, badger.ErrConflict)
		}),
		retry.OnRetry(func(n uint, err error) {
			log.WithError(err).WithField("attempt", n+1).Debug("Transaction conflict, retrying")
		}),
	)
	if errors.Is(err, ErrNoChange) {
		return nil
	}
	if err != nil {
		if !errors.Is(err, ErrCorruptState) {
			log.WithError(err).WithField("attempts", attempt).Error("Failed to update BadgerDB")
		}
		return fmt.Errorf("failed to update %s: %w", key, err)
	}
	return nil
}

// RunGC reclaims value-log space every interval until ctx is cancelled.
func (s *BadgerStore) RunGC(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			err := s.db.RunValueLogGC(0.7)
			switch {
			case err == nil:
				s.log.Info("BadgerDB GC completed successfully")
			case errors.Is(err, badger.ErrNoRewrite):
				s.log.Debug("BadgerDB GC: No rewrite needed")
			default:
				s.log.WithError(err).Error("BadgerDB GC failed")
			}
		case <-ctx.Done():
			s.log.Info("Stopping BadgerDB GC routine due to context cancellation")
			return
		}
	}
}

func readItem(txn *badger.Txn, key []byte) ([]byte, bool, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	value, err := item.ValueCopy(nil)
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// --- BadgerDB Internal Logger ---

// badgerLogger adapts logrus.FieldLogger to Badger's logger interface.
type badgerLogger struct {
	logger logrus.FieldLogger
}

func (l *badgerLogger) Errorf(f string, v ...interface{}) {
	l.logger.Errorf(f, v...)
}
func (l *badgerLogger) Warningf(f string, v ...interface{}) {
	l.logger.Warningf(f, v...)
}
func (l *badgerLogger) Infof(f string, v ...interface{}) {
	l.logger.Infof(f, v...)
}
func (l *badgerLogger) Debugf(f string, v ...interface{}) {
	l.logger.Debugf(f, v...)
}
