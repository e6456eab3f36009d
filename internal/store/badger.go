package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"

	"github.com/ytget/model-mirror/internal/model"
)

const (
	keyPrefix       = "model:"
	maxTxnAttempts  = 5
	defaultPageSize = 100
)

// Badger is a Store backed by badger
type Badger struct {
	db     *badger.DB
	logger *zap.Logger
	now    func() time.Time
}

// Open opens or creates the database in dir
func Open(dir string, logger *zap.Logger) (*Badger, error) {
	return open(badger.DefaultOptions(dir), logger)
}

// OpenInMemory opens a database that lives only in memory
func OpenInMemory(logger *zap.Logger) (*Badger, error) {
	return open(badger.DefaultOptions("").WithInMemory(true), logger)
}

func open(opts badger.Options, logger *zap.Logger) (*Badger, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("store")

	db, err := badger.Open(opts.WithLogger(newLogger(logger)))
	if err != nil {
		return nil, fmt.Errorf("open record store: %w", err)
	}
	return &Badger{db: db, logger: logger, now: time.Now}, nil
}

// Close closes the database
func (b *Badger) Close() error {
	return b.db.Close()
}

func recordKey(id string) []byte {
	return []byte(keyPrefix + id)
}

func getRecord(txn *badger.Txn, id string) (*model.Record, error) {
	item, err := txn.Get(recordKey(id))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}

	var rec model.Record
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	})
	if err != nil {
		return nil, fmt.Errorf("decode record %s: %w", id, err)
	}
	return &rec, nil
}

func putRecord(txn *badger.Txn, rec *model.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record %s: %w", rec.ID, err)
	}
	return txn.Set(recordKey(rec.ID), data)
}

// update runs fn in a read-write transaction, retrying on write conflicts
func (b *Badger) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxTxnAttempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		err = b.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		b.logger.Debug("Retrying conflicted transaction", zap.Int("attempt", attempt+1))
	}
	return err
}

// Get returns the record for id
func (b *Badger) Get(ctx context.Context, id string) (*model.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rec *model.Record
	err := b.db.View(func(txn *badger.Txn) error {
		var err error
		rec, err = getRecord(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Create inserts rec. It fails with ErrExists if the id is taken.
func (b *Badger) Create(ctx context.Context, rec *model.Record) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidRecord)
	}
	if !rec.Status.IsValid() {
		return fmt.Errorf("%w: status %q", ErrInvalidRecord, rec.Status)
	}

	now := b.now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = now
	}

	return b.update(ctx, func(txn *badger.Txn) error {
		_, err := txn.Get(recordKey(rec.ID))
		if err == nil {
			return fmt.Errorf("%w: %s", ErrExists, rec.ID)
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return putRecord(txn, rec)
	})
}

// Update applies patch to the record for id
func (b *Badger) Update(ctx context.Context, id string, patch model.RecordPatch) (*model.Record, error) {
	return b.transition(ctx, id, nil, patch)
}

// TransitionStatus applies patch if the record's status is one of from
func (b *Badger) TransitionStatus(ctx context.Context, id string, from []model.Status, patch model.RecordPatch) (*model.Record, error) {
	if len(from) == 0 {
		return nil, fmt.Errorf("%w: no source status", ErrStatusConflict)
	}
	return b.transition(ctx, id, from, patch)
}

func (b *Badger) transition(ctx context.Context, id string, from []model.Status, patch model.RecordPatch) (*model.Record, error) {
	if patch.Status != nil && !patch.Status.IsValid() {
		return nil, fmt.Errorf("%w: status %q", ErrInvalidRecord, *patch.Status)
	}

	var out *model.Record
	err := b.update(ctx, func(txn *badger.Txn) error {
		rec, err := getRecord(txn, id)
		if err != nil {
			return err
		}
		if from != nil && !containsStatus(from, rec.Status) {
			return &ConflictError{ID: id, Current: rec.Status}
		}

		patch.Apply(rec)
		rec.UpdatedAt = b.now()
		if err := putRecord(txn, rec); err != nil {
			return err
		}
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetMany returns the records that exist among ids
func (b *Badger) GetMany(ctx context.Context, ids []string) (map[string]*model.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make(map[string]*model.Record, len(ids))
	err := b.db.View(func(txn *badger.Txn) error {
		for _, id := range ids {
			rec, err := getRecord(txn, id)
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			out[id] = rec
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// List returns records in key order. A limit of zero or less uses a default
// page size.
func (b *Badger) List(ctx context.Context, offset, limit int) ([]*model.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = defaultPageSize
	}

	var out []*model.Record
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(keyPrefix)
		skipped := 0
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if skipped < offset {
				skipped++
				continue
			}
			if len(out) >= limit {
				break
			}

			var rec model.Record
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return fmt.Errorf("decode record %s: %w", it.Item().Key(), err)
			}
			out = append(out, &rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func containsStatus(list []model.Status, s model.Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
