package kvstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/huangsam/perfscope/internal/contract"
)

// Badger is an embedded KVStore backed by badger's native key TTLs. The database
// directory is locked by one process, so counters only need serializing in-process.
type Badger struct {
	db     *badger.DB
	incrMu sync.Mutex
}

var _ contract.KVStore = &Badger{} // Compile-time check

// NewBadger opens (or creates) a badger database in dir.
func NewBadger(dir string) (*Badger, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("failed to open badger at %q: %w", dir, err)
	}
	return &Badger{db: db}, nil
}

// NewBadgerInMemory opens a badger database without a directory.
func NewBadgerInMemory() (*Badger, error) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory badger: %w", err)
	}
	return &Badger{db: db}, nil
}

// Get implements contract.KVStore.
func (b *Badger) Get(_ context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

// Set implements contract.KVStore.
func (b *Badger) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(newEntry(key, value, ttl))
	})
}

// Incr implements contract.KVStore. An existing key keeps its expiry.
func (b *Badger) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	n, err := b.add(ctx, key, 1, ttl)
	if err != nil {
		return 0, fmt.Errorf("incr %s: %w", key, err)
	}
	return n, nil
}

// Decr implements contract.KVStore.
func (b *Badger) Decr(ctx context.Context, key string) (int64, error) {
	n, err := b.add(ctx, key, -1, 0)
	if err != nil {
		return 0, fmt.Errorf("decr %s: %w", key, err)
	}
	return n, nil
}

func (b *Badger) add(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	b.incrMu.Lock()
	defer b.incrMu.Unlock()

	var n int64
	err := b.db.Update(func(txn *badger.Txn) error {
		n = delta
		remaining := ttl
		item, err := txn.Get([]byte(key))
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
		case err != nil:
			return err
		default:
			raw, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			current, err := strconv.ParseInt(string(raw), 10, 64)
			if err != nil {
				return fmt.Errorf("value of %s is not a counter: %w", key, err)
			}
			n = current + delta
			remaining = 0
			if exp := item.ExpiresAt(); exp > 0 {
				remaining = time.Until(time.Unix(int64(exp), 0))
				if remaining <= 0 {
					n, remaining = delta, ttl
				}
			}
		}
		return txn.SetEntry(newEntry(key, []byte(strconv.FormatInt(n, 10)), remaining))
	})
	return n, err
}

// Delete implements contract.KVStore.
func (b *Badger) Delete(_ context.Context, key string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// Close implements contract.KVStore.
func (b *Badger) Close() error {
	return b.db.Close()
}

func newEntry(key string, value []byte, ttl time.Duration) *badger.Entry {
	e := badger.NewEntry([]byte(key), value)
	if ttl > 0 {
		e = e.WithTTL(ttl)
	}
	return e
}
