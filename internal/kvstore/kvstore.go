// Package kvstore provides the TTL key-value stores behind rate limiting and
// live-connection bookkeeping.
package kvstore

import (
	"fmt"

	"github.com/huangsam/perfscope/internal/contract"
	"github.com/huangsam/perfscope/schema"
)

// New opens the key-value store of the given backend.
// An empty badger connection string uses the default directory.
func New(backend schema.KVBackend, connStr string) (contract.KVStore, error) {
	switch backend {
	case schema.MemoryKV, "":
		return NewMemory(), nil
	case schema.BadgerKV:
		dir := connStr
		if dir == "" {
			dir = contract.GetBadgerDir()
		}
		return NewBadger(dir)
	case schema.RedisKV:
		return NewRedis(connStr)
	default:
		return nil, fmt.Errorf("unsupported kv backend: %s", backend)
	}
}
