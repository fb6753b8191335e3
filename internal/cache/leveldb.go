package cache

import (
	"context"
	"fmt"
	"os"

	"VisionFlow/internal/config"

	"github.com/syndtr/goleveldb/leveldb"
	leveldb_errors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

// LevelDBStore is an embedded cache backend for single-node deployments.
type LevelDBStore struct {
	db *leveldb.DB
}

func NewLevelDBStore(cfg config.LevelDBConfig) (*LevelDBStore, error) {
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}

	opts := &opt.Options{
		BlockCacheCapacity: 32 * 1024 * 1024,
		WriteBuffer:        16 * 1024 * 1024,
		Filter:             filter.NewBloomFilter(8),
	}
	db, err := leveldb.OpenFile(cfg.Dir, opts)
	if leveldb_errors.IsCorrupted(err) {
		db, err = leveldb.RecoverFile(cfg.Dir, opts)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open cache db %s: %w", cfg.Dir, err)
	}
	return &LevelDBStore{db: db}, nil
}

func (s *LevelDBStore) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.db.Get([]byte(key), nil)
	if err == leveldb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (s *LevelDBStore) Put(ctx context.Context, key string, value []byte) error {
	return s.db.Put([]byte(key), value, nil)
}

func (s *LevelDBStore) Has(ctx context.Context, key string) (bool, error) {
	return s.db.Has([]byte(key), nil)
}

func (s *LevelDBStore) Close() error {
	return s.db.Close()
}
