// Package lrustore is the in-process response cache.
package lrustore

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/mohammed-shakir/afc-spectrum-engine/internal/core/observability"
)

// Store is a size-bounded LRU whose entries all share one TTL, fixed at
// construction. The ttl passed to Set is ignored.
type Store struct {
	lru *expirable.LRU[string, []byte]
}

func New(size int, ttl time.Duration) *Store {
	if size <= 0 {
		size = 1024
	}
	return &Store{lru: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	v, ok := s.lru.Get(key)
	observability.ObserveCacheOp("get", nil, time.Since(start).Seconds())
	return v, ok, nil
}

func (s *Store) Set(ctx context.Context, key string, val []byte, _ time.Duration) error {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return err
	}
	s.lru.Add(key, append([]byte(nil), val...))
	observability.ObserveCacheOp("set", nil, time.Since(start).Seconds())
	return nil
}

func (s *Store) Del(ctx context.Context, keys ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, k := range keys {
		s.lru.Remove(k)
	}
	return nil
}

func (s *Store) Len() int { return s.lru.Len() }
