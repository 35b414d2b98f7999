package cache

import (
	"context"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// MemoryStore is the in-process Store used when no redis is configured.
// Reads never extend an entry's lifetime, so a page lives exactly its TTL.
type MemoryStore struct {
	items *ttlcache.Cache[string, []byte]
}

// NewMemoryStore starts the store's expiry loop; Close stops it.
func NewMemoryStore() *MemoryStore {
	items := ttlcache.New[string, []byte](
		ttlcache.WithDisableTouchOnHit[string, []byte](),
	)
	go items.Start()
	return &MemoryStore{items: items}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	item := s.items.Get(key)
	if item == nil {
		return nil, false, nil
	}
	return item.Value(), true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	s.items.Set(key, append([]byte(nil), value...), ttl)
	return nil
}

func (s *MemoryStore) DeletePrefix(_ context.Context, prefix string) error {
	for _, key := range s.items.Keys() {
		if strings.HasPrefix(key, prefix) {
			s.items.Delete(key)
		}
	}
	return nil
}

func (s *MemoryStore) Close() error {
	s.items.Stop()
	return nil
}

var _ Store = (*MemoryStore)(nil)
