package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	sharedCache "github.com/davicafu/deliverylab/shared/platform/cache"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// noExpiry se usa cuando no hay TTL por defecto ni por clave.
const noExpiry = 10 * 365 * 24 * time.Hour

type lruEntry struct {
	value     []byte // bytes, igual que en Redis
	expiresAt time.Time
}

// LRUOrderCache es la caché en proceso que se usa cuando no hay Redis.
// La LRU expira por defaultTTL; un TTL por clave más corto se comprueba al leer.
type LRUOrderCache struct {
	// mu serializa las escrituras para que SetIfAbsent sea atómico.
	mu         sync.Mutex
	lru        *expirable.LRU[string, lruEntry]
	defaultTTL time.Duration
}

func NewLRUOrderCache(size int, defaultTTL time.Duration) *LRUOrderCache {
	return &LRUOrderCache{
		lru:        expirable.NewLRU[string, lruEntry](size, nil, defaultTTL),
		defaultTTL: defaultTTL,
	}
}

func (c *LRUOrderCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	item, ok := c.lru.Get(key)
	if !ok {
		return false, nil
	}
	if time.Now().After(item.expiresAt) {
		c.lru.Remove(key)
		return false, nil
	}
	if err := json.Unmarshal(item.value, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (c *LRUOrderCache) Set(ctx context.Context, key string, val interface{}, ttlSecs int) error {
	entry, err := c.newEntry(val, ttlSecs)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(key, entry)
	return nil
}

func (c *LRUOrderCache) SetIfAbsent(ctx context.Context, key string, val interface{}, ttlSecs int) (bool, error) {
	entry, err := c.newEntry(val, ttlSecs)
	if err != nil {
		return false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.lru.Peek(key); ok && time.Now().Before(cur.expiresAt) {
		return false, nil
	}
	c.lru.Add(key, entry)
	return true, nil
}

func (c *LRUOrderCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(key)
	return nil
}

func (c *LRUOrderCache) newEntry(val interface{}, ttlSecs int) (lruEntry, error) {
	data, err := json.Marshal(val)
	if err != nil {
		return lruEntry{}, err
	}
	ttl := c.defaultTTL
	if perKey := time.Duration(ttlSecs) * time.Second; perKey > 0 && (ttl <= 0 || perKey < ttl) {
		ttl = perKey
	}
	if ttl <= 0 {
		ttl = noExpiry
	}
	return lruEntry{value: data, expiresAt: time.Now().Add(ttl)}, nil
}

func (c *LRUOrderCache) Len() int {
	return c.lru.Len()
}

var _ sharedCache.Cache = (*LRUOrderCache)(nil)
