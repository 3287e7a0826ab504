package cache

import (
	"context"
	"sync"
	"time"
)

// CacheItem представляет кэшированное значение
type CacheItem[V any] struct {
	Data      V
	ExpiresAt time.Time
}

// CacheStore управляет хранением и извлечением кэшированных значений с ограниченным сроком жизни
type CacheStore[K comparable, V any] struct {
	cache map[K]*CacheItem[V]
	mutex sync.RWMutex
	now   func() time.Time
}

// NewCacheStore создает новый экземпляр CacheStore
func NewCacheStore[K comparable, V any]() *CacheStore[K, V] {
	return &CacheStore[K, V]{
		cache: make(map[K]*CacheItem[V]),
		now:   time.Now,
	}
}

// Get извлекает кэшированный элемент по ключу
func (cs *CacheStore[K, V]) Get(key K) (V, bool) {
	cs.mutex.RLock()
	defer cs.mutex.RUnlock()

	item, exists := cs.cache[key]
	if !exists || cs.now().After(item.ExpiresAt) {
		// Элемент не существует или срок его действия истек
		var zero V
		return zero, false
	}

	return item.Data, true
}

// Put сохраняет элемент в кэш с указанным сроком действия
func (cs *CacheStore[K, V]) Put(key K, data V, ttl time.Duration) {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	cs.cache[key] = &CacheItem[V]{
		Data:      data,
		ExpiresAt: cs.now().Add(ttl),
	}
}

// Len возвращает число элементов, включая еще не удаленные просроченные
func (cs *CacheStore[K, V]) Len() int {
	cs.mutex.RLock()
	defer cs.mutex.RUnlock()
	return len(cs.cache)
}

// CleanupExpired удаляет просроченные элементы из кэша
func (cs *CacheStore[K, V]) CleanupExpired() {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	now := cs.now()
	for key, item := range cs.cache {
		if now.After(item.ExpiresAt) {
			delete(cs.cache, key)
		}
	}
}

// StartCleanupTicker запускает таймер для периодической очистки просроченных элементов
func (cs *CacheStore[K, V]) StartCleanupTicker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cs.CleanupExpired()
			}
		}
	}()
}
