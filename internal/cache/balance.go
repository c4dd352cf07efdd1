package cache

import (
	"strconv"
	"time"

	"recettes/internal/core"
)

// BalanceCache holds recently reconciled balances per (owner, source). It is
// advisory: entries are dropped on every mutation touching the source and a
// miss always falls back to reconciliation.
type BalanceCache struct {
	lru *LRUCache[core.Money]
}

func NewBalanceCache(maxSize int, ttl time.Duration) *BalanceCache {
	return &BalanceCache{lru: NewLRUCache[core.Money](maxSize, ttl)}
}

func balanceKey(ownerID string, sourceID int64) string {
	return ownerID + "/" + strconv.FormatInt(sourceID, 10)
}

func (b *BalanceCache) Get(ownerID string, sourceID int64) (core.Money, bool) {
	return b.lru.Get(balanceKey(ownerID, sourceID))
}

func (b *BalanceCache) Put(ownerID string, sourceID int64, balance core.Money) {
	b.lru.Set(balanceKey(ownerID, sourceID), balance)
}

// Invalidate drops the cached balances of the given sources.
func (b *BalanceCache) Invalidate(ownerID string, sourceIDs ...int64) {
	for _, id := range sourceIDs {
		b.lru.Delete(balanceKey(ownerID, id))
	}
}

func (b *BalanceCache) CleanExpired() int { return b.lru.CleanExpired() }

func (b *BalanceCache) Size() int { return b.lru.Size() }
