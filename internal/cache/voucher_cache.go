package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/promoworks/voucher-redemption-service/internal/models"
)

// VoucherCache is a best-effort read cache for voucher lookups on the
// validation path. The redeem transaction always reads the store, so a stale
// entry can only make a preview optimistic, never a redemption wrong.
type VoucherCache interface {
	Get(ctx context.Context, id uuid.UUID) *models.Voucher
	Set(ctx context.Context, v *models.Voucher)
	Invalidate(ctx context.Context, id uuid.UUID)
}

type memoryEntry struct {
	voucher   models.Voucher
	expiresAt time.Time
}

// MemoryVoucherCache is a process-local cache with a short TTL.
type MemoryVoucherCache struct {
	mu    sync.RWMutex
	ttl   time.Duration
	store map[uuid.UUID]memoryEntry
}

func NewMemoryVoucherCache(ttl time.Duration) *MemoryVoucherCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &MemoryVoucherCache{
		ttl:   ttl,
		store: make(map[uuid.UUID]memoryEntry),
	}
}

func (c *MemoryVoucherCache) Get(_ context.Context, id uuid.UUID) *models.Voucher {
	c.mu.RLock()
	entry, ok := c.store[id]
	c.mu.RUnlock()
	if !ok || time.Now().After(entry.expiresAt) {
		return nil
	}
	v := entry.voucher
	return &v
}

func (c *MemoryVoucherCache) Set(_ context.Context, v *models.Voucher) {
	if v == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[v.ID] = memoryEntry{voucher: *v, expiresAt: time.Now().Add(c.ttl)}
}

func (c *MemoryVoucherCache) Invalidate(_ context.Context, id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, id)
}
