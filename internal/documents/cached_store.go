package documents

import (
	"context"
	"errors"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// MaxCacheSize bounds the number of entries in each CachedStore cache.
const MaxCacheSize = 100000

// CachedStore is a read-through Store decorator. Only positive lookups are
// cached; documents are immutable so entries never need invalidation.
type CachedStore struct {
	next   Store
	byHash *lru.Cache[string, Document]
	byID   *lru.Cache[string, Document]
	mu     sync.Mutex
}

var _ Store = (*CachedStore)(nil)

// NewCachedStore wraps next with two LRU caches of the given size each.
// A size of zero returns next unchanged.
func NewCachedStore(next Store, size int) (Store, error) {
	if next == nil {
		return nil, errMissingStore
	}
	if size == 0 {
		return next, nil
	}
	if size < 0 {
		return nil, errors.New("documents: cache size must not be negative")
	}
	if size > MaxCacheSize {
		return nil, errors.New("documents: cache size too large")
	}
	byHash, err := lru.New[string, Document](size)
	if err != nil {
		return nil, err
	}
	byID, err := lru.New[string, Document](size)
	if err != nil {
		return nil, err
	}
	return &CachedStore{next: next, byHash: byHash, byID: byID}, nil
}

// Save writes through and caches the document on success.
func (c *CachedStore) Save(ctx context.Context, document Document) error {
	if err := c.next.Save(ctx, document); err != nil {
		return err
	}
	c.remember(document)
	return nil
}

// FindByHash serves cached documents before asking the wrapped store.
func (c *CachedStore) FindByHash(ctx context.Context, contentHash string) (Document, error) {
	c.mu.Lock()
	document, ok := c.byHash.Get(contentHash)
	c.mu.Unlock()
	if ok {
		return document, nil
	}
	document, err := c.next.FindByHash(ctx, contentHash)
	if err != nil {
		return Document{}, err
	}
	c.remember(document)
	return document, nil
}

// FindByID serves cached documents before asking the wrapped store.
func (c *CachedStore) FindByID(ctx context.Context, id string) (Document, error) {
	c.mu.Lock()
	document, ok := c.byID.Get(id)
	c.mu.Unlock()
	if ok {
		return document, nil
	}
	document, err := c.next.FindByID(ctx, id)
	if err != nil {
		return Document{}, err
	}
	c.remember(document)
	return document, nil
}

// Count always asks the wrapped store.
func (c *CachedStore) Count(ctx context.Context) (int64, error) {
	return c.next.Count(ctx)
}

func (c *CachedStore) remember(document Document) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byHash.Add(document.ContentHash, document)
	c.byID.Add(document.ID, document)
}
