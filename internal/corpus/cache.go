package corpus

import (
	"container/list"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Cache is an LRU cache of loaded corpora keyed by Manifest.Key. Entries never
// expire on their own: a changed file on disk stays stale until Invalidate or
// InvalidateAll is called. An invalidation that lands while a load is running
// keeps that load's result out of the cache.
type Cache struct {
	capacity int
	cache    map[string]*list.Element
	lru      *list.List
	mu       sync.Mutex
	group    singleflight.Group

	// generation counts invalidations per key; epoch counts InvalidateAll calls.
	generation map[string]uint64
	epoch      uint64
	loading    map[string]struct{}
}

type loadStamp struct {
	generation uint64
	epoch      uint64
}

type cacheEntry struct {
	key   string
	value *Corpus
}

// NewCache creates a new cache with the given capacity (minimum 1).
func NewCache(capacity int) *Cache {
	if capacity < 1 {
		capacity = 1
	}
	return &Cache{
		capacity:   capacity,
		cache:      make(map[string]*list.Element),
		lru:        list.New(),
		generation: make(map[string]uint64),
		loading:    make(map[string]struct{}),
	}
}

// Get returns the cached corpus for key if present.
func (c *Cache) Get(key string) (*Corpus, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.cache[key]; ok {
		c.lru.MoveToFront(elem)
		return elem.Value.(*cacheEntry).value, true
	}
	return nil, false
}

// Set stores the corpus for key, evicting the oldest entry if at capacity.
func (c *Cache) Set(key string, value *Corpus) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.cache[key]; ok {
		c.lru.MoveToFront(elem)
		elem.Value.(*cacheEntry).value = value
		return
	}

	elem := c.lru.PushFront(&cacheEntry{key: key, value: value})
	c.cache[key] = elem

	if c.lru.Len() > c.capacity {
		oldest := c.lru.Back()
		if oldest != nil {
			c.lru.Remove(oldest)
			delete(c.cache, oldest.Value.(*cacheEntry).key)
		}
	}
}

// GetOrLoad returns the cached corpus for m, loading it at most once when
// several callers miss at the same time. A load that was invalidated while it
// ran is returned to its callers but not cached.
func (c *Cache) GetOrLoad(m Manifest, load func(Manifest) *Corpus) *Corpus {
	key := m.Key()
	if v, ok := c.Get(key); ok {
		return v
	}
	v, _, _ := c.group.Do(key, func() (interface{}, error) {
		if v, ok := c.Get(key); ok {
			return v, nil
		}
		stamp := c.startLoad(key)
		loaded := load(m)
		c.finishLoad(key, loaded, stamp)
		return loaded, nil
	})
	return v.(*Corpus)
}

func (c *Cache) startLoad(key string) loadStamp {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading[key] = struct{}{}
	return loadStamp{generation: c.generation[key], epoch: c.epoch}
}

func (c *Cache) finishLoad(key string, value *Corpus, stamp loadStamp) {
	c.mu.Lock()
	delete(c.loading, key)
	current := stamp == loadStamp{generation: c.generation[key], epoch: c.epoch}
	c.mu.Unlock()
	if current {
		c.Set(key, value)
	}
}

// Invalidate drops the corpus cached under key. A load of key already running
// is detached so the next GetOrLoad starts a fresh one.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation[key]++
	c.group.Forget(key)
	if elem, ok := c.cache[key]; ok {
		c.lru.Remove(elem)
		delete(c.cache, key)
	}
}

// InvalidateAll empties the cache and detaches every running load.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	for key := range c.loading {
		c.group.Forget(key)
	}
	c.cache = make(map[string]*list.Element)
	c.lru.Init()
}

// Len returns the number of cached corpora.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
