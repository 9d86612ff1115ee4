package entry

import (
	"sort"
	"sync"
)

// Cache is the in-session copy of the owner's entries, newest first, plus the
// set of entry ids currently undergoing insight generation.
//
// Entries live in an id-keyed map; order holds the ids. The lock set is keyed
// by the same ids, so per-entry exclusion never serializes different entries.
type Cache struct {
	mu         sync.RWMutex
	order      []string
	byID       map[string]Entry
	generating map[string]struct{}
}

// NewCache creates an empty cache
func NewCache() *Cache {
	return &Cache{
		byID:       make(map[string]Entry),
		generating: make(map[string]struct{}),
	}
}

// Reset replaces the cached entries with a fresh load from the record store.
// Entries are ordered newest first. Generation locks are kept.
func (c *Cache) Reset(entries []Entry) {
	sorted := make([]Entry, len(entries))
	for i, e := range entries {
		sorted[i] = e.Clone()
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})

	c.mu.Lock()
	defer c.mu.Unlock()

	c.order = make([]string, 0, len(sorted))
	c.byID = make(map[string]Entry, len(sorted))
	for _, e := range sorted {
		if _, dup := c.byID[e.ID]; dup {
			continue
		}
		c.order = append(c.order, e.ID)
		c.byID[e.ID] = e
	}
}

// InsertFront adds a newly created entry at the head of the list.
// An entry already present is moved to the front and replaced.
func (c *Cache) InsertFront(e Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.byID[e.ID]; exists {
		c.removeFromOrder(e.ID)
	}
	c.order = append([]string{e.ID}, c.order...)
	c.byID[e.ID] = e.Clone()
}

// Replace applies u to the cached entry in one step. It returns false when the
// id is unknown.
func (c *Cache) Replace(id string, u Update) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.byID[id]
	if !ok {
		return false
	}
	c.byID[id] = u.Apply(e)
	return true
}

// Get returns a copy of the cached entry
func (c *Cache) Get(id string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.byID[id]
	if !ok {
		return Entry{}, false
	}
	return e.Clone(), true
}

// Contains reports whether id is cached
func (c *Cache) Contains(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.byID[id]
	return ok
}

// List returns copies of all entries, newest first
func (c *Cache) List() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Entry, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id].Clone())
	}
	return out
}

// Len returns the number of cached entries
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}

// TryLock marks id as generating. It returns false if a generation for id is
// already in flight.
func (c *Cache) TryLock(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, busy := c.generating[id]; busy {
		return false
	}
	c.generating[id] = struct{}{}
	return true
}

// Unlock removes id from the generation lock set
func (c *Cache) Unlock(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.generating, id)
}

// Locked reports whether a generation for id is in flight
func (c *Cache) Locked(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, busy := c.generating[id]
	return busy
}

// Generating returns the ids currently locked, in no particular order
func (c *Cache) Generating() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(c.generating))
	for id := range c.generating {
		ids = append(ids, id)
	}
	return ids
}

func (c *Cache) removeFromOrder(id string) {
	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
