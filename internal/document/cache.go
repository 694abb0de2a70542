package document

import (
	"container/list"
	"sync"
	"time"
)

const (
	textCacheMaxEntries = 64
	textCacheTTL        = 6 * time.Hour
)

// textCache keeps parsed document text by URL so retried analyses do not
// download and parse the same document again.
type textCache struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	order      *list.List
	maxEntries int
}

type textCacheEntry struct {
	url       string
	text      string
	expiresAt time.Time
}

func newTextCache(maxEntries int) *textCache {
	if maxEntries <= 0 {
		return nil
	}

	return &textCache{
		entries:    make(map[string]*list.Element, maxEntries),
		order:      list.New(),
		maxEntries: maxEntries,
	}
}

func (c *textCache) get(url string, now time.Time) (string, bool) {
	if c == nil || url == "" {
		return "", false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[url]
	if !ok {
		return "", false
	}

	entry := elem.Value.(*textCacheEntry)
	if now.After(entry.expiresAt) {
		c.removeElement(elem)

		return "", false
	}

	c.order.MoveToFront(elem)

	return entry.text, true
}

func (c *textCache) set(url, text string, expiresAt, now time.Time) {
	if c == nil || url == "" || text == "" || !expiresAt.After(now) {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[url]; ok {
		entry := elem.Value.(*textCacheEntry)
		entry.text = text
		entry.expiresAt = expiresAt
		c.order.MoveToFront(elem)

		return
	}

	c.entries[url] = c.order.PushFront(&textCacheEntry{
		url:       url,
		text:      text,
		expiresAt: expiresAt,
	})

	c.evictExpiredLocked(now)

	for len(c.entries) > c.maxEntries {
		c.removeElement(c.order.Back())
	}
}

func (c *textCache) evictExpiredLocked(now time.Time) {
	for elem := c.order.Back(); elem != nil; {
		prev := elem.Prev()
		if now.After(elem.Value.(*textCacheEntry).expiresAt) {
			c.removeElement(elem)
		}
		elem = prev
	}
}

func (c *textCache) removeElement(elem *list.Element) {
	delete(c.entries, elem.Value.(*textCacheEntry).url)
	c.order.Remove(elem)
}
