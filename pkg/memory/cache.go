// Package memory implements the buffer pool that mediates every page access
// of the tree, together with the page cache and the table registry it uses.
package memory

import (
	"clustore/pkg/dberror"
	"clustore/pkg/storage/page"
)

// PageCache stores resident pages. It knows nothing about transactions,
// locks or durability; callers serialize access.
type PageCache interface {
	// Get returns the page and marks it most recently used.
	Get(pid page.PageID) (page.Page, bool)

	// Peek returns the page without touching its recency.
	Peek(pid page.PageID) (page.Page, bool)

	// Put stores or replaces a page. Adding a new page to a full cache fails.
	Put(pid page.PageID, p page.Page) error

	Remove(pid page.PageID)
	Size() int
	Clear()

	// GetAll returns every cached page id, least recently used first.
	GetAll() []page.PageID

	// Victim returns the least recently used page accepted by evictable.
	Victim(evictable func(pid page.PageID, p page.Page) bool) (page.PageID, page.Page, bool)
}

// node represents a single node in the doubly linked list
type node struct {
	pid  page.PageID
	page page.Page
	prev *node
	next *node
}

// LRUPageCache is a map plus a doubly linked list with dummy head and tail
// nodes. The head end is most recently used.
type LRUPageCache struct {
	maxSize int
	cache   map[page.PageID]*node
	head    *node
	tail    *node
}

// NewLRUPageCache creates a new LRU page cache with the specified maximum size.
func NewLRUPageCache(maxSize int) *LRUPageCache {
	head := &node{}
	tail := &node{}
	head.next = tail
	tail.prev = head

	return &LRUPageCache{
		maxSize: maxSize,
		cache:   make(map[page.PageID]*node),
		head:    head,
		tail:    tail,
	}
}

func (c *LRUPageCache) addToFront(n *node) {
	n.prev = c.head
	n.next = c.head.next
	c.head.next.prev = n
	c.head.next = n
}

func (c *LRUPageCache) removeNode(n *node) {
	n.prev.next = n.next
	n.next.prev = n.prev
}

func (c *LRUPageCache) moveToFront(n *node) {
	c.removeNode(n)
	c.addToFront(n)
}

func (c *LRUPageCache) Get(pid page.PageID) (page.Page, bool) {
	if n, exists := c.cache[pid]; exists {
		c.moveToFront(n)
		return n.page, true
	}
	return nil, false
}

func (c *LRUPageCache) Peek(pid page.PageID) (page.Page, bool) {
	if n, exists := c.cache[pid]; exists {
		return n.page, true
	}
	return nil, false
}

func (c *LRUPageCache) Put(pid page.PageID, p page.Page) error {
	if n, exists := c.cache[pid]; exists {
		n.page = p
		c.moveToFront(n)
		return nil
	}

	if len(c.cache) >= c.maxSize {
		return dberror.Newf(dberror.ErrCategoryTransient, dberror.CodeBufferPoolFull,
			"page cache full (%d pages)", c.maxSize)
	}

	n := &node{pid: pid, page: p}
	c.cache[pid] = n
	c.addToFront(n)
	return nil
}

func (c *LRUPageCache) Remove(pid page.PageID) {
	if n, exists := c.cache[pid]; exists {
		delete(c.cache, pid)
		c.removeNode(n)
	}
}

func (c *LRUPageCache) Size() int {
	return len(c.cache)
}

func (c *LRUPageCache) Clear() {
	c.cache = make(map[page.PageID]*node)
	c.head.next = c.tail
	c.tail.prev = c.head
}

func (c *LRUPageCache) GetAll() []page.PageID {
	pids := make([]page.PageID, 0, len(c.cache))
	for current := c.tail.prev; current != c.head; current = current.prev {
		pids = append(pids, current.pid)
	}
	return pids
}

func (c *LRUPageCache) Victim(evictable func(pid page.PageID, p page.Page) bool) (page.PageID, page.Page, bool) {
	for current := c.tail.prev; current != c.head; current = current.prev {
		if evictable(current.pid, current.page) {
			return current.pid, current.page, true
		}
	}
	return page.PageID{}, nil, false
}
