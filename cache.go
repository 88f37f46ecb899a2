package ociadapt

import (
	"container/list"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/DamienR91/ociadapt/oci"
)

// StmtCache keeps prepared statements keyed by their raw (pre-rewrite)
// text, so repeated executions of the same SQL skip the rewrite and the
// native prepare. Entries are evicted least-recently-used once the cache
// holds more than its configured capacity.
//
// Get on a missing key runs rewrite+prepare once even under concurrent
// callers; the cache itself is safe for concurrent use, the returned
// statements are not (one logical caller per statement at a time).
type StmtCache struct {
	conn oci.Conn
	opts []Option
	cap  int

	mu      sync.Mutex
	entries map[string]*list.Element
	lru     *list.List
	group   singleflight.Group
}

type cacheEntry struct {
	text string
	stmt *Statement
}

// DefaultStmtCacheSize bounds a cache built with NewStmtCache when no
// explicit capacity is given.
const DefaultStmtCacheSize = 64

// NewStmtCache returns a cache preparing on conn with the given statement
// options. capacity <= 0 selects DefaultStmtCacheSize.
func NewStmtCache(conn oci.Conn, capacity int, opts ...Option) *StmtCache {
	if capacity <= 0 {
		capacity = DefaultStmtCacheSize
	}
	return &StmtCache{
		conn:    conn,
		opts:    opts,
		cap:     capacity,
		entries: make(map[string]*list.Element),
		lru:     list.New(),
	}
}

// Get returns the cached statement for query, preparing it on first use.
func (c *StmtCache) Get(query string) (*Statement, error) {
	c.mu.Lock()
	if el, ok := c.entries[query]; ok {
		c.lru.MoveToFront(el)
		st := el.Value.(*cacheEntry).stmt
		c.mu.Unlock()
		return st, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do(query, func() (any, error) {
		c.mu.Lock()
		if el, ok := c.entries[query]; ok {
			c.lru.MoveToFront(el)
			st := el.Value.(*cacheEntry).stmt
			c.mu.Unlock()
			return st, nil
		}
		c.mu.Unlock()
		st, err := Prepare(c.conn, query, c.opts...)
		if err != nil {
			return nil, err
		}
		c.add(query, st)
		return st, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Statement), nil
}

func (c *StmtCache) add(query string, st *Statement) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[query] = c.lru.PushFront(&cacheEntry{text: query, stmt: st})
	for c.lru.Len() > c.cap {
		oldest := c.lru.Back()
		entry := oldest.Value.(*cacheEntry)
		c.lru.Remove(oldest)
		delete(c.entries, entry.text)
		entry.stmt.Close()
	}
}

// Len returns the number of cached statements.
func (c *StmtCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Clear closes and drops every cached statement.
func (c *StmtCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var err error
	for el := c.lru.Front(); el != nil; el = el.Next() {
		if cerr := el.Value.(*cacheEntry).stmt.Close(); err == nil {
			err = cerr
		}
	}
	c.lru.Init()
	c.entries = make(map[string]*list.Element)
	return err
}
