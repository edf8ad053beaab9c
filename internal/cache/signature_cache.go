// Package cache implements the gateway's Signature Cache (C5): the most
// recent upstream "thought signature" for a (session, model) pair, so the
// pipeline can reattach it on the next request and let the upstream resume
// its hidden chain-of-thought continuation.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// CachingMode selects when a signature observation is worth caching.
type CachingMode int

const (
	// CacheAlways caches every observed signature.
	CacheAlways CachingMode = iota
	// CacheToolCallsOrImage caches only when the response carried a tool
	// call or the model is an image model.
	CacheToolCallsOrImage
	// CacheNever disables caching entirely.
	CacheNever
)

// SignatureEntry is the cached payload for one (session, model) pair.
type SignatureEntry struct {
	Signature         string
	PairedThoughtText string
	ObservedAt        time.Time
}

type key struct {
	sessionID string
	modelID   string
}

const (
	defaultMaxEntries = 4096
	defaultTTL        = 3 * time.Hour
)

// SignatureCache stores entries keyed by (session-id, model-id). Writes are
// last-writer-wins within a session/model; eviction is LRU-by-size plus a
// TTL checked on read.
type SignatureCache struct {
	mu         sync.Mutex
	mode       CachingMode
	maxEntries int
	ttl        time.Duration

	entries map[key]*list.Element
	order   *list.List // front = most recently used
}

type node struct {
	key   key
	entry SignatureEntry
}

// Options configures a SignatureCache.
type Options struct {
	Mode       CachingMode
	MaxEntries int           // defaults to 4096
	TTL        time.Duration // defaults to 3h
}

// New creates a SignatureCache.
func New(opts Options) *SignatureCache {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = defaultMaxEntries
	}
	if opts.TTL <= 0 {
		opts.TTL = defaultTTL
	}
	return &SignatureCache{
		mode:       opts.Mode,
		maxEntries: opts.MaxEntries,
		ttl:        opts.TTL,
		entries:    make(map[key]*list.Element),
		order:      list.New(),
	}
}

// ShouldCache reports whether an observation under the cache's policy is
// worth storing, given whether this response carried tool calls and whether
// the model is an image model.
func (c *SignatureCache) ShouldCache(hasToolCalls, isImageModel bool) bool {
	switch c.mode {
	case CacheNever:
		return false
	case CacheToolCallsOrImage:
		return hasToolCalls || isImageModel
	default:
		return true
	}
}

// Store records signature/pairedThoughtText for (sessionID, modelID),
// overwriting any prior entry (last-writer-wins). pairedThoughtText must be
// non-empty, mirroring the data model's "at least one non-empty character"
// requirement.
func (c *SignatureCache) Store(sessionID, modelID, signature, pairedThoughtText string) {
	if signature == "" || pairedThoughtText == "" {
		return
	}
	k := key{sessionID: sessionID, modelID: modelID}
	entry := SignatureEntry{
		Signature:         signature,
		PairedThoughtText: pairedThoughtText,
		ObservedAt:        time.Now(),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[k]; ok {
		el.Value.(*node).entry = entry
		c.order.MoveToFront(el)
		return
	}

	el := c.order.PushFront(&node{key: k, entry: entry})
	c.entries[k] = el
	if c.order.Len() > c.maxEntries {
		c.evictOldest()
	}
}

// Get returns the cached entry for (sessionID, modelID), if present and not
// expired.
func (c *SignatureCache) Get(sessionID, modelID string) (SignatureEntry, bool) {
	k := key{sessionID: sessionID, modelID: modelID}

	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[k]
	if !ok {
		return SignatureEntry{}, false
	}
	n := el.Value.(*node)
	if time.Since(n.entry.ObservedAt) > c.ttl {
		c.removeElement(el)
		return SignatureEntry{}, false
	}
	c.order.MoveToFront(el)
	return n.entry, true
}

// Clear removes the entry for (sessionID, modelID). If modelID is empty,
// every entry for sessionID is removed.
func (c *SignatureCache) Clear(sessionID, modelID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if modelID != "" {
		if el, ok := c.entries[key{sessionID: sessionID, modelID: modelID}]; ok {
			c.removeElement(el)
		}
		return
	}
	for k, el := range c.entries {
		if k.sessionID == sessionID {
			c.removeElement(el)
		}
	}
}

func (c *SignatureCache) evictOldest() {
	el := c.order.Back()
	if el != nil {
		c.removeElement(el)
	}
}

func (c *SignatureCache) removeElement(el *list.Element) {
	n := el.Value.(*node)
	delete(c.entries, n.key)
	c.order.Remove(el)
}
