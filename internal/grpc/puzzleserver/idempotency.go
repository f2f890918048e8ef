package puzzleserver

import (
	"sort"
	"sync"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	idempotencyTTL      = 24 * time.Hour
	idempotencyMaxCache = 1000
)

type idempotencyKey struct {
	EnvID          string
	IdempotencyKey string
}

type idempotencyEntry struct {
	response  *structpb.Struct
	createdAt time.Time
}

// IdempotencyManager caches Step responses by environment and client key
type IdempotencyManager struct {
	cache map[idempotencyKey]*idempotencyEntry
	mu    sync.RWMutex
	now   func() time.Time
}

// NewIdempotencyManager creates a new idempotency manager
func NewIdempotencyManager() *IdempotencyManager {
	return &IdempotencyManager{
		cache: make(map[idempotencyKey]*idempotencyEntry),
		now:   time.Now,
	}
}

// Check returns a copy of the cached response, or nil
func (im *IdempotencyManager) Check(envID, key string) *structpb.Struct {
	if key == "" {
		return nil
	}

	im.mu.RLock()
	defer im.mu.RUnlock()

	entry, exists := im.cache[idempotencyKey{EnvID: envID, IdempotencyKey: key}]
	if !exists || im.now().Sub(entry.createdAt) > idempotencyTTL {
		return nil
	}
	return proto.Clone(entry.response).(*structpb.Struct)
}

// Store caches a response for the environment and key
func (im *IdempotencyManager) Store(envID, key string, resp *structpb.Struct) {
	if key == "" {
		return
	}

	im.mu.Lock()
	defer im.mu.Unlock()

	im.cache[idempotencyKey{EnvID: envID, IdempotencyKey: key}] = &idempotencyEntry{
		response:  proto.Clone(resp).(*structpb.Struct),
		createdAt: im.now(),
	}

	if len(im.cache) > idempotencyMaxCache {
		im.cleanupOldEntriesLocked()
	}
	if len(im.cache) > idempotencyMaxCache {
		im.evictOldestLocked(len(im.cache) - idempotencyMaxCache)
	}
}

// Forget drops every entry for a closed environment
func (im *IdempotencyManager) Forget(envID string) {
	im.mu.Lock()
	defer im.mu.Unlock()
	for k := range im.cache {
		if k.EnvID == envID {
			delete(im.cache, k)
		}
	}
}

// Size returns the number of cached entries
func (im *IdempotencyManager) Size() int {
	im.mu.RLock()
	defer im.mu.RUnlock()
	return len(im.cache)
}

// cleanupOldEntriesLocked must be called with mu held
func (im *IdempotencyManager) cleanupOldEntriesLocked() {
	cutoff := im.now().Add(-idempotencyTTL)
	for key, entry := range im.cache {
		if entry.createdAt.Before(cutoff) {
			delete(im.cache, key)
		}
	}
}

// evictOldestLocked drops the n entries stored first. mu must be held.
func (im *IdempotencyManager) evictOldestLocked(n int) {
	keys := make([]idempotencyKey, 0, len(im.cache))
	for k := range im.cache {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return im.cache[keys[i]].createdAt.Before(im.cache[keys[j]].createdAt)
	})
	for _, k := range keys[:n] {
		delete(im.cache, k)
	}
}
