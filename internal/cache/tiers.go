package cache

import (
	"math"
	"sort"
	"time"

	"github.com/abhishek-sinu/Vedic-ebook-library-sub000/internal/types"
)

const bytesPerMB = 1024 * 1024

// Tier names where content was served from.
type Tier string

const (
	TierHot        Tier = "hot"
	TierWarm       Tier = "warm"
	TierDisk       Tier = "disk"
	TierExtraction Tier = "extraction"
)

type hotEntry struct {
	content    string
	html       string
	cachedAt   time.Time
	accessedAt time.Time
	fileHash   string
	metadata   types.Metadata
}

func (e *hotEntry) size() int64 {
	return int64(len(e.content) + len(e.html))
}

type warmEntry struct {
	cachedAt   time.Time
	accessedAt time.Time
	fileHash   string
	metadata   types.Metadata
}

type diskEntry struct {
	location string
	cachedAt time.Time
	fileHash string
	metadata types.Metadata
}

// hotTier holds full content. bytes tracks the sum of entry sizes.
type hotTier struct {
	entries map[string]*hotEntry
	bytes   int64
}

func newHotTier() *hotTier {
	return &hotTier{entries: make(map[string]*hotEntry)}
}

func (t *hotTier) put(id string, e *hotEntry) {
	if old, ok := t.entries[id]; ok {
		t.bytes -= old.size()
	}
	t.entries[id] = e
	t.bytes += e.size()
}

func (t *hotTier) remove(id string) bool {
	e, ok := t.entries[id]
	if !ok {
		return false
	}
	t.bytes -= e.size()
	delete(t.entries, id)
	return true
}

func (t *hotTier) memoryMB() float64 {
	return float64(t.bytes) / bytesPerMB
}

// lru returns up to n ids ordered from least to most recently accessed.
func (t *hotTier) lru(n int) []string {
	ids := make([]string, 0, len(t.entries))
	for id := range t.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return olderThan(t.entries[ids[i]].accessedAt, t.entries[ids[j]].accessedAt, ids[i], ids[j])
	})
	return ids[:min(n, len(ids))]
}

// warmTier holds metadata only.
type warmTier struct {
	entries map[string]*warmEntry
}

func newWarmTier() *warmTier {
	return &warmTier{entries: make(map[string]*warmEntry)}
}

// lru returns up to n ids, least recently accessed first, skipping ids for
// which skip returns true.
func (t *warmTier) lru(n int, skip func(string) bool) []string {
	ids := make([]string, 0, len(t.entries))
	for id := range t.entries {
		if skip != nil && skip(id) {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return olderThan(t.entries[ids[i]].accessedAt, t.entries[ids[j]].accessedAt, ids[i], ids[j])
	})
	return ids[:min(n, len(ids))]
}

// diskIndex mirrors the blobs in the disk store.
type diskIndex struct {
	entries map[string]*diskEntry
}

func newDiskIndex() *diskIndex {
	return &diskIndex{entries: make(map[string]*diskEntry)}
}

// oldest returns up to n ids ordered by cachedAt, oldest first.
func (d *diskIndex) oldest(n int) []string {
	ids := make([]string, 0, len(d.entries))
	for id := range d.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return olderThan(d.entries[ids[i]].cachedAt, d.entries[ids[j]].cachedAt, ids[i], ids[j])
	})
	return ids[:min(n, len(ids))]
}

// evictCount is the number of disk entries removed per eviction round.
func evictCount(capacity int, fraction float64) int {
	return max(1, int(math.Ceil(float64(capacity)*fraction)))
}

// olderThan orders by time, then id, so eviction order is deterministic.
func olderThan(a, b time.Time, idA, idB string) bool {
	if a.Equal(b) {
		return idA < idB
	}
	return a.Before(b)
}

func expired(at time.Time, ttl time.Duration, now time.Time) bool {
	return now.Sub(at) >= ttl
}
