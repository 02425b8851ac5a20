package cache

import (
	"math"
	"sync/atomic"

	"github.com/abhishek-sinu/Vedic-ebook-library-sub000/internal/jobs"
)

// counters are updated without holding the manager lock.
type counters struct {
	hotHits            atomic.Int64
	warmHits           atomic.Int64
	diskHits           atomic.Int64
	misses             atomic.Int64
	extractions        atomic.Int64
	extractionFailures atomic.Int64
	coalesced          atomic.Int64
	diskErrors         atomic.Int64
	hotEvictions       atomic.Int64
	warmEvictions      atomic.Int64
	diskEvictions      atomic.Int64
	expirations        atomic.Int64
}

// TierStats describes the occupancy of one tier.
type TierStats struct {
	Entries     int     `json:"entries"`
	Capacity    int     `json:"capacity"`
	MemoryMB    float64 `json:"memory_mb,omitempty"`
	MaxMemoryMB float64 `json:"max_memory_mb,omitempty"`
}

// Stats is a point-in-time snapshot returned by Manager.Stats.
type Stats struct {
	Hot  TierStats `json:"hot"`
	Warm TierStats `json:"warm"`
	Disk TierStats `json:"disk"`

	HotHits  int64 `json:"hot_hits"`
	WarmHits int64 `json:"warm_hits"`
	DiskHits int64 `json:"disk_hits"`
	Misses   int64 `json:"misses"`
	// HitRate is the percentage of lookups served from hot or disk.
	HitRate float64 `json:"hit_rate"`

	Extractions        int64 `json:"extractions"`
	ExtractionFailures int64 `json:"extraction_failures"`
	CoalescedRequests  int64 `json:"coalesced_requests"`
	DiskErrors         int64 `json:"disk_errors"`

	HotEvictions  int64 `json:"hot_evictions"`
	WarmEvictions int64 `json:"warm_evictions"`
	DiskEvictions int64 `json:"disk_evictions"`
	Expirations   int64 `json:"expirations"`

	Preload jobs.PoolStatus `json:"preload"`
}

func (c *counters) hit(t Tier) {
	switch t {
	case TierHot:
		c.hotHits.Add(1)
	case TierWarm:
		c.warmHits.Add(1)
	case TierDisk:
		c.diskHits.Add(1)
	}
}

func (c *counters) fill(s *Stats) {
	s.HotHits = c.hotHits.Load()
	s.WarmHits = c.warmHits.Load()
	s.DiskHits = c.diskHits.Load()
	s.Misses = c.misses.Load()
	s.Extractions = c.extractions.Load()
	s.ExtractionFailures = c.extractionFailures.Load()
	s.CoalescedRequests = c.coalesced.Load()
	s.DiskErrors = c.diskErrors.Load()
	s.HotEvictions = c.hotEvictions.Load()
	s.WarmEvictions = c.warmEvictions.Load()
	s.DiskEvictions = c.diskEvictions.Load()
	s.Expirations = c.expirations.Load()

	served := s.HotHits + s.DiskHits
	if total := served + s.Misses; total > 0 {
		s.HitRate = math.Round(float64(served)/float64(total)*10000) / 100
	}
}
