package cache

import (
	"fmt"
	"time"
)

// Limits bounds every tier. They can be replaced at runtime with SetLimits.
type Limits struct {
	MaxHotEntries  int
	MaxWarmEntries int
	MaxDiskEntries int

	HotTTL  time.Duration
	WarmTTL time.Duration
	DiskTTL time.Duration

	MaxHotMemoryMB float64

	// Entries removed per eviction round.
	HotEvictBatch     int
	WarmEvictBatch    int
	DiskEvictFraction float64

	DefaultWordsPerPage int
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{
		MaxHotEntries:       50,
		MaxWarmEntries:      200,
		MaxDiskEntries:      1000,
		HotTTL:              time.Hour,
		WarmTTL:             6 * time.Hour,
		DiskTTL:             7 * 24 * time.Hour,
		MaxHotMemoryMB:      256,
		HotEvictBatch:       3,
		WarmEvictBatch:      10,
		DiskEvictFraction:   0.1,
		DefaultWordsPerPage: 500,
	}
}

// withDefaults fills zero fields from DefaultLimits.
func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.MaxHotEntries == 0 {
		l.MaxHotEntries = d.MaxHotEntries
	}
	if l.MaxWarmEntries == 0 {
		l.MaxWarmEntries = d.MaxWarmEntries
	}
	if l.MaxDiskEntries == 0 {
		l.MaxDiskEntries = d.MaxDiskEntries
	}
	if l.HotTTL == 0 {
		l.HotTTL = d.HotTTL
	}
	if l.WarmTTL == 0 {
		l.WarmTTL = d.WarmTTL
	}
	if l.DiskTTL == 0 {
		l.DiskTTL = d.DiskTTL
	}
	if l.MaxHotMemoryMB == 0 {
		l.MaxHotMemoryMB = d.MaxHotMemoryMB
	}
	if l.HotEvictBatch == 0 {
		l.HotEvictBatch = d.HotEvictBatch
	}
	if l.WarmEvictBatch == 0 {
		l.WarmEvictBatch = d.WarmEvictBatch
	}
	if l.DiskEvictFraction == 0 {
		l.DiskEvictFraction = d.DiskEvictFraction
	}
	if l.DefaultWordsPerPage == 0 {
		l.DefaultWordsPerPage = d.DefaultWordsPerPage
	}
	return l
}

// Validate reports the first invalid limit.
func (l Limits) Validate() error {
	switch {
	case l.MaxHotEntries < 1:
		return fmt.Errorf("max hot entries must be positive, got %d", l.MaxHotEntries)
	case l.MaxWarmEntries < l.MaxHotEntries:
		return fmt.Errorf("max warm entries (%d) must be at least max hot entries (%d)", l.MaxWarmEntries, l.MaxHotEntries)
	case l.MaxDiskEntries < 1:
		return fmt.Errorf("max disk entries must be positive, got %d", l.MaxDiskEntries)
	case l.HotTTL <= 0 || l.WarmTTL <= 0 || l.DiskTTL <= 0:
		return fmt.Errorf("ttls must be positive")
	case l.MaxHotMemoryMB <= 0:
		return fmt.Errorf("max hot memory must be positive, got %v", l.MaxHotMemoryMB)
	case l.HotEvictBatch < 1 || l.WarmEvictBatch < 1:
		return fmt.Errorf("eviction batches must be positive")
	case l.DiskEvictFraction <= 0 || l.DiskEvictFraction > 1:
		return fmt.Errorf("disk eviction fraction must be in (0, 1], got %v", l.DiskEvictFraction)
	case l.DefaultWordsPerPage < 1:
		return fmt.Errorf("default words per page must be positive, got %d", l.DefaultWordsPerPage)
	}
	return nil
}
