package cache

import (
	"context"
	"time"
)

func (m *Manager) sweepLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(m.ctx); n > 0 {
				m.logger.Debug("swept expired entries", "count", n)
			}
		}
	}
}

// Sweep removes every expired entry and returns how many were removed.
// Reads expire entries lazily; Sweep only matters when reads are rare.
// Warm mirrors of hot entries are kept.
func (m *Manager) Sweep(ctx context.Context) int {
	now := m.now()
	removed := 0

	m.mu.Lock()
	for id, e := range m.hot.entries {
		if expired(e.cachedAt, m.limits.HotTTL, now) {
			m.expireHot(id)
			removed++
		}
	}
	for id, w := range m.warm.entries {
		if m.isHot(id) {
			continue
		}
		if expired(w.cachedAt, m.limits.WarmTTL, now) {
			delete(m.warm.entries, id)
			m.stats.expirations.Add(1)
			removed++
		}
	}
	var stale []diskVictim
	for id, d := range m.disk.entries {
		if expired(d.cachedAt, m.limits.DiskTTL, now) {
			stale = append(stale, diskVictim{id: id, cachedAt: d.cachedAt})
		}
	}
	m.mu.Unlock()

	for _, v := range stale {
		if m.dropDisk(ctx, v.id, v.cachedAt) {
			m.stats.expirations.Add(1)
			removed++
		}
	}
	return removed
}
