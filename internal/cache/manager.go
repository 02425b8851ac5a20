// Package cache keeps extracted book content in three tiers: a hot tier with
// full content in memory, a warm tier with metadata only, and a disk index
// over a durable store. Extractions are coalesced per book.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/abhishek-sinu/Vedic-ebook-library-sub000/internal/diskstore"
	"github.com/abhishek-sinu/Vedic-ebook-library-sub000/internal/extract"
	"github.com/abhishek-sinu/Vedic-ebook-library-sub000/internal/jobs"
	"github.com/abhishek-sinu/Vedic-ebook-library-sub000/internal/pagination"
	"github.com/abhishek-sinu/Vedic-ebook-library-sub000/internal/types"
)

// Extractor produces text and HTML for a source document.
type Extractor interface {
	Extract(ctx context.Context, path, mimeType string) (*extract.Result, error)
}

// Config configures a Manager.
type Config struct {
	Limits    Limits
	Store     diskstore.Store
	Extractor Extractor
	Logger    *slog.Logger

	PreloadWorkers   int           // default 1
	PreloadQueueSize int           // default 1000
	SweepInterval    time.Duration // 0 disables the background sweeper

	// Now is the clock; defaults to time.Now.
	Now func() time.Time
}

// Content is a book's extracted content as served by a tier.
type Content struct {
	BookID   string         `json:"book_id"`
	Text     string         `json:"-"`
	HTML     string         `json:"-"`
	Metadata types.Metadata `json:"metadata"`
	FileHash string         `json:"file_hash"`
	CachedAt time.Time      `json:"cached_at"`
	Source   Tier           `json:"source"`

	epoch clearEpoch
}

// Body returns the representation for format.
func (c *Content) Body(format pagination.Format) string {
	if format == pagination.FormatHTML {
		return c.HTML
	}
	return c.Text
}

// Manager owns the tiers. All tier state is guarded by mu; disk and
// extraction I/O always run without it. Store writes and deletes for one
// book are serialized by diskLocks, which is always taken before mu.
type Manager struct {
	mu     sync.Mutex
	limits Limits
	hot    *hotTier
	warm   *warmTier
	disk   *diskIndex

	// Clears bump these so extractions started earlier are not cached.
	clearGens   map[string]uint64
	clearAllGen uint64

	diskLocks *bookLocks

	store     diskstore.Store
	extractor Extractor
	flights   singleflight.Group
	stats     counters
	pool      *jobs.Pool

	logger        *slog.Logger
	now           func() time.Time
	sweepInterval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	opened atomic.Bool
	closed atomic.Bool
}

// New creates a manager. Call Open before serving requests.
func New(cfg Config) (*Manager, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("disk store is required")
	}
	if cfg.Extractor == nil {
		return nil, fmt.Errorf("extractor is required")
	}
	limits := cfg.Limits.withDefaults()
	if err := limits.Validate(); err != nil {
		return nil, fmt.Errorf("invalid cache limits: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "cache")

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		limits:        limits,
		hot:           newHotTier(),
		warm:          newWarmTier(),
		disk:          newDiskIndex(),
		clearGens:     make(map[string]uint64),
		diskLocks:     newBookLocks(),
		store:         cfg.Store,
		extractor:     cfg.Extractor,
		logger:        logger,
		now:           now,
		sweepInterval: cfg.SweepInterval,
		ctx:           ctx,
		cancel:        cancel,
	}

	m.pool = jobs.NewPool(jobs.Config{
		Name:        "preload",
		Logger:      logger,
		WorkerCount: cfg.PreloadWorkers,
		QueueSize:   cfg.PreloadQueueSize,
		OnResult:    m.onPreloadResult,
	})
	m.pool.RegisterHandler(preloadTask, m.handlePreload)

	return m, nil
}

// Open rebuilds the disk index from the store, drops expired blobs, and
// starts the preload workers and the sweeper.
func (m *Manager) Open(ctx context.Context) error {
	if !m.opened.CompareAndSwap(false, true) {
		return nil
	}

	records, err := m.store.List(ctx)
	if err != nil {
		return m.diskError("list", "*", err)
	}

	now := m.now()
	var expiredIDs []string
	m.mu.Lock()
	for _, r := range records {
		if expired(r.CachedAt, m.limits.DiskTTL, now) {
			expiredIDs = append(expiredIDs, r.BookID)
			continue
		}
		m.disk.entries[r.BookID] = &diskEntry{
			location: r.Location,
			cachedAt: r.CachedAt,
			fileHash: r.FileHash,
			metadata: r.Metadata,
		}
	}
	overflow := m.diskVictimsLocked(len(m.disk.entries) - m.limits.MaxDiskEntries)
	indexed := len(m.disk.entries)
	m.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, id := range expiredIDs {
		g.Go(func() error {
			unlock := m.diskLocks.lock(id)
			defer unlock()
			if err := m.store.Delete(gctx, id); err != nil {
				m.diskError("delete", id, err)
			}
			return nil
		})
	}
	for _, v := range overflow {
		g.Go(func() error {
			if m.dropDisk(gctx, v.id, v.cachedAt) {
				m.stats.diskEvictions.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	m.stats.expirations.Add(int64(len(expiredIDs)))

	m.pool.Start(m.ctx)
	if m.sweepInterval > 0 {
		m.wg.Add(1)
		go m.sweepLoop()
	}

	m.logger.Info("cache opened",
		"disk_entries", indexed-len(overflow),
		"expired", len(expiredIDs),
		"overflow", len(overflow))
	return nil
}

// Close stops background work and closes the store.
func (m *Manager) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}
	m.cancel()
	m.pool.Wait()
	m.wg.Wait()
	return m.store.Close()
}

// Limits returns the active limits.
func (m *Manager) Limits() Limits {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.limits
}

// GetContent looks the book up in hot, then warm/disk. A disk hit is
// promoted into the hot tier. ErrNotFound means the caller has to extract.
func (m *Manager) GetContent(ctx context.Context, bookID string) (*Content, error) {
	now := m.now()

	m.mu.Lock()
	if c := m.lookupHot(bookID, now); c != nil {
		m.mu.Unlock()
		m.stats.hit(TierHot)
		return c, nil
	}
	warmKnown := m.lookupWarm(bookID, now)
	rec, stale := m.lookupDisk(bookID, now)
	epoch := m.epochLocked(bookID)
	m.mu.Unlock()

	if stale != nil {
		if m.dropDisk(ctx, bookID, stale.cachedAt) {
			m.stats.expirations.Add(1)
		}
	}
	if rec == nil {
		m.stats.misses.Add(1)
		return nil, ErrNotFound
	}

	entry, err := m.store.Load(ctx, bookID)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, diskstore.ErrNotFound) || errors.Is(err, diskstore.ErrCorrupt) {
			m.logger.Warn("pruning stale disk index entry", "book_id", bookID, "error", err)
			m.dropDisk(ctx, bookID, rec.cachedAt)
		} else {
			m.diskError("load", bookID, err)
		}
		m.stats.misses.Add(1)
		return nil, ErrNotFound
	}

	m.mu.Lock()
	var c *Content
	if m.epochLocked(bookID) == epoch {
		c = m.promote(bookID, entry, now)
	} else {
		// Cleared while loading; serve what was read without caching it.
		c = contentFrom(bookID, hotFrom(entry, now), TierDisk)
		c.CachedAt = entry.CachedAt
	}
	m.mu.Unlock()

	if warmKnown {
		m.stats.hit(TierWarm)
	}
	m.stats.hit(TierDisk)
	m.logger.Debug("promoted from disk", "book_id", bookID)
	return c, nil
}

// Page is a paginated slice of cached content.
type Page struct {
	pagination.Page
	BookID       string            `json:"book_id"`
	WordsPerPage int               `json:"words_per_page"`
	Format       pagination.Format `json:"format"`
	Source       Tier              `json:"source"`
	Metadata     types.Metadata    `json:"metadata"`
}

// Paginate slices c. wordsPerPage <= 0 uses the configured default.
func (m *Manager) Paginate(c *Content, page, wordsPerPage int, format pagination.Format) *Page {
	if wordsPerPage <= 0 {
		wordsPerPage = m.Limits().DefaultWordsPerPage
	}
	return &Page{
		Page:         pagination.Paginate(c.Body(format), format, page, wordsPerPage),
		BookID:       c.BookID,
		WordsPerPage: wordsPerPage,
		Format:       format,
		Source:       c.Source,
		Metadata:     c.Metadata,
	}
}

// GetPaginatedContent returns one page of cached content. It does not
// extract on a miss.
func (m *Manager) GetPaginatedContent(ctx context.Context, bookID string, page, wordsPerPage int, format pagination.Format) (*Page, error) {
	c, err := m.GetContent(ctx, bookID)
	if err != nil {
		return nil, err
	}
	return m.Paginate(c, page, wordsPerPage, format), nil
}

// CacheBookContent extracts book, persists it and places it in memory.
// Concurrent calls for the same book share one extraction; each caller
// still returns early if its own ctx is done.
func (m *Manager) CacheBookContent(ctx context.Context, book types.Book, priority types.Priority) (*Content, error) {
	if book.ID == "" {
		return nil, fmt.Errorf("book id is required")
	}
	if m.closed.Load() {
		return nil, ErrClosed
	}

	ch := m.flights.DoChan(book.ID, func() (any, error) {
		return m.extractAndStore(context.WithoutCancel(ctx), book, priority)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		c := res.Val.(*Content)
		if res.Shared {
			m.stats.coalesced.Add(1)
			if priority == types.PriorityHigh {
				m.ensureHot(c)
			}
		}
		return c, nil
	}
}

func (m *Manager) extractAndStore(ctx context.Context, book types.Book, priority types.Priority) (*Content, error) {
	start := m.now()
	log := m.logger.With("book_id", book.ID)

	hash, size, err := fingerprint(book.FilePath)
	if err != nil {
		m.stats.extractionFailures.Add(1)
		return nil, &ExtractionError{BookID: book.ID, Path: book.FilePath, Err: err}
	}

	m.mu.Lock()
	epoch := m.epochLocked(book.ID)
	if e, ok := m.hot.entries[book.ID]; ok && e.fileHash == hash && !expired(e.cachedAt, m.limits.HotTTL, start) {
		e.accessedAt = start
		c := contentFrom(book.ID, e, TierHot)
		c.epoch = epoch
		m.mu.Unlock()
		log.Debug("source unchanged, reusing hot entry")
		return c, nil
	}
	m.mu.Unlock()

	log.Info("extracting", "path", book.FilePath, "priority", priority)
	res, err := m.extractor.Extract(ctx, book.FilePath, book.MimeType)
	if err != nil {
		m.stats.extractionFailures.Add(1)
		log.Error("extraction failed", "path", book.FilePath, "error", err)
		return nil, &ExtractionError{BookID: book.ID, Path: book.FilePath, Err: err}
	}

	now := m.now()
	meta := types.Metadata{
		Title:                firstNonEmpty(book.Title, res.Title),
		Author:               firstNonEmpty(book.Author, res.Author),
		FileSizeBytes:        size,
		TotalWords:           pagination.CountWords(res.Text),
		ExtractionDurationMs: now.Sub(start).Milliseconds(),
		MimeType:             extract.MimeTypeFor(res.Format),
	}

	m.persist(ctx, book.ID, epoch, &diskstore.Entry{
		Content:     res.Text,
		HTMLContent: res.HTML,
		CachedAt:    now,
		FileHash:    hash,
		Metadata:    meta,
	})

	e := &hotEntry{
		content:    res.Text,
		html:       res.HTML,
		cachedAt:   now,
		accessedAt: now,
		fileHash:   hash,
		metadata:   meta,
	}

	m.mu.Lock()
	current := m.epochLocked(book.ID) == epoch
	_, resident := m.hot.entries[book.ID]
	placeHot := priority == types.PriorityHigh || resident || m.hot.memoryMB() < m.limits.MaxHotMemoryMB
	switch {
	case !current:
	case placeHot:
		m.putHot(book.ID, e)
	default:
		m.putWarm(book.ID, warmFrom(e))
	}
	m.mu.Unlock()

	m.stats.extractions.Add(1)
	if !current {
		log.Info("cache cleared during extraction, content not kept", "words", meta.TotalWords)
	} else {
		log.Info("cached book content",
			"words", meta.TotalWords,
			"bytes", e.size(),
			"hot", placeHot,
			"duration_ms", meta.ExtractionDurationMs)
	}
	c := contentFrom(book.ID, e, TierExtraction)
	c.epoch = epoch
	return c, nil
}

// persist writes the blob and indexes it, making room in the index first.
// Nothing is written if the book was cleared after epoch was taken.
// Failures are logged; memory tiers still receive the content.
func (m *Manager) persist(ctx context.Context, bookID string, epoch clearEpoch, entry *diskstore.Entry) {
	m.mu.Lock()
	var victims []diskVictim
	if _, ok := m.disk.entries[bookID]; !ok && len(m.disk.entries) >= m.limits.MaxDiskEntries {
		victims = m.diskVictimsLocked(evictCount(m.limits.MaxDiskEntries, m.limits.DiskEvictFraction))
	}
	m.mu.Unlock()

	for _, v := range victims {
		if m.dropDisk(ctx, v.id, v.cachedAt) {
			m.stats.diskEvictions.Add(1)
			m.logger.Debug("evicted from disk", "book_id", v.id)
		}
	}

	unlock := m.diskLocks.lock(bookID)
	defer unlock()

	m.mu.Lock()
	current := m.epochLocked(bookID) == epoch
	m.mu.Unlock()
	if !current {
		return
	}

	location, err := m.store.Save(ctx, bookID, entry)
	if err != nil {
		m.diskError("save", bookID, err)
		return
	}

	m.mu.Lock()
	m.disk.entries[bookID] = &diskEntry{
		location: location,
		cachedAt: entry.CachedAt,
		fileHash: entry.FileHash,
		metadata: entry.Metadata,
	}
	m.mu.Unlock()
}

// ensureHot places shared content into the hot tier for a high-priority
// caller that joined a low-priority extraction.
func (m *Manager) ensureHot(c *Content) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.hot.entries[c.BookID]; ok || m.epochLocked(c.BookID) != c.epoch {
		return
	}
	now := m.now()
	m.putHot(c.BookID, &hotEntry{
		content:    c.Text,
		html:       c.HTML,
		cachedAt:   now,
		accessedAt: now,
		fileHash:   c.FileHash,
		metadata:   c.Metadata,
	})
}

// IsCached reports whether the book is in the hot tier or the disk index.
func (m *Manager) IsCached(bookID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.hot.entries[bookID]; ok {
		return true
	}
	_, ok := m.disk.entries[bookID]
	return ok
}

// Validate compares the stored fingerprint with the current source file and
// clears every tier for the book when they differ. It returns true when the
// cached content was stale.
func (m *Manager) Validate(ctx context.Context, book types.Book) (bool, error) {
	m.mu.Lock()
	stored := ""
	if e, ok := m.hot.entries[book.ID]; ok {
		stored = e.fileHash
	} else if w, ok := m.warm.entries[book.ID]; ok {
		stored = w.fileHash
	} else if d, ok := m.disk.entries[book.ID]; ok {
		stored = d.fileHash
	}
	m.mu.Unlock()

	if stored == "" {
		return false, nil
	}
	hash, _, err := fingerprint(book.FilePath)
	if err != nil {
		return false, err
	}
	if hash == stored {
		return false, nil
	}

	m.logger.Info("source changed, invalidating cached content", "book_id", book.ID)
	_, err = m.ClearBookCache(ctx, book.ID)
	return true, err
}

// ClearBookCache removes the book from every tier. It reports whether
// anything was cached; clearing an unknown book returns false. An extraction
// already running for the book finishes for its callers but is not cached.
func (m *Manager) ClearBookCache(ctx context.Context, bookID string) (bool, error) {
	m.mu.Lock()
	m.clearGens[bookID]++
	inHot := m.hot.remove(bookID)
	_, inWarm := m.warm.entries[bookID]
	delete(m.warm.entries, bookID)
	_, inDisk := m.disk.entries[bookID]
	m.mu.Unlock()

	m.flights.Forget(bookID)
	cleared := inHot || inWarm || inDisk

	if err := m.deleteBlob(ctx, bookID); err != nil {
		return cleared, err
	}

	if cleared {
		m.logger.Info("cleared book cache", "book_id", bookID, "hot", inHot, "warm", inWarm, "disk", inDisk)
	}
	return cleared, nil
}

// ClearAllCaches empties every tier and deletes every blob, including blobs
// the index does not know about.
func (m *Manager) ClearAllCaches(ctx context.Context) error {
	m.mu.Lock()
	ids := make(map[string]struct{}, len(m.disk.entries))
	for id := range m.disk.entries {
		ids[id] = struct{}{}
	}
	hot, warm := len(m.hot.entries), len(m.warm.entries)
	m.clearAllGen++
	m.hot = newHotTier()
	m.warm = newWarmTier()
	m.mu.Unlock()

	var errs []error
	records, err := m.store.List(ctx)
	if err != nil {
		errs = append(errs, m.diskError("list", "*", err))
	}
	for _, r := range records {
		ids[r.BookID] = struct{}{}
	}

	for id := range ids {
		if err := m.deleteBlob(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}

	m.logger.Info("cleared all caches", "hot", hot, "warm", warm, "disk", len(ids), "errors", len(errs))
	return errors.Join(errs...)
}

// Stats returns a snapshot of tier occupancy and counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	s := Stats{
		Hot: TierStats{
			Entries:     len(m.hot.entries),
			Capacity:    m.limits.MaxHotEntries,
			MemoryMB:    math.Round(m.hot.memoryMB()*100) / 100,
			MaxMemoryMB: m.limits.MaxHotMemoryMB,
		},
		Warm: TierStats{Entries: len(m.warm.entries), Capacity: m.limits.MaxWarmEntries},
		Disk: TierStats{Entries: len(m.disk.entries), Capacity: m.limits.MaxDiskEntries},
	}
	m.mu.Unlock()

	m.stats.fill(&s)
	s.Preload = m.pool.Status()
	return s
}

// SetLimits replaces the limits and evicts whatever no longer fits.
func (m *Manager) SetLimits(ctx context.Context, l Limits) error {
	l = l.withDefaults()
	if err := l.Validate(); err != nil {
		return fmt.Errorf("invalid cache limits: %w", err)
	}

	m.mu.Lock()
	m.limits = l
	if over := len(m.hot.entries) - l.MaxHotEntries; over > 0 {
		m.evictHot(m.hot.lru(over), "capacity")
	}
	for len(m.hot.entries) > 0 && m.hot.memoryMB() > l.MaxHotMemoryMB {
		m.evictHot(m.hot.lru(l.HotEvictBatch), "memory")
	}
	if over := len(m.warm.entries) - l.MaxWarmEntries; over > 0 {
		m.removeWarm(m.warm.lru(over, m.isHot))
	}
	victims := m.diskVictimsLocked(len(m.disk.entries) - l.MaxDiskEntries)
	m.mu.Unlock()

	for _, v := range victims {
		if m.dropDisk(ctx, v.id, v.cachedAt) {
			m.stats.diskEvictions.Add(1)
		}
	}
	m.logger.Info("cache limits updated",
		"max_hot", l.MaxHotEntries,
		"max_warm", l.MaxWarmEntries,
		"max_disk", l.MaxDiskEntries,
		"max_hot_memory_mb", l.MaxHotMemoryMB)
	return nil
}

// lookupHot returns a valid hot entry and touches it. Expired entries are
// removed from the hot tier only.
func (m *Manager) lookupHot(id string, now time.Time) *Content {
	e, ok := m.hot.entries[id]
	if !ok {
		return nil
	}
	if expired(e.cachedAt, m.limits.HotTTL, now) {
		m.expireHot(id)
		return nil
	}
	e.accessedAt = now
	if w, ok := m.warm.entries[id]; ok {
		w.accessedAt = now
	}
	return contentFrom(id, e, TierHot)
}

// lookupWarm reports whether a valid warm entry exists.
func (m *Manager) lookupWarm(id string, now time.Time) bool {
	w, ok := m.warm.entries[id]
	if !ok {
		return false
	}
	if expired(w.cachedAt, m.limits.WarmTTL, now) {
		delete(m.warm.entries, id)
		m.stats.expirations.Add(1)
		return false
	}
	w.accessedAt = now
	return true
}

// lookupDisk returns a copy of the index entry when valid, or the expired
// entry so the caller can drop it outside the lock.
func (m *Manager) lookupDisk(id string, now time.Time) (valid, stale *diskEntry) {
	d, ok := m.disk.entries[id]
	if !ok {
		return nil, nil
	}
	cp := *d
	if expired(d.cachedAt, m.limits.DiskTTL, now) {
		return nil, &cp
	}
	return &cp, nil
}

func (m *Manager) expireHot(id string) {
	if m.hot.remove(id) {
		m.stats.expirations.Add(1)
		m.logger.Debug("hot entry expired", "book_id", id)
	}
}

// promote moves a disk entry into the hot tier.
func (m *Manager) promote(id string, entry *diskstore.Entry, now time.Time) *Content {
	e := hotFrom(entry, now)
	m.putHot(id, e)
	c := contentFrom(id, e, TierDisk)
	c.CachedAt = entry.CachedAt
	return c
}

// putHot inserts into hot (and its warm mirror), evicting first when the
// tier is full or over its memory budget.
func (m *Manager) putHot(id string, e *hotEntry) {
	if _, exists := m.hot.entries[id]; !exists {
		if over := len(m.hot.entries) - m.limits.MaxHotEntries + 1; over > 0 {
			m.evictHot(m.hot.lru(over), "capacity")
		}
		for len(m.hot.entries) > 0 && m.hot.memoryMB() >= m.limits.MaxHotMemoryMB {
			m.evictHot(m.hot.lru(m.limits.HotEvictBatch), "memory")
		}
	}
	m.hot.put(id, e)
	m.putWarm(id, warmFrom(e))
}

// evictHot demotes entries to warm. Their disk blobs are untouched.
func (m *Manager) evictHot(ids []string, reason string) {
	for _, id := range ids {
		if m.hot.remove(id) {
			m.stats.hotEvictions.Add(1)
			m.logger.Debug("demoted from hot", "book_id", id, "reason", reason)
		}
	}
}

func (m *Manager) putWarm(id string, w *warmEntry) {
	if _, exists := m.warm.entries[id]; !exists && len(m.warm.entries) >= m.limits.MaxWarmEntries {
		n := max(len(m.warm.entries)-m.limits.MaxWarmEntries+1, m.limits.WarmEvictBatch)
		victims := m.warm.lru(n, m.isHot)
		if len(victims) == 0 {
			// Only mirrors of hot entries remain; demote the oldest.
			victims = m.warm.lru(1, nil)
			m.evictHot(victims, "warm capacity")
		}
		m.removeWarm(victims)
	}
	m.warm.entries[id] = w
}

func (m *Manager) removeWarm(ids []string) {
	for _, id := range ids {
		if _, ok := m.warm.entries[id]; ok {
			delete(m.warm.entries, id)
			m.stats.warmEvictions.Add(1)
		}
	}
}

func (m *Manager) isHot(id string) bool {
	_, ok := m.hot.entries[id]
	return ok
}

type diskVictim struct {
	id       string
	cachedAt time.Time
}

func (m *Manager) diskVictimsLocked(n int) []diskVictim {
	if n <= 0 {
		return nil
	}
	ids := m.disk.oldest(n)
	out := make([]diskVictim, 0, len(ids))
	for _, id := range ids {
		out = append(out, diskVictim{id: id, cachedAt: m.disk.entries[id].cachedAt})
	}
	return out
}

// dropDisk deletes the blob and then the index entry, but only while the
// entry still describes the blob cached at cachedAt. A newer save wins. A
// failed delete keeps the entry so the index never points at nothing while
// a file remains.
func (m *Manager) dropDisk(ctx context.Context, id string, cachedAt time.Time) bool {
	unlock := m.diskLocks.lock(id)
	defer unlock()

	m.mu.Lock()
	d, ok := m.disk.entries[id]
	current := ok && d.cachedAt.Equal(cachedAt)
	m.mu.Unlock()
	if !current {
		return false
	}

	if err := m.store.Delete(context.WithoutCancel(ctx), id); err != nil {
		m.diskError("delete", id, err)
		return false
	}
	m.mu.Lock()
	delete(m.disk.entries, id)
	m.mu.Unlock()
	return true
}

// deleteBlob removes the blob and its index entry unconditionally. The index
// entry stays until its file is gone.
func (m *Manager) deleteBlob(ctx context.Context, id string) error {
	unlock := m.diskLocks.lock(id)
	defer unlock()

	if err := m.store.Delete(context.WithoutCancel(ctx), id); err != nil {
		return m.diskError("delete", id, err)
	}
	m.mu.Lock()
	delete(m.disk.entries, id)
	m.mu.Unlock()
	return nil
}

type clearEpoch struct {
	all  uint64
	book uint64
}

func (m *Manager) epochLocked(id string) clearEpoch {
	return clearEpoch{all: m.clearAllGen, book: m.clearGens[id]}
}

func (m *Manager) diskError(op, bookID string, err error) error {
	m.stats.diskErrors.Add(1)
	m.logger.Error("disk store operation failed", "op", op, "book_id", bookID, "error", err)
	return &DiskIOError{Op: op, BookID: bookID, Err: err}
}

func contentFrom(id string, e *hotEntry, source Tier) *Content {
	return &Content{
		BookID:   id,
		Text:     e.content,
		HTML:     e.html,
		Metadata: e.metadata,
		FileHash: e.fileHash,
		CachedAt: e.cachedAt,
		Source:   source,
	}
}

func hotFrom(entry *diskstore.Entry, now time.Time) *hotEntry {
	return &hotEntry{
		content:    entry.Content,
		html:       entry.HTMLContent,
		cachedAt:   now,
		accessedAt: now,
		fileHash:   entry.FileHash,
		metadata:   entry.Metadata,
	}
}

func warmFrom(e *hotEntry) *warmEntry {
	return &warmEntry{
		cachedAt:   e.cachedAt,
		accessedAt: e.accessedAt,
		fileHash:   e.fileHash,
		metadata:   e.metadata,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
