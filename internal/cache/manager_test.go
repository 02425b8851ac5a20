package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/abhishek-sinu/Vedic-ebook-library-sub000/internal/diskstore"
	"github.com/abhishek-sinu/Vedic-ebook-library-sub000/internal/extract"
	"github.com/abhishek-sinu/Vedic-ebook-library-sub000/internal/pagination"
	"github.com/abhishek-sinu/Vedic-ebook-library-sub000/internal/types"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakeExtractor struct {
	mu      sync.Mutex
	calls   int
	err     error
	gate    chan struct{}
	started chan struct{}
}

func (f *fakeExtractor) Extract(ctx context.Context, path, mimeType string) (*extract.Result, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.started != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
	}
	if f.gate != nil {
		<-f.gate
	}
	if f.err != nil {
		return nil, f.err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	text := string(data)
	return &extract.Result{Text: text, HTML: extract.TextToHTML(text), Format: extract.FormatText}, nil
}

func (f *fakeExtractor) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type testEnv struct {
	m     *Manager
	store *diskstore.FileStore
	clock *fakeClock
	ext   *fakeExtractor
	dir   string
}

func newTestManager(t *testing.T, limits Limits) *testEnv {
	t.Helper()
	return newTestManagerWith(t, limits, &fakeExtractor{})
}

func newTestManagerWith(t *testing.T, limits Limits, ext *fakeExtractor) *testEnv {
	t.Helper()
	return newTestManagerWrapped(t, limits, ext, nil)
}

// newTestManagerWrapped lets a test interpose on the file store.
func newTestManagerWrapped(t *testing.T, limits Limits, ext *fakeExtractor, wrap func(diskstore.Store) diskstore.Store) *testEnv {
	t.Helper()
	store, err := diskstore.NewFileStore(diskstore.FileStoreConfig{Fs: afero.NewMemMapFs(), Dir: "/cache"})
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	var backing diskstore.Store = store
	if wrap != nil {
		backing = wrap(store)
	}
	clock := newFakeClock()
	m, err := New(Config{Limits: limits, Store: backing, Extractor: ext, Now: clock.Now})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := m.Open(context.Background()); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return &testEnv{m: m, store: store, clock: clock, ext: ext, dir: t.TempDir()}
}

func (e *testEnv) book(t *testing.T, id, text string) types.Book {
	t.Helper()
	p := filepath.Join(e.dir, id+".txt")
	if err := os.WriteFile(p, []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}
	return types.Book{ID: id, Title: "Title " + id, FilePath: p}
}

func (e *testEnv) cache(t *testing.T, b types.Book, p types.Priority) *Content {
	t.Helper()
	c, err := e.m.CacheBookContent(context.Background(), b, p)
	if err != nil {
		t.Fatalf("CacheBookContent(%s) error = %v", b.ID, err)
	}
	return c
}

func (e *testEnv) get(t *testing.T, id string) *Content {
	t.Helper()
	c, err := e.m.GetContent(context.Background(), id)
	if err != nil {
		t.Fatalf("GetContent(%s) error = %v", id, err)
	}
	return c
}

func TestCacheBookContent(t *testing.T) {
	env := newTestManager(t, Limits{})
	b := env.book(t, "gita", "om tat sat")

	c := env.cache(t, b, types.PriorityHigh)
	if c.Source != TierExtraction || c.Text != "om tat sat" {
		t.Errorf("CacheBookContent() = %+v", c)
	}
	if c.Metadata.TotalWords != 3 || c.Metadata.Title != "Title gita" || c.Metadata.FileSizeBytes != 10 {
		t.Errorf("Metadata = %+v", c.Metadata)
	}
	if c.FileHash == "" {
		t.Error("FileHash is empty")
	}

	got := env.get(t, "gita")
	if got.Source != TierHot || got.HTML != "<p>om tat sat</p>\n" {
		t.Errorf("GetContent() = %+v", got)
	}

	entry, err := env.store.Load(context.Background(), "gita")
	if err != nil {
		t.Fatalf("blob not persisted: %v", err)
	}
	if entry.Content != "om tat sat" || entry.FileHash != c.FileHash {
		t.Errorf("blob = %+v", entry)
	}

	s := env.m.Stats()
	if s.Hot.Entries != 1 || s.Warm.Entries != 1 || s.Disk.Entries != 1 {
		t.Errorf("tier entries = %d/%d/%d", s.Hot.Entries, s.Warm.Entries, s.Disk.Entries)
	}
	if s.Extractions != 1 || s.HotHits != 1 || s.HitRate != 100 {
		t.Errorf("stats = %+v", s)
	}
}

func TestGetContentMiss(t *testing.T) {
	env := newTestManager(t, Limits{})
	if _, err := env.m.GetContent(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
	if s := env.m.Stats(); s.Misses != 1 || s.HitRate != 0 {
		t.Errorf("stats = %+v", s)
	}
}

func TestPromotionFromDisk(t *testing.T) {
	env := newTestManager(t, Limits{HotTTL: time.Minute, WarmTTL: time.Hour, DiskTTL: 24 * time.Hour})
	env.cache(t, env.book(t, "a", "alpha beta"), types.PriorityHigh)

	env.clock.Advance(2 * time.Minute)

	c := env.get(t, "a")
	if c.Source != TierDisk || c.Text != "alpha beta" {
		t.Fatalf("GetContent() after hot expiry = %+v", c)
	}
	if again := env.get(t, "a"); again.Source != TierHot {
		t.Errorf("second read Source = %s, want hot", again.Source)
	}

	s := env.m.Stats()
	if s.DiskHits != 1 || s.WarmHits != 1 || s.HotHits != 1 || s.Expirations != 1 {
		t.Errorf("stats = %+v", s)
	}
	if env.ext.Calls() != 1 {
		t.Errorf("extractor calls = %d, want 1", env.ext.Calls())
	}
}

func TestHotExpiryFallsThroughToDisk(t *testing.T) {
	env := newTestManager(t, Limits{HotTTL: time.Minute, WarmTTL: time.Hour, DiskTTL: 24 * time.Hour})
	env.cache(t, env.book(t, "h", "hari om"), types.PriorityHigh)
	if env.get(t, "h").Source != TierHot {
		t.Fatal("first read should hit hot")
	}

	env.clock.Advance(time.Minute + time.Second)

	c := env.get(t, "h")
	if c.Source != TierDisk || c.Text != "hari om" {
		t.Fatalf("GetContent() after hot TTL = %+v", c)
	}
	env.m.mu.Lock()
	_, inWarm := env.m.warm.entries["h"]
	_, inHot := env.m.hot.entries["h"]
	env.m.mu.Unlock()
	if !inWarm || !inHot {
		t.Errorf("after promotion warm=%v hot=%v, want both", inWarm, inHot)
	}
	if s := env.m.Stats(); s.WarmHits != 1 || s.DiskHits != 1 || s.Expirations != 1 {
		t.Errorf("stats = %+v", s)
	}
	if env.ext.Calls() != 1 {
		t.Errorf("extractor calls = %d, want 1", env.ext.Calls())
	}
}

func TestHotEviction(t *testing.T) {
	env := newTestManager(t, Limits{MaxHotEntries: 3, MaxWarmEntries: 20})

	for _, id := range []string{"a", "b", "c"} {
		env.cache(t, env.book(t, id, "text of "+id), types.PriorityHigh)
		env.clock.Advance(time.Second)
	}
	env.get(t, "a") // b is now least recently used
	env.clock.Advance(time.Second)

	env.cache(t, env.book(t, "d", "text of d"), types.PriorityHigh)

	s := env.m.Stats()
	if s.HotEvictions != 1 {
		t.Fatalf("HotEvictions = %d, want 1", s.HotEvictions)
	}
	if s.Hot.Entries != 3 || s.Warm.Entries != 4 || s.Disk.Entries != 4 {
		t.Errorf("tier entries = %d/%d/%d", s.Hot.Entries, s.Warm.Entries, s.Disk.Entries)
	}
	if c := env.get(t, "b"); c.Source != TierDisk {
		t.Errorf("evicted entry Source = %s, want disk", c.Source)
	}
	if c := env.get(t, "d"); c.Source != TierHot {
		t.Errorf("new entry Source = %s, want hot", c.Source)
	}
}

func TestMemoryPlacement(t *testing.T) {
	// Each book is 10 bytes of text plus 18 of HTML; the budget fits none.
	env := newTestManager(t, Limits{MaxHotMemoryMB: 20.0 / bytesPerMB})

	env.cache(t, env.book(t, "one", "alpha beta"), types.PriorityLow)
	env.cache(t, env.book(t, "two", "gamma beta"), types.PriorityLow)

	s := env.m.Stats()
	if s.Hot.Entries != 1 || s.Warm.Entries != 2 || s.Disk.Entries != 2 {
		t.Fatalf("after low priority: tier entries = %d/%d/%d", s.Hot.Entries, s.Warm.Entries, s.Disk.Entries)
	}
	if !env.m.IsCached("two") {
		t.Error("warm-only book should still be cached on disk")
	}

	env.cache(t, env.book(t, "three", "delta beta"), types.PriorityHigh)
	s = env.m.Stats()
	if s.Hot.Entries != 1 || s.HotEvictions != 1 {
		t.Errorf("after high priority: hot entries = %d, evictions = %d", s.Hot.Entries, s.HotEvictions)
	}
	if c := env.get(t, "three"); c.Source != TierHot {
		t.Errorf("Source = %s, want hot", c.Source)
	}
}

func TestCoalescing(t *testing.T) {
	ext := &fakeExtractor{gate: make(chan struct{}), started: make(chan struct{}, 1)}
	env := newTestManagerWith(t, Limits{}, ext)
	b := env.book(t, "big", "a very large book")

	const callers = 10
	var wg sync.WaitGroup
	results := make([]*Content, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = env.m.CacheBookContent(context.Background(), b, types.PriorityLow)
		}(i)
	}

	<-ext.started
	time.Sleep(50 * time.Millisecond)
	close(ext.gate)
	wg.Wait()

	if ext.Calls() != 1 {
		t.Errorf("extractor calls = %d, want 1", ext.Calls())
	}
	for i := range results {
		if errs[i] != nil {
			t.Fatalf("caller %d error = %v", i, errs[i])
		}
		if results[i].Text != "a very large book" {
			t.Errorf("caller %d got %q", i, results[i].Text)
		}
	}
}

func TestCallerCancellationDoesNotAbortExtraction(t *testing.T) {
	ext := &fakeExtractor{gate: make(chan struct{}), started: make(chan struct{}, 1)}
	env := newTestManagerWith(t, Limits{}, ext)
	b := env.book(t, "slow", "slow book")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := env.m.CacheBookContent(ctx, b, types.PriorityHigh)
		done <- err
	}()
	<-ext.started
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}

	close(ext.gate)
	deadline := time.Now().Add(2 * time.Second)
	for !env.m.IsCached("slow") {
		if time.Now().After(deadline) {
			t.Fatal("extraction did not finish after caller cancelled")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestExtractionFailure(t *testing.T) {
	t.Run("extractor error", func(t *testing.T) {
		env := newTestManagerWith(t, Limits{}, &fakeExtractor{err: errors.New("corrupt document")})
		_, err := env.m.CacheBookContent(context.Background(), env.book(t, "x", "x"), types.PriorityHigh)
		if !errors.Is(err, ErrExtractionFailed) {
			t.Fatalf("error = %v, want ErrExtractionFailed", err)
		}
		var ee *ExtractionError
		if !errors.As(err, &ee) || ee.BookID != "x" {
			t.Errorf("error = %#v", err)
		}
		if env.m.IsCached("x") {
			t.Error("failed extraction was cached")
		}
		if s := env.m.Stats(); s.ExtractionFailures != 1 || s.Extractions != 0 {
			t.Errorf("stats = %+v", s)
		}
	})

	t.Run("unsupported format", func(t *testing.T) {
		err := &extract.UnsupportedFormatError{Path: "a.doc"}
		env := newTestManagerWith(t, Limits{}, &fakeExtractor{err: err})
		_, got := env.m.CacheBookContent(context.Background(), env.book(t, "doc", "x"), types.PriorityHigh)
		if !errors.Is(got, extract.ErrUnsupportedFormat) || !errors.Is(got, ErrExtractionFailed) {
			t.Errorf("error = %v", got)
		}
	})

	t.Run("missing source", func(t *testing.T) {
		env := newTestManager(t, Limits{})
		_, err := env.m.CacheBookContent(context.Background(), types.Book{ID: "ghost", FilePath: "/does/not/exist.pdf"}, types.PriorityHigh)
		if !errors.Is(err, ErrExtractionFailed) {
			t.Errorf("error = %v", err)
		}
		if env.ext.Calls() != 0 {
			t.Error("extractor should not run without a source file")
		}
	})
}

func TestDiskTTL(t *testing.T) {
	env := newTestManager(t, Limits{HotTTL: time.Minute, WarmTTL: time.Minute, DiskTTL: time.Hour})
	env.cache(t, env.book(t, "old", "old words"), types.PriorityHigh)

	env.clock.Advance(2 * time.Hour)

	if _, err := env.m.GetContent(context.Background(), "old"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
	if _, err := env.store.Load(context.Background(), "old"); !errors.Is(err, diskstore.ErrNotFound) {
		t.Errorf("expired blob still on disk: %v", err)
	}
	if s := env.m.Stats(); s.Disk.Entries != 0 || s.Hot.Entries != 0 || s.Warm.Entries != 0 {
		t.Errorf("tier entries = %d/%d/%d", s.Hot.Entries, s.Warm.Entries, s.Disk.Entries)
	}
}

func TestMissingBlobIsPruned(t *testing.T) {
	env := newTestManager(t, Limits{HotTTL: time.Minute})
	env.cache(t, env.book(t, "c", "some words"), types.PriorityHigh)
	env.clock.Advance(2 * time.Minute)

	if err := env.store.Delete(context.Background(), "c"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.m.GetContent(context.Background(), "c"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
	if s := env.m.Stats(); s.Disk.Entries != 0 {
		t.Errorf("stale index entry kept: %d", s.Disk.Entries)
	}
}

func TestDiskEviction(t *testing.T) {
	env := newTestManager(t, Limits{MaxHotEntries: 5, MaxWarmEntries: 50, MaxDiskEntries: 10})
	for i := 0; i < 11; i++ {
		env.cache(t, env.book(t, fmt.Sprintf("b%02d", i), "words"), types.PriorityHigh)
		env.clock.Advance(time.Second)
	}

	s := env.m.Stats()
	if s.Disk.Entries != 10 || s.DiskEvictions != 1 {
		t.Errorf("disk entries = %d, evictions = %d", s.Disk.Entries, s.DiskEvictions)
	}
	if _, err := env.store.Load(context.Background(), "b00"); !errors.Is(err, diskstore.ErrNotFound) {
		t.Errorf("oldest blob not deleted: %v", err)
	}
	if _, err := env.store.Load(context.Background(), "b10"); err != nil {
		t.Errorf("newest blob missing: %v", err)
	}
}

func TestClearBookCache(t *testing.T) {
	env := newTestManager(t, Limits{})
	ctx := context.Background()

	cleared, err := env.m.ClearBookCache(ctx, "never-cached")
	if err != nil || cleared {
		t.Errorf("ClearBookCache(unknown) = %v, %v; want false, nil", cleared, err)
	}

	env.cache(t, env.book(t, "k", "krishna"), types.PriorityHigh)
	cleared, err = env.m.ClearBookCache(ctx, "k")
	if err != nil || !cleared {
		t.Fatalf("ClearBookCache() = %v, %v", cleared, err)
	}
	if _, err := env.m.GetContent(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetContent after clear error = %v", err)
	}
	if _, err := env.store.Load(ctx, "k"); !errors.Is(err, diskstore.ErrNotFound) {
		t.Errorf("blob still present: %v", err)
	}

	cleared, _ = env.m.ClearBookCache(ctx, "k")
	if cleared {
		t.Error("second clear should report false")
	}
}

func TestClearAllCaches(t *testing.T) {
	env := newTestManager(t, Limits{})
	ctx := context.Background()
	env.cache(t, env.book(t, "a", "a"), types.PriorityHigh)
	env.cache(t, env.book(t, "b", "b"), types.PriorityLow)
	if _, err := env.store.Save(ctx, "orphan", &diskstore.Entry{CachedAt: env.clock.Now(), Metadata: types.Metadata{Title: "o"}}); err != nil {
		t.Fatal(err)
	}

	if err := env.m.ClearAllCaches(ctx); err != nil {
		t.Fatalf("ClearAllCaches() error = %v", err)
	}
	s := env.m.Stats()
	if s.Hot.Entries+s.Warm.Entries+s.Disk.Entries != 0 {
		t.Errorf("tiers not empty: %+v", s)
	}
	records, err := env.store.List(ctx)
	if err != nil || len(records) != 0 {
		t.Errorf("store not empty: %d records, err=%v", len(records), err)
	}
}

func TestOpenRebuildsIndex(t *testing.T) {
	ctx := context.Background()
	fsys := afero.NewMemMapFs()
	store, err := diskstore.NewFileStore(diskstore.FileStoreConfig{Fs: fsys, Dir: "/cache"})
	if err != nil {
		t.Fatal(err)
	}
	clock := newFakeClock()
	fresh := &diskstore.Entry{Content: "fresh words", HTMLContent: "<p>fresh words</p>", CachedAt: clock.Now().Add(-time.Hour), Metadata: types.Metadata{Title: "F"}}
	stale := &diskstore.Entry{Content: "stale", CachedAt: clock.Now().Add(-30 * 24 * time.Hour), Metadata: types.Metadata{Title: "S"}}
	if _, err := store.Save(ctx, "fresh", fresh); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Save(ctx, "stale", stale); err != nil {
		t.Fatal(err)
	}

	m, err := New(Config{Store: store, Extractor: &fakeExtractor{}, Now: clock.Now})
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Open(ctx); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer m.Close()

	c, err := m.GetContent(ctx, "fresh")
	if err != nil || c.Source != TierDisk || c.Text != "fresh words" {
		t.Fatalf("GetContent(fresh) = %+v, %v", c, err)
	}
	if _, err := store.Load(ctx, "stale"); !errors.Is(err, diskstore.ErrNotFound) {
		t.Errorf("stale blob not removed on open: %v", err)
	}
}

func TestGetPaginatedContent(t *testing.T) {
	env := newTestManager(t, Limits{})
	words := make([]string, 10000)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", i)
	}
	env.cache(t, env.book(t, "long", strings.Join(words, " ")), types.PriorityHigh)

	page, err := env.m.GetPaginatedContent(context.Background(), "long", 1, 500, pagination.FormatText)
	if err != nil {
		t.Fatalf("GetPaginatedContent() error = %v", err)
	}
	if page.TotalPages != 20 || !page.HasNextPage || page.HasPrevPage || len(strings.Fields(page.Content)) != 500 {
		t.Errorf("page 1 = total:%d next:%v prev:%v", page.TotalPages, page.HasNextPage, page.HasPrevPage)
	}
	if page.Source != TierHot || page.WordsPerPage != 500 {
		t.Errorf("page meta = %s / %d", page.Source, page.WordsPerPage)
	}

	last, _ := env.m.GetPaginatedContent(context.Background(), "long", 20, 0, pagination.FormatText)
	if last.HasNextPage || !last.HasPrevPage || last.WordsPerPage != 500 {
		t.Errorf("page 20 = %+v", last.Page)
	}

	if _, err := env.m.GetPaginatedContent(context.Background(), "missing", 1, 500, pagination.FormatText); !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestValidate(t *testing.T) {
	env := newTestManager(t, Limits{})
	ctx := context.Background()
	b := env.book(t, "v", "first edition")
	env.cache(t, b, types.PriorityHigh)

	stale, err := env.m.Validate(ctx, b)
	if err != nil || stale {
		t.Fatalf("Validate() unchanged = %v, %v", stale, err)
	}

	if err := os.WriteFile(b.FilePath, []byte("second edition"), 0o644); err != nil {
		t.Fatal(err)
	}
	stale, err = env.m.Validate(ctx, b)
	if err != nil || !stale {
		t.Fatalf("Validate() changed = %v, %v", stale, err)
	}
	if env.m.IsCached("v") {
		t.Error("stale content still cached")
	}

	c := env.cache(t, b, types.PriorityHigh)
	if c.Text != "second edition" {
		t.Errorf("re-extracted text = %q", c.Text)
	}
}

func TestSetLimits(t *testing.T) {
	env := newTestManager(t, Limits{})
	for _, id := range []string{"a", "b", "c", "d"} {
		env.cache(t, env.book(t, id, id), types.PriorityHigh)
		env.clock.Advance(time.Second)
	}

	l := env.m.Limits()
	l.MaxHotEntries = 2
	if err := env.m.SetLimits(context.Background(), l); err != nil {
		t.Fatalf("SetLimits() error = %v", err)
	}
	if s := env.m.Stats(); s.Hot.Entries != 2 || s.Hot.Capacity != 2 {
		t.Errorf("hot = %+v", s.Hot)
	}
	if c := env.get(t, "d"); c.Source != TierHot {
		t.Errorf("most recent entry Source = %s, want hot", c.Source)
	}

	l.MaxWarmEntries = 1
	if err := env.m.SetLimits(context.Background(), l); err == nil {
		t.Error("expected error when warm capacity is below hot capacity")
	}
}

func TestPreloadPopularBooks(t *testing.T) {
	env := newTestManager(t, Limits{})
	env.cache(t, env.book(t, "already", "cached"), types.PriorityHigh)
	books := []types.Book{
		env.book(t, "already", "cached"),
		env.book(t, "p1", "first popular"),
		env.book(t, "p2", "second popular"),
		env.book(t, "p3", "not preloaded"),
	}

	batch, err := env.m.PreloadPopularBooks(books, 3)
	if err != nil {
		t.Fatalf("PreloadPopularBooks() error = %v", err)
	}
	if len(batch.Queued) != 2 || len(batch.Skipped) != 1 || batch.Skipped[0] != "already" {
		t.Errorf("batch = %+v", batch)
	}

	deadline := time.Now().Add(2 * time.Second)
	for !(env.m.IsCached("p1") && env.m.IsCached("p2")) {
		if time.Now().After(deadline) {
			t.Fatal("preload did not finish")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if env.m.IsCached("p3") {
		t.Error("book beyond maxCount was preloaded")
	}
}

func TestSweep(t *testing.T) {
	env := newTestManager(t, Limits{HotTTL: time.Minute, WarmTTL: time.Hour, DiskTTL: 2 * time.Hour})
	env.cache(t, env.book(t, "s", "sweep me"), types.PriorityHigh)

	env.clock.Advance(3 * time.Hour)
	if n := env.m.Sweep(context.Background()); n != 3 {
		t.Errorf("Sweep() = %d, want 3", n)
	}
	if s := env.m.Stats(); s.Hot.Entries+s.Warm.Entries+s.Disk.Entries != 0 {
		t.Errorf("tiers not empty after sweep: %+v", s)
	}
}

// gatedDeleteStore blocks the first Delete until release is closed.
type gatedDeleteStore struct {
	diskstore.Store
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (s *gatedDeleteStore) Delete(ctx context.Context, bookID string) error {
	s.once.Do(func() {
		close(s.entered)
		<-s.release
	})
	return s.Store.Delete(ctx, bookID)
}

func assertIndexBacked(t *testing.T, env *testEnv) {
	t.Helper()
	env.m.mu.Lock()
	ids := make([]string, 0, len(env.m.disk.entries))
	for id := range env.m.disk.entries {
		ids = append(ids, id)
	}
	env.m.mu.Unlock()
	for _, id := range ids {
		if _, err := env.store.Load(context.Background(), id); err != nil {
			t.Errorf("index entry %s has no blob: %v", id, err)
		}
	}
}

func TestDropDiskKeepsNewerSave(t *testing.T) {
	env := newTestManager(t, Limits{HotTTL: time.Minute})
	b := env.book(t, "n", "first")
	env.cache(t, b, types.PriorityHigh)

	env.m.mu.Lock()
	old := env.m.disk.entries["n"].cachedAt
	env.m.mu.Unlock()

	// A fresh save lands between an expiry check and the drop.
	env.clock.Advance(2 * time.Minute)
	if err := os.WriteFile(b.FilePath, []byte("second"), 0o644); err != nil {
		t.Fatal(err)
	}
	env.cache(t, b, types.PriorityHigh)

	if env.m.dropDisk(context.Background(), "n", old) {
		t.Error("dropDisk removed a newer blob")
	}
	entry, err := env.store.Load(context.Background(), "n")
	if err != nil || entry.Content != "second" {
		t.Fatalf("Load() = %+v, %v", entry, err)
	}
	assertIndexBacked(t, env)
}

func TestStaleDropRacesWithSave(t *testing.T) {
	gate := &gatedDeleteStore{entered: make(chan struct{}), release: make(chan struct{})}
	env := newTestManagerWrapped(t, Limits{HotTTL: time.Minute, WarmTTL: time.Minute, DiskTTL: time.Hour}, &fakeExtractor{},
		func(s diskstore.Store) diskstore.Store {
			gate.Store = s
			return gate
		})
	b := env.book(t, "r", "rama")
	env.cache(t, b, types.PriorityLow)
	env.clock.Advance(2 * time.Hour)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if _, err := env.m.GetContent(context.Background(), "r"); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetContent() of expired book error = %v", err)
		}
	}()

	<-gate.entered
	saved := make(chan struct{})
	go func() {
		defer wg.Done()
		defer close(saved)
		if _, err := env.m.CacheBookContent(context.Background(), b, types.PriorityLow); err != nil {
			t.Errorf("CacheBookContent() error = %v", err)
		}
	}()

	select {
	case <-saved:
		t.Fatal("save finished while a delete for the same book was in progress")
	case <-time.After(50 * time.Millisecond):
	}
	close(gate.release)
	wg.Wait()

	if _, err := env.store.Load(context.Background(), "r"); err != nil {
		t.Fatalf("fresh blob lost: %v", err)
	}
	if c := env.get(t, "r"); c.Text != "rama" {
		t.Errorf("GetContent() = %+v", c)
	}
	assertIndexBacked(t, env)
	if n := env.m.diskLocks.held(); n != 0 {
		t.Errorf("%d book locks still held", n)
	}
}

func TestClearDuringExtraction(t *testing.T) {
	for _, tc := range []struct {
		name  string
		clear func(m *Manager) error
	}{
		{"book", func(m *Manager) error {
			_, err := m.ClearBookCache(context.Background(), "g")
			return err
		}},
		{"all", func(m *Manager) error { return m.ClearAllCaches(context.Background()) }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ext := &fakeExtractor{gate: make(chan struct{}), started: make(chan struct{}, 1)}
			env := newTestManagerWith(t, Limits{}, ext)
			b := env.book(t, "g", "govinda")

			done := make(chan *Content, 1)
			go func() {
				c, err := env.m.CacheBookContent(context.Background(), b, types.PriorityHigh)
				if err != nil {
					t.Errorf("CacheBookContent() error = %v", err)
				}
				done <- c
			}()

			<-ext.started
			if err := tc.clear(env.m); err != nil {
				t.Fatalf("clear error = %v", err)
			}
			close(ext.gate)

			if c := <-done; c == nil || c.Text != "govinda" {
				t.Fatalf("caller got %+v", c)
			}
			if env.m.IsCached("g") {
				t.Error("cleared book was cached by an earlier extraction")
			}
			if _, err := env.store.Load(context.Background(), "g"); !errors.Is(err, diskstore.ErrNotFound) {
				t.Errorf("blob written after clear: %v", err)
			}
			if s := env.m.Stats(); s.Hot.Entries != 0 || s.Warm.Entries != 0 || s.Disk.Entries != 0 {
				t.Errorf("tier entries = %d/%d/%d", s.Hot.Entries, s.Warm.Entries, s.Disk.Entries)
			}

			if c := env.cache(t, b, types.PriorityHigh); c.Source != TierExtraction || !env.m.IsCached("g") {
				t.Errorf("extraction after clear = %+v", c)
			}
		})
	}
}
