package cache

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/abhishek-sinu/Vedic-ebook-library-sub000/internal/jobs"
	"github.com/abhishek-sinu/Vedic-ebook-library-sub000/internal/types"
)

const preloadTask = "preload"

// PreloadBatch describes what PreloadPopularBooks queued.
type PreloadBatch struct {
	ID      string   `json:"batch_id"`
	Queued  []string `json:"queued"`
	Skipped []string `json:"skipped"`
}

// PreloadPopularBooks queues extraction of up to maxCount books at low
// priority and returns immediately. Books already cached are skipped.
// maxCount <= 0 means every book.
func (m *Manager) PreloadPopularBooks(books []types.Book, maxCount int) (*PreloadBatch, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}
	if maxCount <= 0 || maxCount > len(books) {
		maxCount = len(books)
	}

	batch := &PreloadBatch{ID: uuid.New().String(), Queued: []string{}, Skipped: []string{}}
	for _, b := range books[:maxCount] {
		if m.IsCached(b.ID) {
			batch.Skipped = append(batch.Skipped, b.ID)
			continue
		}
		if err := m.pool.Submit(jobs.NewWorkUnit(batch.ID, preloadTask, b)); err != nil {
			m.logger.Warn("preload not queued", "book_id", b.ID, "error", err)
			batch.Skipped = append(batch.Skipped, b.ID)
			continue
		}
		batch.Queued = append(batch.Queued, b.ID)
	}

	m.logger.Info("preload queued", "batch_id", batch.ID, "queued", len(batch.Queued), "skipped", len(batch.Skipped))
	return batch, nil
}

func (m *Manager) handlePreload(ctx context.Context, unit *jobs.WorkUnit) error {
	book, ok := unit.Payload.(types.Book)
	if !ok {
		return fmt.Errorf("unexpected preload payload %T", unit.Payload)
	}
	if m.IsCached(book.ID) {
		return nil
	}
	_, err := m.CacheBookContent(ctx, book, types.PriorityLow)
	return err
}

func (m *Manager) onPreloadResult(r jobs.WorkResult) {
	if r.Error != nil {
		m.logger.Warn("preload failed", "batch_id", r.Unit.BatchID, "unit_id", r.Unit.ID, "error", r.Error)
		return
	}
	m.logger.Debug("preload finished", "batch_id", r.Unit.BatchID, "unit_id", r.Unit.ID, "duration", r.Duration)
}
