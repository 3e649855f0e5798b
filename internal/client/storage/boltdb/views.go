package boltdb

import (
	"context"
	"errors"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/tripsync/internal/client/storage"
)

// SaveView сохраняет снимок подписки под ключом запроса
func (s *Storage) SaveView(_ context.Context, key string, view *storage.CachedView) error {
	if key == "" {
		return errors.New("view key is empty")
	}
	return s.putRecord(bucketViews, []byte(key), view)
}

// GetView возвращает снимок или storage.ErrViewNotFound
func (s *Storage) GetView(_ context.Context, key string) (*storage.CachedView, error) {
	return getRecord[storage.CachedView](s, bucketViews, []byte(key), storage.ErrViewNotFound)
}

// ClearViews удаляет все снимки пересозданием bucket
func (s *Storage) ClearViews(_ context.Context) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketViews); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
			return fmt.Errorf("failed to delete views bucket: %w", err)
		}
		if _, err := tx.CreateBucket(bucketViews); err != nil {
			return fmt.Errorf("failed to create views bucket: %w", err)
		}
		return nil
	})
}
