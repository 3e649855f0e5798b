package storage

import (
	"context"
	"time"

	"github.com/iudanet/tripsync/pkg/api"
)

// CachedView последний полученный снимок подписки
type CachedView struct {
	SavedAt   time.Time      `json:"saved_at"`
	Documents []api.Document `json:"documents"`
	Seq       int64          `json:"seq"`
}

// ViewCache хранит снимки подписок для просмотра без сети
type ViewCache interface {
	// SaveView сохраняет снимок под ключом запроса (api.Query.Key)
	SaveView(ctx context.Context, key string, view *CachedView) error

	// GetView возвращает снимок или ErrViewNotFound
	GetView(ctx context.Context, key string) (*CachedView, error)

	// ClearViews удаляет все снимки (при смене пользователя)
	ClearViews(ctx context.Context) error
}
