package vectorstore

import (
	"context"

	"github.com/xxxsen/vrag/internal/model"
	"github.com/xxxsen/vrag/internal/ratelimit"
)

// WithRateLimit makes every index and search call wait on limiter first.
func WithRateLimit(s Store, limiter ratelimit.Limiter) Store {
	if s == nil || limiter == nil {
		return s
	}
	return &throttledStore{next: s, limiter: limiter}
}

type throttledStore struct {
	next    Store
	limiter ratelimit.Limiter
}

func (t *throttledStore) Type() string {
	return t.next.Type()
}

func (t *throttledStore) CreateIndex(ctx context.Context) error {
	return t.next.CreateIndex(ctx)
}

func (t *throttledStore) IndexDocument(ctx context.Context, asset *model.IndexedAsset) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}
	return t.next.IndexDocument(ctx, asset)
}

func (t *throttledStore) Search(ctx context.Context, vector []float32, k int) (model.SearchResult, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return t.next.Search(ctx, vector, k)
}
