package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/xxxsen/vrag/internal/model"
)

type memoryStore struct {
	mu        sync.RWMutex
	dimension int
	assets    []*model.IndexedAsset
}

func init() {
	Register("memory", func(args FactoryArgs) (Store, error) {
		return NewMemoryStore(args.Dimension), nil
	})
}

// NewMemoryStore ranks by cosine similarity over an in-process slice. Its
// contents live only as long as the process.
func NewMemoryStore(dimension int) Store {
	return &memoryStore{dimension: dimension}
}

func (s *memoryStore) Type() string {
	return "memory"
}

func (s *memoryStore) CreateIndex(ctx context.Context) error {
	return nil
}

func (s *memoryStore) IndexDocument(ctx context.Context, asset *model.IndexedAsset) error {
	if err := validateDocument(asset, s.dimension); err != nil {
		return err
	}
	clone := *asset
	clone.Embedding = append([]float32(nil), asset.Embedding...)
	s.mu.Lock()
	s.assets = append(s.assets, &clone)
	s.mu.Unlock()
	return nil
}

func (s *memoryStore) Search(ctx context.Context, vector []float32, k int) (model.SearchResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}
	s.mu.RLock()
	hits := make(model.SearchResult, 0, len(s.assets))
	for _, asset := range s.assets {
		hits = append(hits, model.SearchHit{Asset: asset, Score: cosineSimilarity(vector, asset.Embedding)})
	}
	s.mu.RUnlock()
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
