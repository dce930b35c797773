package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/xxxsen/vrag/internal/config"
	"github.com/xxxsen/vrag/internal/model"
)

// Store is a nearest-neighbour index of ingested assets. The similarity
// metric belongs to the backend.
type Store interface {
	Type() string
	CreateIndex(ctx context.Context) error
	IndexDocument(ctx context.Context, asset *model.IndexedAsset) error
	Search(ctx context.Context, vector []float32, k int) (model.SearchResult, error)
}

type FactoryArgs struct {
	AWS       aws.Config
	Dimension int
	Data      interface{}
}

type Factory func(args FactoryArgs) (Store, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

func Register(name string, factory Factory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registryMu.Lock()
	registry[key] = factory
	registryMu.Unlock()
}

func New(cfg config.VectorStoreConfig, dimension int, awsCfg aws.Config) (Store, error) {
	key := strings.ToLower(strings.TrimSpace(cfg.Type))
	if key == "" {
		return nil, fmt.Errorf("vector_store.type is required")
	}
	registryMu.RLock()
	factory := registry[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("unsupported vector store type: %s", cfg.Type)
	}
	return factory(FactoryArgs{AWS: awsCfg, Dimension: dimension, Data: cfg.Data})
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return fmt.Errorf("vector store config is required")
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode vector store config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode vector store config: %w", err)
	}
	return nil
}

func validateDocument(asset *model.IndexedAsset, dimension int) error {
	if asset == nil {
		return fmt.Errorf("asset is required")
	}
	if len(asset.Embedding) == 0 {
		return fmt.Errorf("asset %s has no embedding", asset.OriginalLocation)
	}
	if dimension > 0 && len(asset.Embedding) != dimension {
		return fmt.Errorf("asset %s embedding length %d, want %d", asset.OriginalLocation, len(asset.Embedding), dimension)
	}
	if asset.EncodedLocation == "" {
		return fmt.Errorf("asset %s has no encoded location", asset.OriginalLocation)
	}
	return nil
}
