package vectorstore

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/vrag/internal/config"
	"github.com/xxxsen/vrag/internal/model"
)

func asset(name string, vec ...float32) *model.IndexedAsset {
	return &model.IndexedAsset{
		Embedding:        vec,
		Description:      name,
		EncodedLocation:  "s3://b/encoded/" + name + ".b64",
		OriginalLocation: "s3://b/images/" + name + ".png",
	}
}

func TestMemoryStore_SearchRanksByCosine(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(2)
	require.NoError(t, s.IndexDocument(ctx, asset("shoes", 1, 0)))
	require.NoError(t, s.IndexDocument(ctx, asset("hat", 0, 1)))
	require.NoError(t, s.IndexDocument(ctx, asset("boots", 0.9, 0.1)))

	res, err := s.Search(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, res, 2)
	require.Equal(t, "shoes", res[0].Asset.Description)
	require.Equal(t, "boots", res[1].Asset.Description)
	require.GreaterOrEqual(t, res[0].Score, res[1].Score)

	best, ok := res.Best()
	require.True(t, ok)
	require.Equal(t, "shoes", best.Asset.Description)
}

func TestMemoryStore_EmptyAndInvalid(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(2)
	res, err := s.Search(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)
	require.Empty(t, res)
	_, ok := res.Best()
	require.False(t, ok)

	_, err = s.Search(ctx, []float32{1, 0}, 0)
	require.Error(t, err)
	require.Error(t, s.IndexDocument(ctx, asset("short", 1)))
	require.Error(t, s.IndexDocument(ctx, &model.IndexedAsset{Embedding: []float32{1, 1}}))
	require.Error(t, s.IndexDocument(ctx, nil))
}

type countingLimiter struct {
	calls int
}

func (c *countingLimiter) Wait(ctx context.Context) error {
	c.calls++
	return nil
}

func TestWithRateLimit_WaitsBeforeCalls(t *testing.T) {
	ctx := context.Background()
	limiter := &countingLimiter{}
	s := WithRateLimit(NewMemoryStore(2), limiter)
	require.Equal(t, "memory", s.Type())
	require.NoError(t, s.CreateIndex(ctx))
	require.NoError(t, s.IndexDocument(ctx, asset("shoes", 1, 0)))
	_, err := s.Search(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)
	require.Equal(t, 2, limiter.calls)
}

func TestNew_Registry(t *testing.T) {
	s, err := New(config.VectorStoreConfig{Type: "Memory"}, 4, aws.Config{})
	require.NoError(t, err)
	require.Equal(t, "memory", s.Type())

	_, err = New(config.VectorStoreConfig{Type: "faiss"}, 4, aws.Config{})
	require.Error(t, err)
	_, err = New(config.VectorStoreConfig{Type: "opensearch", Data: map[string]interface{}{"index": "x"}}, 4, aws.Config{})
	require.Error(t, err)
	_, err = New(config.VectorStoreConfig{Type: "pgvector", Data: map[string]interface{}{"dsn": "postgres://x", "table": "bad;drop"}}, 4, aws.Config{})
	require.Error(t, err)
}
