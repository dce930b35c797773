package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/opensearch-project/opensearch-go/v4"
	"github.com/opensearch-project/opensearch-go/v4/opensearchapi"
	requestsigner "github.com/opensearch-project/opensearch-go/v4/signer/awsv2"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/vrag/internal/model"
)

const (
	fieldEmbedding        = "vector_embedding"
	fieldDescription      = "description_text"
	fieldEncodedLocation  = "encoded_asset_location"
	fieldOriginalLocation = "original_asset_location"
)

type openSearchConfig struct {
	Endpoint string `json:"endpoint"`
	Index    string `json:"index"`
	// Service is the SigV4 signing name: "aoss" for serverless
	// collections, "es" for managed domains.
	Service string `json:"service"`
}

type rawHit struct {
	Score  float32
	Source json.RawMessage
}

// openSearchAPI is the slice of the OpenSearch client the store needs.
type openSearchAPI interface {
	IndexExists(ctx context.Context, index string) (bool, error)
	CreateIndex(ctx context.Context, index string, body io.Reader) error
	Index(ctx context.Context, index string, body io.Reader) error
	Search(ctx context.Context, index string, body io.Reader) ([]rawHit, error)
}

type openSearchStore struct {
	api       openSearchAPI
	index     string
	dimension int
}

func init() {
	Register("opensearch", createOpenSearchStore)
}

func createOpenSearchStore(args FactoryArgs) (Store, error) {
	cfg := &openSearchConfig{}
	if err := decodeConfig(args.Data, cfg); err != nil {
		return nil, err
	}
	if cfg.Endpoint == "" || cfg.Index == "" {
		return nil, fmt.Errorf("opensearch endpoint/index are required")
	}
	if cfg.Service == "" {
		cfg.Service = "aoss"
	}
	api, err := newOpenSearchClient(args.AWS, cfg)
	if err != nil {
		return nil, err
	}
	return newOpenSearchStore(api, cfg.Index, args.Dimension), nil
}

func newOpenSearchStore(api openSearchAPI, index string, dimension int) *openSearchStore {
	return &openSearchStore{api: api, index: index, dimension: dimension}
}

func (s *openSearchStore) Type() string {
	return "opensearch"
}

func (s *openSearchStore) CreateIndex(ctx context.Context) error {
	logger := logutil.GetLogger(ctx).With(zap.String("index", s.index))
	exists, err := s.api.IndexExists(ctx, s.index)
	if err != nil {
		return fmt.Errorf("check index %s: %w", s.index, err)
	}
	if exists {
		logger.Info("vector index already exists")
		return nil
	}
	body, err := json.Marshal(s.indexSchema())
	if err != nil {
		return err
	}
	if err := s.api.CreateIndex(ctx, s.index, bytes.NewReader(body)); err != nil {
		return fmt.Errorf("create index %s: %w", s.index, err)
	}
	logger.Info("vector index created", zap.Int("dimension", s.dimension))
	return nil
}

func (s *openSearchStore) indexSchema() map[string]interface{} {
	return map[string]interface{}{
		"settings": map[string]interface{}{
			"index": map[string]interface{}{"knn": true},
		},
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				fieldEmbedding: map[string]interface{}{
					"type":      "knn_vector",
					"dimension": s.dimension,
					"method": map[string]interface{}{
						"name":       "hnsw",
						"engine":     "faiss",
						"space_type": "l2",
					},
				},
				fieldDescription:      map[string]interface{}{"type": "text"},
				fieldEncodedLocation:  map[string]interface{}{"type": "keyword"},
				fieldOriginalLocation: map[string]interface{}{"type": "keyword"},
			},
		},
	}
}

func (s *openSearchStore) IndexDocument(ctx context.Context, asset *model.IndexedAsset) error {
	if err := validateDocument(asset, s.dimension); err != nil {
		return err
	}
	body, err := json.Marshal(asset)
	if err != nil {
		return err
	}
	if err := s.api.Index(ctx, s.index, bytes.NewReader(body)); err != nil {
		return fmt.Errorf("index document %s: %w", asset.OriginalLocation, err)
	}
	return nil
}

func (s *openSearchStore) Search(ctx context.Context, vector []float32, k int) (model.SearchResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}
	query := map[string]interface{}{
		"size": k,
		"query": map[string]interface{}{
			"knn": map[string]interface{}{
				fieldEmbedding: map[string]interface{}{
					"vector": vector,
					"k":      k,
				},
			},
		},
		"_source": map[string]interface{}{
			"excludes": []string{fieldEmbedding},
		},
	}
	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}
	hits, err := s.api.Search(ctx, s.index, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("search index %s: %w", s.index, err)
	}
	result := make(model.SearchResult, 0, len(hits))
	for _, hit := range hits {
		asset := &model.IndexedAsset{}
		if err := json.Unmarshal(hit.Source, asset); err != nil {
			return nil, fmt.Errorf("decode search hit: %w", err)
		}
		result = append(result, model.SearchHit{Asset: asset, Score: hit.Score})
	}
	return result, nil
}

type openSearchClient struct {
	client *opensearchapi.Client
}

func newOpenSearchClient(awsCfg aws.Config, cfg *openSearchConfig) (openSearchAPI, error) {
	signer, err := requestsigner.NewSignerWithService(awsCfg, cfg.Service)
	if err != nil {
		return nil, fmt.Errorf("init opensearch signer: %w", err)
	}
	endpoint := cfg.Endpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}
	client, err := opensearchapi.NewClient(opensearchapi.Config{
		Client: opensearch.Config{
			Addresses: []string{endpoint},
			Signer:    signer,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("init opensearch client: %w", err)
	}
	return &openSearchClient{client: client}, nil
}

func (c *openSearchClient) IndexExists(ctx context.Context, index string) (bool, error) {
	resp, err := c.client.Indices.Exists(ctx, opensearchapi.IndicesExistsReq{Indices: []string{index}})
	if resp != nil && resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (c *openSearchClient) CreateIndex(ctx context.Context, index string, body io.Reader) error {
	_, err := c.client.Indices.Create(ctx, opensearchapi.IndicesCreateReq{Index: index, Body: body})
	return err
}

func (c *openSearchClient) Index(ctx context.Context, index string, body io.Reader) error {
	_, err := c.client.Index(ctx, opensearchapi.IndexReq{Index: index, Body: body})
	return err
}

func (c *openSearchClient) Search(ctx context.Context, index string, body io.Reader) ([]rawHit, error) {
	resp, err := c.client.Search(ctx, &opensearchapi.SearchReq{Indices: []string{index}, Body: body})
	if err != nil {
		return nil, err
	}
	hits := make([]rawHit, 0, len(resp.Hits.Hits))
	for _, hit := range resp.Hits.Hits {
		hits = append(hits, rawHit{Score: hit.Score, Source: hit.Source})
	}
	return hits, nil
}
