package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeOpenSearch struct {
	exists      bool
	created     map[string]interface{}
	indexed     []map[string]interface{}
	searchQuery map[string]interface{}
	hits        []rawHit
	searchErr   error
}

func decodeBody(t *testing.T, body io.Reader) map[string]interface{} {
	t.Helper()
	out := map[string]interface{}{}
	require.NoError(t, json.NewDecoder(body).Decode(&out))
	return out
}

type fakeOpenSearchAPI struct {
	t *testing.T
	*fakeOpenSearch
}

func (f fakeOpenSearchAPI) IndexExists(ctx context.Context, index string) (bool, error) {
	return f.exists, nil
}

func (f fakeOpenSearchAPI) CreateIndex(ctx context.Context, index string, body io.Reader) error {
	f.created = decodeBody(f.t, body)
	return nil
}

func (f fakeOpenSearchAPI) Index(ctx context.Context, index string, body io.Reader) error {
	f.indexed = append(f.indexed, decodeBody(f.t, body))
	return nil
}

func (f fakeOpenSearchAPI) Search(ctx context.Context, index string, body io.Reader) ([]rawHit, error) {
	f.searchQuery = decodeBody(f.t, body)
	return f.hits, f.searchErr
}

func newFakeOpenSearchStore(t *testing.T, state *fakeOpenSearch) *openSearchStore {
	return newOpenSearchStore(fakeOpenSearchAPI{t: t, fakeOpenSearch: state}, "vrag-assets", 2)
}

func TestOpenSearchStore_CreateIndexSchema(t *testing.T) {
	state := &fakeOpenSearch{}
	s := newFakeOpenSearchStore(t, state)
	require.NoError(t, s.CreateIndex(context.Background()))

	props := state.created["mappings"].(map[string]interface{})["properties"].(map[string]interface{})
	vec := props[fieldEmbedding].(map[string]interface{})
	require.Equal(t, "knn_vector", vec["type"])
	require.EqualValues(t, 2, vec["dimension"])
	require.Contains(t, props, fieldDescription)
	require.Contains(t, props, fieldEncodedLocation)
	require.Contains(t, props, fieldOriginalLocation)
}

func TestOpenSearchStore_CreateIndexSkipsExisting(t *testing.T) {
	state := &fakeOpenSearch{exists: true}
	s := newFakeOpenSearchStore(t, state)
	require.NoError(t, s.CreateIndex(context.Background()))
	require.Nil(t, state.created)
}

func TestOpenSearchStore_IndexDocument(t *testing.T) {
	state := &fakeOpenSearch{}
	s := newFakeOpenSearchStore(t, state)
	require.NoError(t, s.IndexDocument(context.Background(), asset("shoes", 1, 0)))
	require.Len(t, state.indexed, 1)
	doc := state.indexed[0]
	require.Equal(t, "shoes", doc[fieldDescription])
	require.Equal(t, "s3://b/encoded/shoes.b64", doc[fieldEncodedLocation])
	require.Equal(t, "s3://b/images/shoes.png", doc[fieldOriginalLocation])
	require.Len(t, doc[fieldEmbedding], 2)

	require.Error(t, s.IndexDocument(context.Background(), asset("bad", 1, 0, 0)))
}

func TestOpenSearchStore_Search(t *testing.T) {
	state := &fakeOpenSearch{hits: []rawHit{
		{Score: 0.9, Source: json.RawMessage(`{"description_text":"shoes","encoded_asset_location":"s3://b/encoded/shoes.b64","original_asset_location":"s3://b/images/shoes.png"}`)},
	}}
	s := newFakeOpenSearchStore(t, state)
	res, err := s.Search(context.Background(), []float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	require.Equal(t, float32(0.9), res[0].Score)
	require.Equal(t, "s3://b/encoded/shoes.b64", res[0].Asset.EncodedLocation)

	require.EqualValues(t, 1, state.searchQuery["size"])
	knn := state.searchQuery["query"].(map[string]interface{})["knn"].(map[string]interface{})
	field := knn[fieldEmbedding].(map[string]interface{})
	require.EqualValues(t, 1, field["k"])
	require.Len(t, field["vector"], 2)
}

func TestOpenSearchStore_SearchErrors(t *testing.T) {
	s := newFakeOpenSearchStore(t, &fakeOpenSearch{searchErr: errors.New("403 forbidden")})
	_, err := s.Search(context.Background(), []float32{1, 0}, 1)
	require.ErrorContains(t, err, "403 forbidden")

	s = newFakeOpenSearchStore(t, &fakeOpenSearch{hits: []rawHit{{Source: json.RawMessage(`not json`)}}})
	_, err = s.Search(context.Background(), []float32{1, 0}, 1)
	require.Error(t, err)
}
