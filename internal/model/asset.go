package model

// IndexedAsset is created once per source image during ingestion and only
// read afterwards.
type IndexedAsset struct {
	Embedding        []float32 `json:"vector_embedding"`
	Description      string    `json:"description_text"`
	EncodedLocation  string    `json:"encoded_asset_location"`
	OriginalLocation string    `json:"original_asset_location"`
}

type SearchHit struct {
	Asset *IndexedAsset
	Score float32
}

// SearchResult is ranked best first.
type SearchResult []SearchHit

func (r SearchResult) Best() (*SearchHit, bool) {
	if len(r) == 0 {
		return nil, false
	}
	return &r[0], true
}

type IngestReport struct {
	Listed   int `json:"listed"`
	Indexed  int `json:"indexed"`
	Existing int `json:"existing"`
	Failed   int `json:"failed"`
}
