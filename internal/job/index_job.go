package job

import (
	"context"

	"github.com/xxxsen/vrag/internal/vectorstore"
)

// IndexBootstrapJob makes sure the vector index exists before ingestion
// writes to it.
type IndexBootstrapJob struct {
	store vectorstore.Store
}

func NewIndexBootstrapJob(store vectorstore.Store) *IndexBootstrapJob {
	return &IndexBootstrapJob{store: store}
}

func (j *IndexBootstrapJob) Name() string {
	return "index_bootstrap"
}

func (j *IndexBootstrapJob) Run(ctx context.Context) error {
	if j.store == nil {
		return nil
	}
	return j.store.CreateIndex(ctx)
}
