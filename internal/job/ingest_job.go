package job

import (
	"context"

	"github.com/xxxsen/vrag/internal/model"
)

type Ingester interface {
	Ingest(ctx context.Context) (*model.IngestReport, error)
}

// IngestJob indexes images uploaded since the previous run.
type IngestJob struct {
	ingestor Ingester
}

func NewIngestJob(ingestor Ingester) *IngestJob {
	return &IngestJob{ingestor: ingestor}
}

func (j *IngestJob) Name() string {
	return "ingest"
}

func (j *IngestJob) Run(ctx context.Context) error {
	if j.ingestor == nil {
		return nil
	}
	_, err := j.ingestor.Ingest(ctx)
	return err
}
