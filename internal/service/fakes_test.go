package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/vrag/internal/ai"
	"github.com/xxxsen/vrag/internal/jobmonitor"
	"github.com/xxxsen/vrag/internal/model"
	"github.com/xxxsen/vrag/internal/objectstore"
	"github.com/xxxsen/vrag/internal/vectorstore"
	"github.com/xxxsen/vrag/internal/videogen"
)

type fakeEmbedder struct {
	vectors map[string][]float32
	calls   []ai.EmbedInput
	err     error
}

func (f *fakeEmbedder) Embed(ctx context.Context, in ai.EmbedInput) ([]float32, error) {
	f.calls = append(f.calls, in)
	if f.err != nil {
		return nil, f.err
	}
	if in.ImageBase64 != "" {
		return []float32{1, 0}, nil
	}
	if v, ok := f.vectors[in.Text]; ok {
		return v, nil
	}
	return []float32{0, 1}, nil
}

func (f *fakeEmbedder) ModelName() string {
	return "fake"
}

// lookupStore answers searches from a fixed table keyed by the first vector
// component; unknown vectors get no hits.
type lookupStore struct {
	assets   map[float32]*model.IndexedAsset
	searches int
}

func (s *lookupStore) Type() string {
	return "lookup"
}

func (s *lookupStore) CreateIndex(ctx context.Context) error {
	return nil
}

func (s *lookupStore) IndexDocument(ctx context.Context, asset *model.IndexedAsset) error {
	return nil
}

func (s *lookupStore) Search(ctx context.Context, vector []float32, k int) (model.SearchResult, error) {
	s.searches++
	if a, ok := s.assets[vector[0]]; ok {
		return model.SearchResult{{Asset: a, Score: 1}}, nil
	}
	return nil, nil
}

type fakeJob struct {
	statuses []*model.JobStatus
	polls    int
}

type fakeGen struct {
	mu        sync.Mutex
	submitted []*model.GenerationRequest
	outputs   []string
	jobs      map[model.JobHandle]*fakeJob
	script    func(i int) []*model.JobStatus
	submitErr error
}

func newFakeGen(script func(i int) []*model.JobStatus) *fakeGen {
	return &fakeGen{jobs: map[model.JobHandle]*fakeJob{}, script: script}
}

func completesAfter(pendingPolls int) func(i int) []*model.JobStatus {
	return func(i int) []*model.JobStatus {
		loc := fmt.Sprintf("s3://bucket/outputs/job-%d", i)
		var out []*model.JobStatus
		for j := 0; j < pendingPolls; j++ {
			out = append(out, &model.JobStatus{State: model.JobPending, OutputLocation: loc})
		}
		return append(out, &model.JobStatus{State: model.JobCompleted, OutputLocation: loc})
	}
}

func (f *fakeGen) Submit(ctx context.Context, req *model.GenerationRequest, outputURI string) (model.JobHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return "", f.submitErr
	}
	if err := videogen.Validate(req); err != nil {
		return "", err
	}
	i := len(f.submitted)
	f.submitted = append(f.submitted, req)
	f.outputs = append(f.outputs, outputURI)
	handle := model.JobHandle(fmt.Sprintf("arn:job-%d", i))
	f.jobs[handle] = &fakeJob{statuses: f.script(i)}
	return handle, nil
}

func (f *fakeGen) Poll(ctx context.Context, handle model.JobHandle) (*model.JobStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[handle]
	if !ok {
		return nil, fmt.Errorf("unknown handle %s", handle)
	}
	if job.polls >= len(job.statuses) {
		return nil, fmt.Errorf("handle %s polled after terminal status", handle)
	}
	st := job.statuses[job.polls]
	job.polls++
	return st, nil
}

func (f *fakeGen) totalPolls() int {
	total := 0
	for _, j := range f.jobs {
		total += j.polls
	}
	return total
}

type sleepRecorder struct {
	sleeps []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.sleeps = append(s.sleeps, d)
	return ctx.Err()
}

type harness struct {
	objects  objectstore.Store
	embedder *fakeEmbedder
	vectors  vectorstore.Store
	gen      *fakeGen
	sleeper  *sleepRecorder
	orch     *Orchestrator
}

func newHarness(t *testing.T, vectors vectorstore.Store, gen *fakeGen) *harness {
	t.Helper()
	objects, err := objectstore.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	h := &harness{
		objects:  objects,
		embedder: &fakeEmbedder{vectors: map[string][]float32{"red shoes": {1, 0}}},
		vectors:  vectors,
		gen:      gen,
		sleeper:  &sleepRecorder{},
	}
	monitor := jobmonitor.New(gen, jobmonitor.Config{Interval: time.Minute}).WithSleep(h.sleeper.sleep)
	h.orch = NewOrchestrator(h.embedder, vectors, objects, gen, monitor, OrchestratorConfig{
		Defaults: GenerationDefaults{
			DurationSeconds: 6,
			FramesPerSecond: 24,
			Resolution:      model.Resolution{Width: 1280, Height: 720},
			Seed:            0,
		},
		OutputPrefix: "outputs",
	})
	seq := 0
	h.orch.newID = func() string {
		seq++
		return fmt.Sprintf("run-%d", seq)
	}
	return h
}

// seedShoes stores an encoded payload for a red-shoes image and returns the
// matching asset.
func (h *harness) seedShoes(t *testing.T) *model.IndexedAsset {
	t.Helper()
	require.NoError(t, h.objects.Put(context.Background(), "encoded/red-shoes.png.b64", []byte("cmVkLXNob2Vz\n")))
	return &model.IndexedAsset{
		Embedding:        []float32{1, 0},
		Description:      "red shoes",
		EncodedLocation:  h.objects.URI("encoded/red-shoes.png.b64"),
		OriginalLocation: h.objects.URI("images/red-shoes.png"),
	}
}
