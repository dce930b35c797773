package schedule

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type blockingJob struct {
	runs    atomic.Int32
	started chan struct{}
	release chan struct{}
}

func (j *blockingJob) Name() string {
	return "blocking"
}

func (j *blockingJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	j.started <- struct{}{}
	<-j.release
	return nil
}

type funcJob struct {
	name string
	fn   func(ctx context.Context) error
}

func (j funcJob) Name() string {
	return j.name
}

func (j funcJob) Run(ctx context.Context) error {
	return j.fn(ctx)
}

func TestWrap_SkipsOverlappingRuns(t *testing.T) {
	s := NewCronScheduler()
	job := &blockingJob{started: make(chan struct{}, 1), release: make(chan struct{})}
	tick := s.wrap(job, "* * * * *")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		tick()
	}()
	<-job.started
	tick()
	close(job.release)
	wg.Wait()
	require.EqualValues(t, 1, job.runs.Load())

	go tick()
	<-job.started
	require.EqualValues(t, 2, job.runs.Load())
}

func TestAddJob(t *testing.T) {
	s := NewCronScheduler()
	job := funcJob{name: "ingest", fn: func(ctx context.Context) error { return nil }}

	require.Error(t, s.AddJob(job, "not a cron spec"))
	require.NoError(t, s.AddJob(job, "*/30 * * * *"))
	require.Error(t, s.AddJob(job, "*/5 * * * *"))

	next, ok := s.Next("ingest")
	require.True(t, ok)
	require.True(t, next.After(time.Now()))
	_, ok = s.Next("missing")
	require.False(t, ok)
}

func TestRunOnce_ReturnsJobError(t *testing.T) {
	boom := errors.New("boom")
	err := RunOnce(context.Background(), funcJob{name: "x", fn: func(ctx context.Context) error { return boom }})
	require.ErrorIs(t, err, boom)
}

func TestWrap_UsesStartContext(t *testing.T) {
	s := NewCronScheduler()
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "v")
	s.Start(ctx)
	defer s.Stop()

	var got interface{}
	s.wrap(funcJob{name: "ctx", fn: func(ctx context.Context) error {
		got = ctx.Value(key{})
		return nil
	}}, "@every 1h")()
	require.Equal(t, "v", got)
}
