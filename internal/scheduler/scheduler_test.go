package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andresuchdata/autopo-replenish/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRefresher struct {
	calls   atomic.Int32
	workers int
	err     error
}

func (f *fakeRefresher) RefreshCoverage(_ context.Context, _ domain.ProductFilter, workers int) (int, int, error) {
	f.calls.Add(1)
	f.workers = workers
	return 3, 1, f.err
}

func TestCoverageRefreshJob(t *testing.T) {
	r := &fakeRefresher{}
	job := NewCoverageRefreshJob(r, domain.ProductFilter{}, 0)

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, int32(1), r.calls.Load())
	assert.Equal(t, 1, r.workers)
	assert.Equal(t, "coverage_refresh", job.Name())

	r.err = errors.New("db down")
	assert.ErrorContains(t, job.Run(context.Background()), "db down")
}

func TestScheduler_AddJobRejectsBadSpec(t *testing.T) {
	s := New(zerolog.Nop(), 0)
	err := s.AddJob("0 0 * *", NewCoverageRefreshJob(&fakeRefresher{}, domain.ProductFilter{}, 1))
	assert.Error(t, err)
}

func TestScheduler_RunsOnSchedule(t *testing.T) {
	r := &fakeRefresher{}
	s := New(zerolog.Nop(), time.Second)
	job := NewCoverageRefreshJob(r, domain.ProductFilter{}, 2)
	require.NoError(t, s.AddJob("@every 1s", job))

	s.Start()
	defer s.Stop()

	next, ok := s.Next(job.Name())
	require.True(t, ok)
	assert.False(t, next.IsZero())

	assert.Eventually(t, func() bool { return r.calls.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
}

type blockingJob struct{}

func (blockingJob) Name() string { return "blocking" }
func (blockingJob) Run(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestScheduler_RunNowTimeout(t *testing.T) {
	s := New(zerolog.Nop(), 20*time.Millisecond)
	err := s.RunNow(blockingJob{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	_, ok := s.Next("blocking")
	assert.False(t, ok)
}
