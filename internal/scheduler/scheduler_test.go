package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chronoplan/calsync-api/internal/dto"
	"github.com/chronoplan/calsync-api/pkg/config"
	"github.com/chronoplan/calsync-api/pkg/jobs"
)

type stubStaleLister struct {
	users     []string
	err       error
	lastLimit int
}

func (s *stubStaleLister) ListStaleUsers(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	s.lastLimit = limit
	return s.users, s.err
}

type recordingRunner struct {
	mu     sync.Mutex
	synced []string
	fail   map[string]bool
	done   chan string
}

func (r *recordingRunner) SyncUserCalendar(ctx context.Context, userID string, req dto.SyncRequest) dto.SyncResult {
	r.mu.Lock()
	r.synced = append(r.synced, userID)
	fail := r.fail[userID]
	r.mu.Unlock()
	if r.done != nil {
		r.done <- userID
	}
	if fail {
		return dto.SyncResult{Success: false, Error: "provider unavailable"}
	}
	return dto.SyncResult{Success: true}
}

func TestSchedulerEnqueuesAndSyncsStaleUsers(t *testing.T) {
	lister := &stubStaleLister{users: []string{"u1", "u2"}}
	runner := &recordingRunner{done: make(chan string, 4)}
	s := New(lister, runner, config.SchedulerConfig{Workers: 2, BatchSize: 25}, time.Hour, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.queue.Start(ctx)
	defer s.queue.Stop()

	s.enqueueStale(ctx)

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case user := <-runner.done:
			seen[user] = true
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for resync jobs")
		}
	}
	assert.True(t, seen["u1"])
	assert.True(t, seen["u2"])
	assert.Equal(t, 25, lister.lastLimit)
}

func TestSchedulerToleratesScanFailure(t *testing.T) {
	lister := &stubStaleLister{err: errors.New("relation does not exist")}
	runner := &recordingRunner{}
	s := New(lister, runner, config.SchedulerConfig{Workers: 1}, time.Hour, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.queue.Start(ctx)
	defer s.queue.Stop()

	s.enqueueStale(ctx)
	assert.Empty(t, runner.synced)
}

func TestSchedulerHandleJobReportsFailureForRetry(t *testing.T) {
	runner := &recordingRunner{fail: map[string]bool{"u1": true}}
	s := New(&stubStaleLister{}, runner, config.SchedulerConfig{}, time.Hour, zap.NewNop())

	err := s.handleJob(context.Background(), jobs.Job{ID: "resync-u1", Type: "resync", Payload: "u1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "u1")

	err = s.handleJob(context.Background(), jobs.Job{ID: "resync-u2", Type: "resync", Payload: "u2"})
	assert.NoError(t, err)
}

func TestSchedulerHandleJobRejectsMalformedPayload(t *testing.T) {
	s := New(&stubStaleLister{}, &recordingRunner{}, config.SchedulerConfig{}, time.Hour, zap.NewNop())

	err := s.handleJob(context.Background(), jobs.Job{ID: "resync-bad", Type: "resync", Payload: 42})
	require.Error(t, err)
}

func TestSchedulerStartRejectsBadCronSpec(t *testing.T) {
	s := New(&stubStaleLister{}, &recordingRunner{}, config.SchedulerConfig{CronSpec: "not a cron line"}, time.Hour, zap.NewNop())

	err := s.Start(context.Background())
	require.Error(t, err)
}
