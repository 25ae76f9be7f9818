package inmemory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moguls753/kontor/internal/jobs"
)

func TestPublishAndConsume(t *testing.T) {
	queue := NewQueue(8, 2)
	defer queue.Close()

	received := make(chan *jobs.SyncAccountsJob, 1)
	require.NoError(t, queue.Start(context.Background(), func(ctx context.Context, job *jobs.SyncAccountsJob) error {
		received <- job
		return nil
	}))

	require.NoError(t, queue.PublishSyncAccounts(context.Background(), &jobs.SyncAccountsJob{
		ConnectionID: 7,
		UserID:       1,
	}))

	select {
	case job := <-received:
		assert.EqualValues(t, 7, job.ConnectionID)
		assert.NotEmpty(t, job.JobID)
		assert.EqualValues(t, 3, job.MaxRetries)
	case <-time.After(2 * time.Second):
		t.Fatal("job was never delivered")
	}
}

func TestFailedJobIsRetried(t *testing.T) {
	queue := NewQueue(8, 1)
	defer queue.Close()

	var mu sync.Mutex
	attempts := 0
	done := make(chan struct{})
	require.NoError(t, queue.Start(context.Background(), func(ctx context.Context, job *jobs.SyncAccountsJob) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts < 2 {
			return fmt.Errorf("temporary failure")
		}
		close(done)
		return nil
	}))

	require.NoError(t, queue.PublishSyncAccounts(context.Background(), &jobs.SyncAccountsJob{ConnectionID: 1}))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("job was never retried")
	}
	mu.Lock()
	assert.Equal(t, 2, attempts)
	mu.Unlock()
}

func TestRetriesStopAtMaxRetries(t *testing.T) {
	queue := NewQueue(8, 1)
	defer queue.Close()

	var mu sync.Mutex
	attempts := 0
	require.NoError(t, queue.Start(context.Background(), func(ctx context.Context, job *jobs.SyncAccountsJob) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		return fmt.Errorf("permanent failure")
	}))

	job := &jobs.SyncAccountsJob{ConnectionID: 1, MaxRetries: 1}
	require.NoError(t, queue.PublishSyncAccounts(context.Background(), job))

	// First run plus one retry after a one second backoff.
	time.Sleep(2500 * time.Millisecond)
	mu.Lock()
	assert.Equal(t, 2, attempts)
	mu.Unlock()
}

func TestPublishAfterCloseFails(t *testing.T) {
	queue := NewQueue(8, 1)
	require.NoError(t, queue.Close())

	err := queue.PublishSyncAccounts(context.Background(), &jobs.SyncAccountsJob{ConnectionID: 1})
	require.Error(t, err)
}

func TestStopWaitsForWorkers(t *testing.T) {
	queue := NewQueue(8, 2)
	require.NoError(t, queue.Start(context.Background(), func(ctx context.Context, job *jobs.SyncAccountsJob) error {
		return nil
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, queue.Stop(ctx))

	// A second stop is a no-op.
	require.NoError(t, queue.Stop(context.Background()))
}
