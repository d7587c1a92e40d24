package inmemory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dvloznov/agritool/internal/jobs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func waitForStatus(t *testing.T, store *Store, id string, want jobs.JobStatus) *jobs.SynthesizeSpeechJob {
	t.Helper()
	var job *jobs.SynthesizeSpeechJob
	require.Eventually(t, func() bool {
		var err error
		job, err = store.GetJob(context.Background(), id)
		return err == nil && job.Status == want
	}, 2*time.Second, 5*time.Millisecond)
	return job
}

func TestQueue_ProcessesJob(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewStore()
	q := NewQueue(10, 1, 0, store)

	var seen atomic.Value
	require.NoError(t, q.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		j := job.(*jobs.SynthesizeSpeechJob)
		seen.Store(j.Text)
		j.Digest = "abc"
		return nil
	}))

	job := &jobs.SynthesizeSpeechJob{Username: "ravi", Text: "Delay irrigation.", Language: "English"}
	require.NoError(t, q.PublishSynthesizeSpeech(ctx, job))
	require.NotEmpty(t, job.JobID)

	done := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	assert.Equal(t, "abc", done.Digest)
	assert.NotNil(t, done.StartedAt)
	assert.NotNil(t, done.CompletedAt)
	assert.Equal(t, "Delay irrigation.", seen.Load())

	require.NoError(t, q.Stop(context.Background()))
}

func TestQueue_RetriesThenFails(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewStore()
	q := NewQueue(10, 1, 2, store)
	q.backoff = time.Millisecond

	var attempts atomic.Int32
	require.NoError(t, q.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		attempts.Add(1)
		return errors.New("tts unavailable")
	}))

	job := &jobs.SynthesizeSpeechJob{Username: "ravi", Text: "x"}
	require.NoError(t, q.PublishSynthesizeSpeech(ctx, job))

	failed := waitForStatus(t, store, job.JobID, jobs.JobStatusFailed)
	assert.Equal(t, "tts unavailable", failed.Error)
	assert.Equal(t, 2, failed.RetryCount)
	assert.Equal(t, int32(3), attempts.Load())

	require.NoError(t, q.Close())
}

func TestQueue_RetryAfterStopMarksFailed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewStore()
	q := NewQueue(10, 1, 2, store)
	q.backoff = 200 * time.Millisecond

	require.NoError(t, q.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		return errors.New("tts unavailable")
	}))

	job := &jobs.SynthesizeSpeechJob{Username: "ravi", Text: "x"}
	require.NoError(t, q.PublishSynthesizeSpeech(ctx, job))

	waitForStatus(t, store, job.JobID, jobs.JobStatusRetrying)
	require.NoError(t, q.Stop(context.Background()))

	failed := waitForStatus(t, store, job.JobID, jobs.JobStatusFailed)
	assert.Contains(t, failed.Error, "queue is closed")
	assert.Equal(t, 1, failed.RetryCount)
}

func TestQueue_PublishAfterClose(t *testing.T) {
	q := NewQueue(1, 1, 0, NewStore())
	require.NoError(t, q.Close())
	require.NoError(t, q.Close())

	err := q.PublishSynthesizeSpeech(context.Background(), &jobs.SynthesizeSpeechJob{})
	assert.Error(t, err)
	assert.Error(t, q.Start(context.Background(), nil))
}
