package run

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/video-translate/backend/internal/pipeline"
)

func waitForTerminal(t *testing.T, store *Store, id string) *Run {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		r, err := store.Get(id)
		require.NoError(t, err)
		if r.Status.Terminal() {
			return r
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("run %s never reached a terminal state", id)
	return nil
}

func TestQueueProcessesRun(t *testing.T) {
	store := newTestStore(t)

	var cleaned atomic.Bool
	handler := func(ctx context.Context, r *Run, onProgress pipeline.Progress) (*pipeline.Result, error) {
		onProgress(pipeline.StageTranslating, 0.8)
		return &pipeline.Result{
			Transcript:   "hi",
			Translations: []pipeline.Translation{{Language: "fr", Text: "salut"}},
		}, nil
	}
	q := NewQueue(store, handler, func(*Run) { cleaned.Store(true) })
	defer q.Stop()

	r := &Run{ID: uuid.New().String(), VideoName: "clip.mp4", VideoPath: "/x", VideoHash: "h", Languages: []string{"fr"}, Engine: "openai"}
	require.NoError(t, q.Enqueue(r))

	got := waitForTerminal(t, store, r.ID)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, "hi", got.Transcript)
	require.Len(t, got.Translations, 1)
	assert.Equal(t, "salut", got.Translations[0].Text)
	assert.True(t, cleaned.Load(), "cleanup must run after a terminal run")
}

func TestQueueRecordsFailureStage(t *testing.T) {
	store := newTestStore(t)

	handler := func(ctx context.Context, r *Run, onProgress pipeline.Progress) (*pipeline.Result, error) {
		onProgress(pipeline.StageExtracting, 0)
		onProgress(pipeline.StageTranscribing, 0.33)
		return nil, context.DeadlineExceeded
	}
	q := NewQueue(store, handler, nil)
	defer q.Stop()

	r := &Run{ID: uuid.New().String(), VideoName: "clip.mp4", VideoPath: "/x", VideoHash: "h", Languages: []string{"fr"}}
	require.NoError(t, q.Enqueue(r))

	got := waitForTerminal(t, store, r.ID)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, string(pipeline.StageTranscribing), got.Stage)
	assert.Contains(t, got.Error, "deadline exceeded")
}

func TestQueueCancelRun(t *testing.T) {
	store := newTestStore(t)

	started := make(chan struct{})
	var cleaned atomic.Bool
	handler := func(ctx context.Context, r *Run, onProgress pipeline.Progress) (*pipeline.Result, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	q := NewQueue(store, handler, func(*Run) { cleaned.Store(true) })
	defer q.Stop()

	r := &Run{ID: uuid.New().String(), VideoName: "clip.mp4", VideoPath: "/x", VideoHash: "h", Languages: []string{"fr"}}
	require.NoError(t, q.Enqueue(r))

	<-started
	require.NoError(t, q.CancelRun(r.ID))

	got := waitForTerminal(t, store, r.ID)
	assert.Equal(t, StatusCancelled, got.Status)
	assert.Eventually(t, cleaned.Load, 2*time.Second, 10*time.Millisecond,
		"cancelled runs will not restart, their video must be cleaned up")
}

func TestQueueShutdownKeepsUploadForResume(t *testing.T) {
	store := newTestStore(t)

	video := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(video, []byte("fake video"), 0o644))

	started := make(chan struct{})
	returned := make(chan struct{})
	handler := func(ctx context.Context, r *Run, onProgress pipeline.Progress) (*pipeline.Result, error) {
		close(started)
		<-ctx.Done()
		defer close(returned)
		return nil, ctx.Err()
	}
	cleanup := func(r *Run) { os.Remove(r.VideoPath) }
	q := NewQueue(store, handler, cleanup)

	r := &Run{ID: uuid.New().String(), VideoName: "clip.mp4", VideoPath: video, VideoHash: "h", Languages: []string{"fr"}, Engine: "openai"}
	require.NoError(t, q.Enqueue(r))

	<-started
	q.Stop()
	<-returned
	time.Sleep(50 * time.Millisecond)

	got, err := store.Get(r.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, got.Status, "interrupted runs stay running until the next startup resets them")
	assert.FileExists(t, video, "a resumable run's source video must survive shutdown")
}

func TestQueueResumesInterruptedRun(t *testing.T) {
	store := newTestStore(t)

	r := newTestRun()
	require.NoError(t, store.Create(r))
	require.NoError(t, store.MarkRunning(r.ID, time.Now()))

	handler := func(ctx context.Context, run *Run, onProgress pipeline.Progress) (*pipeline.Result, error) {
		return &pipeline.Result{Transcript: "hi"}, nil
	}
	q := NewQueue(store, handler, nil)
	defer q.Stop()

	got := waitForTerminal(t, store, r.ID)
	assert.Equal(t, StatusCompleted, got.Status)
}
