package run

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/video-translate/backend/internal/pipeline"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newTestRun() *Run {
	return &Run{
		ID:        uuid.New().String(),
		Status:    StatusPending,
		VideoName: "clip.mp4",
		VideoPath: "/data/uploads/x/clip.mp4",
		VideoHash: "abc123",
		Languages: []string{"fr", "de"},
		Engine:    "openai",
		CreatedAt: time.Now(),
	}
}

func TestStoreCreateAndGet(t *testing.T) {
	store := newTestStore(t)
	r := newTestRun()

	require.NoError(t, store.Create(r))

	got, err := store.Get(r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.ID, got.ID)
	assert.Equal(t, StatusPending, got.Status)
	assert.Equal(t, []string{"fr", "de"}, got.Languages)
	assert.Equal(t, "clip.mp4", got.VideoName)
	assert.Nil(t, got.StartedAt)
	assert.Nil(t, got.CompletedAt)
}

func TestStoreCompleteRoundTripsResult(t *testing.T) {
	store := newTestStore(t)
	r := newTestRun()
	require.NoError(t, store.Create(r))

	result := &pipeline.Result{
		Transcript: "hello there",
		Translations: []pipeline.Translation{
			{Language: "fr", Text: "bonjour"},
			{Language: "de", Error: "translation to de (openai): status 500"},
		},
	}
	require.NoError(t, store.Complete(r.ID, result, time.Now()))

	got, err := store.Get(r.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, 1.0, got.Progress)
	assert.Equal(t, "hello there", got.Transcript)
	require.Len(t, got.Translations, 2)
	assert.Equal(t, "bonjour", got.Translations[0].Text)
	assert.NotEmpty(t, got.Translations[1].Error)

	tr, ok := got.Translation("fr")
	require.True(t, ok)
	assert.Equal(t, "bonjour", tr.Text)
	_, ok = got.Translation("it")
	assert.False(t, ok)
}

func TestStoreFailKeepsNoPartialOutput(t *testing.T) {
	store := newTestStore(t)
	r := newTestRun()
	require.NoError(t, store.Create(r))

	require.NoError(t, store.Fail(r.ID, "transcribing", "provider timeout", time.Now()))

	got, err := store.Get(r.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "transcribing", got.Stage)
	assert.Equal(t, "provider timeout", got.Error)
	assert.Empty(t, got.Transcript)
	assert.Empty(t, got.Translations)
}

func TestStoreCancelOnlyNonTerminal(t *testing.T) {
	store := newTestStore(t)

	pending := newTestRun()
	require.NoError(t, store.Create(pending))
	require.NoError(t, store.Cancel(pending.ID, time.Now()))
	got, err := store.Get(pending.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)

	done := newTestRun()
	require.NoError(t, store.Create(done))
	require.NoError(t, store.Complete(done.ID, &pipeline.Result{Transcript: "t"}, time.Now()))
	require.NoError(t, store.Cancel(done.ID, time.Now()))
	got, err = store.Get(done.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status, "completed runs cannot be cancelled")
}

func TestStoreResetInterrupted(t *testing.T) {
	store := newTestStore(t)

	r := newTestRun()
	require.NoError(t, store.Create(r))
	require.NoError(t, store.MarkRunning(r.ID, time.Now()))

	ids, err := store.ResetInterrupted()
	require.NoError(t, err)
	assert.Contains(t, ids, r.ID)

	got, err := store.Get(r.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusRunning.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.True(t, StatusCancelled.Terminal())
}
