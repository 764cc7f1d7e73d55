package pipeline

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/video-translate/backend/internal/config"
	"github.com/video-translate/backend/internal/media"
	"github.com/video-translate/backend/internal/transcribe"
	"github.com/video-translate/backend/internal/translate"
)

type fakeExtractor struct {
	err     error
	cleaned atomic.Bool
}

func (f *fakeExtractor) ExtractAudio(ctx context.Context, videoPath string) (string, func(), error) {
	if f.err != nil {
		return "", func() {}, f.err
	}
	return "/tmp/audio.mp3", func() { f.cleaned.Store(true) }, nil
}

type fakeTranscriber struct {
	text  string
	err   error
	calls atomic.Int32
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, req transcribe.TranscribeRequest, updateProgress func(float64)) (*transcribe.TranscribeResult, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	updateProgress(1.0)
	return &transcribe.TranscribeResult{Text: f.text}, nil
}

func (f *fakeTranscriber) Name() string { return "fake" }

// fakeTranslator echoes "<lang>:<transcript>" and fails for the languages
// listed in failFor. It registers itself under the default engine name.
type fakeTranslator struct {
	failFor map[string]bool
	calls   *atomic.Int32
}

func (f *fakeTranslator) Name() string { return translate.DefaultEngine }

func (f *fakeTranslator) Translate(ctx context.Context, transcript, targetLang string) (string, error) {
	f.calls.Add(1)
	if f.failFor[targetLang] {
		return "", &translate.TranslationError{
			Provider: f.Name(),
			Language: targetLang,
			Err:      context.DeadlineExceeded,
		}
	}
	return targetLang + ":" + transcript, nil
}

func newPipeline(t *testing.T, ext *fakeExtractor, tr *fakeTranscriber, failFor map[string]bool, translatorCalls *atomic.Int32) *Pipeline {
	t.Helper()
	registry := translate.NewRegistry(&config.Config{OpenAIAPIKey: "unused", ChatModel: "unused"})
	registry.Register(&fakeTranslator{failFor: failFor, calls: translatorCalls})
	return New(ext, tr, registry, 2)
}

func TestRunSuccessPreservesRequestedOrder(t *testing.T) {
	ext := &fakeExtractor{}
	trc := &fakeTranscriber{text: "hello there"}
	var calls atomic.Int32

	p := newPipeline(t, ext, trc, nil, &calls)

	result, err := p.Run(context.Background(), Request{
		VideoPath: "clip.mp4",
		Languages: []string{"fr", "de"},
	}, func(Stage, float64) {})
	require.NoError(t, err)

	assert.Equal(t, "hello there", result.Transcript)
	require.Len(t, result.Translations, 2)
	assert.Equal(t, "fr", result.Translations[0].Language)
	assert.Equal(t, "fr:hello there", result.Translations[0].Text)
	assert.Equal(t, "de", result.Translations[1].Language)
	assert.Equal(t, "de:hello there", result.Translations[1].Text)
	assert.True(t, ext.cleaned.Load(), "audio payload must be removed after the run")
}

func TestRunExtractionFailureShortCircuits(t *testing.T) {
	extErr := &media.ExtractionError{Op: "extract", Path: "silent.mp4", Err: media.ErrNoAudioStream}
	ext := &fakeExtractor{err: extErr}
	trc := &fakeTranscriber{text: "unused"}
	var calls atomic.Int32

	p := newPipeline(t, ext, trc, nil, &calls)

	_, err := p.Run(context.Background(), Request{VideoPath: "silent.mp4", Languages: []string{"fr"}},
		func(Stage, float64) {})
	require.Error(t, err)

	var gotExt *media.ExtractionError
	assert.ErrorAs(t, err, &gotExt)
	assert.Equal(t, int32(0), trc.calls.Load(), "transcriber must not run after extraction failure")
	assert.Equal(t, int32(0), calls.Load(), "no translator calls after extraction failure")
}

func TestRunTranscriptionFailureShortCircuits(t *testing.T) {
	ext := &fakeExtractor{}
	trcErr := &transcribe.TranscriptionError{Provider: "fake", Err: context.DeadlineExceeded}
	trc := &fakeTranscriber{err: trcErr}
	var calls atomic.Int32

	p := newPipeline(t, ext, trc, nil, &calls)

	_, err := p.Run(context.Background(), Request{VideoPath: "clip.mp4", Languages: []string{"fr", "de"}},
		func(Stage, float64) {})
	require.Error(t, err)

	var gotTrc *transcribe.TranscriptionError
	assert.ErrorAs(t, err, &gotTrc)
	assert.Equal(t, int32(0), calls.Load(), "no translator calls after transcription failure")
	assert.True(t, ext.cleaned.Load(), "audio payload must be removed after a failed run")
}

func TestRunIsolatesPerLanguageFailures(t *testing.T) {
	ext := &fakeExtractor{}
	trc := &fakeTranscriber{text: "hello"}
	var calls atomic.Int32

	p := newPipeline(t, ext, trc, map[string]bool{"de": true}, &calls)

	result, err := p.Run(context.Background(), Request{
		VideoPath: "clip.mp4",
		Languages: []string{"fr", "de", "it"},
	}, func(Stage, float64) {})
	require.NoError(t, err)

	require.Len(t, result.Translations, 3)
	assert.Equal(t, "fr:hello", result.Translations[0].Text)
	assert.Empty(t, result.Translations[0].Error)

	assert.Equal(t, "de", result.Translations[1].Language)
	assert.Empty(t, result.Translations[1].Text)
	assert.NotEmpty(t, result.Translations[1].Error, "failed language must be flagged, not omitted")

	assert.Equal(t, "it:hello", result.Translations[2].Text)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRunReportsStages(t *testing.T) {
	ext := &fakeExtractor{}
	trc := &fakeTranscriber{text: "hello"}
	var calls atomic.Int32

	p := newPipeline(t, ext, trc, nil, &calls)

	var stages []Stage
	var last float64
	_, err := p.Run(context.Background(), Request{VideoPath: "clip.mp4", Languages: []string{"fr"}},
		func(s Stage, f float64) {
			if len(stages) == 0 || stages[len(stages)-1] != s {
				stages = append(stages, s)
			}
			last = f
		})
	require.NoError(t, err)

	assert.Equal(t, []Stage{StageExtracting, StageTranscribing, StageTranslating, StageDone}, stages)
	assert.Equal(t, 1.0, last)
}

func TestRunUnknownEngine(t *testing.T) {
	ext := &fakeExtractor{}
	trc := &fakeTranscriber{text: "hello"}
	var calls atomic.Int32

	p := newPipeline(t, ext, trc, nil, &calls)

	_, err := p.Run(context.Background(), Request{
		VideoPath: "clip.mp4",
		Languages: []string{"fr"},
		Engine:    "nonexistent",
	}, func(Stage, float64) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown translation engine")
}
