package pipeline

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/video-translate/backend/internal/logger"
	"github.com/video-translate/backend/internal/transcribe"
	"github.com/video-translate/backend/internal/translate"
)

// Stage names the sequential phases of one pipeline run. A run moves
// extracting → transcribing → translating → done; a failure freezes it at the
// stage that produced the error.
type Stage string

const (
	StageExtracting   Stage = "extracting"
	StageTranscribing Stage = "transcribing"
	StageTranslating  Stage = "translating"
	StageDone         Stage = "done"
)

// Extractor demuxes the uploaded video's audio track into a temp file.
// Implemented by media.Extractor; faked in tests.
type Extractor interface {
	ExtractAudio(ctx context.Context, videoPath string) (string, func(), error)
}

// Request describes one user-initiated run. Languages must already be
// validated and deduplicated; results follow this order exactly.
type Request struct {
	VideoPath string
	Languages []string
	Engine    string
}

// Translation is one per-language outcome. A provider failure for one
// language is recorded here in error form instead of aborting siblings.
type Translation struct {
	Language string `json:"language"`
	Text     string `json:"text,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Result is the assembled output of a successful run: exactly one transcript
// plus one Translation per requested language, in request order.
type Result struct {
	Transcript   string        `json:"transcript"`
	Translations []Translation `json:"translations"`
}

// Pipeline sequences extraction, transcription and translation for one run.
type Pipeline struct {
	extractor   Extractor
	transcriber transcribe.Transcriber
	translators *translate.Registry
	concurrency int
	log         *logrus.Entry
}

func New(extractor Extractor, transcriber transcribe.Transcriber, translators *translate.Registry, concurrency int) *Pipeline {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Pipeline{
		extractor:   extractor,
		transcriber: transcriber,
		translators: translators,
		concurrency: concurrency,
		log:         logger.WithComponent("pipeline"),
	}
}

// Progress reports the current stage and overall completion in [0,1].
type Progress func(stage Stage, fraction float64)

// Run executes the pipeline for one request. Stages are strictly sequential:
// a transcription failure means no translator is ever called. The audio
// payload is removed before Run returns, on every path.
func (p *Pipeline) Run(ctx context.Context, req Request, onProgress Progress) (*Result, error) {
	engine, err := p.translators.Get(req.Engine)
	if err != nil {
		return nil, err
	}

	onProgress(StageExtracting, 0)
	audioPath, cleanup, err := p.extractor.ExtractAudio(ctx, req.VideoPath)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	p.log.WithField("video", req.VideoPath).Info("audio extracted")
	onProgress(StageTranscribing, 0.33)

	transcribed, err := p.transcriber.Transcribe(ctx, transcribe.TranscribeRequest{AudioPath: audioPath},
		func(f float64) { onProgress(StageTranscribing, 0.33+0.33*f) })
	if err != nil {
		return nil, err
	}

	p.log.WithField("chars", len(transcribed.Text)).Info("transcription complete")
	onProgress(StageTranslating, 0.66)

	translations := p.translateAll(ctx, engine, transcribed.Text, req.Languages, onProgress)

	onProgress(StageDone, 1.0)
	return &Result{
		Transcript:   transcribed.Text,
		Translations: translations,
	}, nil
}

// translateAll fans out one translator call per language, bounded by the
// configured concurrency. Results land in their request-order slot, so the
// presented order never depends on completion order.
func (p *Pipeline) translateAll(ctx context.Context, engine translate.Translator, transcript string, languages []string, onProgress Progress) []Translation {
	results := make([]Translation, len(languages))
	sem := make(chan struct{}, p.concurrency)
	var wg sync.WaitGroup
	var completed atomic.Int32

	for i, lang := range languages {
		wg.Add(1)
		sem <- struct{}{}

		go func(idx int, lang string) {
			defer wg.Done()
			defer func() { <-sem }()

			text, err := engine.Translate(ctx, transcript, lang)
			if err != nil {
				p.log.WithField("language", lang).WithError(err).Error("translation failed")
				results[idx] = Translation{Language: lang, Error: err.Error()}
			} else {
				results[idx] = Translation{Language: lang, Text: text}
			}

			done := completed.Add(1)
			onProgress(StageTranslating, 0.66+0.34*float64(done)/float64(len(languages)))
		}(i, lang)
	}

	wg.Wait()
	return results
}
