package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
)

// ErrNoAudioStream is returned when the uploaded container has no audio track.
var ErrNoAudioStream = errors.New("no audio stream found")

// ExtractionError reports a failure to demux audio out of an uploaded video:
// missing external tool, unrecognized container, no audio track, or a
// non-zero ffmpeg exit.
type ExtractionError struct {
	Op   string // "probe" or "extract"
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Extractor converts an uploaded video's audio track into a standalone MP3
// payload suitable for the transcription provider.
type Extractor struct{}

func NewExtractor() *Extractor { return &Extractor{} }

// ExtractAudio probes the input, then demuxes its audio track to a temporary
// MP3 file. The caller owns the returned path and must call cleanup on every
// exit path; cleanup is safe to call after a failed extraction too.
func (e *Extractor) ExtractAudio(ctx context.Context, videoPath string) (string, func(), error) {
	noop := func() {}

	probe, err := Probe(ctx, videoPath)
	if err != nil {
		return "", noop, err
	}
	if !probe.HasAudioStream() {
		return "", noop, &ExtractionError{Op: "extract", Path: videoPath, Err: ErrNoAudioStream}
	}

	tmpFile, err := os.CreateTemp("", "extract-audio-*.mp3")
	if err != nil {
		return "", noop, &ExtractionError{Op: "extract", Path: videoPath, Err: err}
	}
	tmpFile.Close()
	cleanup := func() { os.Remove(tmpFile.Name()) }

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-hide_banner",
		"-loglevel", "error",
		"-i", videoPath,
		"-vn",
		"-acodec", "libmp3lame",
		"-q:a", "4", // ~130kbps VBR
		"-y",
		tmpFile.Name(),
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		cleanup()
		return "", noop, &ExtractionError{
			Op:   "extract",
			Path: videoPath,
			Err:  fmt.Errorf("ffmpeg: %s: %w", string(output), err),
		}
	}

	return tmpFile.Name(), cleanup, nil
}

// SplitAudio segments an audio file into fixed-length MP3 chunks for
// providers with per-request size limits. Returns chunk paths in order and a
// cleanup removing the whole chunk directory.
func SplitAudio(ctx context.Context, audioPath string, segmentSeconds int) ([]string, func(), error) {
	noop := func() {}

	chunkDir, err := os.MkdirTemp("", "audio-chunks-*")
	if err != nil {
		return nil, noop, &ExtractionError{Op: "extract", Path: audioPath, Err: err}
	}
	cleanup := func() { os.RemoveAll(chunkDir) }

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-hide_banner", "-loglevel", "error",
		"-i", audioPath,
		"-f", "segment",
		"-segment_time", fmt.Sprintf("%d", segmentSeconds),
		"-c:a", "libmp3lame",
		"-q:a", "4",
		"-y",
		chunkDir+"/chunk_%03d.mp3",
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		cleanup()
		return nil, noop, &ExtractionError{
			Op:   "extract",
			Path: audioPath,
			Err:  fmt.Errorf("ffmpeg split: %s: %w", string(output), err),
		}
	}

	entries, err := os.ReadDir(chunkDir)
	if err != nil {
		cleanup()
		return nil, noop, &ExtractionError{Op: "extract", Path: audioPath, Err: err}
	}

	var chunks []string
	for _, e := range entries {
		chunks = append(chunks, chunkDir+"/"+e.Name())
	}
	if len(chunks) == 0 {
		cleanup()
		return nil, noop, &ExtractionError{
			Op:   "extract",
			Path: audioPath,
			Err:  errors.New("no audio chunks generated"),
		}
	}

	return chunks, cleanup, nil
}
