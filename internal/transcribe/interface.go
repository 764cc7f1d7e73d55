package transcribe

import (
	"context"
	"fmt"
)

// TranscribeRequest is the input for a transcription.
type TranscribeRequest struct {
	AudioPath string // absolute path to the extracted audio file
	Model     string // provider model name, e.g. "whisper-1"
}

// TranscribeResult is the output of a transcription.
type TranscribeResult struct {
	Text string // recognized speech as plain text
}

// Transcriber is the common interface for speech-to-text engines.
type Transcriber interface {
	Transcribe(ctx context.Context, req TranscribeRequest, updateProgress func(float64)) (*TranscribeResult, error)
	Name() string
}

// TranscriptionError reports a provider failure: non-success response,
// size/duration limits, or a network timeout. It is terminal for the run.
type TranscriptionError struct {
	Provider string
	Err      error
}

func (e *TranscriptionError) Error() string {
	return fmt.Sprintf("transcription (%s): %v", e.Provider, e.Err)
}

func (e *TranscriptionError) Unwrap() error { return e.Err }
