package transcribe

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/video-translate/backend/internal/logger"
	"github.com/video-translate/backend/internal/media"
)

const defaultTranscriptionURL = "https://api.openai.com/v1/audio/transcriptions"
const maxUploadSize = 25 * 1024 * 1024 // provider limit per request
const chunkSeconds = 600               // 10-minute segments for oversized audio

// OpenAIClient transcribes audio through the OpenAI Whisper API.
type OpenAIClient struct {
	apiKey     string
	model      string
	baseURL    string
	retryDelay time.Duration
	httpClient *http.Client
	log        *logrus.Entry
}

func NewOpenAIClient(apiKey, model string) *OpenAIClient {
	return &OpenAIClient{
		apiKey:     apiKey,
		model:      model,
		baseURL:    defaultTranscriptionURL,
		retryDelay: 5 * time.Second,
		httpClient: &http.Client{
			Timeout: 10 * time.Minute,
		},
		log: logger.WithComponent("transcribe"),
	}
}

func (c *OpenAIClient) Name() string {
	return "openai"
}

func (c *OpenAIClient) Transcribe(ctx context.Context, req TranscribeRequest, updateProgress func(float64)) (*TranscribeResult, error) {
	if c.apiKey == "" {
		return nil, &TranscriptionError{Provider: c.Name(), Err: fmt.Errorf("API key not configured")}
	}

	info, err := os.Stat(req.AudioPath)
	if err != nil {
		return nil, &TranscriptionError{Provider: c.Name(), Err: err}
	}

	updateProgress(0.05)

	if info.Size() > maxUploadSize {
		return c.transcribeChunked(ctx, req, updateProgress)
	}

	text, err := c.transcribeSingle(ctx, req.AudioPath, req.Model)
	if err != nil {
		return nil, err
	}
	updateProgress(1.0)
	return &TranscribeResult{Text: text}, nil
}

// transcribeChunked splits oversized audio into segments and transcribes each
// in order, concatenating the recognized text.
func (c *OpenAIClient) transcribeChunked(ctx context.Context, req TranscribeRequest, updateProgress func(float64)) (*TranscribeResult, error) {
	chunks, cleanup, err := media.SplitAudio(ctx, req.AudioPath, chunkSeconds)
	if err != nil {
		return nil, &TranscriptionError{Provider: c.Name(), Err: err}
	}
	defer cleanup()

	c.log.WithField("chunks", len(chunks)).Info("audio over provider limit, transcribing in segments")

	var sb strings.Builder
	for i, chunk := range chunks {
		updateProgress(0.05 + 0.9*float64(i)/float64(len(chunks)))

		text, err := c.transcribeSingle(ctx, chunk, req.Model)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", i+1, err)
		}
		if sb.Len() > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(strings.TrimSpace(text))
	}

	updateProgress(1.0)
	return &TranscribeResult{Text: sb.String()}, nil
}

func (c *OpenAIClient) transcribeSingle(ctx context.Context, audioPath, model string) (string, error) {
	text, err := c.postAudio(ctx, audioPath, model)
	if err != nil && isTransientError(err) {
		c.log.WithError(err).Warn("transient provider failure, retrying once")
		select {
		case <-time.After(c.retryDelay):
		case <-ctx.Done():
			return "", &TranscriptionError{Provider: c.Name(), Err: ctx.Err()}
		}
		text, err = c.postAudio(ctx, audioPath, model)
	}
	return text, err
}

func (c *OpenAIClient) postAudio(ctx context.Context, audioPath, model string) (string, error) {
	if model == "" {
		model = c.model
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	audioFile, err := os.Open(audioPath)
	if err != nil {
		return "", &TranscriptionError{Provider: c.Name(), Err: err}
	}
	defer audioFile.Close()

	part, err := writer.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return "", &TranscriptionError{Provider: c.Name(), Err: err}
	}
	if _, err := io.Copy(part, audioFile); err != nil {
		return "", &TranscriptionError{Provider: c.Name(), Err: err}
	}

	writer.WriteField("model", model)
	writer.WriteField("response_format", "text")
	writer.Close()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, &buf)
	if err != nil {
		return "", &TranscriptionError{Provider: c.Name(), Err: err}
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", &TranscriptionError{Provider: c.Name(), Err: fmt.Errorf("request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &TranscriptionError{Provider: c.Name(), Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return "", &TranscriptionError{
			Provider: c.Name(),
			Err:      fmt.Errorf("status %d: %s", resp.StatusCode, string(body)),
		}
	}

	return strings.TrimSpace(string(body)), nil
}

// isTransientError reports whether a provider failure is worth one retry.
func isTransientError(err error) bool {
	s := err.Error()
	for _, code := range []string{"status 502", "status 503", "status 504", "status 429"} {
		if strings.Contains(s, code) {
			return true
		}
	}
	return strings.Contains(s, "connection refused") ||
		strings.Contains(s, "connection reset") ||
		strings.Contains(s, "EOF") ||
		strings.Contains(s, "timeout")
}
