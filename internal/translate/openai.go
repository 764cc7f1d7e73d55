package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultChatURL = "https://api.openai.com/v1/chat/completions"

// OpenAITranslator translates transcripts using the OpenAI Chat API.
type OpenAITranslator struct {
	apiKey     string
	model      string
	baseURL    string
	retryDelay time.Duration
	httpClient *http.Client
}

func NewOpenAITranslator(apiKey, model string) *OpenAITranslator {
	return &OpenAITranslator{
		apiKey:     apiKey,
		model:      model,
		baseURL:    defaultChatURL,
		retryDelay: 5 * time.Second,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
}

func (o *OpenAITranslator) Name() string {
	return "openai"
}

func (o *OpenAITranslator) Translate(ctx context.Context, transcript, targetLang string) (string, error) {
	if o.apiKey == "" {
		return "", &TranslationError{Provider: o.Name(), Language: targetLang, Err: fmt.Errorf("API key not configured")}
	}

	text, err := o.complete(ctx, transcript, targetLang)
	if err != nil && isTransientError(err) {
		select {
		case <-time.After(o.retryDelay):
		case <-ctx.Done():
			return "", &TranslationError{Provider: o.Name(), Language: targetLang, Err: ctx.Err()}
		}
		text, err = o.complete(ctx, transcript, targetLang)
	}
	return text, err
}

func (o *OpenAITranslator) complete(ctx context.Context, transcript, targetLang string) (string, error) {
	reqBody := map[string]interface{}{
		"model": o.model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt(targetLang)},
			{"role": "user", "content": transcript},
		},
		"temperature": 0.3,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", &TranslationError{Provider: o.Name(), Language: targetLang, Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL, bytes.NewReader(jsonBody))
	if err != nil {
		return "", &TranslationError{Provider: o.Name(), Language: targetLang, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return "", &TranslationError{Provider: o.Name(), Language: targetLang, Err: fmt.Errorf("request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &TranslationError{Provider: o.Name(), Language: targetLang, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return "", &TranslationError{
			Provider: o.Name(),
			Language: targetLang,
			Err:      fmt.Errorf("status %d: %s", resp.StatusCode, string(body)),
		}
	}

	var chatResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", &TranslationError{Provider: o.Name(), Language: targetLang, Err: fmt.Errorf("parse response: %w", err)}
	}
	if len(chatResp.Choices) == 0 {
		return "", &TranslationError{Provider: o.Name(), Language: targetLang, Err: fmt.Errorf("empty response")}
	}

	return strings.TrimSpace(chatResp.Choices[0].Message.Content), nil
}

// systemPrompt instructs the chat model to act as a pure translator.
func systemPrompt(targetLang string) string {
	return fmt.Sprintf(
		"You are a professional translator. Translate the user's text to %s. "+
			"Preserve the original meaning, tone and register. "+
			"Respond with ONLY the translated text, no commentary.",
		LanguageName(targetLang),
	)
}

// isTransientError reports whether a provider failure is worth one retry.
func isTransientError(err error) bool {
	s := err.Error()
	for _, code := range []string{"status 429", "status 502", "status 503", "status 504"} {
		if strings.Contains(s, code) {
			return true
		}
	}
	return strings.Contains(s, "connection refused") ||
		strings.Contains(s, "connection reset") ||
		strings.Contains(s, "timeout")
}
