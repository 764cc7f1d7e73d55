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

const defaultGeminiBase = "https://generativelanguage.googleapis.com/v1beta/models"
const defaultGeminiModel = "gemini-2.0-flash"

// GeminiTranslator translates transcripts using the Google Gemini API.
type GeminiTranslator struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

func NewGeminiTranslator(apiKey string) *GeminiTranslator {
	return &GeminiTranslator{
		apiKey:  apiKey,
		model:   defaultGeminiModel,
		baseURL: defaultGeminiBase,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
}

func (g *GeminiTranslator) Name() string {
	return "gemini"
}

func (g *GeminiTranslator) Translate(ctx context.Context, transcript, targetLang string) (string, error) {
	if g.apiKey == "" {
		return "", &TranslationError{Provider: g.Name(), Language: targetLang, Err: fmt.Errorf("API key not configured")}
	}

	reqBody := map[string]interface{}{
		"system_instruction": map[string]interface{}{
			"parts": []map[string]string{
				{"text": systemPrompt(targetLang)},
			},
		},
		"contents": []map[string]interface{}{
			{
				"parts": []map[string]string{
					{"text": transcript},
				},
			},
		},
		"generationConfig": map[string]interface{}{
			"temperature": 0.3,
		},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", &TranslationError{Provider: g.Name(), Language: targetLang, Err: err}
	}

	url := fmt.Sprintf("%s/%s:generateContent?key=%s", g.baseURL, g.model, g.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return "", &TranslationError{Provider: g.Name(), Language: targetLang, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return "", &TranslationError{Provider: g.Name(), Language: targetLang, Err: fmt.Errorf("request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &TranslationError{Provider: g.Name(), Language: targetLang, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return "", &TranslationError{
			Provider: g.Name(),
			Language: targetLang,
			Err:      fmt.Errorf("status %d: %s", resp.StatusCode, string(body)),
		}
	}

	var geminiResp struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(body, &geminiResp); err != nil {
		return "", &TranslationError{Provider: g.Name(), Language: targetLang, Err: fmt.Errorf("parse response: %w", err)}
	}
	if len(geminiResp.Candidates) == 0 || len(geminiResp.Candidates[0].Content.Parts) == 0 {
		return "", &TranslationError{Provider: g.Name(), Language: targetLang, Err: fmt.Errorf("empty response")}
	}

	var sb strings.Builder
	for _, part := range geminiResp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return strings.TrimSpace(sb.String()), nil
}
