package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultDeepLURL = "https://api-free.deepl.com/v2/translate"

// DeepLTranslator translates transcripts using the DeepL API.
type DeepLTranslator struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewDeepLTranslator(apiKey string) *DeepLTranslator {
	return &DeepLTranslator{
		apiKey:  apiKey,
		baseURL: defaultDeepLURL,
		httpClient: &http.Client{
			Timeout: 1 * time.Minute,
		},
	}
}

func (d *DeepLTranslator) Name() string {
	return "deepl"
}

func (d *DeepLTranslator) Translate(ctx context.Context, transcript, targetLang string) (string, error) {
	if d.apiKey == "" {
		return "", &TranslationError{Provider: d.Name(), Language: targetLang, Err: fmt.Errorf("API key not configured")}
	}

	form := url.Values{}
	form.Add("text", transcript)
	form.Set("target_lang", deeplLangCode(targetLang))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", &TranslationError{Provider: d.Name(), Language: targetLang, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Authorization", "DeepL-Auth-Key "+d.apiKey)

	resp, err := d.httpClient.Do(httpReq)
	if err != nil {
		return "", &TranslationError{Provider: d.Name(), Language: targetLang, Err: fmt.Errorf("request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &TranslationError{Provider: d.Name(), Language: targetLang, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return "", &TranslationError{
			Provider: d.Name(),
			Language: targetLang,
			Err:      fmt.Errorf("status %d: %s", resp.StatusCode, string(body)),
		}
	}

	var deeplResp struct {
		Translations []struct {
			Text string `json:"text"`
		} `json:"translations"`
	}
	if err := json.Unmarshal(body, &deeplResp); err != nil {
		return "", &TranslationError{Provider: d.Name(), Language: targetLang, Err: fmt.Errorf("parse response: %w", err)}
	}
	if len(deeplResp.Translations) == 0 {
		return "", &TranslationError{Provider: d.Name(), Language: targetLang, Err: fmt.Errorf("empty response")}
	}

	return strings.TrimSpace(deeplResp.Translations[0].Text), nil
}

// deeplLangCode converts ISO 639-1 codes to DeepL format.
func deeplLangCode(code string) string {
	return strings.ToUpper(code)
}
