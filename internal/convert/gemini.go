package convert

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

const (
	geminiDefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	geminiEnvKey         = "GOOGLE_API_KEY"

	geminiDefaultModel = "gemini-2.5-flash-preview-04-17"

	geminiDefaultPrompt = "Convert this image to well-formatted markdown. Maintain the structure " +
		"and formatting as much as possible, including headings, lists, and tables."
)

// geminiModelVersion derives a coarse version tag from the model name prefix.
func geminiModelVersion(model string) string {
	switch {
	case strings.HasPrefix(model, "gemini-2.5"):
		return "2.5"
	case strings.HasPrefix(model, "gemini-2"):
		return "2.0"
	case strings.HasPrefix(model, "gemini-1.5"):
		return "1.5"
	case strings.HasPrefix(model, "gemini-1"):
		return "1.0"
	}
	return ""
}

// GeminiConverter converts images through the Google Generative Language API.
type GeminiConverter struct {
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	baseURL     string
	client      *http.Client
}

// NewGeminiConverter builds a Gemini-backed converter. The credential comes
// from opts.APIKey or the GOOGLE_API_KEY environment variable.
func NewGeminiConverter(opts Options) (*GeminiConverter, error) {
	apiKey := opts.APIKey
	if apiKey == "" {
		apiKey = os.Getenv(geminiEnvKey)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: provide an api key or set %s", ErrMissingCredentials, geminiEnvKey)
	}

	return &GeminiConverter{
		apiKey:      apiKey,
		model:       strOr(opts.Model, geminiDefaultModel),
		maxTokens:   intOr(opts.MaxTokens, llmDefaultMaxTokens),
		temperature: floatOr(opts.Temperature, llmDefaultTemperature),
		baseURL:     strOr(opts.BaseURL, geminiDefaultBaseURL),
		client:      newHTTPClient(),
	}, nil
}

func (c *GeminiConverter) Convert(ctx context.Context, imagePath string, opts *ConvertOptions) (string, error) {
	if opts == nil {
		opts = &ConvertOptions{}
	}
	if err := checkImage(imagePath); err != nil {
		return "", err
	}

	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}
	prompt := strOr(opts.Prompt, geminiDefaultPrompt)
	maxTokens := intOr(opts.MaxTokens, c.maxTokens)
	temperature := floatOr(opts.Temperature, c.temperature)

	payload := map[string]any{
		"contents": []map[string]any{
			{
				"parts": []map[string]any{
					{"text": prompt},
					{"inline_data": map[string]any{
						"mime_type": mediaType(imagePath),
						"data":      base64.StdEncoding.EncodeToString(data),
					}},
				},
			},
		},
		"generationConfig": map[string]any{
			"maxOutputTokens": maxTokens,
			"temperature":     temperature,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	// The key travels in a header so it never shows up in logged URLs.
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gemini API error: status=%d body=%s", resp.StatusCode, respBody)
	}

	var parsed struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("gemini: failed to decode response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini: response contained no candidates")
	}

	markdown := StripFences(parsed.Candidates[0].Content.Parts[0].Text)

	if opts.SaveJSON {
		params := map[string]any{
			"model":       c.model,
			"max_tokens":  maxTokens,
			"temperature": temperature,
		}
		prov := newProvenance("Google", c.model, geminiModelVersion(c.model), "Gemini", params, prompt)
		doc := Sidecar{
			Markdown:       markdown,
			Provenance:     prov,
			ImagePath:      imagePath,
			ConversionType: "gemini",
		}
		if err := writeSidecar(sidecarPath(imagePath, opts.JSONOutputPath), doc); err != nil {
			return "", err
		}
	}

	return markdown, nil
}
