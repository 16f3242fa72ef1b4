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
	anthropicDefaultBaseURL = "https://api.anthropic.com"
	anthropicEnvKey         = "ANTHROPIC_API_KEY"
	anthropicAPIVersion     = "2023-06-01"

	anthropicDefaultModel = "claude-3-7-sonnet-20250219"

	anthropicDefaultPrompt = "Convert this image to well-formatted markdown. Maintain the structure " +
		"and formatting as much as possible, including headings, lists, and tables. " +
		"Important: Do NOT wrap your response in markdown code blocks (```). " +
		"Just provide the clean markdown content directly without any surrounding backticks."
)

// claudeModelVersion derives a coarse version tag from the model name prefix.
func claudeModelVersion(model string) string {
	switch {
	case strings.HasPrefix(model, "claude-3-7"):
		return "3.7"
	case strings.HasPrefix(model, "claude-3-5"):
		return "3.5"
	case strings.HasPrefix(model, "claude-3"):
		return "3"
	}
	return ""
}

// AnthropicConverter converts images through the Anthropic messages API.
type AnthropicConverter struct {
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	baseURL     string
	client      *http.Client
}

// NewAnthropicConverter builds a Claude-backed converter. The credential comes
// from opts.APIKey or the ANTHROPIC_API_KEY environment variable.
func NewAnthropicConverter(opts Options) (*AnthropicConverter, error) {
	apiKey := opts.APIKey
	if apiKey == "" {
		apiKey = os.Getenv(anthropicEnvKey)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: provide an api key or set %s", ErrMissingCredentials, anthropicEnvKey)
	}

	return &AnthropicConverter{
		apiKey:      apiKey,
		model:       strOr(opts.Model, anthropicDefaultModel),
		maxTokens:   intOr(opts.MaxTokens, llmDefaultMaxTokens),
		temperature: floatOr(opts.Temperature, llmDefaultTemperature),
		baseURL:     strOr(opts.BaseURL, anthropicDefaultBaseURL),
		client:      newHTTPClient(),
	}, nil
}

func (c *AnthropicConverter) Convert(ctx context.Context, imagePath string, opts *ConvertOptions) (string, error) {
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
	prompt := strOr(opts.Prompt, anthropicDefaultPrompt)
	maxTokens := intOr(opts.MaxTokens, c.maxTokens)
	temperature := floatOr(opts.Temperature, c.temperature)

	payload := map[string]any{
		"model":       c.model,
		"max_tokens":  maxTokens,
		"temperature": temperature,
		"messages": []map[string]any{
			{
				"role": "user",
				"content": []map[string]any{
					{"type": "text", "text": prompt},
					{"type": "image", "source": map[string]any{
						"type":       "base64",
						"media_type": mediaType(imagePath),
						"data":       base64.StdEncoding.EncodeToString(data),
					}},
				},
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("anthropic request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("anthropic API error: status=%d body=%s", resp.StatusCode, respBody)
	}

	var parsed struct {
		ID      string `json:"id"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("anthropic: failed to decode response: %w", err)
	}
	if len(parsed.Content) == 0 {
		return "", fmt.Errorf("anthropic: response contained no content blocks")
	}

	markdown := StripFences(parsed.Content[0].Text)

	if opts.SaveJSON {
		params := map[string]any{
			"model":       c.model,
			"max_tokens":  maxTokens,
			"temperature": temperature,
		}
		prov := newProvenance("Anthropic", c.model, claudeModelVersion(c.model), "Claude", params, prompt)
		prov.RequestID = parsed.ID
		prov.SystemInfo["anthropic_version"] = anthropicAPIVersion
		doc := Sidecar{
			Markdown:       markdown,
			Provenance:     prov,
			ImagePath:      imagePath,
			ConversionType: "anthropic",
			Response:       json.RawMessage(respBody),
		}
		if err := writeSidecar(sidecarPath(imagePath, opts.JSONOutputPath), doc); err != nil {
			return "", err
		}
	}

	return markdown, nil
}
