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

	"image2md/internal/logging"
)

const (
	openAIDefaultBaseURL = "https://api.openai.com/v1"
	openAIEnvKey         = "OPENAI_API_KEY"

	llmDefaultModel       = "gpt-4o"
	llmDefaultMaxTokens   = 4000
	llmDefaultTemperature = 0.2

	llmDefaultPrompt = "Convert this image to well-formatted markdown. Maintain the structure " +
		"and layout of the document, including proper formatting for headings, " +
		"lists, tables, and other elements. Output only the markdown content " +
		"without any explanations. Do NOT wrap your response in markdown code blocks (```). " +
		"Just provide the clean markdown content directly without any surrounding backticks."

	llmSystemPrompt = "You are a document layout specialist that converts images to markdown. " +
		"Preserve the document structure and layout."
)

// usesCompletionTokens reports whether the model takes max_completion_tokens
// instead of max_tokens and accepts only the default temperature.
func usesCompletionTokens(model string) bool {
	return strings.HasPrefix(model, "o4-") || strings.HasPrefix(model, "gpt-5")
}

// LLMConverter converts images through the OpenAI chat completions API.
type LLMConverter struct {
	apiKey              string
	model               string
	modelVersion        string
	maxTokens           int
	maxCompletionTokens int
	temperature         float64
	baseURL             string
	client              *http.Client
}

// NewLLMConverter builds an OpenAI-backed converter. The credential comes from
// opts.APIKey or the OPENAI_API_KEY environment variable; absence is fatal.
func NewLLMConverter(opts Options) (*LLMConverter, error) {
	apiKey := opts.APIKey
	if apiKey == "" {
		apiKey = os.Getenv(openAIEnvKey)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: provide an api key or set %s", ErrMissingCredentials, openAIEnvKey)
	}

	model := strOr(opts.Model, llmDefaultModel)
	temperature := floatOr(opts.Temperature, llmDefaultTemperature)
	if usesCompletionTokens(model) && temperature != 1.0 {
		logging.Log.Warn().
			Str("model", model).
			Float64("temperature", temperature).
			Msg("model only supports temperature=1.0; overriding requested value")
		temperature = 1.0
	}

	modelVersion, _ := opts.Extra["model_version"].(string)

	return &LLMConverter{
		apiKey:              apiKey,
		model:               model,
		modelVersion:        modelVersion,
		maxTokens:           intOr(opts.MaxTokens, llmDefaultMaxTokens),
		maxCompletionTokens: opts.MaxCompletionTokens,
		temperature:         temperature,
		baseURL:             strOr(opts.BaseURL, openAIDefaultBaseURL),
		client:              newHTTPClient(),
	}, nil
}

func (c *LLMConverter) Convert(ctx context.Context, imagePath string, opts *ConvertOptions) (string, error) {
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
	encoded := base64.StdEncoding.EncodeToString(data)
	prompt := strOr(opts.Prompt, llmDefaultPrompt)

	payload := map[string]any{
		"model": c.model,
		"messages": []map[string]any{
			{
				"role": "system",
				"content": []map[string]any{
					{"type": "text", "text": llmSystemPrompt},
				},
			},
			{
				"role": "user",
				"content": []map[string]any{
					{"type": "text", "text": prompt},
					{"type": "image_url", "image_url": map[string]any{
						"url": "data:" + mediaType(imagePath) + ";base64," + encoded,
					}},
				},
			},
		},
	}

	if usesCompletionTokens(c.model) {
		// Newer models reject max_tokens and any non-default temperature, so
		// temperature is simply left unset.
		maxTokens := intOr(opts.MaxCompletionTokens,
			intOr(opts.MaxTokens, intOr(c.maxCompletionTokens, c.maxTokens)))
		payload["max_completion_tokens"] = maxTokens
	} else {
		payload["max_tokens"] = intOr(opts.MaxTokens, c.maxTokens)
		payload["temperature"] = floatOr(opts.Temperature, c.temperature)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("openai request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("openai API error: status=%d body=%s", resp.StatusCode, respBody)
	}

	var parsed struct {
		ID      string `json:"id"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("openai: failed to decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("openai: response contained no choices")
	}

	markdown := StripFences(parsed.Choices[0].Message.Content)

	if opts.SaveJSON {
		prov := newProvenance("OpenAI", c.model, c.modelVersion, "", requestParams(payload), prompt)
		prov.RequestID = parsed.ID
		doc := Sidecar{
			Markdown:       markdown,
			Provenance:     prov,
			ImagePath:      imagePath,
			ConversionType: "llm",
			Response:       json.RawMessage(respBody),
		}
		if err := writeSidecar(sidecarPath(imagePath, opts.JSONOutputPath), doc); err != nil {
			return "", err
		}
	}

	return markdown, nil
}

// requestParams extracts the provenance-worthy fields from a request payload,
// leaving out the message blocks (which embed the base64 image).
func requestParams(payload map[string]any) map[string]any {
	params := make(map[string]any, 4)
	for _, k := range []string{"model", "max_tokens", "max_completion_tokens", "temperature"} {
		if v, ok := payload[k]; ok {
			params[k] = v
		}
	}
	return params
}
