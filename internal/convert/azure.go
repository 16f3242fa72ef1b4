package convert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

const (
	azureEndpointEnvKey = "AZURE_ENDPOINT"
	azureAPIKeyEnvKey   = "AZURE_API_KEY"

	// Markdown output requires this API version or newer.
	azureMinAPIVersion     = "2024-11-30"
	azureDefaultModelID    = "prebuilt-layout"
	azurePollInterval      = 2 * time.Second
	azureSubscriptionKeyHd = "Ocp-Apim-Subscription-Key"
)

// Per-call extras that would conflict with values bound at construction time;
// these are stripped before forwarding the rest as query parameters.
var azureReservedKeys = []string{
	"model_id", "api_version", "endpoint", "api_key", "credential", "json_output_path",
}

// AzureConverter converts images through the Azure Document Intelligence
// layout analysis API. The image travels as raw bytes, not base64, and the
// analyze operation is polled to completion behind a synchronous call.
type AzureConverter struct {
	endpoint   string
	apiKey     string
	apiVersion string
	modelID    string
	extra      map[string]any
	client     *http.Client
}

// NewAzureConverter builds a Document Intelligence converter. Endpoint and key
// come from opts or the AZURE_ENDPOINT / AZURE_API_KEY environment variables.
func NewAzureConverter(opts Options) (*AzureConverter, error) {
	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = os.Getenv(azureEndpointEnvKey)
	}
	apiKey := opts.APIKey
	if apiKey == "" {
		apiKey = os.Getenv(azureAPIKeyEnvKey)
	}
	if endpoint == "" || apiKey == "" {
		return nil, fmt.Errorf("%w: provide endpoint and api key or set %s and %s",
			ErrMissingCredentials, azureEndpointEnvKey, azureAPIKeyEnvKey)
	}

	apiVersion := strOr(opts.APIVersion, azureMinAPIVersion)
	if apiVersion < azureMinAPIVersion {
		return nil, fmt.Errorf("api version %s does not support markdown output; need %s or newer",
			apiVersion, azureMinAPIVersion)
	}

	return &AzureConverter{
		endpoint:   strings.TrimSuffix(endpoint, "/"),
		apiKey:     apiKey,
		apiVersion: apiVersion,
		modelID:    strOr(opts.ModelID, azureDefaultModelID),
		extra:      opts.Extra,
		client:     newHTTPClient(),
	}, nil
}

func (c *AzureConverter) Convert(ctx context.Context, imagePath string, opts *ConvertOptions) (string, error) {
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

	features := []string{"keyValuePairs", "languages"}
	if fs, ok := c.extra["features"].([]string); ok {
		features = fs
	}

	// Provenance captures the parameters before the reserved keys are removed.
	params := map[string]any{
		"model_id":    c.modelID,
		"api_version": c.apiVersion,
		"endpoint":    maskEndpoint(c.endpoint),
		"features":    features,
	}

	query := url.Values{}
	query.Set("api-version", c.apiVersion)
	query.Set("outputContentFormat", "markdown")
	query.Set("stringIndexType", "utf16CodeUnit")
	if len(features) > 0 {
		query.Set("features", strings.Join(features, ","))
	}
	for k, v := range c.extra {
		if k == "features" || isAzureReserved(k) {
			continue
		}
		query.Set(k, fmt.Sprint(v))
		params[k] = v
	}

	analyzeURL := fmt.Sprintf("%s/documentintelligence/documentModels/%s:analyze?%s",
		c.endpoint, c.modelID, query.Encode())

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, analyzeURL, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/octet-stream")
	httpReq.Header.Set(azureSubscriptionKeyHd, c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("azure request failed: %w", err)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("azure API error: status=%d body=%s", resp.StatusCode, body)
	}

	opLocation := resp.Header.Get("Operation-Location")
	if opLocation == "" {
		return "", fmt.Errorf("azure: analyze response missing Operation-Location header")
	}

	result, raw, err := c.pollResult(ctx, opLocation)
	if err != nil {
		return "", err
	}

	if opts.SaveJSON {
		prov := newProvenance("Azure", c.modelID, "", "", params, "")
		// Azure is not prompt-driven; drop the empty prompt entry.
		delete(prov.ConversionParams, "prompt")
		prov.ConversionParams["api_version"] = c.apiVersion
		doc := Sidecar{
			Markdown:       result.Content,
			Provenance:     prov,
			ImagePath:      imagePath,
			ConversionType: "azure",
			AzureResult:    raw,
		}
		if err := writeSidecar(sidecarPath(imagePath, opts.JSONOutputPath), doc); err != nil {
			return "", err
		}
	}

	return result.Content, nil
}

type azureAnalyzeResult struct {
	Content string `json:"content"`
}

// pollResult follows the long-running operation until it reaches a terminal
// state. The caller's context is the only deadline.
func (c *AzureConverter) pollResult(ctx context.Context, opLocation string) (*azureAnalyzeResult, json.RawMessage, error) {
	for {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, opLocation, nil)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create poll request: %w", err)
		}
		httpReq.Header.Set(azureSubscriptionKeyHd, c.apiKey)

		resp, err := c.client.Do(httpReq)
		if err != nil {
			return nil, nil, fmt.Errorf("azure poll failed: %w", err)
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read poll response: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, nil, fmt.Errorf("azure API error: status=%d body=%s", resp.StatusCode, body)
		}

		var parsed struct {
			Status        string          `json:"status"`
			Error         json.RawMessage `json:"error"`
			AnalyzeResult json.RawMessage `json:"analyzeResult"`
		}
		if err := json.Unmarshal(body, &parsed); err != nil {
			return nil, nil, fmt.Errorf("azure: failed to decode poll response: %w", err)
		}

		switch parsed.Status {
		case "succeeded":
			var result azureAnalyzeResult
			if err := json.Unmarshal(parsed.AnalyzeResult, &result); err != nil {
				return nil, nil, fmt.Errorf("azure: failed to decode analyze result: %w", err)
			}
			return &result, parsed.AnalyzeResult, nil
		case "failed":
			return nil, nil, fmt.Errorf("azure: analysis failed: %s", parsed.Error)
		}

		select {
		case <-ctx.Done():
			return nil, nil, fmt.Errorf("azure poll canceled: %w", ctx.Err())
		case <-time.After(azurePollInterval):
		}
	}
}

func isAzureReserved(key string) bool {
	for _, r := range azureReservedKeys {
		if key == r {
			return true
		}
	}
	return false
}
