package convert

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/host"
)

// Provenance describes how one conversion was produced. One record is built
// per successful conversion when the caller opts in, embedded into the JSON
// sidecar, then discarded.
type Provenance struct {
	Timestamp        string            `json:"timestamp"`
	Model            string            `json:"model"`
	ModelVersion     string            `json:"model_version,omitempty"`
	Provider         string            `json:"provider"`
	ModelFamily      string            `json:"model_family,omitempty"`
	RequestID        string            `json:"request_id,omitempty"`
	SystemInfo       map[string]string `json:"system_info"`
	ConversionParams map[string]any    `json:"conversion_params"`
}

// systemInfo is captured fresh on every call; nothing here is cached.
func systemInfo() map[string]string {
	info := map[string]string{
		"os":         runtime.GOOS,
		"go_version": runtime.Version(),
	}
	if hi, err := host.Info(); err == nil {
		info["os"] = hi.Platform
		info["os_version"] = hi.PlatformVersion
		info["hostname"] = hi.Hostname
	} else if hn, herr := os.Hostname(); herr == nil {
		info["hostname"] = hn
	}
	return info
}

// newProvenance stamps the current time, filters the credential out of params
// and records the prompt that was actually sent. The api_key must never reach
// a serialized sidecar.
func newProvenance(provider, model, modelVersion, family string, params map[string]any, prompt string) Provenance {
	safe := make(map[string]any, len(params)+1)
	for k, v := range params {
		if k == "api_key" {
			continue
		}
		safe[k] = v
	}
	safe["prompt"] = prompt

	return Provenance{
		Timestamp:        time.Now().Format(time.RFC3339),
		Model:            model,
		ModelVersion:     modelVersion,
		Provider:         provider,
		ModelFamily:      family,
		SystemInfo:       systemInfo(),
		ConversionParams: safe,
	}
}

// Sidecar is the JSON document written next to the markdown output when the
// caller opts in. Response carries the raw provider body for backends that
// expose it; AzureResult carries the raw document analysis result.
type Sidecar struct {
	Markdown       string          `json:"markdown"`
	Provenance     Provenance      `json:"provenance"`
	Timestamp      string          `json:"timestamp"`
	ImagePath      string          `json:"image_path"`
	ConversionType string          `json:"conversion_type"`
	Response       json.RawMessage `json:"response,omitempty"`
	AzureResult    json.RawMessage `json:"azure_result,omitempty"`
}

func sidecarPath(imagePath, override string) string {
	if override != "" {
		return override
	}
	return replaceExt(imagePath, ".json")
}

func writeSidecar(path string, doc Sidecar) error {
	doc.Timestamp = time.Now().Format(time.RFC3339)

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode sidecar: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create sidecar directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write sidecar: %w", err)
	}
	return nil
}

// maskEndpoint keeps the endpoint host visible in provenance but hides the
// path and query.
func maskEndpoint(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return endpoint
	}
	return fmt.Sprintf("%s://%s/***", u.Scheme, u.Host)
}
