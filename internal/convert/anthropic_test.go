package convert

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func anthropicStub(t *testing.T, text string, lastBody *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicAPIVersion, r.Header.Get("anthropic-version"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		*lastBody = body

		resp := map[string]any{
			"id": "msg-456",
			"content": []map[string]any{
				{"type": "text", "text": text},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestAnthropicConverter_MissingCredentials(t *testing.T) {
	t.Setenv(anthropicEnvKey, "")

	_, err := NewAnthropicConverter(Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingCredentials))
}

func TestAnthropicConverter_Convert(t *testing.T) {
	var lastBody map[string]any
	server := anthropicStub(t, "```markdown\n# Menu\n```", &lastBody)
	defer server.Close()

	imagePath := writeTestImage(t, "menu.jpg")
	conv, err := NewAnthropicConverter(Options{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	markdown, err := conv.Convert(context.Background(), imagePath, nil)
	require.NoError(t, err)
	assert.Equal(t, "# Menu", markdown)

	assert.Equal(t, anthropicDefaultModel, lastBody["model"])
	assert.Equal(t, float64(llmDefaultMaxTokens), lastBody["max_tokens"])

	messages := lastBody["messages"].([]any)
	require.Len(t, messages, 1)
	content := messages[0].(map[string]any)["content"].([]any)
	require.Len(t, content, 2)

	image := content[1].(map[string]any)
	assert.Equal(t, "image", image["type"])
	source := image["source"].(map[string]any)
	assert.Equal(t, "base64", source["type"])
	assert.Equal(t, "image/jpeg", source["media_type"])
	assert.NotEmpty(t, source["data"])
}

func TestAnthropicConverter_Sidecar(t *testing.T) {
	var lastBody map[string]any
	server := anthropicStub(t, "# Claude output", &lastBody)
	defer server.Close()

	imagePath := writeTestImage(t, "menu.png")
	conv, err := NewAnthropicConverter(Options{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = conv.Convert(context.Background(), imagePath, &ConvertOptions{SaveJSON: true})
	require.NoError(t, err)

	data, err := os.ReadFile(replaceExt(imagePath, ".json"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "test-key")

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "anthropic", doc["conversion_type"])
	assert.Contains(t, doc, "response")

	prov := doc["provenance"].(map[string]any)
	assert.Equal(t, "Anthropic", prov["provider"])
	assert.Equal(t, "Claude", prov["model_family"])
	assert.Equal(t, "3.7", prov["model_version"])
	assert.Equal(t, "msg-456", prov["request_id"])

	sysInfo := prov["system_info"].(map[string]any)
	assert.Equal(t, anthropicAPIVersion, sysInfo["anthropic_version"])
}

func TestAnthropicConverter_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"type":"overloaded_error"}}`, http.StatusServiceUnavailable)
	}))
	defer server.Close()

	imagePath := writeTestImage(t, "menu.png")
	conv, err := NewAnthropicConverter(Options{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = conv.Convert(context.Background(), imagePath, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestClaudeModelVersion(t *testing.T) {
	tests := []struct {
		model    string
		expected string
	}{
		{"claude-3-7-sonnet-20250219", "3.7"},
		{"claude-3-5-sonnet-20241022", "3.5"},
		{"claude-3-opus-20240229", "3"},
		{"claude-2.1", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, claudeModelVersion(tt.model), "model %s", tt.model)
	}
}
