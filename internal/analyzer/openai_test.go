package analyzer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatServer(t *testing.T, status int, body string, seen *json.RawMessage) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		if seen != nil {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

const completion = `{"id":"chatcmpl-1","object":"chat.completion","created":1,"model":"gpt-4o-mini",
"choices":[{"index":0,"message":{"role":"assistant","content":"  A swift counter-attack down the left.  "},"finish_reason":"stop"}]}`

func TestOpenAIDescriberSendsImageAndPrompts(t *testing.T) {
	var raw json.RawMessage
	srv := chatServer(t, http.StatusOK, completion, &raw)

	d := NewOpenAIDescriber("sk-test", srv.URL, "gpt-4o-mini")
	text, err := d.Describe(context.Background(), DescribeRequest{
		SystemPrompt: "You are a soccer commentator.",
		Instruction:  "Describe the play.",
		ImageDataURL: "data:image/jpeg;base64,AAAA",
	})
	require.NoError(t, err)
	assert.Equal(t, "A swift counter-attack down the left.", text)

	var req struct {
		Model    string            `json:"model"`
		Messages []json.RawMessage `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(raw, &req))
	assert.Equal(t, "gpt-4o-mini", req.Model)
	require.Len(t, req.Messages, 2)

	var system struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	require.NoError(t, json.Unmarshal(req.Messages[0], &system))
	assert.Equal(t, "system", system.Role)
	assert.Equal(t, "You are a soccer commentator.", system.Content)

	var user struct {
		Role    string `json:"role"`
		Content []struct {
			Type     string `json:"type"`
			Text     string `json:"text"`
			ImageURL *struct {
				URL string `json:"url"`
			} `json:"image_url"`
		} `json:"content"`
	}
	require.NoError(t, json.Unmarshal(req.Messages[1], &user))
	assert.Equal(t, "user", user.Role)
	require.Len(t, user.Content, 2)
	assert.Equal(t, "text", user.Content[0].Type)
	assert.Equal(t, "Describe the play.", user.Content[0].Text)
	assert.Equal(t, "image_url", user.Content[1].Type)
	require.NotNil(t, user.Content[1].ImageURL)
	assert.Equal(t, "data:image/jpeg;base64,AAAA", user.Content[1].ImageURL.URL)
}

func TestOpenAIDescriberErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"api error", http.StatusUnauthorized, `{"error":{"message":"bad key","type":"invalid_request_error"}}`},
		{"no choices", http.StatusOK, `{"id":"x","object":"chat.completion","choices":[]}`},
		{"blank content", http.StatusOK, `{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"   "}}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := chatServer(t, tt.status, tt.body, nil)
			d := NewOpenAIDescriber("sk-test", srv.URL, "gpt-4o-mini")
			_, err := d.Describe(context.Background(), DescribeRequest{ImageDataURL: "data:image/jpeg;base64,AAAA"})
			assert.Error(t, err)
		})
	}
}

func TestOpenAIDescriberRequiresImage(t *testing.T) {
	d := NewOpenAIDescriber("sk-test", "http://127.0.0.1:1", "gpt-4o-mini")
	_, err := d.Describe(context.Background(), DescribeRequest{Instruction: "x"})
	assert.Error(t, err)
}
