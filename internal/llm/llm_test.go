package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hanpin/internal/tagger"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "plain object", input: `{"a": 1}`, want: `{"a": 1}`},
		{name: "json fence", input: "```json\n{\"a\": 1}\n```", want: `{"a": 1}`},
		{name: "bare fence", input: "```\n{\"a\": 1}\n```", want: `{"a": 1}`},
		{name: "chatty wrapper", input: `Here you go: {"a": 1} hope that helps`, want: `{"a": 1}`},
		{name: "empty", input: "   ", wantErr: true},
		{name: "no object", input: "sorry, I cannot do that", wantErr: true},
		{name: "broken object", input: `prefix {"a": } suffix`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := ExtractJSON(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(raw))
		})
	}
}

func TestOllamaClient_SegmentAndTag(t *testing.T) {
	var gotPath string
	var gotReq ollamaChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(ollamaChatResponse{
			Message: ollamaChatMessage{
				Role:    "assistant",
				Content: "```json\n{\"spans\": []}\n```",
			},
		})
	}))
	defer srv.Close()

	c := NewOllamaClient("qwen2.5:7b", srv.URL)
	raw, err := c.SegmentAndTag(context.Background(), tagger.Request{
		SchemaVersion: 1,
		Task:          "segment_and_tag",
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"spans": []}`, string(raw))

	assert.Equal(t, "/api/chat", gotPath)
	assert.Equal(t, "qwen2.5:7b", gotReq.Model)
	assert.False(t, gotReq.Stream)
	require.Len(t, gotReq.Messages, 2)
	assert.Equal(t, "system", gotReq.Messages[0].Role)
	assert.Contains(t, gotReq.Messages[1].Content, `"segment_and_tag"`)
}

func TestOllamaClient_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewOllamaClient("missing", srv.URL)
	_, err := c.SegmentAndTag(context.Background(), tagger.Request{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestNewClient_UnknownProvider(t *testing.T) {
	_, err := NewClient(context.Background(), Options{Provider: "bard"})
	require.Error(t, err)
}

func TestNewClient_DefaultsToOllama(t *testing.T) {
	c, err := NewClient(context.Background(), Options{Model: "qwen2.5:7b"})
	require.NoError(t, err)
	assert.IsType(t, &OllamaClient{}, c)
}
