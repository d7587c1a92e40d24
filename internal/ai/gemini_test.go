package ai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dvloznov/agritool/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *genai.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:      "test-key",
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: srv.URL},
	})
	require.NoError(t, err)
	return client
}

func textResponse(text string) map[string]any {
	return map[string]any{
		"candidates": []any{
			map[string]any{
				"content": map[string]any{
					"role":  "model",
					"parts": []any{map[string]any{"text": text}},
				},
			},
		},
	}
}

func TestGemini_Generate(t *testing.T) {
	var body string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "models/gemini-2.5-flash:generateContent"), r.URL.Path)
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(textResponse("Water the paddy at dawn."))
	})

	m := NewGemini(client, "", 0)
	got, err := m.Generate(context.Background(), Request{
		Prompt: "How should I water paddy?",
		Image:  &Image{MIMEType: "image/jpeg", Data: []byte{0xff, 0xd8}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Water the paddy at dawn.", got)
	assert.Contains(t, body, "How should I water paddy?")
	assert.Contains(t, body, "image/jpeg")
}

func TestGemini_ServerErrorIsExternalFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":500,"message":"boom","status":"INTERNAL"}}`, http.StatusInternalServerError)
	})

	_, err := NewGemini(client, "", 0).Generate(context.Background(), Request{Prompt: "hi"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrExternalService)
}

func TestGemini_EmptyResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(textResponse("   "))
	})

	_, err := NewGemini(client, "", 0).Generate(context.Background(), Request{Prompt: "hi"})
	assert.ErrorIs(t, err, domain.ErrExternalService)
}

func TestModelFunc(t *testing.T) {
	var m Model = ModelFunc(func(ctx context.Context, req Request) (string, error) {
		return "echo: " + req.Prompt, nil
	})
	got, err := m.Generate(context.Background(), Request{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "echo: x", got)
}
