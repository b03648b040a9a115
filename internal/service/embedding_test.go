package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/helloreadme/internal/config"
)

func newEmbeddingServer(t *testing.T, handler func(req embeddingRequest) (int, any)) (*httptest.Server, *embeddingRequest) {
	t.Helper()
	var last embeddingRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&last))
		status, body := handler(last)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv, &last
}

func embeddingData(vectors ...[]float32) map[string]any {
	data := make([]map[string]any, 0, len(vectors))
	for i := len(vectors) - 1; i >= 0; i-- {
		data = append(data, map[string]any{"index": i, "embedding": vectors[i]})
	}
	return map[string]any{"data": data}
}

func TestEmbeddingServiceOrdersByIndex(t *testing.T) {
	srv, last := newEmbeddingServer(t, func(req embeddingRequest) (int, any) {
		return http.StatusOK, embeddingData([]float32{1, 0}, []float32{0, 1})
	})
	svc := NewEmbeddingService(&config.EmbeddingConfig{
		Provider: "jina", Model: "jina-embeddings-v3", APIKey: "secret",
		BaseURL: srv.URL + "/v1/", Dimensions: 2,
	})

	vectors, err := svc.EmbedDocuments(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vectors)
	assert.Equal(t, "retrieval.passage", last.Task)
	assert.Equal(t, "float", last.EmbeddingType)
	assert.Equal(t, 2, last.Dimensions)

	_, err = svc.EmbedQuery(context.Background(), "q")
	require.Error(t, err, "one input answered with two vectors")
}

func TestEmbeddingServiceQueryTask(t *testing.T) {
	srv, last := newEmbeddingServer(t, func(req embeddingRequest) (int, any) {
		return http.StatusOK, embeddingData([]float32{0.5, 0.5})
	})
	svc := NewEmbeddingService(&config.EmbeddingConfig{
		Provider: "openai", Model: "text-embedding-3-small", APIKey: "secret", BaseURL: srv.URL + "/v1",
	})

	vec, err := svc.EmbedQuery(context.Background(), "web framework")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.5}, vec)
	assert.Empty(t, last.Task, "task is only sent to jina")
	assert.Equal(t, "text-embedding-3-small", svc.GetModel())
}

func TestEmbeddingServiceErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    any
		dims    int
		wantErr string
	}{
		{"api error message", http.StatusUnauthorized, map[string]any{"error": map[string]any{"message": "bad key"}}, 0, "bad key"},
		{"detail", http.StatusUnprocessableEntity, map[string]any{"detail": "input too long"}, 0, "input too long"},
		{"bare status", http.StatusInternalServerError, map[string]any{}, 0, "status 500"},
		{"dimension mismatch", http.StatusOK, embeddingData([]float32{1, 2, 3}), 2, "expected 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newEmbeddingServer(t, func(req embeddingRequest) (int, any) {
				return tt.status, tt.body
			})
			svc := NewEmbeddingService(&config.EmbeddingConfig{
				Model: "m", APIKey: "secret", BaseURL: srv.URL + "/v1", Dimensions: tt.dims,
			})
			_, err := svc.EmbedDocuments(context.Background(), []string{"x"})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEmbeddingServiceEmptyInput(t *testing.T) {
	svc := NewEmbeddingService(&config.EmbeddingConfig{BaseURL: "http://127.0.0.1:1"})
	vectors, err := svc.EmbedDocuments(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
}
