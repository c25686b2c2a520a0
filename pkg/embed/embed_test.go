package embed_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mediahub/aisvc/pkg/embed"
)

// fakeEmbeddingResponse builds a minimal OpenAI-compatible embedding response.
func fakeEmbeddingResponse(dim int) []byte {
	type embItem struct {
		Object    string    `json:"object"`
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	}
	type usage struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	}
	type resp struct {
		Object string    `json:"object"`
		Model  string    `json:"model"`
		Data   []embItem `json:"data"`
		Usage  usage     `json:"usage"`
	}

	vec := make([]float64, dim)
	for j := range vec {
		vec[j] = 0.01 * float64(j+1)
	}
	r := resp{
		Object: "list",
		Model:  "test-model",
		Data:   []embItem{{Object: "embedding", Index: 0, Embedding: vec}},
		Usage:  usage{PromptTokens: 10, TotalTokens: 10},
	}
	b, _ := json.Marshal(r)
	return b
}

// newFakeServer creates a test HTTP server that returns fake embeddings.
func newFakeServer(t *testing.T, dim int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(fakeEmbeddingResponse(dim))
	}))
}

func TestOpenAIEmbed(t *testing.T) {
	const dim = 4
	srv := newFakeServer(t, dim)
	defer srv.Close()

	e := embed.NewOpenAI("test-key",
		embed.WithBaseURL(srv.URL),
		embed.WithDimension(dim),
	)

	if e.Dimension() != dim {
		t.Fatalf("Dimension() = %d, want %d", e.Dimension(), dim)
	}
	if e.Model() != "text-embedding-3-small" {
		t.Fatalf("Model() = %q, want default small model", e.Model())
	}

	vec, err := e.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != dim {
		t.Fatalf("len(vec) = %d, want %d", len(vec), dim)
	}
}

func TestOpenAIEmbedDimensionMismatch(t *testing.T) {
	// Provider returns 4 dimensions but the embedder was configured for 8;
	// the wrong-length vector must be rejected, not passed downstream.
	srv := newFakeServer(t, 4)
	defer srv.Close()

	e := embed.NewOpenAI("test-key",
		embed.WithBaseURL(srv.URL),
		embed.WithDimension(8),
	)
	if _, err := e.Embed(context.Background(), "hello"); err == nil {
		t.Error("expected dimension mismatch error, got nil")
	}
}

func TestOpenAIEmbedEmptyInput(t *testing.T) {
	e := embed.NewOpenAI("test-key")
	if _, err := e.Embed(context.Background(), ""); err != embed.ErrEmptyInput {
		t.Errorf("Embed(\"\") = %v, want ErrEmptyInput", err)
	}
}

func TestOpenAIEmbedServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"model overloaded"}}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	e := embed.NewOpenAI("test-key", embed.WithBaseURL(srv.URL))
	if _, err := e.Embed(context.Background(), "hello"); err == nil {
		t.Error("expected provider error, got nil")
	}
}
