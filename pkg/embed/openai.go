package embed

import (
	"context"
	"fmt"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAI embedding models.
const (
	// ModelOpenAI3Small is the small embedding model (1536 dims, customizable).
	ModelOpenAI3Small = "text-embedding-3-small"

	// ModelOpenAI3Large is the large embedding model (3072 dims, customizable).
	ModelOpenAI3Large = "text-embedding-3-large"
)

const (
	openAIDefaultDim   = 1536
	openAIDefaultModel = ModelOpenAI3Small
)

// OpenAI implements [Embedder] using the OpenAI embeddings API.
//
// This can also be used with any OpenAI-compatible provider by setting
// WithBaseURL.
type OpenAI struct {
	client *openai.Client
	model  string
	dim    int
}

var _ Embedder = (*OpenAI)(nil)

// NewOpenAI creates an OpenAI embedder.
func NewOpenAI(apiKey string, opts ...Option) *OpenAI {
	cfg := config{
		model:      openAIDefaultModel,
		dim:        openAIDefaultDim,
		httpClient: http.DefaultClient,
	}
	for _, o := range opts {
		o(&cfg)
	}

	clientOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(cfg.httpClient),
	}
	if cfg.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.baseURL))
	}
	client := openai.NewClient(clientOpts...)

	return &OpenAI{
		client: &client,
		model:  cfg.model,
		dim:    cfg.dim,
	}
}

// Embed returns the embedding for a single text.
func (o *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyInput
	}

	params := openai.EmbeddingNewParams{
		Model:          o.model,
		Input:          openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Dimensions:     openai.Int(int64(o.dim)),
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	}

	resp, err := o.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("embed %q: %w", o.model, err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embed %q: empty response", o.model)
	}
	if got := len(resp.Data[0].Embedding); got != o.dim {
		return nil, fmt.Errorf("embed %q: got %d dimensions, want %d", o.model, got, o.dim)
	}

	return float64sToFloat32s(resp.Data[0].Embedding), nil
}

// Dimension returns the configured vector dimensionality.
func (o *OpenAI) Dimension() int {
	return o.dim
}

// Model returns the OpenAI model identifier (e.g., "text-embedding-3-small").
func (o *OpenAI) Model() string {
	return o.model
}

func float64sToFloat32s(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}
