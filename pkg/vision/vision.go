// Package vision analyzes images with a hosted multimodal chat model.
//
// An [Analyzer] downloads the image, sends it to the model inline as a
// base64 data URL together with a prompt selected by [Kind], and returns
// the raw reply plus a best-effort structured interpretation of it.
package vision

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
)

// DefaultModel is the chat model used when none is configured.
const DefaultModel = "gpt-4o-mini"

const (
	analyzeMaxTokens   = 1000
	analyzeTemperature = 0.1

	downloadTimeout = 30 * time.Second
	// Inline data URLs blow up request size; cap what we are willing
	// to fetch well below the provider's 20MB image limit.
	downloadMaxBytes = 16 << 20
)

// ErrNoImageURL is returned when a request has an empty image URL.
var ErrNoImageURL = errors.New("vision: no image url")

// Request describes a single image analysis.
type Request struct {
	// ImageURL is the publicly reachable URL of the image to analyze.
	ImageURL string

	// Kind selects the analysis prompt.
	Kind Kind

	// Options tweak the prompt.
	Options Options
}

// Options adjust the analysis prompt.
type Options struct {
	// IncludeConfidence asks the model to state confidence per finding.
	IncludeConfidence bool

	// FocusArea narrows the analysis to a particular aspect.
	FocusArea string

	// DetailLevel is passed to the model as the image detail level
	// ("low", "high", or "auto"). Empty means "auto".
	DetailLevel string
}

// Result is the outcome of one analysis.
type Result struct {
	// Kind echoes the requested analysis kind.
	Kind Kind

	// Content is the model's raw reply text.
	Content string

	// Structured is a best-effort structured reading of Content. It
	// always contains at least "full_analysis".
	Structured map[string]any

	// Model is the model identifier that produced the reply.
	Model string

	// TokensUsed is the total token usage reported by the provider.
	TokensUsed int64
}

// Analyzer calls an OpenAI-compatible vision model.
type Analyzer struct {
	client     *openai.Client
	model      string
	downloader *http.Client
}

// NewAnalyzer creates an analyzer.
func NewAnalyzer(apiKey string, opts ...Option) *Analyzer {
	cfg := config{
		model:      DefaultModel,
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

	downloader := cfg.downloader
	if downloader == nil {
		downloader = &http.Client{Timeout: downloadTimeout}
	}

	return &Analyzer{
		client:     &client,
		model:      cfg.model,
		downloader: downloader,
	}
}

// Model returns the chat model identifier.
func (a *Analyzer) Model() string {
	return a.model
}

// Analyze downloads the image and runs the requested analysis.
func (a *Analyzer) Analyze(ctx context.Context, req Request) (*Result, error) {
	if req.ImageURL == "" {
		return nil, ErrNoImageURL
	}

	dataURL, err := a.fetchImage(ctx, req.ImageURL)
	if err != nil {
		return nil, err
	}

	detail := req.Options.DetailLevel
	if detail == "" {
		detail = "auto"
	}
	prompt := buildPrompt(req.Kind, req.Options)
	parts := []openai.ChatCompletionContentPartUnionParam{
		openai.TextContentPart(prompt),
		openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
			URL:    dataURL,
			Detail: detail,
		}),
	}
	params := openai.ChatCompletionNewParams{
		Model: a.model,
		Messages: []openai.ChatCompletionMessageParamUnion{{
			OfUser: &openai.ChatCompletionUserMessageParam{
				Content: openai.ChatCompletionUserMessageParamContentUnion{
					OfArrayOfContentParts: parts,
				},
			},
		}},
		MaxCompletionTokens: param.NewOpt(int64(analyzeMaxTokens)),
		Temperature:         param.NewOpt(float64(analyzeTemperature)),
	}

	resp, err := a.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("vision: analyze %q: %w", a.model, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("vision: analyze %q: no choices", a.model)
	}
	content := resp.Choices[0].Message.Content

	return &Result{
		Kind:       req.Kind,
		Content:    content,
		Structured: parseStructured(req.Kind, content),
		Model:      a.model,
		TokensUsed: resp.Usage.TotalTokens,
	}, nil
}

// fetchImage downloads the image and returns it as a base64 data URL.
func (a *Analyzer) fetchImage(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("vision: fetch image: %w", err)
	}
	resp, err := a.downloader.Do(req)
	if err != nil {
		return "", fmt.Errorf("vision: fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("vision: fetch image: unexpected status %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, downloadMaxBytes+1))
	if err != nil {
		return "", fmt.Errorf("vision: fetch image: %w", err)
	}
	if len(data) > downloadMaxBytes {
		return "", fmt.Errorf("vision: fetch image: larger than %d bytes", downloadMaxBytes)
	}
	if len(data) == 0 {
		return "", errors.New("vision: fetch image: empty body")
	}

	mime := resp.Header.Get("Content-Type")
	if mime == "" {
		mime = http.DetectContentType(data)
	}

	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

// buildPrompt assembles the final prompt from the kind template and options.
func buildPrompt(kind Kind, opts Options) string {
	prompt := kind.prompt()
	if opts.IncludeConfidence {
		prompt += "\n\nPlease include confidence levels for your observations."
	}
	if opts.FocusArea != "" {
		prompt += "\n\nPay special attention to: " + opts.FocusArea
	}
	return prompt
}
