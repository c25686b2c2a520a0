package vision

import "net/http"

// config holds analyzer configuration.
type config struct {
	model      string
	baseURL    string
	httpClient *http.Client
	downloader *http.Client
}

// Option configures an analyzer.
type Option func(*config)

// WithModel sets the chat model name.
func WithModel(model string) Option {
	return func(c *config) { c.model = model }
}

// WithBaseURL overrides the API base URL, for OpenAI-compatible providers.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithHTTPClient sets the HTTP client used for model API calls.
func WithHTTPClient(client *http.Client) Option {
	return func(c *config) { c.httpClient = client }
}

// WithDownloadClient sets the HTTP client used to fetch images.
// The default has a 30 second timeout.
func WithDownloadClient(client *http.Client) Option {
	return func(c *config) { c.downloader = client }
}
