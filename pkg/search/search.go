// Package search implements the similarity-search service: it composes a
// text embedder with a persistent vector index to provide store, update,
// delete, and threshold-filtered nearest-neighbor query over media content.
//
// A [Service] is an explicitly constructed object with an explicit
// lifecycle: [Service.Initialize] must run before any operation and
// [Service.Close] releases the index. Operations on an uninitialized or
// closed service fail with [ErrNotInitialized] rather than a nil
// dereference.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"unicode/utf8"

	"github.com/mediahub/aisvc/pkg/embed"
	"github.com/mediahub/aisvc/pkg/vecindex"
)

// Sentinel errors.
var (
	// ErrNotInitialized is returned by any operation invoked before
	// Initialize or after Close.
	ErrNotInitialized = errors.New("search: service not initialized")

	// ErrNotFound is returned by SearchByMediaID for an unknown media ID.
	ErrNotFound = errors.New("search: media not found")
)

// DefaultLimit is the result limit applied when a non-positive limit is
// requested.
const DefaultLimit = 10

// DefaultThreshold is the similarity threshold the HTTP layer applies when
// a request omits one. The service itself uses whatever threshold it is
// given, including zero.
const DefaultThreshold = 0.7

// VectorIndex is the index contract the service depends on.
// *vecindex.Index is the production implementation.
type VectorIndex interface {
	Upsert(ctx context.Context, id string, vector []float32, document string, metadata map[string]any) error
	Delete(ctx context.Context, id string) error
	Query(ctx context.Context, vector []float32, k int, filter vecindex.Filter) ([]vecindex.Hit, error)
	Get(ctx context.Context, id string) (*vecindex.Record, error)
	Count() int
	Close() error
}

// Config configures a new Service.
type Config struct {
	// Embedder converts text to vectors. Required.
	Embedder embed.Embedder

	// Index is the persistent vector index. Required; owned by the
	// service and closed by Close.
	Index VectorIndex

	// CollectionName labels the index in Stats. Default "media_embeddings".
	CollectionName string

	// PersistDirectory is reported in Stats. Informational only.
	PersistDirectory string

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Result is a single similarity-search hit.
type Result struct {
	MediaID         string         `json:"media_id"`
	Content         string         `json:"content"`
	SimilarityScore float64        `json:"similarity_score"`
	Metadata        map[string]any `json:"metadata"`
}

// Stored is the content and metadata persisted for one media ID.
type Stored struct {
	MediaID  string         `json:"media_id"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

// Stats describes the index for diagnostics.
type Stats struct {
	TotalEmbeddings  int    `json:"total_embeddings"`
	CollectionName   string `json:"collection_name"`
	EmbeddingModel   string `json:"embedding_model"`
	PersistDirectory string `json:"persist_directory"`
}

// Service is the similarity-search service. All methods are safe for
// concurrent use; the service performs no locking beyond the lifecycle
// guard, relying on the index's own concurrency control.
type Service struct {
	embedder   embed.Embedder
	index      VectorIndex
	collection string
	persistDir string
	logger     *slog.Logger

	mu          sync.RWMutex
	initialized bool
}

// New creates a Service from the given configuration. Initialize must be
// called before any other operation.
func New(cfg Config) *Service {
	collection := cfg.CollectionName
	if collection == "" {
		collection = "media_embeddings"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		embedder:   cfg.Embedder,
		index:      cfg.Index,
		collection: collection,
		persistDir: cfg.PersistDirectory,
		logger:     logger,
	}
}

// Initialize readies the service. Calling Initialize on an already
// initialized service is a no-op.
func (s *Service) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		return nil
	}
	if s.embedder == nil {
		return errors.New("search: Config.Embedder is required")
	}
	if s.index == nil {
		return errors.New("search: Config.Index is required")
	}
	s.initialized = true
	s.logger.Info("similarity search service initialized",
		"collection", s.collection,
		"embedding_model", s.embedder.Model(),
		"embeddings", s.index.Count())
	return nil
}

// Close releases the index. Subsequent operations fail with
// ErrNotInitialized. The caller must ensure no operation is in flight.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return nil
	}
	s.initialized = false
	if err := s.index.Close(); err != nil {
		return fmt.Errorf("search: close index: %w", err)
	}
	s.logger.Info("similarity search service closed")
	return nil
}

// ready returns ErrNotInitialized unless Initialize has run.
func (s *Service) ready() error {
	s.mu.RLock()
	ok := s.initialized
	s.mu.RUnlock()
	if !ok {
		return ErrNotInitialized
	}
	return nil
}

// Store embeds content and upserts it into the index under mediaID.
//
// Stored metadata is the caller's metadata plus the derived fields
// media_id and content_length (character count of content). Derived
// fields are authoritative: they overwrite caller-supplied fields of the
// same name.
func (s *Service) Store(ctx context.Context, mediaID, content string, metadata map[string]any) error {
	if err := s.ready(); err != nil {
		return err
	}

	vec, err := s.embedder.Embed(ctx, content)
	if err != nil {
		s.logger.Error("failed to embed content", "media_id", mediaID, "error", err)
		return fmt.Errorf("search: embed content for %q: %w", mediaID, err)
	}

	meta := make(map[string]any, len(metadata)+2)
	maps.Copy(meta, metadata)
	meta["media_id"] = mediaID
	meta["content_length"] = utf8.RuneCountInString(content)

	if err := s.index.Upsert(ctx, mediaID, vec, content, meta); err != nil {
		s.logger.Error("failed to store embedding", "media_id", mediaID, "error", err)
		return fmt.Errorf("search: store embedding for %q: %w", mediaID, err)
	}

	s.logger.Info("stored embedding", "media_id", mediaID, "content_length", meta["content_length"])
	return nil
}

// Params are the knobs for SimilaritySearch.
type Params struct {
	// Limit caps the number of results. Non-positive means DefaultLimit.
	Limit int

	// Threshold is the minimum similarity score a hit must reach to be
	// returned. Used verbatim; zero keeps every hit.
	Threshold float64

	// UserID, when non-empty, restricts results to records whose user_id
	// metadata field equals it.
	UserID string
}

// SimilaritySearch embeds the query and returns hits whose similarity
// (1 - cosine distance) reaches params.Threshold, in descending similarity
// order. An empty result is success, not an error.
func (s *Service) SimilaritySearch(ctx context.Context, query string, params Params) ([]Result, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	limit := params.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		s.logger.Error("failed to embed query", "error", err)
		return nil, fmt.Errorf("search: embed query: %w", err)
	}

	var filter vecindex.Filter
	if params.UserID != "" {
		filter = vecindex.Filter{"user_id": params.UserID}
	}

	hits, err := s.index.Query(ctx, vec, limit, filter)
	if err != nil {
		s.logger.Error("similarity search failed", "error", err)
		return nil, fmt.Errorf("search: query index: %w", err)
	}

	// Hits arrive in ascending distance order, so the surviving results
	// are already in descending similarity order.
	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		similarity := 1.0 - float64(h.Distance)
		if similarity < params.Threshold {
			continue
		}
		results = append(results, Result{
			MediaID:         h.MediaID,
			Content:         h.Document,
			SimilarityScore: similarity,
			Metadata:        h.Metadata,
		})
	}

	s.logger.Info("similarity search completed",
		"results", len(results), "limit", limit, "threshold", params.Threshold)
	return results, nil
}

// Update replaces the stored content for mediaID by deleting and
// re-storing. The two steps are not atomic: a crash between them leaves
// the record deleted.
func (s *Service) Update(ctx context.Context, mediaID, content string, metadata map[string]any) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := s.Delete(ctx, mediaID); err != nil {
		return err
	}
	return s.Store(ctx, mediaID, content, metadata)
}

// Delete removes the record for mediaID. Deleting an unknown ID succeeds.
func (s *Service) Delete(ctx context.Context, mediaID string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := s.index.Delete(ctx, mediaID); err != nil {
		s.logger.Error("failed to delete embedding", "media_id", mediaID, "error", err)
		return fmt.Errorf("search: delete embedding for %q: %w", mediaID, err)
	}
	s.logger.Info("deleted embedding", "media_id", mediaID)
	return nil
}

// SearchByMediaID returns the stored content and metadata for mediaID, or
// ErrNotFound.
func (s *Service) SearchByMediaID(ctx context.Context, mediaID string) (*Stored, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rec, err := s.index.Get(ctx, mediaID)
	if errors.Is(err, vecindex.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("search: get embedding for %q: %w", mediaID, err)
	}
	return &Stored{
		MediaID:  rec.MediaID,
		Content:  rec.Document,
		Metadata: rec.Metadata,
	}, nil
}

// Stats returns index diagnostics.
func (s *Service) Stats() (*Stats, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return &Stats{
		TotalEmbeddings:  s.index.Count(),
		CollectionName:   s.collection,
		EmbeddingModel:   s.embedder.Model(),
		PersistDirectory: s.persistDir,
	}, nil
}
