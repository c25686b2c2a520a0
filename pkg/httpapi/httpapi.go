// Package httpapi exposes the AI service over HTTP using gin.
//
// The API mirrors a thin RPC surface: image analysis, similarity search,
// and embedding management. Handler-level failures of downstream providers
// are reported in the response body with success=false rather than as HTTP
// errors; HTTP status codes are reserved for request validation (400),
// missing resources (404), and unavailable dependencies (503).
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mediahub/aisvc/pkg/search"
	"github.com/mediahub/aisvc/pkg/vision"
)

// Analyzer is the image analysis dependency. *vision.Analyzer is the
// production implementation.
type Analyzer interface {
	Analyze(ctx context.Context, req vision.Request) (*vision.Result, error)
	Model() string
}

var _ Analyzer = (*vision.Analyzer)(nil)

// Config wires a Server.
type Config struct {
	// Search is the similarity-search service. Nil means the search and
	// embedding endpoints answer 503.
	Search *search.Service

	// Analyzer analyzes images. Nil means /analyze/image answers 503.
	Analyzer Analyzer

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Server is the HTTP API server.
type Server struct {
	search   *search.Service
	analyzer Analyzer
	logger   *slog.Logger
}

// New creates a Server.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		search:   cfg.Search,
		analyzer: cfg.Analyzer,
		logger:   logger,
	}
}

// Handler builds the routed gin handler.
func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestID(), requestLog(s.logger), corsAllowAll())

	r.GET("/health", s.handleHealth)
	r.POST("/analyze/image", s.handleAnalyzeImage)
	r.POST("/search/similarity", s.handleSimilaritySearch)
	r.POST("/embeddings/store", s.handleStoreEmbedding)
	r.PUT("/embeddings/:media_id", s.handleUpdateEmbedding)
	r.DELETE("/embeddings/:media_id", s.handleDeleteEmbedding)
	r.GET("/embeddings/:media_id", s.handleGetEmbedding)
	r.GET("/stats", s.handleStats)

	return r
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "ai-service",
	})
}

func (s *Server) handleAnalyzeImage(c *gin.Context) {
	var req AnalyzeImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if s.analyzer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "image analyzer not configured"})
		return
	}

	vreq := vision.Request{
		ImageURL: req.MediaURL,
		Kind:     vision.KindFromString(req.AnalysisType),
	}
	if req.Options != nil {
		vreq.Options = vision.Options{
			IncludeConfidence: req.Options.IncludeConfidence,
			FocusArea:         req.Options.FocusArea,
			DetailLevel:       req.Options.DetailLevel,
		}
	}

	res, err := s.analyzer.Analyze(c.Request.Context(), vreq)
	if err != nil {
		// Analysis failures are payload-level: the caller correlates by
		// analysis_id and must always receive a terminal answer.
		s.logger.Error("image analysis failed",
			"analysis_id", req.AnalysisID, "media_id", req.MediaID, "error", err)
		c.JSON(http.StatusOK, AnalyzeImageResponse{
			AnalysisID: req.AnalysisID,
			MediaID:    req.MediaID,
			Result:     gin.H{"error": err.Error()},
			Success:    false,
		})
		return
	}

	c.JSON(http.StatusOK, AnalyzeImageResponse{
		AnalysisID: req.AnalysisID,
		MediaID:    req.MediaID,
		Result: gin.H{
			"analysis_type":   res.Kind.String(),
			"content":         res.Content,
			"structured_data": res.Structured,
			"model_used":      res.Model,
			"tokens_used":     res.TokensUsed,
		},
		Success: true,
	})
}

func (s *Server) handleSimilaritySearch(c *gin.Context) {
	var req SimilaritySearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if s.search == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "search service not available"})
		return
	}

	params := search.Params{
		Limit:     search.DefaultLimit,
		Threshold: search.DefaultThreshold,
		UserID:    req.UserID,
	}
	if req.Limit != nil {
		params.Limit = *req.Limit
	}
	if req.Threshold != nil {
		params.Threshold = *req.Threshold
	}

	results, err := s.search.SimilaritySearch(c.Request.Context(), req.Query, params)
	if err != nil {
		s.logger.Error("similarity search failed", "error", err)
		msg := err.Error()
		c.JSON(http.StatusOK, SimilaritySearchResponse{
			Query:     req.Query,
			Results:   []search.Result{},
			Total:     0,
			Success:   false,
			Error:     &msg,
			Timestamp: timestamp(),
		})
		return
	}

	c.JSON(http.StatusOK, SimilaritySearchResponse{
		Query:     req.Query,
		Results:   results,
		Total:     len(results),
		Success:   true,
		Timestamp: timestamp(),
	})
}

func (s *Server) handleStoreEmbedding(c *gin.Context) {
	var req StoreEmbeddingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if s.search == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "search service not available"})
		return
	}

	err := s.search.Store(c.Request.Context(), req.MediaID, req.Content, req.mergedMetadata())
	s.writeEmbeddingResult(c, req.MediaID, "store embedding", err)
}

func (s *Server) handleUpdateEmbedding(c *gin.Context) {
	mediaID := c.Param("media_id")

	var req UpdateEmbeddingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if s.search == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "search service not available"})
		return
	}

	err := s.search.Update(c.Request.Context(), mediaID, req.Content, req.mergedMetadata())
	s.writeEmbeddingResult(c, mediaID, "update embedding", err)
}

func (s *Server) handleDeleteEmbedding(c *gin.Context) {
	mediaID := c.Param("media_id")
	if s.search == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "search service not available"})
		return
	}

	err := s.search.Delete(c.Request.Context(), mediaID)
	s.writeEmbeddingResult(c, mediaID, "delete embedding", err)
}

func (s *Server) handleGetEmbedding(c *gin.Context) {
	mediaID := c.Param("media_id")
	if s.search == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "search service not available"})
		return
	}

	stored, err := s.search.SearchByMediaID(c.Request.Context(), mediaID)
	if errors.Is(err, search.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "embedding not found", "media_id": mediaID})
		return
	}
	if err != nil {
		s.logger.Error("get embedding failed", "media_id", mediaID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, stored)
}

func (s *Server) handleStats(c *gin.Context) {
	if s.search == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "search service not available"})
		return
	}

	stats, err := s.search.Stats()
	if err != nil {
		s.logger.Error("stats failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// writeEmbeddingResult writes the shared response shape of the embedding
// mutation endpoints.
func (s *Server) writeEmbeddingResult(c *gin.Context, mediaID, op string, err error) {
	if err != nil {
		s.logger.Error(op+" failed", "media_id", mediaID, "error", err)
		c.JSON(http.StatusOK, EmbeddingResponse{
			MediaID:   mediaID,
			Success:   false,
			Error:     err.Error(),
			Timestamp: timestamp(),
		})
		return
	}
	c.JSON(http.StatusOK, EmbeddingResponse{
		MediaID:   mediaID,
		Success:   true,
		Timestamp: timestamp(),
	})
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
