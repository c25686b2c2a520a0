package httpapi

import "github.com/mediahub/aisvc/pkg/search"

// AnalyzeImageRequest asks for one image analysis.
type AnalyzeImageRequest struct {
	AnalysisID   string          `json:"analysis_id" binding:"required"`
	MediaID      string          `json:"media_id" binding:"required"`
	MediaURL     string          `json:"media_url" binding:"required"`
	AnalysisType string          `json:"analysis_type" binding:"required"`
	Options      *AnalyzeOptions `json:"options"`
}

// AnalyzeOptions tune the analysis prompt.
type AnalyzeOptions struct {
	IncludeConfidence bool   `json:"include_confidence"`
	FocusArea         string `json:"focus_area"`
	DetailLevel       string `json:"detail_level"`
}

// AnalyzeImageResponse carries the outcome of one analysis. Success is
// false when the analysis failed; Result then holds only "error".
type AnalyzeImageResponse struct {
	AnalysisID string         `json:"analysis_id"`
	MediaID    string         `json:"media_id"`
	Result     map[string]any `json:"result"`
	Success    bool           `json:"success"`
}

// SimilaritySearchRequest queries the vector index by text. Limit and
// Threshold are pointers so an omitted field takes the default while an
// explicit zero is honored.
type SimilaritySearchRequest struct {
	Query     string   `json:"query" binding:"required"`
	Limit     *int     `json:"limit"`
	Threshold *float64 `json:"threshold"`
	UserID    string   `json:"user_id"`
}

// SimilaritySearchResponse lists the matches for a query. Error is null
// on success.
type SimilaritySearchResponse struct {
	Query     string          `json:"query"`
	Results   []search.Result `json:"results"`
	Total     int             `json:"total"`
	Success   bool            `json:"success"`
	Error     *string         `json:"error"`
	Timestamp string          `json:"timestamp"`
}

// StoreEmbeddingRequest stores (or replaces) one media embedding.
type StoreEmbeddingRequest struct {
	MediaID  string         `json:"media_id" binding:"required"`
	Content  string         `json:"content" binding:"required"`
	Metadata map[string]any `json:"metadata"`
	UserID   string         `json:"user_id"`
}

func (r *StoreEmbeddingRequest) mergedMetadata() map[string]any {
	return foldUserID(r.Metadata, r.UserID)
}

// UpdateEmbeddingRequest replaces the content behind an existing media ID;
// the ID itself comes from the URL path.
type UpdateEmbeddingRequest struct {
	Content  string         `json:"content" binding:"required"`
	Metadata map[string]any `json:"metadata"`
	UserID   string         `json:"user_id"`
}

func (r *UpdateEmbeddingRequest) mergedMetadata() map[string]any {
	return foldUserID(r.Metadata, r.UserID)
}

// EmbeddingResponse is the shared shape of the embedding mutation endpoints.
type EmbeddingResponse struct {
	MediaID   string `json:"media_id"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp"`
}

// foldUserID copies metadata with a top-level user_id field merged in, so
// searches can filter by owner.
func foldUserID(metadata map[string]any, userID string) map[string]any {
	if userID == "" {
		return metadata
	}
	merged := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		merged[k] = v
	}
	merged["user_id"] = userID
	return merged
}
