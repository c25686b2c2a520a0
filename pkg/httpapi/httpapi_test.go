package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mediahub/aisvc/pkg/httpapi"
	"github.com/mediahub/aisvc/pkg/kv"
	"github.com/mediahub/aisvc/pkg/search"
	"github.com/mediahub/aisvc/pkg/vecindex"
	"github.com/mediahub/aisvc/pkg/vecstore"
	"github.com/mediahub/aisvc/pkg/vision"
)

const testDim = 64

// bagEmbedder maps each distinct word to its own dimension, making
// similarity deterministic for test texts.
type bagEmbedder struct {
	dims map[string]int
}

func (e *bagEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, testDim)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		idx, ok := e.dims[w]
		if !ok {
			idx = len(e.dims) % testDim
			e.dims[w] = idx
		}
		vec[idx]++
	}
	return vec, nil
}

func (e *bagEmbedder) Dimension() int { return testDim }
func (e *bagEmbedder) Model() string  { return "bag-test-embedder" }

// fakeAnalyzer answers with a canned result or error.
type fakeAnalyzer struct {
	result *vision.Result
	err    error

	gotReq vision.Request
}

func (a *fakeAnalyzer) Analyze(_ context.Context, req vision.Request) (*vision.Result, error) {
	a.gotReq = req
	if a.err != nil {
		return nil, a.err
	}
	return a.result, nil
}

func (a *fakeAnalyzer) Model() string { return "fake-vision" }

func newTestSearch(t *testing.T) *search.Service {
	t.Helper()
	svc := search.New(search.Config{
		Embedder: &bagEmbedder{dims: make(map[string]int)},
		Index:    vecindex.New(kv.NewMemory(), vecstore.NewMemory(), nil),
	})
	if err := svc.Initialize(); err != nil {
		t.Fatal(err)
	}
	return svc
}

func newTestServer(t *testing.T, analyzer httpapi.Analyzer) (http.Handler, *search.Service) {
	t.Helper()
	svc := newTestSearch(t)
	srv := httpapi.New(httpapi.Config{Search: svc, Analyzer: analyzer})
	return srv.Handler(), svc
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	h, _ := newTestServer(t, nil)
	w := doJSON(t, h, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var body map[string]string
	decode(t, w, &body)
	if body["status"] != "healthy" || body["service"] != "ai-service" {
		t.Errorf("body = %v", body)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
}

func TestAnalyzeImage(t *testing.T) {
	fa := &fakeAnalyzer{result: &vision.Result{
		Kind:       vision.KindObjectDetection,
		Content:    "- Dog: center",
		Structured: map[string]any{"full_analysis": "- Dog: center"},
		Model:      "fake-vision",
		TokensUsed: 42,
	}}
	h, _ := newTestServer(t, fa)

	w := doJSON(t, h, http.MethodPost, "/analyze/image", map[string]any{
		"analysis_id":   "a1",
		"media_id":      "m1",
		"media_url":     "https://img.example/1.jpg",
		"analysis_type": "object_detection",
		"options":       map[string]any{"focus_area": "foreground"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var resp httpapi.AnalyzeImageResponse
	decode(t, w, &resp)
	if !resp.Success {
		t.Fatalf("success = false: %v", resp.Result)
	}
	if resp.AnalysisID != "a1" || resp.MediaID != "m1" {
		t.Errorf("ids = %q %q", resp.AnalysisID, resp.MediaID)
	}
	if resp.Result["analysis_type"] != "object_detection" {
		t.Errorf("analysis_type = %v", resp.Result["analysis_type"])
	}
	if resp.Result["tokens_used"] != float64(42) {
		t.Errorf("tokens_used = %v", resp.Result["tokens_used"])
	}

	if fa.gotReq.Kind != vision.KindObjectDetection {
		t.Errorf("analyzer kind = %v", fa.gotReq.Kind)
	}
	if fa.gotReq.Options.FocusArea != "foreground" {
		t.Errorf("focus area = %q", fa.gotReq.Options.FocusArea)
	}
}

func TestAnalyzeImageFailureKeeps200(t *testing.T) {
	fa := &fakeAnalyzer{err: errors.New("model overloaded")}
	h, _ := newTestServer(t, fa)

	w := doJSON(t, h, http.MethodPost, "/analyze/image", map[string]any{
		"analysis_id":   "a1",
		"media_id":      "m1",
		"media_url":     "https://img.example/1.jpg",
		"analysis_type": "image_description",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 with success=false", w.Code)
	}

	var resp httpapi.AnalyzeImageResponse
	decode(t, w, &resp)
	if resp.Success {
		t.Fatal("success = true, want false")
	}
	if msg, _ := resp.Result["error"].(string); !strings.Contains(msg, "model overloaded") {
		t.Errorf("result.error = %v", resp.Result["error"])
	}
}

func TestAnalyzeImageValidation(t *testing.T) {
	h, _ := newTestServer(t, &fakeAnalyzer{})
	w := doJSON(t, h, http.MethodPost, "/analyze/image", map[string]any{
		"analysis_id": "a1",
		// media_url and others missing
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestAnalyzeImageNoAnalyzer(t *testing.T) {
	h, _ := newTestServer(t, nil)
	w := doJSON(t, h, http.MethodPost, "/analyze/image", map[string]any{
		"analysis_id":   "a1",
		"media_id":      "m1",
		"media_url":     "https://img.example/1.jpg",
		"analysis_type": "image_description",
	})
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
}

func TestStoreAndSearch(t *testing.T) {
	h, _ := newTestServer(t, nil)

	store := doJSON(t, h, http.MethodPost, "/embeddings/store", map[string]any{
		"media_id": "m1",
		"content":  "red apple on a wooden table",
		"metadata": map[string]any{"source": "camera"},
		"user_id":  "u1",
	})
	if store.Code != http.StatusOK {
		t.Fatalf("store status = %d, body %s", store.Code, store.Body.String())
	}
	var stored httpapi.EmbeddingResponse
	decode(t, store, &stored)
	if !stored.Success || stored.MediaID != "m1" {
		t.Fatalf("store response = %+v", stored)
	}
	if _, err := time.Parse(time.RFC3339, stored.Timestamp); err != nil {
		t.Errorf("timestamp %q not RFC3339: %v", stored.Timestamp, err)
	}

	w := doJSON(t, h, http.MethodPost, "/search/similarity", map[string]any{
		"query":     "red apple on a wooden table",
		"threshold": 0.5,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("search status = %d, body %s", w.Code, w.Body.String())
	}
	var resp httpapi.SimilaritySearchResponse
	decode(t, w, &resp)
	if !resp.Success {
		t.Fatalf("search success = false: %v", resp.Error)
	}
	if resp.Total != 1 || len(resp.Results) != 1 {
		t.Fatalf("total = %d, results = %d, want 1", resp.Total, len(resp.Results))
	}
	hit := resp.Results[0]
	if hit.MediaID != "m1" {
		t.Errorf("media_id = %q", hit.MediaID)
	}
	if hit.SimilarityScore < 0.99 {
		t.Errorf("similarity = %v, want ~1 for identical text", hit.SimilarityScore)
	}
	if hit.Metadata["user_id"] != "u1" {
		t.Errorf("user_id not folded into metadata: %v", hit.Metadata)
	}
}

func TestSearchUserIDFilter(t *testing.T) {
	h, _ := newTestServer(t, nil)

	for id, user := range map[string]string{"m1": "u1", "m2": "u2"} {
		w := doJSON(t, h, http.MethodPost, "/embeddings/store", map[string]any{
			"media_id": id,
			"content":  "sunset over the ocean",
			"user_id":  user,
		})
		if w.Code != http.StatusOK {
			t.Fatalf("store %s: %d", id, w.Code)
		}
	}

	w := doJSON(t, h, http.MethodPost, "/search/similarity", map[string]any{
		"query":     "sunset over the ocean",
		"threshold": 0.5,
		"user_id":   "u2",
	})
	var resp httpapi.SimilaritySearchResponse
	decode(t, w, &resp)
	if resp.Total != 1 || resp.Results[0].MediaID != "m2" {
		t.Fatalf("filtered results = %+v", resp.Results)
	}
}

func TestSearchValidation(t *testing.T) {
	h, _ := newTestServer(t, nil)
	w := doJSON(t, h, http.MethodPost, "/search/similarity", map[string]any{
		"limit": 5, // query missing
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestSearchEmptyResultIsSuccess(t *testing.T) {
	h, _ := newTestServer(t, nil)
	w := doJSON(t, h, http.MethodPost, "/search/similarity", map[string]any{
		"query": "anything at all",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp httpapi.SimilaritySearchResponse
	decode(t, w, &resp)
	if !resp.Success || resp.Total != 0 {
		t.Errorf("resp = %+v", resp)
	}
	if resp.Results == nil {
		t.Error("results should encode as [], not null")
	}
}

func TestUpdateEmbedding(t *testing.T) {
	h, _ := newTestServer(t, nil)

	doJSON(t, h, http.MethodPost, "/embeddings/store", map[string]any{
		"media_id": "m1",
		"content":  "old content here",
	})
	w := doJSON(t, h, http.MethodPut, "/embeddings/m1", map[string]any{
		"content": "fresh new words entirely",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d", w.Code)
	}

	get := doJSON(t, h, http.MethodGet, "/embeddings/m1", nil)
	if get.Code != http.StatusOK {
		t.Fatalf("get status = %d", get.Code)
	}
	var stored search.Stored
	decode(t, get, &stored)
	if stored.Content != "fresh new words entirely" {
		t.Errorf("content = %q", stored.Content)
	}
}

func TestDeleteEmbeddingIdempotent(t *testing.T) {
	h, _ := newTestServer(t, nil)

	doJSON(t, h, http.MethodPost, "/embeddings/store", map[string]any{
		"media_id": "m1",
		"content":  "to be deleted",
	})

	for range 2 {
		w := doJSON(t, h, http.MethodDelete, "/embeddings/m1", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("delete status = %d", w.Code)
		}
		var resp httpapi.EmbeddingResponse
		decode(t, w, &resp)
		if !resp.Success {
			t.Fatalf("delete success = false: %s", resp.Error)
		}
	}

	if w := doJSON(t, h, http.MethodGet, "/embeddings/m1", nil); w.Code != http.StatusNotFound {
		t.Fatalf("get after delete = %d, want 404", w.Code)
	}
}

func TestGetEmbeddingNotFound(t *testing.T) {
	h, _ := newTestServer(t, nil)
	w := doJSON(t, h, http.MethodGet, "/embeddings/ghost", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestStats(t *testing.T) {
	h, _ := newTestServer(t, nil)

	doJSON(t, h, http.MethodPost, "/embeddings/store", map[string]any{
		"media_id": "m1",
		"content":  "something",
	})

	w := doJSON(t, h, http.MethodGet, "/stats", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var stats search.Stats
	decode(t, w, &stats)
	if stats.TotalEmbeddings != 1 {
		t.Errorf("total_embeddings = %d, want 1", stats.TotalEmbeddings)
	}
	if stats.CollectionName != "media_embeddings" {
		t.Errorf("collection_name = %q", stats.CollectionName)
	}
}

func TestSearchServiceUnavailable(t *testing.T) {
	srv := httpapi.New(httpapi.Config{})
	h := srv.Handler()

	paths := []struct {
		method, path string
		body         any
	}{
		{http.MethodPost, "/search/similarity", map[string]any{"query": "x"}},
		{http.MethodPost, "/embeddings/store", map[string]any{"media_id": "m", "content": "c"}},
		{http.MethodGet, "/stats", nil},
		{http.MethodDelete, "/embeddings/m", nil},
	}
	for _, p := range paths {
		if w := doJSON(t, h, p.method, p.path, p.body); w.Code != http.StatusServiceUnavailable {
			t.Errorf("%s %s = %d, want 503", p.method, p.path, w.Code)
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	h, _ := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodOptions, "/search/similarity", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d, want 204", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Methods") == "" {
		t.Error("missing Allow-Methods header")
	}
}
