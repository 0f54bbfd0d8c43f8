package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"factnet/internal/knowledge"
	"factnet/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newTestRouter(t *testing.T) (*gin.Engine, *knowledge.Graph) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	kg := knowledge.New(knowledge.NewMemoryStorage(), nil)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = kg.Close(ctx)
	})

	return newRouter(kg, logger.Get()), kg
}

func doJSON(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(router, "GET", "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var response map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &response)
	assert.Equal(t, "ok", response["status"])
}

func TestAddAndGetFact(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(router, "POST", "/api/facts", map[string]any{
		"content":  "the moon orbits the earth",
		"metadata": map[string]any{"source": "astronomy"},
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	var fact knowledge.Fact
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &fact))
	assert.NotEmpty(t, fact.ID)
	assert.Equal(t, "the moon orbits the earth", fact.Content)

	w = doJSON(router, "GET", "/api/facts/"+fact.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var got knowledge.Fact
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, fact.ID, got.ID)
	assert.Equal(t, "astronomy", got.Metadata["source"])
}

func TestAddFact_MissingContent(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(router, "POST", "/api/facts", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetFact_NotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(router, "GET", "/api/facts/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRelationshipFlow(t *testing.T) {
	router, kg := newTestRouter(t)
	ctx := context.Background()

	fact1, _ := kg.AddFact(ctx, "vaccines reduce disease spread", "f1", nil)
	fact3, _ := kg.AddFact(ctx, "vaccines have no effect on disease spread", "f3", nil)

	w := doJSON(router, "POST", "/api/relationships", map[string]any{
		"source_id":  fact3.ID,
		"target_id":  fact1.ID,
		"type":       "contradicts",
		"confidence": 0.9,
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(router, "GET", "/api/facts/f1/contradicting", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Facts []knowledge.Fact `json:"facts"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Facts, 1)
	assert.Equal(t, "f3", resp.Facts[0].ID)
}

func TestAddRelationship_InvalidType(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(router, "POST", "/api/relationships", map[string]any{
		"source_id": "a",
		"target_id": "b",
		"type":      "refutes",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListRelationships_TypeFilter(t *testing.T) {
	router, kg := newTestRouter(t)
	ctx := context.Background()

	_, _ = kg.AddFact(ctx, "a", "a", nil)
	_, _ = kg.AddFact(ctx, "b", "b", nil)
	_, _ = kg.AddManualRelationship(ctx, "a", "b", knowledge.RelationshipSupports, 0.7, nil)
	_, _ = kg.AddManualRelationship(ctx, "b", "a", knowledge.RelationshipNeutral, 0.5, nil)

	w := doJSON(router, "GET", "/api/relationships?type=supports", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Relationships []knowledge.Relationship `json:"relationships"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Relationships, 1)
	assert.Equal(t, knowledge.RelationshipSupports, resp.Relationships[0].Type)

	w = doJSON(router, "GET", "/api/relationships?type=refutes", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatsEndpoint(t *testing.T) {
	router, kg := newTestRouter(t)
	ctx := context.Background()

	_, _ = kg.AddFact(ctx, "a", "a", nil)
	_, _ = kg.AddFact(ctx, "b", "b", nil)
	_, _ = kg.AddManualRelationship(ctx, "a", "b", knowledge.RelationshipSupports, 0.7, nil)

	w := doJSON(router, "GET", "/api/stats", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var stats knowledge.NetworkStats
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats.TotalFacts)
	assert.Equal(t, 1, stats.TotalRelationships)
	assert.Equal(t, 1, stats.SupportRelationships)
}

func TestWaitEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(router, "POST", "/api/processing/wait", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGraphDotEndpoint(t *testing.T) {
	router, kg := newTestRouter(t)
	ctx := context.Background()

	_, _ = kg.AddFact(ctx, "a fact", "a", nil)

	w := doJSON(router, "GET", "/api/graph.dot", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/vnd.graphviz", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "digraph knowledge")
	assert.Contains(t, w.Body.String(), `"a"`)
}

func TestImportEndpoint(t *testing.T) {
	router, kg := newTestRouter(t)

	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><p>Regular exercise improves cardiovascular health in most adults.</p></body></html>`))
	}))
	defer page.Close()

	w := doJSON(router, "POST", "/api/import", map[string]any{"url": page.URL})
	assert.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Imported int      `json:"imported"`
		FactIDs  []string `json:"fact_ids"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Imported)

	fact, err := kg.GetFact(context.Background(), resp.FactIDs[0])
	assert.NoError(t, err)
	if assert.NotNil(t, fact) {
		assert.Equal(t, page.URL, fact.Metadata["source_url"])
	}
}
