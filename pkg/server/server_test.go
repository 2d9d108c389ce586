package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/soundprediction/controlgraph"
	"github.com/soundprediction/controlgraph/pkg/config"
	"github.com/soundprediction/controlgraph/pkg/types"
	"github.com/soundprediction/controlgraph/pkg/vectorstore"
)

type stubEmbedder struct{}

func (stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = stubVector(t)
	}
	return out, nil
}

func (stubEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	return stubVector(text), nil
}

func (stubEmbedder) Dimensions() int { return 4 }
func (stubEmbedder) Close() error    { return nil }

func stubVector(text string) []float32 {
	v := make([]float32, 4)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		h := 0
		for _, r := range tok {
			h = h*31 + int(r)
		}
		if h < 0 {
			h = -h
		}
		v[h%4]++
	}
	return v
}

func testServer(t *testing.T) *Server {
	t.Helper()

	store, err := vectorstore.NewBadgerStore("")
	if err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{
		Server: config.ServerConfig{Host: "localhost", Port: 8080, Mode: "test"},
	}
	engine, err := controlgraph.NewClient(store, stubEmbedder{}, nil, nil, cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { engine.Close() })

	chunks := []*types.Chunk{
		{ID: "c1", Text: "AC-2 Account Management requires account provisioning approval", Source: "policy.pdf", Page: 1, Ordinal: 0},
		{ID: "c2", Text: "IA-5 Authenticator Management and AC-2 reviews", Source: "policy.pdf", Page: 2, Ordinal: 1},
	}
	if _, err := engine.BuildGraph(context.Background(), chunks); err != nil {
		t.Fatal(err)
	}

	server := New(cfg, engine)
	server.Setup()
	return server
}

func TestSetup(t *testing.T) {
	server := testServer(t)

	if server.router == nil {
		t.Error("expected router to be initialized")
	}
	if server.server == nil {
		t.Error("expected http.Server to be initialized")
	}
	if server.server.Addr != "localhost:8080" {
		t.Errorf("unexpected addr %s", server.server.Addr)
	}
}

func TestHealthEndpoint(t *testing.T) {
	server := testServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	server.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "healthy") {
		t.Errorf("unexpected body %s", w.Body.String())
	}
}

func TestQueryEndpoint(t *testing.T) {
	server := testServer(t)

	body, _ := json.Marshal(map[string]any{"query": "AC-2 account provisioning", "top_k": 2})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/query", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	server.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		QueryEntities []string `json:"query_entities"`
		Passages      []struct {
			ID string `json:"id"`
		} `json:"passages"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Passages) == 0 {
		t.Fatal("expected passages in response")
	}
	if resp.Passages[0].ID != "c1" {
		t.Errorf("expected c1 first, got %s", resp.Passages[0].ID)
	}
}

func TestQueryEndpointRejectsEmptyQuery(t *testing.T) {
	server := testServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/query", strings.NewReader(`{"query":"  "}`))
	req.Header.Set("Content-Type", "application/json")
	server.Router().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestWorkflowEndpoint(t *testing.T) {
	server := testServer(t)

	body, _ := json.Marshal(map[string]any{
		"workflow_id": "posture-review",
		"steps": []map[string]any{
			{"id": "gap", "agent": "compliance", "params": map[string]any{"min_evidence_threshold": 1}},
			{"id": "report", "agent": "synthesis", "depends_on": []string{"gap"}},
		},
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/workflows/run", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	server.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Status string `json:"status"`
		Steps  []struct {
			StepID string `json:"step_id"`
			Status string `json:"status"`
		} `json:"steps"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "success" {
		t.Errorf("expected success, got %s", resp.Status)
	}
	if len(resp.Steps) != 2 {
		t.Errorf("expected 2 step results, got %d", len(resp.Steps))
	}
}

func TestWorkflowEndpointRejectsCycle(t *testing.T) {
	server := testServer(t)

	body, _ := json.Marshal(map[string]any{
		"steps": []map[string]any{
			{"id": "a", "agent": "compliance", "depends_on": []string{"b"}},
			{"id": "b", "agent": "compliance", "depends_on": []string{"a"}},
		},
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/workflows/run", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	server.Router().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for cyclic workflow, got %d", w.Code)
	}
}

func TestGraphStatsEndpoint(t *testing.T) {
	server := testServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/graph/stats?top=2", nil)
	server.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var stats struct {
		Entities int `json:"entities"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatal(err)
	}
	if stats.Entities == 0 {
		t.Error("expected entities in stats")
	}
}
