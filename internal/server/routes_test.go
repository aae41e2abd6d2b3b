package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/keepsake-dev/keepsake/internal/memory"
	"github.com/keepsake-dev/keepsake/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	st := store.NewSQLiteStore(db, nil)
	engine := memory.NewEngine(st, st.Locker(), memory.Options{}, nil)
	return New(engine, "test", nil)
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("%s %s: undecodable body %q", method, path, rec.Body.String())
		}
	}
	return rec, decoded
}

func createMemory(t *testing.T, srv *Server, content string, confidence float64, tags ...string) string {
	t.Helper()
	rec, body := doJSON(t, srv, http.MethodPost, "/api/memories", map[string]any{
		"type":              "preference",
		"content":           content,
		"confidence":        confidence,
		"source_session_id": "s1",
		"tags":              tags,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create returned %d: %v", rec.Code, body)
	}
	return body["memory"].(map[string]any)["id"].(string)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	rec, body := doJSON(t, srv, http.MethodGet, "/api/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body["status"] != "ok" || body["version"] != "test" {
		t.Errorf("body = %v", body)
	}
}

func TestMemoryLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	id := createMemory(t, srv, "prefers dark mode", 0.7, "ui")

	rec, body := doJSON(t, srv, http.MethodGet, "/api/memories/"+id, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get returned %d: %v", rec.Code, body)
	}
	mem := body["memory"].(map[string]any)
	if mem["content"] != "prefers dark mode" || mem["tier"] != "short_term" {
		t.Errorf("memory = %v", mem)
	}
	if _, ok := body["estimated_removal"]; !ok {
		t.Error("expected an estimated_removal for an atom above its floor")
	}

	rec, body = doJSON(t, srv, http.MethodGet, "/api/memories/?tier=short_term&type=preference", nil)
	if rec.Code != http.StatusOK || body["count"].(float64) != 1 {
		t.Errorf("list returned %d: %v", rec.Code, body)
	}

	rec, _ = doJSON(t, srv, http.MethodDelete, "/api/memories/"+id, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete returned %d", rec.Code)
	}
	rec, _ = doJSON(t, srv, http.MethodDelete, "/api/memories/"+id, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete returned %d, want 404", rec.Code)
	}
}

func TestCreateMemoryValidation(t *testing.T) {
	srv := newTestServer(t)

	rec, _ := doJSON(t, srv, http.MethodPost, "/api/memories", map[string]any{
		"type": "feeling", "content": "x", "confidence": 0.5,
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid type returned %d, want 400", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/memories", strings.NewReader("{broken"))
	rec2 := httptest.NewRecorder()
	srv.ServeHTTP(rec2, req)
	if rec2.Code != http.StatusBadRequest {
		t.Errorf("broken json returned %d, want 400", rec2.Code)
	}
}

func TestCreateMemoryReinforcesPattern(t *testing.T) {
	srv := newTestServer(t)

	createMemory(t, srv, "uses vim", 0.5, "editor", "vim")
	rec, body := doJSON(t, srv, http.MethodPost, "/api/memories", map[string]any{
		"type":              "preference",
		"content":           "vim keybindings everywhere",
		"confidence":        0.6,
		"source_session_id": "s2",
		"tags":              []string{"editor", "vim"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create returned %d: %v", rec.Code, body)
	}
	if body["reinforced"].(float64) != 1 {
		t.Errorf("reinforced = %v, want 1", body["reinforced"])
	}
}

func TestContextEndpoint(t *testing.T) {
	srv := newTestServer(t)
	createMemory(t, srv, "prefers dark mode", 0.7, "ui")

	rec, body := doJSON(t, srv, http.MethodGet, "/api/context?context=dark+mode", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("context returned %d: %v", rec.Code, body)
	}
	block := body["context"].(string)
	if !strings.Contains(block, "<user-profile>") || !strings.Contains(block, "prefers dark mode") {
		t.Errorf("context block = %q", block)
	}
	if body["selected"].(float64) != 1 {
		t.Errorf("selected = %v, want 1", body["selected"])
	}
}

func TestContextEndpointEmptyStore(t *testing.T) {
	srv := newTestServer(t)

	rec, body := doJSON(t, srv, http.MethodGet, "/api/context", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("context returned %d", rec.Code)
	}
	if body["context"].(string) != "" || body["selected"].(float64) != 0 {
		t.Errorf("empty store should yield empty context, got %v", body)
	}
}

func TestMaintenanceEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec, body := doJSON(t, srv, http.MethodPost, "/api/maintenance", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("maintenance returned %d: %v", rec.Code, body)
	}
	// No atoms: the transition log is present and empty, never null.
	if body["transitions"] == nil || body["count"].(float64) != 0 {
		t.Errorf("body = %v", body)
	}
}

func TestStatusEndpoint(t *testing.T) {
	srv := newTestServer(t)
	createMemory(t, srv, "prefers tabs", 0.7)

	rec, body := doJSON(t, srv, http.MethodGet, "/api/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status returned %d: %v", rec.Code, body)
	}
	tiers := body["tiers"].(map[string]any)
	short := tiers["short_term"].(map[string]any)
	if short["count"].(float64) != 1 {
		t.Errorf("short_term = %v", short)
	}
}

func TestGetMemoryNotFound(t *testing.T) {
	srv := newTestServer(t)
	rec, _ := doJSON(t, srv, http.MethodGet, "/api/memories/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
