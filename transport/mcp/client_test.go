package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/wricardo/vinecheck/api"
	"github.com/wricardo/vinecheck/game/engine"
	"github.com/wricardo/vinecheck/game/service"
	"github.com/wricardo/vinecheck/game/store"
)

const tiledLevel = `{"id": 7, "name": "Pair", "grid_size": [2, 2], "difficulty": "Seedling",
  "vines": [
    {"id": "a", "head_direction": "right", "color": "moss_green", "ordered_path": [[1,0],[0,0]], "blocks": ["b"]},
    {"id": "b", "head_direction": "right", "color": "sky_blue", "ordered_path": [[1,1],[0,1]]}
  ],
  "max_moves": 2, "min_moves": 2, "complexity": "low", "grace": 3}`

// newTestAPI serves the real REST API over a temporary levels directory
func newTestAPI(t *testing.T, files map[string]string) (*httptest.Server, string) {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
	}

	levels, err := store.New(dir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	svc := service.NewValidationService(levels, engine.NewValidator(nil))

	server := httptest.NewServer(api.NewServer(svc, nil))
	t.Cleanup(server.Close)
	return server, dir
}

func callTool(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]interface{}) (string, bool) {
	t.Helper()
	request := mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}

	result, err := handler(context.Background(), request)
	if err != nil {
		t.Fatalf("Tool handler returned error: %v", err)
	}
	if len(result.Content) == 0 {
		t.Fatal("Tool result has no content")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("Expected TextContent, got %T", result.Content[0])
	}
	return text.Text, result.IsError
}

func TestNewClient(t *testing.T) {
	baseURL := "http://localhost:8080/"
	client := NewClient(baseURL)

	if client == nil {
		t.Fatal("Expected client to be created")
	}

	if client.baseURL != "http://localhost:8080" {
		t.Errorf("Expected trailing slash to be trimmed, got %s", client.baseURL)
	}

	if client.httpClient == nil {
		t.Error("Expected HTTP client to be initialized")
	}

	if client.GetMCPServer() == nil {
		t.Error("Expected MCP server to be initialized")
	}
}

func TestClient_apiCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tiers" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"max_color_share": 0.35})
	}))
	defer server.Close()

	client := NewClient(server.URL)

	var response map[string]interface{}
	if err := client.apiCall(context.Background(), "GET", "/api/tiers", nil, &response); err != nil {
		t.Fatalf("apiCall failed: %v", err)
	}

	if response["max_color_share"] != 0.35 {
		t.Errorf("Expected max_color_share 0.35, got %v", response["max_color_share"])
	}
}

func TestClient_apiCall_Error(t *testing.T) {
	client := NewClient("http://invalid-url-that-does-not-exist:9999")

	if err := client.apiCall(context.Background(), "GET", "/api", nil, nil); err == nil {
		t.Error("Expected error for invalid URL")
	}
}

func TestClient_apiCall_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/json" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error": "level not found: level_9"}`))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Internal Server Error"))
	}))
	defer server.Close()

	client := NewClient(server.URL)

	err := client.apiCall(context.Background(), "GET", "/plain", nil, nil)
	if err == nil || err.Error() != "API error: 500" {
		t.Errorf("Expected generic API error, got %v", err)
	}

	err = client.apiCall(context.Background(), "GET", "/json", nil, nil)
	if err == nil || err.Error() != "level not found: level_9" {
		t.Errorf("Expected the API error message, got %v", err)
	}
}

func TestValidateDocumentTool(t *testing.T) {
	server, _ := newTestAPI(t, nil)
	client := NewClient(server.URL)

	text, isError := callTool(t, client.handleValidateDocument, map[string]interface{}{"document": tiledLevel})
	if isError {
		t.Fatalf("Unexpected tool error: %s", text)
	}

	// Seedling needs at least 4 vines and a color may cover at most 35% of them
	for _, want := range []string{
		"Result: INVALID",
		"Occupancy: 100.0%",
		"Colors: moss_green 50.0%, sky_blue 50.0%",
		"Clearable at start: a",
		"Blocking depth: 1",
		"Vine count 2 outside range 4-60 for Seedling",
		"Average vine length 2.0 outside recommended range 6-8 for Seedling",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected %q in output:\n%s", want, text)
		}
	}
}

func TestValidateDocumentToolErrors(t *testing.T) {
	server, _ := newTestAPI(t, nil)
	client := NewClient(server.URL)

	text, isError := callTool(t, client.handleValidateDocument, map[string]interface{}{})
	if !isError || text != "document is required" {
		t.Errorf("Expected missing document error, got %q", text)
	}

	text, isError = callTool(t, client.handleValidateDocument, map[string]interface{}{"document": "{not json"})
	if !isError || !strings.HasPrefix(text, "Invalid JSON: ") {
		t.Errorf("Expected Invalid JSON error, got %q", text)
	}
}

func TestValidateLevelTool(t *testing.T) {
	server, dir := newTestAPI(t, map[string]string{"level_7.json": tiledLevel})
	client := NewClient(server.URL)

	text, isError := callTool(t, client.handleValidateLevel, map[string]interface{}{"name": "level_7"})
	if isError {
		t.Fatalf("Unexpected tool error: %s", text)
	}
	if !strings.Contains(text, "Level: level_7") {
		t.Errorf("Expected level name in output:\n%s", text)
	}
	if strings.Contains(text, "written back") {
		t.Error("Read-only validation must not write")
	}

	text, _ = callTool(t, client.handleValidateLevel, map[string]interface{}{"name": "level_7", "persist": true})
	if !strings.Contains(text, "Metrics written back") {
		t.Errorf("Expected write-back confirmation:\n%s", text)
	}
	data, err := os.ReadFile(filepath.Join(dir, "level_7.json"))
	if err != nil {
		t.Fatalf("Failed to read level: %v", err)
	}
	if !strings.Contains(string(data), `"blocking_graph"`) {
		t.Error("Expected metrics in the stored level")
	}

	text, isError = callTool(t, client.handleValidateLevel, map[string]interface{}{"name": "level_99"})
	if !isError || !strings.Contains(text, "level not found") {
		t.Errorf("Expected not found error, got %q", text)
	}
}

func TestValidateAllTool(t *testing.T) {
	server, _ := newTestAPI(t, map[string]string{
		"level_1.json": tiledLevel,
		"level_2.json": "{",
	})
	client := NewClient(server.URL)

	text, isError := callTool(t, client.handleValidateAll, map[string]interface{}{"dry_run": true, "workers": "2"})
	if isError {
		t.Fatalf("Unexpected tool error: %s", text)
	}
	if !strings.Contains(text, "files valid") || !strings.Contains(text, "level_2.json: Invalid JSON") {
		t.Errorf("Unexpected batch output:\n%s", text)
	}

	text, isError = callTool(t, client.handleValidateAll, map[string]interface{}{"workers": "zero"})
	if !isError || !strings.Contains(text, "invalid worker count") {
		t.Errorf("Expected worker error, got %q", text)
	}
}

func TestCatalogTools(t *testing.T) {
	server, _ := newTestAPI(t, map[string]string{"level_7.json": tiledLevel})
	client := NewClient(server.URL)

	text, _ := callTool(t, client.handleListLevels, nil)
	if !strings.Contains(text, `level_7.json: id=7 "Pair" Seedling grid=[2,2] vines=2`) {
		t.Errorf("Unexpected level listing:\n%s", text)
	}

	text, _ = callTool(t, client.handleListTiers, nil)
	for _, want := range []string{"Seedling: vines 4-60", "Transcendent", "moss_green", "right 25%-30%", "Max color share: 35%"} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected %q in tier output:\n%s", want, text)
		}
	}
}

func TestLevelPath(t *testing.T) {
	if got := levelPath("module 2/level_1.json"); got != "module%202/level_1.json" {
		t.Errorf("Unexpected escaped path %s", got)
	}
}
