package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/vinecheck/game/engine"
	"github.com/wricardo/vinecheck/game/level"
	"github.com/wricardo/vinecheck/game/rules"
	"github.com/wricardo/vinecheck/game/service"
	"github.com/wricardo/vinecheck/game/store"
	"github.com/wricardo/vinecheck/transport/websocket"
)

// MockValidationService implements service.ValidationService for testing
type MockValidationService struct {
	ValidateDocumentFunc func(ctx context.Context, doc *level.Document) (*engine.Report, error)
	ValidateLevelFunc    func(ctx context.Context, name string, persist bool) (*service.FileReport, error)
	ValidateAllFunc      func(ctx context.Context, opts service.BatchOptions) (*service.BatchSummary, error)
	ListLevelsFunc       func(ctx context.Context) ([]*service.LevelInfo, error)
	ListTiersFunc        func(ctx context.Context) (*service.TierTable, error)
}

func (m *MockValidationService) ValidateDocument(ctx context.Context, doc *level.Document) (*engine.Report, error) {
	if m.ValidateDocumentFunc != nil {
		return m.ValidateDocumentFunc(ctx, doc)
	}
	return engine.NewValidator(nil).Validate(doc), nil
}

func (m *MockValidationService) ValidateLevel(ctx context.Context, name string, persist bool) (*service.FileReport, error) {
	if m.ValidateLevelFunc != nil {
		return m.ValidateLevelFunc(ctx, name, persist)
	}
	return &service.FileReport{Name: name, Valid: true, Violations: []string{}, Warnings: []string{}, Persisted: persist}, nil
}

func (m *MockValidationService) ValidateAll(ctx context.Context, opts service.BatchOptions) (*service.BatchSummary, error) {
	if m.ValidateAllFunc != nil {
		return m.ValidateAllFunc(ctx, opts)
	}
	return &service.BatchSummary{ID: opts.ID, Files: []*service.FileReport{}}, nil
}

func (m *MockValidationService) ListLevels(ctx context.Context) ([]*service.LevelInfo, error) {
	if m.ListLevelsFunc != nil {
		return m.ListLevelsFunc(ctx)
	}
	return []*service.LevelInfo{}, nil
}

func (m *MockValidationService) ListTiers(ctx context.Context) (*service.TierTable, error) {
	if m.ListTiersFunc != nil {
		return m.ListTiersFunc(ctx)
	}
	rs := rules.Default()
	return &service.TierTable{Tiers: rs.Tiers(), Palette: rs.Palette()}, nil
}

func doRequest(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader([]byte(body)))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	s := NewServer(&MockValidationService{}, nil)

	rec := doRequest(t, s, "GET", "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode(t, rec)["status"])
}

func TestMetrics(t *testing.T) {
	s := NewServer(&MockValidationService{}, nil)

	rec := doRequest(t, s, "GET", "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestValidateDocumentEndpoint(t *testing.T) {
	s := NewServer(&MockValidationService{}, nil)

	body := `{"id": 1, "name": "n", "grid_size": [2, 1], "difficulty": "Custom",
		"vines": [{"id": "a", "head_direction": "left", "ordered_path": [[0,0],[1,0]]}],
		"max_moves": 1, "min_moves": 1, "complexity": "low", "grace": 3, "editor_note": "keep"}`

	rec := doRequest(t, s, "POST", "/api/validate", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	out := decode(t, rec)
	assert.Equal(t, true, out["valid"])
	assert.Equal(t, []interface{}{}, out["violations"])
	assert.Equal(t, []interface{}{"a"}, out["clearable_at_start"])

	doc := out["document"].(map[string]interface{})
	assert.Equal(t, 100.0, doc["occupancy_percent"])
	assert.Equal(t, "keep", doc["editor_note"], "unknown keys survive")

	metrics := out["metrics"].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{"unknown": 1.0}, metrics["color_distribution"])
}

func TestValidateDocumentRejectsBadBodies(t *testing.T) {
	s := NewServer(&MockValidationService{}, nil)

	for _, body := range []string{`{"id": `, `[1, 2]`, `"level"`} {
		rec := doRequest(t, s, "POST", "/api/validate", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.True(t, strings.HasPrefix(decode(t, rec)["error"].(string), "Invalid JSON: "), body)
	}
}

func TestGetLevel(t *testing.T) {
	var gotName string
	var gotPersist bool
	mock := &MockValidationService{
		ValidateLevelFunc: func(ctx context.Context, name string, persist bool) (*service.FileReport, error) {
			gotName, gotPersist = name, persist
			switch name {
			case "level_404":
				return nil, fmt.Errorf("%w: %s", store.ErrLevelNotFound, name)
			case "level_bad":
				return nil, fmt.Errorf("%w: %s", store.ErrUnparseable, name)
			}
			return &service.FileReport{Name: name, Valid: false, Violations: []string{"Grid not fully tiled"}}, nil
		},
	}
	s := NewServer(mock, nil)

	rec := doRequest(t, s, "GET", "/api/levels/module_2/level_9.json", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "module_2/level_9.json", gotName, "names may contain a directory")
	assert.False(t, gotPersist, "GET never writes")
	assert.Equal(t, false, decode(t, rec)["valid"])

	assert.Equal(t, http.StatusNotFound, doRequest(t, s, "GET", "/api/levels/level_404", "").Code)
	assert.Equal(t, http.StatusUnprocessableEntity, doRequest(t, s, "GET", "/api/levels/level_bad", "").Code)
}

func TestValidateLevelEndpoint(t *testing.T) {
	var persisted []bool
	mock := &MockValidationService{
		ValidateLevelFunc: func(ctx context.Context, name string, persist bool) (*service.FileReport, error) {
			persisted = append(persisted, persist)
			return &service.FileReport{Name: name + ".json", Valid: true, Persisted: persist}, nil
		},
	}
	s, conn := newLiveServer(t, mock, "level_4.json")

	rec := doRequest(t, s, "POST", "/api/levels/level_4/validate", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s, "POST", "/api/levels/level_4/validate?persist=maybe", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, s, "POST", "/api/levels/level_4/validate?persist=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["persisted"])

	assert.Equal(t, []bool{false, true}, persisted)

	// Only the persisted validation is announced
	message := readEvent(t, conn)
	assert.Equal(t, websocket.EventLevelUpdated, message.Event)
	assert.Equal(t, "level_4.json", message.Channel)
}

// newLiveServer starts a hub and subscribes a WebSocket client to channel
// through the server's /ws endpoint
func newLiveServer(t *testing.T, svc service.ValidationService, channel string, opts ...Option) (*Server, *gorillaws.Conn) {
	t.Helper()
	hub := websocket.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	s := NewServer(svc, hub, opts...)
	httpServer := httptest.NewServer(s)
	t.Cleanup(httpServer.Close)

	wsURL := "ws" + strings.TrimPrefix(httpServer.URL, "http") + "/ws?channel=" + channel
	conn, _, err := gorillaws.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool {
		n, err := hub.ClientCount(context.Background(), channel)
		return err == nil && n == 1
	}, time.Second, 5*time.Millisecond)

	return s, conn
}

func readEvent(t *testing.T, conn *gorillaws.Conn) websocket.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var message websocket.Message
	require.NoError(t, json.Unmarshal(data, &message))
	return message
}

func TestListLevelsEndpoint(t *testing.T) {
	mock := &MockValidationService{
		ListLevelsFunc: func(ctx context.Context) ([]*service.LevelInfo, error) {
			return []*service.LevelInfo{
				{Name: "level_1.json", ID: "1", VineCount: 12},
				{Name: "level_2.json", Error: "level file is not a valid level document"},
			}, nil
		},
	}
	s := NewServer(mock, nil)

	rec := doRequest(t, s, "GET", "/api/levels", "")
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, 2.0, out["count"])
	assert.Len(t, out["levels"], 2)
}

func TestListTiersEndpoint(t *testing.T) {
	s := NewServer(&MockValidationService{}, nil)

	rec := doRequest(t, s, "GET", "/api/tiers", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var table service.TierTable
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &table))
	require.Len(t, table.Tiers, 5)
	assert.Equal(t, rules.Range{Min: 4, Max: 60}, table.Tiers[0].VineCount)
}

func TestBatchEndpoint(t *testing.T) {
	var got service.BatchOptions
	mock := &MockValidationService{
		ValidateAllFunc: func(ctx context.Context, opts service.BatchOptions) (*service.BatchSummary, error) {
			got = opts
			report := &service.FileReport{Name: "level_1.json", Valid: true}
			if opts.Observer != nil {
				opts.Observer(report)
			}
			return &service.BatchSummary{ID: opts.ID, Files: []*service.FileReport{report}, FilesChecked: 1, FilesValid: 1}, nil
		},
	}
	s, conn := newLiveServer(t, mock, websocket.AllChannels, WithBackupRoot("/var/backups/levels"))

	rec := doRequest(t, s, "POST", "/api/batch", `{"workers": 3, "dry_run": true, "backup": true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	out := decode(t, rec)
	assert.Equal(t, got.ID, out["id"])
	assert.NotEmpty(t, got.ID, "batch ids are generated")
	assert.Equal(t, 3, got.Workers)
	assert.True(t, got.DryRun)
	assert.Equal(t, "/var/backups/levels", got.BackupDir)

	first := readEvent(t, conn)
	assert.Equal(t, websocket.EventFileValidated, first.Event)
	assert.Equal(t, got.ID, first.Channel)
	assert.Equal(t, "level_1.json", first.Data.(map[string]interface{})["name"])
	assert.Equal(t, websocket.EventBatchComplete, readEvent(t, conn).Event)

	rec = doRequest(t, s, "POST", "/api/batch", `{"id": "nightly", "workers": "full"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nightly", got.ID)
	assert.Empty(t, got.BackupDir)

	rec = doRequest(t, s, "POST", "/api/batch", "")
	require.Equal(t, http.StatusOK, rec.Code, "an empty body uses the defaults")
	assert.GreaterOrEqual(t, got.Workers, 1)
}

func TestBatchEndpointErrors(t *testing.T) {
	s := NewServer(&MockValidationService{
		ValidateAllFunc: func(ctx context.Context, opts service.BatchOptions) (*service.BatchSummary, error) {
			return nil, fmt.Errorf("backup failed: %w", context.DeadlineExceeded)
		},
	}, nil)

	assert.Equal(t, http.StatusBadRequest, doRequest(t, s, "POST", "/api/batch", `{"workers": "lots"}`).Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(t, s, "POST", "/api/batch", `{"backup": true}`).Code,
		"backup needs a configured root")
	assert.Equal(t, http.StatusBadRequest, doRequest(t, s, "POST", "/api/batch", `{"workers": [1]}`).Code)

	rec := doRequest(t, s, "POST", "/api/batch", `{}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "backup failed")
}

func TestBatchEndpointAsync(t *testing.T) {
	done := make(chan service.BatchOptions, 1)
	s := NewServer(&MockValidationService{
		ValidateAllFunc: func(ctx context.Context, opts service.BatchOptions) (*service.BatchSummary, error) {
			done <- opts
			return &service.BatchSummary{ID: opts.ID}, nil
		},
	}, nil)

	rec := doRequest(t, s, "POST", "/api/batch", `{"async": true}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, "started", out["status"])

	select {
	case opts := <-done:
		assert.Equal(t, out["id"], opts.ID)
	case <-time.After(time.Second):
		t.Fatal("async batch did not run")
	}
}

func TestWebSocketRequiresHub(t *testing.T) {
	s := NewServer(&MockValidationService{}, nil)
	rec := doRequest(t, s, "GET", "/ws?channel=x", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestUnknownRoute(t *testing.T) {
	s := NewServer(&MockValidationService{}, nil)
	assert.Equal(t, http.StatusNotFound, doRequest(t, s, "GET", "/api/sessions", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, doRequest(t, s, "DELETE", "/api/levels", "").Code)
}
