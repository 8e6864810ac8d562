package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"mindmap-backend/application/ports"
	"mindmap-backend/application/services"
	"mindmap-backend/domain/core/entities"
	"mindmap-backend/domain/core/valueobjects"
	"mindmap-backend/domain/generation"
	"mindmap-backend/domain/interview"
	"mindmap-backend/domain/layout"
	"mindmap-backend/domain/session"
	"mindmap-backend/domain/versioning"
	"mindmap-backend/infrastructure/observability"
	"mindmap-backend/infrastructure/persistence/memory"
	"mindmap-backend/interfaces/http/rest/handlers"
	pkgerrors "mindmap-backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGenerator struct{}

func (stubGenerator) ClarifyIntent(context.Context, string) ([]interview.Question, error) {
	return nil, pkgerrors.NewExternalError("gemini", nil)
}

func (stubGenerator) ReformulateQuestions(_ context.Context, _ string, qs []interview.Question, _ interview.Answers) ([]interview.Question, error) {
	return qs, nil
}

func (stubGenerator) GenerateMap(context.Context, string, string) (generation.GeneratedMap, error) {
	return generation.GeneratedMap{
		Nodes: []entities.Node{
			{ID: "root", Label: "Plan", Type: valueobjects.NodeTypeIdea},
			{ID: "a", Label: "Marketing", Type: valueobjects.NodeTypeIdea},
			{ID: "b", Label: "Ventas", Type: valueobjects.NodeTypeTask},
		},
		Edges: []entities.Edge{
			{ID: "e1", Source: "root", Target: "a"},
			{ID: "e2", Source: "root", Target: "b"},
		},
	}, nil
}

func (stubGenerator) ExpandNode(context.Context, entities.Node) ([]entities.NodeFields, error) {
	return []entities.NodeFields{
		entities.Suggestion("Redes", "", valueobjects.NodeTypeTask),
		entities.Suggestion("Prensa", "", valueobjects.NodeTypeIdea),
	}, nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := zap.NewNop()
	store := memory.NewSessionStore(10, time.Hour, logger)
	metrics := observability.NewCollector("test")
	svc := services.NewSessionService(store, stubGenerator{},
		ports.StaticSettings{Layout: layout.DefaultOptions(), Capacity: 20}, metrics, logger)
	handler := handlers.NewSessionHandler(svc, pkgerrors.NewErrorHandler(logger, false), logger)
	router := NewRouter(handler, store, metrics, RouterConfig{
		ServiceName:    "test",
		AllowedOrigins: []string{"http://localhost:3000"},
	}, logger)

	srv := httptest.NewServer(router.Setup())
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path string, body interface{}) (int, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, srv.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, buf.Bytes()
}

func decodeInto(t *testing.T, raw []byte, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(raw, dst), string(raw))
}

func startSession(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	status, raw := do(t, srv, http.MethodPost, "/api/v1/sessions", map[string]string{
		"content":  "Campaña de verano",
		"fileInfo": "brief.pdf",
	})
	require.Equal(t, http.StatusCreated, status, string(raw))
	var st session.State
	decodeInto(t, raw, &st)
	return st.ID.String()
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t)

	status, raw := do(t, srv, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"healthy"}`, string(raw))

	status, raw = do(t, srv, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"ready","sessions":0,"store":{"sessions":0,"evictions":0,"expired":0}}`, string(raw))

	startSession(t, srv)
	status, raw = do(t, srv, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(raw), "test_active_sessions 1")
	assert.Contains(t, string(raw), `test_http_requests_total{method="POST",route="/api/v1/sessions`)
}

func TestInterviewFlow(t *testing.T) {
	srv := newTestServer(t)
	id := startSession(t, srv)
	base := "/api/v1/sessions/" + id

	status, raw := do(t, srv, http.MethodGet, base+"/questions", nil)
	require.Equal(t, http.StatusOK, status)
	var qs handlers.QuestionsResponse
	decodeInto(t, raw, &qs)
	assert.Equal(t, interview.DefaultQuestions(), qs.Questions)

	status, raw = do(t, srv, http.MethodPut, base+"/answers/0", map[string]interface{}{
		"options": []string{qs.Questions[0].Options[1]},
		"other":   []string{"Por mercados"},
	})
	require.Equal(t, http.StatusOK, status, string(raw))
	assert.Contains(t, string(raw), "Por mercados")

	status, _ = do(t, srv, http.MethodPost, base+"/answers/1/toggle-all", nil)
	assert.Equal(t, http.StatusOK, status)

	status, raw = do(t, srv, http.MethodPut, base+"/answers/9", map[string]interface{}{"options": []string{"x"}})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, string(raw), `"type":"VALIDATION"`)

	status, _ = do(t, srv, http.MethodPut, base+"/answers/abc", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = do(t, srv, http.MethodPost, base+"/reformulate", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestStartSession_Validation(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name string
		body interface{}
	}{
		{"empty source", map[string]string{}},
		{"bad type", map[string]string{"type": "fax", "content": "x"}},
		{"rejected extension", map[string]string{"fileInfo": "setup.exe"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, raw := do(t, srv, http.MethodPost, "/api/v1/sessions", tt.body)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Contains(t, string(raw), `"type":"VALIDATION"`)
		})
	}

	status, _ := do(t, srv, http.MethodGet, "/api/v1/sessions/session-missing", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestMapEditing(t *testing.T) {
	srv := newTestServer(t)
	id := startSession(t, srv)
	base := "/api/v1/sessions/" + id

	status, _ := do(t, srv, http.MethodGet, base+"/map", nil)
	assert.Equal(t, http.StatusConflict, status, "no map before generation")

	status, raw := do(t, srv, http.MethodPost, base+"/generate", nil)
	require.Equal(t, http.StatusOK, status, string(raw))
	var v services.View
	decodeInto(t, raw, &v)
	assert.Equal(t, "Plan: brief", v.Map.Title)
	assert.Len(t, v.Layout.Positions, 3)
	assert.Equal(t, layout.DefaultLevelSpacing, v.Layout.Positions["a"].X)

	status, raw = do(t, srv, http.MethodPost, base+"/map/nodes/a/children", map[string]string{"label": "Folletos", "type": "task"})
	require.Equal(t, http.StatusCreated, status, string(raw))
	var added handlers.AddChildResponse
	decodeInto(t, raw, &added)
	assert.Equal(t, "Folletos", added.Node.Label)
	assert.Len(t, added.View.Map.Nodes, 4)

	status, raw = do(t, srv, http.MethodPatch, base+"/map/nodes/"+added.Node.ID.String(), map[string]string{"type": "planet"})
	assert.Equal(t, http.StatusBadRequest, status, string(raw))

	status, raw = do(t, srv, http.MethodPatch, base+"/map/nodes/"+added.Node.ID.String(), map[string]string{"assignee": "Ana"})
	assert.Equal(t, http.StatusOK, status, string(raw))

	status, raw = do(t, srv, http.MethodDelete, base+"/map/nodes/root", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Contains(t, string(raw), `"type":"ROOT_PROTECTED"`)

	status, raw = do(t, srv, http.MethodDelete, base+"/map/nodes/ghost", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Contains(t, string(raw), `"type":"INVALID_REFERENCE"`)

	status, raw = do(t, srv, http.MethodPatch, base+"/map", map[string]string{"title": "Verano 2026"})
	require.Equal(t, http.StatusOK, status, string(raw))
	decodeInto(t, raw, &v)
	assert.Equal(t, "Verano 2026", v.Map.Title)

	status, raw = do(t, srv, http.MethodPost, base+"/undo", nil)
	require.Equal(t, http.StatusOK, status)
	decodeInto(t, raw, &v)
	assert.Equal(t, "Plan: brief", v.Map.Title)
	assert.True(t, v.CanRedo)

	status, raw = do(t, srv, http.MethodGet, base+"/history", nil)
	require.Equal(t, http.StatusOK, status)
	var tl versioning.Timeline
	decodeInto(t, raw, &tl)
	assert.Len(t, tl.Versions, 4)
	assert.Equal(t, 2, tl.Cursor)

	status, raw = do(t, srv, http.MethodPost, base+"/map/nodes/b/expand", nil)
	require.Equal(t, http.StatusOK, status, string(raw))
	var exp services.ExpandResult
	decodeInto(t, raw, &exp)
	assert.Len(t, exp.Added, 2)
	assert.False(t, exp.View.CanRedo, "expansion commits and clears redo")

	status, _ = do(t, srv, http.MethodPost, base+"/generate", map[string]bool{"skip": true})
	assert.Equal(t, http.StatusConflict, status)
}

func TestTeam(t *testing.T) {
	srv := newTestServer(t)
	id := startSession(t, srv)
	base := "/api/v1/sessions/" + id

	status, raw := do(t, srv, http.MethodPost, base+"/team", map[string]string{"name": "Lucía"})
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(raw), "Lucía")

	status, _ = do(t, srv, http.MethodPost, base+"/team", map[string]string{"name": "  "})
	assert.Equal(t, http.StatusBadRequest, status)

	status, raw = do(t, srv, http.MethodGet, base+"/team", nil)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, strings.Contains(string(raw), "Ana"))

	status, _ = do(t, srv, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = do(t, srv, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, status)
}
