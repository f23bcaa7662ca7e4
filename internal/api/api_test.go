package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/jera/internal/index"
	"github.com/starford/jera/internal/storage"
	"github.com/starford/jera/internal/taskservice"
)

const apiPlan = "# Project\n## Setup\n| status |\n| --- |\n| DONE |\n## Build\n| status | depends |\n| --- | --- |\n| IN_PROGRESS | Setup |\n"

// testEnv sets up a temp project, SQLite DB, service, and router for testing.
// authToken="" means disabled mode; non-empty means token mode.
func testEnv(t *testing.T, authToken string) (*taskservice.Service, http.Handler) {
	t.Helper()
	return testEnvFull(t, authToken != "", authToken, nil)
}

func testEnvFull(t *testing.T, authEnabled bool, authToken string, sseHandler http.Handler) (*taskservice.Service, http.Handler) {
	t.Helper()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "plan.wbs.md"), []byte(apiPlan), 0o644); err != nil {
		t.Fatal(err)
	}
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}

	dbFile, err := os.CreateTemp("", "jera-api-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	svc := taskservice.NewService(store, db, logger, nil, false)
	router := NewRouter(svc, authEnabled, authToken, sseHandler)
	return svc, router
}

func taskIDByTitle(t *testing.T, router http.Handler, title string) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("list = %d", w.Code)
	}
	var resp TaskListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	for _, task := range resp.Tasks {
		if task.Title == title {
			return task.ID
		}
	}
	t.Fatalf("task %q not found", title)
	return ""
}

func TestListTasks(t *testing.T) {
	_, router := testEnv(t, "")

	req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("list = %d", w.Code)
	}
	var resp TaskListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Total != 3 {
		t.Errorf("total = %d, want 3", resp.Total)
	}

	req = httptest.NewRequest(http.MethodGet, "/tasks?status=DONE", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Total != 1 || resp.Tasks[0].Title != "Setup" {
		t.Errorf("DONE filter = %+v", resp.Tasks)
	}
}

func TestGetTask(t *testing.T) {
	_, router := testEnv(t, "")
	id := taskIDByTitle(t, router, "Build")

	req := httptest.NewRequest(http.MethodGet, "/tasks/"+id, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("get = %d", w.Code)
	}
	var task TaskDetail
	_ = json.Unmarshal(w.Body.Bytes(), &task)
	if task.Title != "Build" || task.Status != "IN_PROGRESS" {
		t.Errorf("task = %+v", task)
	}
	if len(task.Depends) != 1 || task.Depends[0] != "Setup" {
		t.Errorf("depends = %v", task.Depends)
	}
}

func TestGetTask_NotFound(t *testing.T) {
	_, router := testEnv(t, "")

	req := httptest.NewRequest(http.MethodGet, "/tasks/no-such-id", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing task = %d, want 404", w.Code)
	}
}

func TestCreateTask_Child(t *testing.T) {
	_, router := testEnv(t, "")
	rootID := taskIDByTitle(t, router, "Project")

	body, _ := json.Marshal(CreateTaskRequest{Title: "Deploy", ParentID: rootID})
	req := httptest.NewRequest(http.MethodPost, "/tasks", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d, body = %s", w.Code, w.Body.String())
	}
	var task TaskDetail
	_ = json.Unmarshal(w.Body.Bytes(), &task)
	if task.Title != "Deploy" || task.Level != 2 {
		t.Errorf("created = %+v", task)
	}
}

func TestCreateTask_Sibling(t *testing.T) {
	_, router := testEnv(t, "")
	setupID := taskIDByTitle(t, router, "Setup")

	body, _ := json.Marshal(CreateTaskRequest{Title: "Review", AfterID: setupID})
	req := httptest.NewRequest(http.MethodPost, "/tasks", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d, body = %s", w.Code, w.Body.String())
	}
	var task TaskDetail
	_ = json.Unmarshal(w.Body.Bytes(), &task)
	if task.Level != 2 {
		t.Errorf("sibling level = %d, want 2", task.Level)
	}
}

func TestCreateTask_Validation(t *testing.T) {
	_, router := testEnv(t, "")
	rootID := taskIDByTitle(t, router, "Project")

	// Missing title, missing anchor, both anchors.
	cases := []CreateTaskRequest{
		{Title: ""},
		{Title: "X"},
		{Title: "X", ParentID: rootID, AfterID: rootID},
	}
	for _, c := range cases {
		body, _ := json.Marshal(c)
		req := httptest.NewRequest(http.MethodPost, "/tasks", bytes.NewReader(body))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("create %+v = %d, want 400", c, w.Code)
		}
	}
}

func TestCreateTask_MissingAnchor(t *testing.T) {
	_, router := testEnv(t, "")

	body, _ := json.Marshal(CreateTaskRequest{Title: "Orphan", ParentID: "no-such-id"})
	req := httptest.NewRequest(http.MethodPost, "/tasks", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("create with missing anchor = %d, want 404", w.Code)
	}
}

func TestUpdateTask(t *testing.T) {
	_, router := testEnv(t, "")
	id := taskIDByTitle(t, router, "Build")

	body, _ := json.Marshal(map[string]string{"status": "DONE", "assignee": "bob"})
	req := httptest.NewRequest(http.MethodPatch, "/tasks/"+id, bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("patch = %d, body = %s", w.Code, w.Body.String())
	}
	var task TaskDetail
	_ = json.Unmarshal(w.Body.Bytes(), &task)
	if task.Status != "DONE" || task.Assignee != "bob" {
		t.Errorf("patched = %+v", task)
	}
}

func TestUpdateTask_InvalidStatus(t *testing.T) {
	_, router := testEnv(t, "")
	id := taskIDByTitle(t, router, "Build")

	body, _ := json.Marshal(map[string]string{"status": "BLOCKED"})
	req := httptest.NewRequest(http.MethodPatch, "/tasks/"+id, bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid status = %d, want 400", w.Code)
	}
}

func TestDeleteTask(t *testing.T) {
	_, router := testEnv(t, "")
	id := taskIDByTitle(t, router, "Setup")

	req := httptest.NewRequest(http.MethodDelete, "/tasks/"+id, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("delete = %d, want 204", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/tasks/"+id, nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", w.Code)
	}
}

func TestMoveTask(t *testing.T) {
	_, router := testEnv(t, "")
	id := taskIDByTitle(t, router, "Setup")

	body, _ := json.Marshal(MoveTaskRequest{Direction: "down"})
	req := httptest.NewRequest(http.MethodPost, "/tasks/"+id+"/move", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("move = %d, body = %s", w.Code, w.Body.String())
	}

	body, _ = json.Marshal(MoveTaskRequest{Direction: "sideways"})
	req = httptest.NewRequest(http.MethodPost, "/tasks/"+id+"/move", bytes.NewReader(body))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad direction = %d, want 400", w.Code)
	}
}

func TestMoveTask_IndentOutdent(t *testing.T) {
	_, router := testEnv(t, "")
	id := taskIDByTitle(t, router, "Build")

	body, _ := json.Marshal(MoveTaskRequest{Direction: "indent"})
	req := httptest.NewRequest(http.MethodPost, "/tasks/"+id+"/move", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("indent = %d, body = %s", w.Code, w.Body.String())
	}
	var task TaskDetail
	_ = json.Unmarshal(w.Body.Bytes(), &task)
	if task.Level != 3 {
		t.Errorf("level after indent = %d, want 3", task.Level)
	}

	body, _ = json.Marshal(MoveTaskRequest{Direction: "outdent"})
	req = httptest.NewRequest(http.MethodPost, "/tasks/"+id+"/move", bytes.NewReader(body))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	_ = json.Unmarshal(w.Body.Bytes(), &task)
	if task.Level != 2 {
		t.Errorf("level after outdent = %d, want 2", task.Level)
	}
}

func TestCycleStatus(t *testing.T) {
	_, router := testEnv(t, "")
	id := taskIDByTitle(t, router, "Setup")

	// Setup is DONE; one cycle wraps to TODO.
	req := httptest.NewRequest(http.MethodPost, "/tasks/"+id+"/cycle", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("cycle = %d", w.Code)
	}
	var task TaskDetail
	_ = json.Unmarshal(w.Body.Bytes(), &task)
	if task.Status != "TODO" {
		t.Errorf("status = %q, want TODO", task.Status)
	}
}

func TestSearchEndpoint(t *testing.T) {
	_, router := testEnv(t, "")

	req := httptest.NewRequest(http.MethodGet, "/search?q=Setup", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("search = %d, body = %s", w.Code, w.Body.String())
	}
	var resp SearchResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Results) == 0 {
		t.Error("no search results for Setup")
	}
}

func TestSearchResultsResolveToTasks(t *testing.T) {
	_, router := testEnv(t, "")

	req := httptest.NewRequest(http.MethodGet, "/search?q=Build", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("search = %d, body = %s", w.Code, w.Body.String())
	}
	var resp SearchResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Results) == 0 {
		t.Fatal("no search results for Build")
	}

	// The IDs search returns must be fetchable, not index-only ghosts.
	for _, res := range resp.Results {
		req = httptest.NewRequest(http.MethodGet, "/tasks/"+res.ID, nil)
		w = httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("get %q (%s) = %d, want 200", res.Title, res.ID, w.Code)
		}
	}
}

func TestAdjustDurationEndpoint(t *testing.T) {
	_, router := testEnv(t, "")
	id := taskIDByTitle(t, router, "Build")

	body, _ := json.Marshal(AdjustDurationRequest{Delta: 2})
	req := httptest.NewRequest(http.MethodPost, "/tasks/"+id+"/duration", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("adjust = %d, body = %s", w.Code, w.Body.String())
	}
	var task TaskDetail
	_ = json.Unmarshal(w.Body.Bytes(), &task)
	// Build has no duration; the first positive bump seeds it at one day.
	if task.Duration != "1d" {
		t.Errorf("duration = %q, want 1d", task.Duration)
	}

	body, _ = json.Marshal(AdjustDurationRequest{Delta: 0})
	req = httptest.NewRequest(http.MethodPost, "/tasks/"+id+"/duration", bytes.NewReader(body))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("zero delta = %d, want 400", w.Code)
	}

	body, _ = json.Marshal(AdjustDurationRequest{Delta: 1})
	req = httptest.NewRequest(http.MethodPost, "/tasks/no-such-id/duration", bytes.NewReader(body))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing task = %d, want 404", w.Code)
	}
}

func TestSearchMissingQuery(t *testing.T) {
	_, router := testEnv(t, "")

	req := httptest.NewRequest(http.MethodGet, "/search", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("search no query = %d, want 400", w.Code)
	}
}

func TestWarningsEndpoint(t *testing.T) {
	_, router := testEnv(t, "")

	req := httptest.NewRequest(http.MethodGet, "/warnings", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("warnings = %d", w.Code)
	}
	var resp WarningsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func TestExportEndpoint(t *testing.T) {
	_, router := testEnv(t, "")

	req := httptest.NewRequest(http.MethodGet, "/export/json", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("export = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("content type = %q", ct)
	}
	var payload map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("export body not JSON: %v", err)
	}
	if _, ok := payload["documents"]; !ok {
		t.Error("export payload missing documents")
	}
}

func TestExportEndpoint_UnknownFormat(t *testing.T) {
	_, router := testEnv(t, "")

	req := httptest.NewRequest(http.MethodGet, "/export/docx", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown format = %d, want 400", w.Code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("authed list = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	_, router := testEnv(t, "")

	req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

// SSE endpoint auth tests.

// sseStub writes headers and blocks until context done.
var sseStub = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	<-r.Context().Done()
})

func TestSSEEvents_AuthProtected(t *testing.T) {
	_, router := testEnvFull(t, true, "secret", sseStub)

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_AuthDisabled(t *testing.T) {
	_, router := testEnvFull(t, false, "", sseStub)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE should not require auth when disabled")
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	_, router := testEnvFull(t, true, "tok", sseStub)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
}
